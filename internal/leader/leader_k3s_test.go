package leader_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/k3s"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/jensholdgaard/cpl-auction/internal/auth"
	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/config"
	"github.com/jensholdgaard/cpl-auction/internal/leader"
	"github.com/jensholdgaard/cpl-auction/internal/ledger"
	"github.com/jensholdgaard/cpl-auction/internal/store/memory"
)

// TestLeaderElection_K3s_FailoverReloadsLedger runs two replicas against a
// real Lease in k3s. The standby loads the auction before the leader sells a
// player; once it takes over it must reload and see that sale. Skipped in
// short mode.
func TestLeaderElection_K3s_FailoverReloadsLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping k3s integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := k3s.Run(ctx, "rancher/k3s:v1.31.6-k3s1")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting k3s container: %v", err)
	}

	kubeConfigYaml, err := ctr.GetKubeConfig(ctx)
	if err != nil {
		t.Fatalf("getting kubeconfig: %v", err)
	}
	restCfg, err := clientcmd.RESTConfigFromKubeConfig(kubeConfigYaml)
	if err != nil {
		t.Fatalf("building rest config: %v", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		t.Fatalf("creating kubernetes client: %v", err)
	}

	origFactory := leader.ClientFactory
	leader.ClientFactory = func() (kubernetes.Interface, error) {
		return clientset, nil
	}
	t.Cleanup(func() { leader.ClientFactory = origFactory })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	admin := auth.Local("leader-test")

	// Both replicas share one document store, as they would share a database.
	docs := memory.NewDocumentStore()
	newReplica := func() *ledger.Ledger {
		l := ledger.New(docs, memory.NewEventStore(clock.Real{}), logger,
			noop.NewTracerProvider(), metricnoop.NewMeterProvider(), clock.Real{})
		if err := l.Load(ctx); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return l
	}
	primary := newReplica()
	standby := newReplica()

	run := func(ctx context.Context, id string, serve func(ctx context.Context)) <-chan error {
		cfg := config.LeaderElectionConfig{
			Enabled:        true,
			Identity:       id,
			LeaseName:      "auctionbot-test-leader",
			LeaseNamespace: "default",
			LeaseDuration:  5 * time.Second,
			RenewDeadline:  3 * time.Second,
			RetryPeriod:    1 * time.Second,
		}
		done := make(chan error, 1)
		go func() {
			done <- leader.Run(ctx, cfg, logger, serve, func() {})
		}()
		return done
	}

	sold := make(chan error, 1)
	primaryCtx, primaryCancel := context.WithCancel(ctx)
	primaryDone := run(primaryCtx, "replica-a", func(ctx context.Context) {
		sold <- sellOne(ctx, primary, admin)
		<-ctx.Done()
	})

	select {
	case err := <-sold:
		if err != nil {
			t.Fatalf("selling as leader: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for replica-a to lead")
	}

	if st := standby.Snapshot(); len(st.PlayersPool) != 0 || st.Version != 0 {
		t.Fatalf("standby state before failover = %d players at version %d, want empty", len(st.PlayersPool), st.Version)
	}

	loaded := make(chan ledger.State, 1)
	standbyCtx, standbyCancel := context.WithCancel(ctx)
	defer standbyCancel()
	standbyDone := run(standbyCtx, "replica-b", func(ctx context.Context) {
		if err := standby.Load(ctx); err != nil {
			t.Errorf("reloading as new leader: %v", err)
		}
		loaded <- standby.Snapshot()
		<-ctx.Done()
	})

	// Releasing the lease hands leadership to the standby.
	primaryCancel()
	waitRun(t, "replica-a", primaryDone)

	var st ledger.State
	select {
	case st = <-loaded:
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for replica-b to take over")
	}

	if st.Version != 2 {
		t.Errorf("standby version after takeover = %d, want 2", st.Version)
	}
	roster := st.Teams[0].Players
	if len(roster) != 1 || roster[0].Name != "Asha" || roster[0].Coins != 500 {
		t.Errorf("standby sees %s roster %+v, want Asha for 500", st.Teams[0].Name, roster)
	}

	// The new leader writes on top of the inherited document.
	if err := standby.RenameTeam(ctx, admin, st.Teams[0].ID, "Royals"); err != nil {
		t.Errorf("RenameTeam() after takeover error = %v", err)
	}

	standbyCancel()
	waitRun(t, "replica-b", standbyDone)
}

// sellOne adds a player and assigns them to the first team.
func sellOne(ctx context.Context, l *ledger.Ledger, who auth.Principal) error {
	if err := l.Load(ctx); err != nil {
		return err
	}
	if _, err := l.AddPlayer(ctx, who, "Asha"); err != nil {
		return err
	}
	p, err := l.FindAvailable("Asha")
	if err != nil {
		return err
	}
	return l.AssignPlayer(ctx, who, p, l.Snapshot().Teams[0].ID, 500)
}

func waitRun(t *testing.T, id string, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("leader.Run(%s) error = %v", id, err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for leader.Run(%s) to return", id)
	}
}
