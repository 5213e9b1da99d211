// Command auctionctl runs auction ledger operations against the configured
// store from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/cpl-auction/internal/auth"
	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/config"
	"github.com/jensholdgaard/cpl-auction/internal/event"
	"github.com/jensholdgaard/cpl-auction/internal/ledger"
	"github.com/jensholdgaard/cpl-auction/internal/store"
	"github.com/jensholdgaard/cpl-auction/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/cpl-auction/internal/store/memory"
	_ "github.com/jensholdgaard/cpl-auction/internal/store/postgres"
	_ "github.com/jensholdgaard/cpl-auction/internal/store/sqlite"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	if closeErr := a.Close(); closeErr != nil {
		slog.Error("closing store", slog.Any("error", closeErr))
	}
	if err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand for one invocation.
type app struct {
	configPath string
	envFile    string
	operator   string
	verbose    bool

	ledger *ledger.Ledger
	events event.Store
	key    string
	closer io.Closer
}

func (a *app) principal() auth.Principal {
	return auth.Local(a.operator)
}

// open loads configuration and the ledger.
func (a *app) open(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading env file: %w", err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelWarn
	if a.verbose {
		level = telemetry.Level(cfg.Telemetry.LogLevel)
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	clk := clock.Real{}

	ctx := cmd.Context()
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}

	l := ledger.New(repos.Documents, repos.Events, logger, noop.NewTracerProvider(), metricnoop.NewMeterProvider(), clk,
		ledger.WithStateKey(cfg.Auction.StateKey),
		ledger.WithSeed(cfg.Auction.Seed),
	)
	if err := l.Load(ctx); err != nil {
		_ = repos.Closer.Close()
		return err
	}

	a.ledger = l
	a.events = repos.Events
	a.key = cfg.Auction.StateKey
	a.closer = repos.Closer
	return nil
}

// Close releases the store opened by the last command.
func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:     "auctionctl",
		Short:   "Run the player auction from a terminal",
		Version: version,
		Long: `auctionctl drives the auction ledger stored by the configured driver.

Teams and players can be given by id or by name (case-insensitive).
Destructive commands require --yes.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional dotenv file with secrets")
	root.PersistentFlags().StringVar(&a.operator, "as", os.Getenv("USER"), "operator name recorded in the audit log")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log ledger operations to stderr")

	root.AddCommand(
		importCmd(a),
		addCmd(a),
		drawCmd(a),
		assignCmd(a),
		removeCmd(a),
		editCoinsCmd(a),
		moveCmd(a),
		renameTeamCmd(a),
		resetTeamCmd(a),
		resetAllCmd(a),
		teamsCmd(a),
		availableCmd(a),
		statsCmd(a),
		stateCmd(a),
		historyCmd(a),
	)
	return root, a
}
