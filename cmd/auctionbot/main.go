package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jensholdgaard/cpl-auction/internal/auth"
	"github.com/jensholdgaard/cpl-auction/internal/bot"
	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/config"
	"github.com/jensholdgaard/cpl-auction/internal/health"
	"github.com/jensholdgaard/cpl-auction/internal/leader"
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
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file with secrets")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("reading env file", slog.String("path", *envFile), slog.Any("error", err))
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open store using the configured driver (sqlx, sqlite or memory).
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	auctionLedger := ledger.New(repos.Documents, repos.Events, logger, tp.TracerProvider, tp.MeterProvider, clk,
		ledger.WithStateKey(cfg.Auction.StateKey),
		ledger.WithSeed(cfg.Auction.Seed),
	)
	gate := auth.NewGate(cfg.Auth)

	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
	)
	healthHandler.SetInfo(func() any { return auctionLedger.Stats() })

	// Start HTTP server for health checks (runs on all replicas).
	mux := http.NewServeMux()
	healthHandler.Routes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting health server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "health server error", slog.Any("error", listenErr))
		}
	}()

	// serve owns the ledger until ctx is done. Only the leader runs it.
	serve := func(ctx context.Context) error {
		// Reload on every start so a new leader sees the last committed state.
		if err := auctionLedger.Load(ctx); err != nil {
			return fmt.Errorf("loading auction state: %w", err)
		}

		discordBot, err := bot.New(cfg.Discord, auctionLedger, gate, logger, tp.TracerProvider)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		if err := discordBot.Start(ctx); err != nil {
			return fmt.Errorf("starting bot: %w", err)
		}

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "auctionbot is running", slog.String("version", version))

		<-ctx.Done()

		healthHandler.SetReady(false)
		if stopErr := discordBot.Stop(); stopErr != nil {
			logger.Error("bot shutdown error", slog.Any("error", stopErr))
		}
		return nil
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger,
			func(ctx context.Context) {
				if err := serve(ctx); err != nil {
					logger.ErrorContext(ctx, "serving as leader failed", slog.Any("error", err))
					cancel()
				}
			},
			func() {
				logger.Info("lost leadership, shutting down...")
				cancel()
			},
		); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else if err := serve(ctx); err != nil {
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
