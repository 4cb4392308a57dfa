package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bookfeed/internal/api"
	"github.com/rickgao/bookfeed/internal/database"
	"github.com/rickgao/bookfeed/internal/feed"
	"github.com/rickgao/bookfeed/internal/loop"
	"github.com/rickgao/bookfeed/internal/metrics"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/poller"
	"github.com/rickgao/bookfeed/internal/venue"
	"github.com/rickgao/bookfeed/internal/version"
	"github.com/rickgao/bookfeed/internal/writer"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the feed for every configured subscription",
	Long: `Connect every subscription in the config file, log each delivered book
and serve /health and Prometheus metrics until SIGINT or SIGTERM.

Examples:
  bookfeed run --config configs/bookfeed.yaml`,
	RunE: runFeed,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log, os.Stdout)
	logger.Info("starting bookfeed",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"subscriptions", len(cfg.Subscriptions),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, m := metrics.NewRegistry()
	catalog := venue.NewCatalog(venueOverrides(cfg))
	lp := loop.New(loop.RealClock(), logger)

	opts := []feed.Option{feed.WithMetrics(m)}

	// Optional lifecycle journal
	var journal *writer.JournalWriter
	if cfg.Journal.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Journal.Database.Host,
			"port", cfg.Journal.Database.Port,
			"database", cfg.Journal.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Journal.Database, "bookfeed-"+cfg.Instance.ID)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure journal schema: %w", err)
		}

		journal = writer.NewJournalWriter(writerConfig(cfg), pool, m, logger)
		if err := journal.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		opts = append(opts, feed.WithRecorder(journal))
	}

	// Optional REST reachability poller
	var prober *poller.Poller
	var probes probeSource
	if cfg.Poller.Enabled {
		sources := poller.SourcesFor(catalog.List(),
			api.WithLogger(logger),
			api.WithTimeout(cfg.Poller.Timeout),
			api.WithRetries(cfg.Poller.MaxRetries, 250*time.Millisecond),
		)
		prober = poller.New(pollerConfig(cfg), sources, nil, m, logger)
		probes = prober
	}

	svc := feed.NewService(feedConfig(cfg), catalog, lp, logger, opts...)

	var journalStats journalSource
	if journal != nil {
		journalStats = journal
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           createHandler(cfg.Instance.ID, svc, probes, journalStats, reg, cfg.Metrics.Path, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// The loop outlives ctx so DisconnectAll can run during shutdown.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := lp.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	if prober != nil {
		if err := prober.Start(gctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
	}

	for _, sub := range cfg.Subscriptions {
		id := model.VenueID(sub.Venue)
		if err := svc.Connect(gctx, id, sub.Symbol, logDelivery(logger)); err != nil {
			logger.Error("failed to connect subscription", "venue", sub.Venue, "symbol", sub.Symbol, "error", err)
		}
	}

	logger.Info("bookfeed running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := svc.DisconnectAll(shutdownCtx); err != nil {
			logger.Warn("disconnect failed", "error", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown failed", "error", err)
		}
		if prober != nil {
			prober.Stop(shutdownCtx)
		}
		if journal != nil {
			journal.Stop(shutdownCtx)
		}
		stopLoop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("bookfeed stopped with error", "error", err)
		return err
	}

	logger.Info("bookfeed stopped")
	return nil
}
