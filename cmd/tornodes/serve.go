package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/tornodes/internal/config"
	"github.com/nao1215/tornodes/internal/server"
	"github.com/nao1215/tornodes/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// pruneInterval is how often expired refresh events are deleted.
const pruneInterval = time.Hour

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cached Tor node lists over HTTP",
		Long: `Serve loads the durable exit list, refreshes every stale cache once and
then serves the lists over HTTP while a background loop keeps them fresh.

Routes:
  GET /                        service description and cache status
  GET /tornodes-ip.txt         plain text exit IP list
  GET /status                  cache status
  GET /api/nodes               every relay
  GET /api/nodes/running       running relays
  GET /api/nodes/exit          exit relays
  GET /api/nodes/country/{cc}  relays in one country
  GET /api/stats               relay statistics (JSON)
  GET /api/stats.md            relay statistics (Markdown)
  GET /api/feed/rss            RSS feed of relays
  GET /api/refreshes           recent refresh history

Examples:
  # Serve on the default address 0.0.0.0:8000
  tornodes serve

  # Serve on localhost only and refresh the relay set every minute
  tornodes serve --host 127.0.0.1 --detailed-ttl 1m

  # Fetch the upstreams through an external Tor proxy
  tornodes serve --external-tor 127.0.0.1:9050`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	// Server flags
	cmd.Flags().String("host", config.DefaultHost, "Listen host")
	cmd.Flags().IntP("port", "p", config.DefaultPort, "Listen port")
	cmd.Flags().Bool("no-rate-limit", false, "Disable the per-client rate limits")

	// Cache flags
	cmd.Flags().DurationP("interval", "i", config.DefaultRefreshInterval,
		"Period of the background staleness check")
	cmd.Flags().Duration("exit-ttl", config.DefaultExitTTL, "Maximum age of the exit list")
	cmd.Flags().Duration("detailed-ttl", config.DefaultDetailedTTL, "Maximum age of the relay set")

	addSourceFlags(cmd)

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, used, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	if used != "" {
		logger.Info("configuration file loaded", "path", used)
	}

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runServe(ctx, cfg, logger)
}

// runServe initializes the caches and serves until ctx is done.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("starting tornodes",
		"addr", cfg.Addr(),
		"exitTTL", cfg.ExitTTL,
		"detailedTTL", cfg.DetailedTTL,
		"useTor", cfg.UseTor,
		"history", cfg.History,
	)

	// Upstream outages are survivable: the routes answer with the last good
	// data or an error payload. A cache that cannot be persisted is not.
	if err := a.coord.Initialize(ctx); err != nil {
		if errors.Is(err, store.ErrPersistence) {
			return fmt.Errorf("failed to initialize cache: %w", err)
		}
		logger.Warn("initial refresh failed, serving on demand", "error", err)
	}

	srv := server.New(a.service, serverOptions(a)...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.coord.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx, cfg.Addr())
	})
	if a.history != nil && cfg.HistoryRetention > 0 {
		g.Go(func() error {
			pruneHistory(gctx, a, cfg.HistoryRetention)
			return nil
		})
	}

	err = g.Wait()
	a.coord.Stop()
	if err != nil {
		return err
	}
	logger.Info("tornodes stopped")
	return nil
}

// serverOptions translates the configuration into server options.
func serverOptions(a *app) []server.Option {
	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithVersion(getVersion()),
		server.WithFeedLimit(a.cfg.FeedLimit),
	}
	if !a.cfg.RateLimit {
		opts = append(opts, server.WithLimits(nil))
	}
	if a.history != nil {
		opts = append(opts, server.WithHistory(a.history))
	}
	return opts
}

// pruneHistory deletes events older than retention now and then every
// pruneInterval until ctx is done.
func pruneHistory(ctx context.Context, a *app, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := a.history.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			a.logger.Warn("failed to prune refresh history", "error", err)
		case n > 0:
			a.logger.Debug("pruned refresh history", "deleted", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
