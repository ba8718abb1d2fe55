package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nao1215/tornodes/internal/config"
	"github.com/nao1215/tornodes/internal/database"
	"github.com/nao1215/tornodes/internal/log"
	"github.com/nao1215/tornodes/internal/nodes"
	"github.com/nao1215/tornodes/internal/refresh"
	"github.com/nao1215/tornodes/internal/source"
	"github.com/nao1215/tornodes/internal/store"
	"github.com/nao1215/tornodes/internal/tor"
	"github.com/spf13/cobra"
)

// addSourceFlags registers the flags of every command that talks to the
// upstreams or the cache directory.
func addSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Upstream flags
	f.String("exit-url", config.DefaultExitAddressesURL, "Exit address list URL")
	f.String("relay-url", config.DefaultRelaySummaryURL, "Relay summary URL")
	f.DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout for each upstream request")
	f.Int("max-attempts", config.DefaultMaxAttempts,
		"Total attempts per upstream fetch, the first request included")

	// Cache and history flags
	f.String("cache-dir", "", "Directory of the durable exit list (default: XDG cache dir)")
	f.Bool("no-history", false, "Do not record refreshes in the history database")
	f.String("db-dir", "", "History database directory (default: XDG data dir)")

	// Tor flags
	f.Bool("tor", false, "Fetch the upstreams through an embedded Tor daemon")
	f.StringP("external-tor", "e", "",
		"Fetch the upstreams through an external Tor proxy (e.g., 127.0.0.1:9050)")
	f.DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
}

// loadConfig builds the configuration from the defaults, the config file,
// the environment and finally the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := getConfigFlag(cmd)
	if err != nil {
		return nil, "", err
	}

	cfg, used, err := config.Load(path, os.LookupEnv)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, "", err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("configuration error: %w", err)
	}
	return cfg, used, nil
}

// applyFlags copies every changed flag into cfg. Flags a command does not
// define are never changed and are skipped.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	err := errors.Join(
		changedString(cmd, "host", &cfg.Host),
		changedInt(cmd, "port", &cfg.Port),
		changedDuration(cmd, "interval", &cfg.RefreshInterval),
		changedDuration(cmd, "exit-ttl", &cfg.ExitTTL),
		changedDuration(cmd, "detailed-ttl", &cfg.DetailedTTL),
		changedString(cmd, "exit-url", &cfg.ExitAddressesURL),
		changedString(cmd, "relay-url", &cfg.RelaySummaryURL),
		changedDuration(cmd, "timeout", &cfg.RequestTimeout),
		changedInt(cmd, "max-attempts", &cfg.MaxAttempts),
		changedString(cmd, "cache-dir", &cfg.CacheDir),
		changedString(cmd, "db-dir", &cfg.DBDir),
		changedBool(cmd, "tor", &cfg.UseTor),
		changedDuration(cmd, "tor-timeout", &cfg.TorStartupTimeout),
	)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("no-history") {
		off, err := cmd.Flags().GetBool("no-history")
		if err != nil {
			return err
		}
		cfg.History = !off
	}
	if cmd.Flags().Changed("no-rate-limit") {
		off, err := cmd.Flags().GetBool("no-rate-limit")
		if err != nil {
			return err
		}
		cfg.RateLimit = !off
	}
	if cmd.Flags().Changed("external-tor") {
		addr, err := cmd.Flags().GetString("external-tor")
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.UseTor = true
			cfg.UseExternalTor = true
			cfg.TorProxyAddress = addr
		}
	}
	return nil
}

func changedString(cmd *cobra.Command, name string, dst *string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func changedInt(cmd *cobra.Command, name string, dst *int) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func changedBool(cmd *cobra.Command, name string, dst *bool) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func changedDuration(cmd *cobra.Command, name string, dst *time.Duration) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file path from the command or its parent.
func getConfigFlag(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return cmd.Root().PersistentFlags().GetString("config")
	}
	return path, nil
}

// setupLogger creates a structured logger with credential redaction.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return log.New(w, log.Options{
		Level: cfg.Level(),
		JSON:  cfg.LogFormat == "json",
	})
}

// app wires the cache, the refresh coordinator and the read service of one
// command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	coord   *refresh.Coordinator
	service *nodes.Service

	// history is nil when the refresh history is disabled.
	history *database.HistoryDB

	// embeddedTor is nil unless fetches go through the embedded daemon.
	embeddedTor *tor.EmbeddedTor
}

// newApp opens the store and, when enabled, the history database and Tor.
// Everything opened so far is released when a later step fails.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	httpClient, err := a.upstreamHTTPClient(ctx)
	if err != nil {
		return nil, err
	}

	src, err := source.New(
		source.WithHTTPClient(httpClient),
		source.WithExitAddressesURL(cfg.ExitAddressesURL),
		source.WithRelaySummaryURL(cfg.RelaySummaryURL),
		source.WithTimeout(cfg.RequestTimeout),
		source.WithMaxAttempts(cfg.MaxAttempts),
		source.WithUserAgent(cfg.UserAgent),
		source.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create source client: %w", err)
	}

	a.store, err = store.Open(cfg.CacheDir,
		store.WithExitTTL(cfg.ExitTTL),
		store.WithDetailedTTL(cfg.DetailedTTL),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	coordOpts := []refresh.Option{
		refresh.WithInterval(cfg.RefreshInterval),
		refresh.WithLogger(logger),
	}
	if cfg.History {
		a.history, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		logger.Debug("history database opened", "path", a.history.Path())
		coordOpts = append(coordOpts, refresh.WithRecorder(a.history))
	}

	a.coord = refresh.New(a.store, src, coordOpts...)
	a.service = nodes.NewService(a.coord, nodes.WithLogger(logger))
	return a, nil
}

// upstreamHTTPClient returns the HTTP client for the upstream fetches:
// nil for a direct connection, otherwise one that dials through Tor.
func (a *app) upstreamHTTPClient(ctx context.Context) (*http.Client, error) {
	if !a.cfg.UseTor {
		return nil, nil
	}

	if a.cfg.UseExternalTor {
		client, err := tor.NewClient(a.cfg.TorProxyAddress, a.cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if err := client.CheckConnection(ctx).Err(); err != nil {
			return nil, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
				err, a.cfg.TorProxyAddress)
		}
		a.logger.Info("Tor proxy connection verified", "address", a.cfg.TorProxyAddress)
		return client.HTTPClient(), nil
	}

	a.logger.Info("starting embedded Tor daemon (this may take a while)...",
		"timeout", a.cfg.TorStartupTimeout)
	a.embeddedTor = tor.NewEmbeddedTor(tor.WithStartupTimeout(a.cfg.TorStartupTimeout))
	if err := a.embeddedTor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	client, err := a.embeddedTor.NewClient(a.cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	a.logger.Info("embedded Tor daemon started", "socks", a.embeddedTor.SocksAddr())
	return client.HTTPClient(), nil
}

// Close stops the background work and releases the history database and
// the embedded Tor daemon.
func (a *app) Close() {
	if a.coord != nil {
		a.coord.Stop()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error("failed to close history database", "error", err)
		}
	}
	if a.embeddedTor != nil {
		a.logger.Info("stopping embedded Tor daemon...")
		if err := a.embeddedTor.Stop(); err != nil {
			a.logger.Error("failed to stop embedded Tor", "error", err)
		}
	}
}
