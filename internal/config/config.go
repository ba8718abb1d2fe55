package config

import (
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "tornodes"

	// DefaultHost listens on every interface.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the HTTP listen port.
	DefaultPort = 8000

	// DefaultExitTTL is the maximum age of the exit address list.
	// The upstream list is regenerated a few times a day.
	DefaultExitTTL = 12 * time.Hour

	// DefaultDetailedTTL is the maximum age of the relay set.
	DefaultDetailedTTL = 5 * time.Minute

	// DefaultRefreshInterval is the period of the background staleness check.
	DefaultRefreshInterval = 60 * time.Second

	// DefaultRequestTimeout bounds a single upstream request attempt.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxAttempts is the total number of attempts per upstream fetch.
	DefaultMaxAttempts = 3

	// DefaultLogLevel is the minimum level written to the log.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the log handler format.
	DefaultLogFormat = "text"

	// DefaultFeedLimit is the number of relays in the RSS feed.
	DefaultFeedLimit = 20

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// 127.0.0.1 avoids resolving localhost to an IPv6 address Tor does not bind.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultHistoryRetention is how long refresh events are kept.
	DefaultHistoryRetention = 30 * 24 * time.Hour

	// DefaultExitAddressesURL is the exit address list upstream.
	DefaultExitAddressesURL = "https://check.torproject.org/exit-addresses"

	// DefaultRelaySummaryURL is the relay summary upstream.
	DefaultRelaySummaryURL = "https://onionoo.torproject.org/summary"

	// DefaultUserAgent identifies the service to the upstreams.
	DefaultUserAgent = "tornodes/1.0 (+https://github.com/nao1215/tornodes)"
)

// Config holds every option of the service. It is built by NewConfig and
// then layered with the config file, the environment and the CLI flags.
type Config struct {
	// Host is the HTTP listen host.
	Host string

	// Port is the HTTP listen port.
	Port int

	// ExitTTL is the maximum age of the exit address list.
	ExitTTL time.Duration

	// DetailedTTL is the maximum age of the relay set.
	DetailedTTL time.Duration

	// RefreshInterval is the period of the background staleness check.
	RefreshInterval time.Duration

	// RequestTimeout bounds one upstream request attempt.
	RequestTimeout time.Duration

	// MaxAttempts is the total number of attempts per upstream fetch,
	// the first request included.
	MaxAttempts int

	// LogLevel is one of debug, info, warn (or warning) and error.
	LogLevel string

	// LogFormat is text or json.
	LogFormat string

	// Verbose forces debug logging.
	Verbose bool

	// CacheDir holds the durable exit list files.
	CacheDir string

	// RateLimit enables the per-client route budgets.
	RateLimit bool

	// FeedLimit is the number of relays in the RSS feed.
	FeedLimit int

	// ExitAddressesURL is the exit address list upstream.
	ExitAddressesURL string

	// RelaySummaryURL is the relay summary upstream.
	RelaySummaryURL string

	// UserAgent is sent with every upstream request.
	UserAgent string

	// UseTor routes upstream fetches through Tor.
	UseTor bool

	// UseExternalTor uses the proxy at TorProxyAddress instead of launching
	// an embedded daemon. Only meaningful with UseTor.
	UseExternalTor bool

	// TorProxyAddress is the external SOCKS5 proxy in host:port format.
	TorProxyAddress string

	// TorStartupTimeout bounds the bootstrap of the embedded daemon.
	TorStartupTimeout time.Duration

	// History enables the SQLite refresh history.
	History bool

	// DBDir holds the history database.
	DBDir string

	// HistoryRetention is how long refresh events are kept. Zero keeps
	// them forever.
	HistoryRetention time.Duration

	// ConfigFilePath is the explicit config file path, if any.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		ExitTTL:           DefaultExitTTL,
		DetailedTTL:       DefaultDetailedTTL,
		RefreshInterval:   DefaultRefreshInterval,
		RequestTimeout:    DefaultRequestTimeout,
		MaxAttempts:       DefaultMaxAttempts,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		CacheDir:          XDGCacheDir(),
		RateLimit:         true,
		FeedLimit:         DefaultFeedLimit,
		ExitAddressesURL:  DefaultExitAddressesURL,
		RelaySummaryURL:   DefaultRelaySummaryURL,
		UserAgent:         DefaultUserAgent,
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		History:           true,
		DBDir:             XDGDataDir(),
		HistoryRetention:  DefaultHistoryRetention,
	}
}

// XDGDataDir returns the XDG data directory for tornodes.
// On Linux: ~/.local/share/tornodes
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for tornodes.
// On Linux: ~/.config/tornodes
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for tornodes.
// On Linux: ~/.cache/tornodes
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level returns the slog level, debug when Verbose is set.
// It assumes Validate has passed.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel accepts debug, info, warn, warning and error in any case.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "critical":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, ErrInvalidLogLevel
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.ExitTTL <= 0 || c.DetailedTTL <= 0 {
		return ErrInvalidTTL
	}
	if c.RefreshInterval <= 0 {
		return ErrInvalidRefreshInterval
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return ErrInvalidLogFormat
	}
	if c.CacheDir == "" {
		return ErrEmptyCacheDir
	}
	if c.FeedLimit < 1 {
		return ErrInvalidFeedLimit
	}
	if c.ExitAddressesURL == "" || c.RelaySummaryURL == "" {
		return ErrEmptyUpstreamURL
	}
	if c.UseTor && c.UseExternalTor && c.TorProxyAddress == "" {
		return ErrEmptyTorProxy
	}
	if c.History && c.DBDir == "" {
		return ErrEmptyDBDir
	}
	if c.HistoryRetention < 0 {
		return ErrInvalidRetention
	}
	return nil
}
