package config

import "time"

// File represents the structure of the YAML configuration file.
// Zero values mean "not set" and leave the current value untouched; the
// boolean switches are pointers for the same reason.
type File struct {
	Server   ServerSection   `yaml:"server,omitempty"`
	Cache    CacheSection    `yaml:"cache,omitempty"`
	Upstream UpstreamSection `yaml:"upstream,omitempty"`
	Tor      TorSection      `yaml:"tor,omitempty"`
	History  HistorySection  `yaml:"history,omitempty"`
	Log      LogSection      `yaml:"log,omitempty"`
}

// ServerSection configures the HTTP server.
type ServerSection struct {
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	RateLimit *bool  `yaml:"rate_limit,omitempty"`
	FeedLimit int    `yaml:"feed_limit,omitempty"`
}

// CacheSection configures the two caches.
type CacheSection struct {
	Dir             string        `yaml:"dir,omitempty"`
	ExitTTL         time.Duration `yaml:"exit_ttl,omitempty"`
	DetailedTTL     time.Duration `yaml:"detailed_ttl,omitempty"`
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
}

// UpstreamSection configures the source client.
type UpstreamSection struct {
	ExitAddressesURL string        `yaml:"exit_addresses_url,omitempty"`
	RelaySummaryURL  string        `yaml:"relay_summary_url,omitempty"`
	RequestTimeout   time.Duration `yaml:"request_timeout,omitempty"`
	MaxAttempts      int           `yaml:"max_attempts,omitempty"`
	UserAgent        string        `yaml:"user_agent,omitempty"`
}

// TorSection configures routing of upstream fetches through Tor.
type TorSection struct {
	Enabled        *bool         `yaml:"enabled,omitempty"`
	External       *bool         `yaml:"external,omitempty"`
	Proxy          string        `yaml:"proxy,omitempty"`
	StartupTimeout time.Duration `yaml:"startup_timeout,omitempty"`
}

// HistorySection configures the refresh history database.
type HistorySection struct {
	Enabled   *bool         `yaml:"enabled,omitempty"`
	Dir       string        `yaml:"dir,omitempty"`
	Retention time.Duration `yaml:"retention,omitempty"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// ApplyFile overrides c with every value set in f.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	setString(&c.Host, f.Server.Host)
	setInt(&c.Port, f.Server.Port)
	setBool(&c.RateLimit, f.Server.RateLimit)
	setInt(&c.FeedLimit, f.Server.FeedLimit)

	setString(&c.CacheDir, f.Cache.Dir)
	setDuration(&c.ExitTTL, f.Cache.ExitTTL)
	setDuration(&c.DetailedTTL, f.Cache.DetailedTTL)
	setDuration(&c.RefreshInterval, f.Cache.RefreshInterval)

	setString(&c.ExitAddressesURL, f.Upstream.ExitAddressesURL)
	setString(&c.RelaySummaryURL, f.Upstream.RelaySummaryURL)
	setDuration(&c.RequestTimeout, f.Upstream.RequestTimeout)
	setInt(&c.MaxAttempts, f.Upstream.MaxAttempts)
	setString(&c.UserAgent, f.Upstream.UserAgent)

	setBool(&c.UseTor, f.Tor.Enabled)
	setBool(&c.UseExternalTor, f.Tor.External)
	setString(&c.TorProxyAddress, f.Tor.Proxy)
	setDuration(&c.TorStartupTimeout, f.Tor.StartupTimeout)

	setBool(&c.History, f.History.Enabled)
	setString(&c.DBDir, f.History.Dir)
	setDuration(&c.HistoryRetention, f.History.Retention)

	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
