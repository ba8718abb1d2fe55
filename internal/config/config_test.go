package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig documents the defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	if cfg.Addr() != "0.0.0.0:8000" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8000", cfg.Addr())
	}
	if cfg.ExitTTL != 12*time.Hour || cfg.DetailedTTL != 5*time.Minute {
		t.Errorf("unexpected TTLs %v %v", cfg.ExitTTL, cfg.DetailedTTL)
	}
	if cfg.RefreshInterval != 60*time.Second {
		t.Errorf("RefreshInterval = %v, want 60s", cfg.RefreshInterval)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.MaxAttempts != 3 {
		t.Errorf("unexpected request settings %v %d", cfg.RequestTimeout, cfg.MaxAttempts)
	}
	if !cfg.RateLimit || !cfg.History || cfg.UseTor {
		t.Error("unexpected switches")
	}
	if cfg.CacheDir != XDGCacheDir() || cfg.DBDir != XDGDataDir() {
		t.Errorf("unexpected dirs %q %q", cfg.CacheDir, cfg.DBDir)
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("XDGConfigDir() = %q", XDGConfigDir())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must be valid: %v", err)
	}
}

// TestConfigValidate tests one rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "port zero", modify: func(c *Config) { c.Port = 0 }, want: ErrInvalidPort},
		{name: "port too large", modify: func(c *Config) { c.Port = 70000 }, want: ErrInvalidPort},
		{name: "exit ttl", modify: func(c *Config) { c.ExitTTL = 0 }, want: ErrInvalidTTL},
		{name: "detailed ttl", modify: func(c *Config) { c.DetailedTTL = -time.Second }, want: ErrInvalidTTL},
		{name: "interval", modify: func(c *Config) { c.RefreshInterval = 0 }, want: ErrInvalidRefreshInterval},
		{name: "timeout", modify: func(c *Config) { c.RequestTimeout = 0 }, want: ErrInvalidTimeout},
		{name: "attempts", modify: func(c *Config) { c.MaxAttempts = 0 }, want: ErrInvalidMaxAttempts},
		{name: "log level", modify: func(c *Config) { c.LogLevel = "loud" }, want: ErrInvalidLogLevel},
		{name: "log format", modify: func(c *Config) { c.LogFormat = "xml" }, want: ErrInvalidLogFormat},
		{name: "cache dir", modify: func(c *Config) { c.CacheDir = "" }, want: ErrEmptyCacheDir},
		{name: "feed limit", modify: func(c *Config) { c.FeedLimit = 0 }, want: ErrInvalidFeedLimit},
		{name: "upstream url", modify: func(c *Config) { c.RelaySummaryURL = "" }, want: ErrEmptyUpstreamURL},
		{
			name:   "external tor without proxy",
			modify: func(c *Config) { c.UseTor, c.UseExternalTor, c.TorProxyAddress = true, true, "" },
			want:   ErrEmptyTorProxy,
		},
		{name: "history dir", modify: func(c *Config) { c.DBDir = "" }, want: ErrEmptyDBDir},
		{name: "retention", modify: func(c *Config) { c.HistoryRetention = -time.Hour }, want: ErrInvalidRetention},
		{name: "history disabled without dir", modify: func(c *Config) { c.History, c.DBDir = false, "" }, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "WARNING", want: slog.LevelWarn},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "trace", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}

	cfg := NewConfig()
	cfg.LogLevel = "error"
	if cfg.Level() != slog.LevelError {
		t.Errorf("Level() = %v, want error", cfg.Level())
	}
	cfg.Verbose = true
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() with Verbose = %v, want debug", cfg.Level())
	}
}

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// TestApplyEnv tests the environment layer.
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	t.Run("all variables", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(envMap(map[string]string{
			EnvHost:                    "127.0.0.1",
			EnvPort:                    "9090",
			EnvCacheTTLHours:           "1",
			EnvDetailedCacheTTLMinutes: "2",
			EnvRequestTimeout:          "15",
			EnvMaxRetries:              "5",
			EnvLogLevel:                "WARNING",
			EnvCacheDir:                "/var/cache/tornodes",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv() failed: %v", err)
		}
		if cfg.Addr() != "127.0.0.1:9090" {
			t.Errorf("Addr() = %q", cfg.Addr())
		}
		if cfg.ExitTTL != time.Hour || cfg.DetailedTTL != 2*time.Minute {
			t.Errorf("unexpected TTLs %v %v", cfg.ExitTTL, cfg.DetailedTTL)
		}
		if cfg.RequestTimeout != 15*time.Second || cfg.MaxAttempts != 5 {
			t.Errorf("unexpected request settings %v %d", cfg.RequestTimeout, cfg.MaxAttempts)
		}
		if cfg.LogLevel != "WARNING" || cfg.CacheDir != "/var/cache/tornodes" {
			t.Errorf("unexpected %q %q", cfg.LogLevel, cfg.CacheDir)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("duration timeout and blanks", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(envMap(map[string]string{
			EnvRequestTimeout: "1m30s",
			EnvHost:           "  ",
		}))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.RequestTimeout != 90*time.Second {
			t.Errorf("RequestTimeout = %v, want 1m30s", cfg.RequestTimeout)
		}
		if cfg.Host != DefaultHost {
			t.Errorf("blank HOST must be ignored, got %q", cfg.Host)
		}
	})

	for _, key := range []string{EnvPort, EnvCacheTTLHours, EnvDetailedCacheTTLMinutes, EnvRequestTimeout, EnvMaxRetries} {
		t.Run("invalid "+key, func(t *testing.T) {
			t.Parallel()

			err := NewConfig().ApplyEnv(envMap(map[string]string{key: "many"}))
			if !errors.Is(err, ErrInvalidEnv) || !strings.Contains(err.Error(), key) {
				t.Errorf("ApplyEnv() = %v, want ErrInvalidEnv naming %s", err, key)
			}
		})
	}
}

const sampleFile = `
server:
  port: 9000
  rate_limit: false
cache:
  dir: /srv/tornodes
  exit_ttl: 6h
  detailed_ttl: 10m
upstream:
  request_timeout: 45s
  max_attempts: 4
tor:
  enabled: true
  external: true
  proxy: 127.0.0.1:9150
history:
  enabled: false
log:
  level: debug
  format: json
`

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadConfigFile tests the YAML layer.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("applies set values only", func(t *testing.T) {
		t.Parallel()

		file, err := LoadConfigFile(writeFile(t, sampleFile))
		if err != nil {
			t.Fatalf("LoadConfigFile() failed: %v", err)
		}

		cfg := NewConfig()
		cfg.ApplyFile(file)

		if cfg.Port != 9000 || cfg.Host != DefaultHost {
			t.Errorf("unexpected listen settings %q %d", cfg.Host, cfg.Port)
		}
		if cfg.RateLimit || cfg.History {
			t.Error("explicit false switches must apply")
		}
		if !cfg.UseTor || !cfg.UseExternalTor || cfg.TorProxyAddress != "127.0.0.1:9150" {
			t.Errorf("unexpected tor settings %+v", cfg)
		}
		if cfg.CacheDir != "/srv/tornodes" || cfg.ExitTTL != 6*time.Hour || cfg.DetailedTTL != 10*time.Minute {
			t.Errorf("unexpected cache settings %q %v %v", cfg.CacheDir, cfg.ExitTTL, cfg.DetailedTTL)
		}
		if cfg.RefreshInterval != DefaultRefreshInterval {
			t.Errorf("unset interval changed to %v", cfg.RefreshInterval)
		}
		if cfg.RequestTimeout != 45*time.Second || cfg.MaxAttempts != 4 {
			t.Errorf("unexpected upstream settings %v %d", cfg.RequestTimeout, cfg.MaxAttempts)
		}
		if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
			t.Errorf("unexpected log settings %q %q", cfg.LogLevel, cfg.LogFormat)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "none.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(writeFile(t, "server: [")); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("nil file is ignored", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(nil)
		if cfg.Port != DefaultPort {
			t.Error("nil file changed the config")
		}
	})
}

// TestLoad tests the layering of file and environment.
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("environment wins over file", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, sampleFile)
		cfg, used, err := Load(path, envMap(map[string]string{EnvPort: "7000"}))
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if used != path {
			t.Errorf("used file = %q, want %q", used, path)
		}
		if cfg.Port != 7000 || cfg.ExitTTL != 6*time.Hour {
			t.Errorf("unexpected layering: port %d ttl %v", cfg.Port, cfg.ExitTTL)
		}
	})

	t.Run("explicit missing path", func(t *testing.T) {
		t.Parallel()

		_, _, err := Load(filepath.Join(t.TempDir(), "none.yaml"), envMap(nil))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "{}")
	if got := FindConfigFile(path); got != path {
		t.Errorf("FindConfigFile(%q) = %q", path, got)
	}
	if got := FindConfigFile(filepath.Join(t.TempDir(), "none.yaml")); got != "" {
		t.Errorf("expected empty result for missing explicit path, got %q", got)
	}
}
