package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvHost                    = "HOST"
	EnvPort                    = "PORT"
	EnvCacheTTLHours           = "CACHE_TTL_HOURS"
	EnvDetailedCacheTTLMinutes = "DETAILED_CACHE_TTL_MINUTES"
	EnvRequestTimeout          = "REQUEST_TIMEOUT"
	EnvMaxRetries              = "MAX_RETRIES"
	EnvLogLevel                = "LOG_LEVEL"
	EnvCacheDir                = "CACHE_DIR"
)

// LookupFunc reads an environment variable. os.LookupEnv is the usual value.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides c with the environment variables that are set and not
// blank. A nil lookup reads the process environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvHost); ok {
		c.Host = v
	}
	if v, ok := get(EnvPort); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvPort, v)
		}
		c.Port = n
	}
	if v, ok := get(EnvCacheTTLHours); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvCacheTTLHours, v)
		}
		c.ExitTTL = time.Duration(n) * time.Hour
	}
	if v, ok := get(EnvDetailedCacheTTLMinutes); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvDetailedCacheTTLMinutes, v)
		}
		c.DetailedTTL = time.Duration(n) * time.Minute
	}
	if v, ok := get(EnvRequestTimeout); ok {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return envError(EnvRequestTimeout, v)
		}
		c.RequestTimeout = d
	}
	if v, ok := get(EnvMaxRetries); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvMaxRetries, v)
		}
		c.MaxAttempts = n
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvCacheDir); ok {
		c.CacheDir = v
	}
	return nil
}

// parseSecondsOrDuration accepts a plain number of seconds or a Go duration.
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func envError(key, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, value)
}
