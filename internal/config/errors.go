package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidPort is returned when the port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrInvalidTTL is returned when a cache TTL is not positive.
	ErrInvalidTTL = errors.New("invalid cache ttl: must be positive")

	// ErrInvalidRefreshInterval is returned when the refresh interval is not positive.
	ErrInvalidRefreshInterval = errors.New("invalid refresh interval: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidMaxAttempts is returned when fewer than one attempt is configured.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be at least 1")

	// ErrInvalidLogLevel is returned for an unknown log level name.
	ErrInvalidLogLevel = errors.New("invalid log level: use debug, info, warn or error")

	// ErrInvalidLogFormat is returned when the log format is not text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: use text or json")

	// ErrEmptyCacheDir is returned when no cache directory is set.
	ErrEmptyCacheDir = errors.New("cache directory must not be empty")

	// ErrInvalidFeedLimit is returned when the feed limit is not positive.
	ErrInvalidFeedLimit = errors.New("invalid feed limit: must be positive")

	// ErrEmptyUpstreamURL is returned when an upstream URL is missing.
	ErrEmptyUpstreamURL = errors.New("upstream url must not be empty")

	// ErrEmptyTorProxy is returned when the external Tor proxy address is missing.
	ErrEmptyTorProxy = errors.New("tor proxy address must not be empty when using external tor")

	// ErrEmptyDBDir is returned when history is enabled without a directory.
	ErrEmptyDBDir = errors.New("database directory must not be empty when history is enabled")

	// ErrInvalidRetention is returned for a negative history retention.
	ErrInvalidRetention = errors.New("invalid history retention: must be non-negative")

	// ErrInvalidEnv is returned when an environment variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
