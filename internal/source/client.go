package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nao1215/tornodes/internal/model"
)

// Default upstreams and fetch settings.
const (
	// DefaultExitAddressesURL is the Tor Project exit list.
	DefaultExitAddressesURL = "https://check.torproject.org/exit-addresses"

	// DefaultRelaySummaryURL is the Onionoo relay summary document.
	DefaultRelaySummaryURL = "https://onionoo.torproject.org/summary"

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the total number of attempts per fetch,
	// including the first one.
	DefaultMaxAttempts = 3

	// DefaultRetryWaitMin is the first backoff delay.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax caps the exponential backoff.
	DefaultRetryWaitMax = 30 * time.Second

	// DefaultUserAgent identifies tornodes to the upstream operators.
	DefaultUserAgent = "tornodes/1.0 (+https://github.com/nao1215/tornodes)"

	// maxBodySize caps the bytes read from an upstream. The relay summary
	// is a few megabytes; anything far beyond that is not a valid document.
	maxBodySize = 64 << 20
)

// Client fetches exit addresses and relay summaries from the upstreams.
// It is safe for concurrent use.
type Client struct {
	exitURL   string
	relayURL  string
	userAgent string
	rc        *retryablehttp.Client
}

type options struct {
	httpClient   *http.Client
	timeout      time.Duration
	maxAttempts  int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	exitURL      string
	relayURL     string
	userAgent    string
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the underlying HTTP client, for example one that routes
// through Tor. Its Timeout is overridden by WithTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout sets the timeout of a single attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxAttempts sets the total number of attempts per fetch.
// Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithRetryWait sets the minimum and maximum backoff between attempts.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(o *options) {
		o.retryWaitMin = minWait
		o.retryWaitMax = maxWait
	}
}

// WithExitAddressesURL overrides the exit list URL.
func WithExitAddressesURL(u string) Option {
	return func(o *options) {
		o.exitURL = u
	}
}

// WithRelaySummaryURL overrides the relay summary URL.
func WithRelaySummaryURL(u string) Option {
	return func(o *options) {
		o.relayURL = u
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a Client. Both upstream URLs must use the http or https scheme.
func New(opts ...Option) (*Client, error) {
	o := options{
		timeout:      DefaultTimeout,
		maxAttempts:  DefaultMaxAttempts,
		retryWaitMin: DefaultRetryWaitMin,
		retryWaitMax: DefaultRetryWaitMax,
		exitURL:      DefaultExitAddressesURL,
		relayURL:     DefaultRelaySummaryURL,
		userAgent:    DefaultUserAgent,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	for _, u := range []string{o.exitURL, o.relayURL} {
		if err := checkURL(u); err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{}
	if o.httpClient != nil {
		copied := *o.httpClient
		httpClient = &copied
	}
	httpClient.Timeout = o.timeout

	rc := &retryablehttp.Client{
		HTTPClient:   httpClient,
		Logger:       o.logger,
		RetryWaitMin: o.retryWaitMin,
		RetryWaitMax: o.retryWaitMax,
		RetryMax:     o.maxAttempts - 1,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		// Hand back the last response so a persistent 5xx surfaces as a
		// StatusError instead of an opaque "giving up" error.
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	return &Client{
		exitURL:   o.exitURL,
		relayURL:  o.relayURL,
		userAgent: o.userAgent,
		rc:        rc,
	}, nil
}

// checkURL verifies that u is an absolute http(s) URL.
func checkURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidURL, u, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, u)
	}
	return nil
}

// FetchExitAddresses downloads and parses the exit list.
// An exit list without any ExitAddress line yields an empty, non-nil slice.
func (c *Client) FetchExitAddresses(ctx context.Context) ([]model.ExitAddress, error) {
	body, err := c.get(ctx, c.exitURL, "text/plain")
	if err != nil {
		return nil, err
	}
	return ParseExitAddresses(body)
}

// FetchDetailedRelays downloads and parses the relay summary.
func (c *Client) FetchDetailedRelays(ctx context.Context) ([]model.Relay, error) {
	body, err := c.get(ctx, c.relayURL, "application/json")
	if err != nil {
		return nil, err
	}
	return ParseRelaySummary(body)
}

// get performs one logical GET (with retries) and returns the body of a
// 2xx response.
func (c *Client) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.rc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrUpstreamUnavailable, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrUpstreamUnavailable, rawURL, err)
	}
	return body, nil
}

// ExitAddressesURL returns the configured exit list URL.
func (c *Client) ExitAddressesURL() string {
	return c.exitURL
}

// RelaySummaryURL returns the configured relay summary URL.
func (c *Client) RelaySummaryURL() string {
	return c.relayURL
}
