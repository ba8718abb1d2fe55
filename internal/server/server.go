package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/tornodes/internal/model"
	"github.com/nao1215/tornodes/internal/nodes"
	"github.com/nao1215/tornodes/internal/report"
)

// Route paths.
const (
	PathIndex        = "/"
	PathIPList       = "/tornodes-ip.txt"
	PathStatus       = "/status"
	PathNodes        = "/api/nodes"
	PathNodesRunning = "/api/nodes/running"
	PathNodesExit    = "/api/nodes/exit"
	PathNodesCountry = "/api/nodes/country/{code}"
	PathStats        = "/api/stats"
	PathStatsMD      = "/api/stats.md"
	PathFeed         = "/api/feed/rss"
	PathRefreshes    = "/api/refreshes"
)

// DefaultShutdownTimeout bounds the graceful shutdown in Run.
const DefaultShutdownTimeout = 10 * time.Second

// DefaultLimits are the per-client request budgets of each route.
func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		PathIndex:        PerMinute(10),
		PathIPList:       PerMinute(30),
		PathStatus:       PerMinute(60),
		PathNodes:        PerMinute(20),
		PathNodesRunning: PerMinute(20),
		PathNodesExit:    PerMinute(20),
		PathNodesCountry: PerMinute(20),
		PathStats:        PerMinute(30),
		PathStatsMD:      PerMinute(30),
		PathFeed:         PerMinute(10),
		PathRefreshes:    PerMinute(30),
	}
}

// History reads recorded refresh events.
type History interface {
	Recent(ctx context.Context, limit int) ([]model.RefreshEvent, error)
	RecentByCache(ctx context.Context, cache model.CacheName, limit int) ([]model.RefreshEvent, error)
}

// Server serves the node caches over HTTP.
type Server struct {
	svc       *nodes.Service
	history   History
	version   string
	logger    *slog.Logger
	now       func() time.Time
	limits    map[string]Limit
	limiter   *rateLimiter
	feedLimit int
	handler   http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables GET /api/refreshes.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithVersion sets the version reported by the index route.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLimits replaces the route budgets. Routes missing from limits, or
// with a non-positive budget, are not limited. A nil map disables rate
// limiting entirely.
func WithLimits(limits map[string]Limit) Option {
	return func(s *Server) {
		s.limits = limits
	}
}

// WithFeedLimit sets the number of relays in the RSS feed.
func WithFeedLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.feedLimit = n
		}
	}
}

// New creates a Server over svc.
func New(svc *nodes.Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		version: "dev",
		logger:  slog.Default(),
		now:     time.Now,
		limits:  DefaultLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = newRateLimiter(s.now)
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, PathIndex, s.handleIndex)
	s.handle(mux, PathIPList, s.handleIPList)
	s.handle(mux, PathStatus, s.handleStatus)
	s.handle(mux, PathNodes, s.handleNodes)
	s.handle(mux, PathNodesRunning, s.handleRunning)
	s.handle(mux, PathNodesExit, s.handleExit)
	s.handle(mux, PathNodesCountry, s.handleCountry)
	s.handle(mux, PathStats, s.handleStats)
	s.handle(mux, PathStatsMD, s.handleStatsMarkdown)
	s.handle(mux, PathFeed, s.handleFeed)
	s.handle(mux, PathRefreshes, s.handleRefreshes)
	mux.HandleFunc("/", s.handleNotFound)

	return s.recoverer(s.logRequests(mux))
}

// handle registers a GET route wrapped in its rate limit.
func (s *Server) handle(mux *http.ServeMux, path string, h http.HandlerFunc) {
	pattern := "GET " + path
	if path == PathIndex {
		pattern = "GET /{$}"
	}
	mux.Handle(pattern, s.rateLimit(path, h))
}

// Endpoints lists the routes for the index payload.
func Endpoints() []report.Endpoint {
	return []report.Endpoint{
		{Method: http.MethodGet, Path: PathIPList, Description: "Exit node IP list in plain text"},
		{Method: http.MethodGet, Path: PathStatus, Description: "Cache status"},
		{Method: http.MethodGet, Path: PathNodes, Description: "All relays"},
		{Method: http.MethodGet, Path: PathNodesRunning, Description: "Running relays"},
		{Method: http.MethodGet, Path: PathNodesExit, Description: "Exit relays"},
		{Method: http.MethodGet, Path: PathNodesCountry, Description: "Relays in a country (ISO 3166-1 alpha-2)"},
		{Method: http.MethodGet, Path: PathStats, Description: "Relay statistics"},
		{Method: http.MethodGet, Path: PathStatsMD, Description: "Relay statistics as Markdown"},
		{Method: http.MethodGet, Path: PathFeed, Description: "RSS feed of relays"},
		{Method: http.MethodGet, Path: PathRefreshes, Description: "Recent refresh history"},
	}
}

// Run listens on addr and serves until ctx is done, then shuts down
// gracefully within DefaultShutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", l.Addr().String())
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
