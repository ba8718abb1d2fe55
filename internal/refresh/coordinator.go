package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/tornodes/internal/model"
	"github.com/nao1215/tornodes/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultInterval is the period of the background freshness check.
const DefaultInterval = 60 * time.Second

// Fetcher retrieves fresh data from the upstreams.
// *source.Client implements it.
type Fetcher interface {
	FetchExitAddresses(ctx context.Context) ([]model.ExitAddress, error)
	FetchDetailedRelays(ctx context.Context) ([]model.Relay, error)
}

// Recorder receives the outcome of every refresh attempt.
// *database.HistoryDB implements it.
type Recorder interface {
	RecordRefresh(ctx context.Context, event model.RefreshEvent) error
}

// Coordinator serializes refreshes of the two caches held by a store.Store.
type Coordinator struct {
	store    *store.Store
	fetcher  Fetcher
	recorder Recorder
	interval time.Duration
	logger   *slog.Logger

	// flights holds at most one in-flight refresh per cache name.
	flights singleflight.Group

	mu       sync.Mutex
	stopped  bool
	stopCh   chan struct{}
	runDone  chan struct{}
	stopOnce sync.Once
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithInterval sets the period of the background loop.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithRecorder sets where refresh outcomes are recorded.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Coordinator for st that fetches through f.
func New(st *store.Store, f Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    st,
		fetcher:  f,
		interval: DefaultInterval,
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store the coordinator refreshes.
func (c *Coordinator) Store() *store.Store {
	return c.store
}

// RefreshExit fetches and saves the exit list regardless of its age.
func (c *Coordinator) RefreshExit(ctx context.Context) error {
	return c.refresh(ctx, model.CacheExit, model.TriggerManual, false)
}

// RefreshDetailed fetches and saves the relay set regardless of its age.
func (c *Coordinator) RefreshDetailed(ctx context.Context) error {
	return c.refresh(ctx, model.CacheDetailed, model.TriggerManual, false)
}

// EnsureExit refreshes the exit list only when it is stale.
// It returns nil without fetching when the snapshot is fresh.
func (c *Coordinator) EnsureExit(ctx context.Context) error {
	if !c.store.ExitStale() {
		return nil
	}
	return c.refresh(ctx, model.CacheExit, model.TriggerOnDemand, true)
}

// EnsureDetailed refreshes the relay set only when it is stale.
func (c *Coordinator) EnsureDetailed(ctx context.Context) error {
	if !c.store.DetailedStale() {
		return nil
	}
	return c.refresh(ctx, model.CacheDetailed, model.TriggerOnDemand, true)
}

// Initialize refreshes every stale cache once, both at the same time.
// The returned error joins the failures of both caches; a failure to
// persist the exit list matches store.ErrPersistence.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.logger.Info("initializing caches")
	return c.refreshStale(ctx, model.TriggerStartup)
}

// Run checks both caches immediately and then once per interval until ctx
// is done or Stop is called. Refresh failures are logged and never end the
// loop. A cycle that has started always completes before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.runDone != nil {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	c.runDone = done
	c.mu.Unlock()
	defer close(done)

	c.logger.Info("background refresh started", "interval", c.interval)
	defer c.logger.Info("background refresh stopped")

	// A cycle ignores cancellation so that it drains instead of abandoning
	// a save half way.
	cycleCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.refreshStale(cycleCtx, model.TriggerBackground); err != nil {
			c.logger.Warn("background refresh failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.stopCh:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop prevents the next background cycle and waits for the current one.
// It is safe to call more than once and from any goroutine.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		close(c.stopCh)
	})

	c.mu.Lock()
	done := c.runDone
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// refreshStale refreshes each stale cache concurrently and joins the errors.
func (c *Coordinator) refreshStale(ctx context.Context, trigger model.RefreshTrigger) error {
	var exitErr, detailedErr error

	var g errgroup.Group
	if c.store.ExitStale() {
		g.Go(func() error {
			exitErr = c.refresh(ctx, model.CacheExit, trigger, true)
			return nil
		})
	}
	if c.store.DetailedStale() {
		g.Go(func() error {
			detailedErr = c.refresh(ctx, model.CacheDetailed, trigger, true)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // the goroutines report through exitErr and detailedErr

	return errors.Join(exitErr, detailedErr)
}

// refresh joins or starts the single flight for name and waits for it or
// for ctx, whichever ends first. When onlyIfStale is set the flight checks
// staleness again before fetching, so a caller that arrives just after a
// flight finished does not fetch a second time.
func (c *Coordinator) refresh(ctx context.Context, name model.CacheName, trigger model.RefreshTrigger, onlyIfStale bool) error {
	flightCtx := context.WithoutCancel(ctx)

	ch := c.flights.DoChan(name.String(), func() (any, error) {
		if onlyIfStale && !c.stale(name) {
			return nil, nil
		}
		return nil, c.fetchAndSave(flightCtx, name, trigger)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("stopped waiting for %s refresh: %w", name, ctx.Err())
	}
}

func (c *Coordinator) stale(name model.CacheName) bool {
	if name == model.CacheExit {
		return c.store.ExitStale()
	}
	return c.store.DetailedStale()
}

// fetchAndSave performs one refresh of one cache and records its outcome.
func (c *Coordinator) fetchAndSave(ctx context.Context, name model.CacheName, trigger model.RefreshTrigger) error {
	event := model.RefreshEvent{
		Cache:     name,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	c.logger.Debug("refreshing cache", "cache", name, "trigger", trigger)

	var (
		count int
		err   error
	)
	switch name {
	case model.CacheExit:
		count, err = c.refreshExit(ctx)
	case model.CacheDetailed:
		count, err = c.refreshDetailed(ctx)
	default:
		err = fmt.Errorf("%w: %q", store.ErrUnknownCache, name)
	}

	event.Duration = time.Since(event.StartedAt)
	if err != nil {
		event.Error = err.Error()
		c.logger.Warn("cache refresh failed",
			"cache", name,
			"trigger", trigger,
			"duration", event.Duration,
			"error", err,
		)
	} else {
		event.Success = true
		event.ItemCount = count
		c.logger.Info("cache refreshed",
			"cache", name,
			"trigger", trigger,
			"count", count,
			"duration", event.Duration,
		)
	}

	c.record(ctx, event)
	return err
}

func (c *Coordinator) refreshExit(ctx context.Context) (int, error) {
	addrs, err := c.fetcher.FetchExitAddresses(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch exit addresses: %w", err)
	}
	if err := c.store.ReplaceExit(addrs); err != nil {
		return 0, fmt.Errorf("failed to save exit addresses: %w", err)
	}
	return len(addrs), nil
}

func (c *Coordinator) refreshDetailed(ctx context.Context) (int, error) {
	relays, err := c.fetcher.FetchDetailedRelays(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch relay summary: %w", err)
	}
	c.store.ReplaceDetailed(relays)
	return len(relays), nil
}

func (c *Coordinator) record(ctx context.Context, event model.RefreshEvent) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordRefresh(ctx, event); err != nil {
		c.logger.Warn("failed to record refresh", "cache", event.Cache, "error", err)
	}
}
