package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/tornodes/internal/model"
)

// Default time-to-live values.
const (
	// DefaultExitTTL is the maximum age of the exit address snapshot.
	DefaultExitTTL = 12 * time.Hour

	// DefaultDetailedTTL is the maximum age of the detailed relay snapshot.
	DefaultDetailedTTL = 5 * time.Minute
)

// Store owns the exit and detailed snapshots for the lifetime of the process.
// All methods are safe for concurrent use.
type Store struct {
	files       exitFiles
	exitTTL     time.Duration
	detailedTTL time.Duration
	now         func() time.Time
	logger      *slog.Logger

	exit     atomic.Pointer[Snapshot[model.ExitAddress]]
	detailed atomic.Pointer[Snapshot[model.Relay]]

	// exitMu serializes durable writes of the exit snapshot.
	exitMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithExitTTL sets the exit snapshot TTL.
func WithExitTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.exitTTL = ttl
		}
	}
}

// WithDetailedTTL sets the detailed snapshot TTL.
func WithDetailedTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.detailedTTL = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open creates the cache directory if needed and loads the durable exit
// snapshot from it. A missing or unparsable timestamp file leaves the exit
// snapshot absent so that the first read refreshes it.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		files:       exitFiles{dir: dir},
		exitTTL:     DefaultExitTTL,
		detailedTTL: DefaultDetailedTTL,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: failed to create cache directory %s: %w", ErrPersistence, dir, err)
	}

	addrs, updated, err := s.files.load()
	switch {
	case err == nil:
		s.exit.Store(&Snapshot[model.ExitAddress]{
			Items:      addrs,
			Exists:     true,
			LastUpdate: updated,
			TTL:        s.exitTTL,
		})
		s.logger.Info("loaded exit cache from disk",
			"dir", dir,
			"count", len(addrs),
			"lastUpdate", updated.UTC(),
		)
	case errors.Is(err, errNoDurableState):
		s.logger.Info("no usable exit cache on disk", "dir", dir, "reason", err)
	default:
		return nil, fmt.Errorf("%w: failed to load exit cache from %s: %w", ErrPersistence, dir, err)
	}

	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.files.dir
}

// ExitStale reports whether the exit snapshot is absent or older than its TTL.
func (s *Store) ExitStale() bool {
	return s.exit.Load().Stale(s.now())
}

// DetailedStale reports whether the detailed snapshot is absent or older
// than its TTL. The detailed timestamp is never persisted.
func (s *Store) DetailedStale() bool {
	return s.detailed.Load().Stale(s.now())
}

// ReplaceExit persists addrs and publishes them as the new exit snapshot.
// On failure it returns ErrPersistence and the in-memory snapshot keeps its
// previous contents. The files are restored too; if restoring fails, the
// next Open finds no timestamp and treats the durable snapshot as absent.
func (s *Store) ReplaceExit(addrs []model.ExitAddress) error {
	s.exitMu.Lock()
	defer s.exitMu.Unlock()

	items := cloneOrEmpty(addrs)
	now := s.now()

	if err := s.files.save(items, now); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.exit.Store(&Snapshot[model.ExitAddress]{
		Items:      items,
		Exists:     true,
		LastUpdate: now,
		TTL:        s.exitTTL,
	})
	s.logger.Info("exit cache saved", "count", len(items))
	return nil
}

// ReplaceDetailed publishes relays as the new detailed snapshot.
// The relays are treated as immutable from here on.
func (s *Store) ReplaceDetailed(relays []model.Relay) {
	items := cloneOrEmpty(relays)
	s.detailed.Store(&Snapshot[model.Relay]{
		Items:      items,
		Exists:     true,
		LastUpdate: s.now(),
		TTL:        s.detailedTTL,
	})
	s.logger.Info("detailed cache saved", "count", len(items))
}

// ReadExit returns a copy of the current exit addresses without refreshing.
func (s *Store) ReadExit() []model.ExitAddress {
	snap := s.exit.Load()
	if snap == nil {
		return []model.ExitAddress{}
	}
	return slices.Clone(snap.Items)
}

// ExitSnapshot returns a copy of the current exit snapshot. Its items and
// metadata come from the same published snapshot.
func (s *Store) ExitSnapshot() Snapshot[model.ExitAddress] {
	snap := s.exit.Load()
	if snap == nil {
		return Snapshot[model.ExitAddress]{Items: []model.ExitAddress{}, TTL: s.exitTTL}
	}
	out := *snap
	out.Items = slices.Clone(snap.Items)
	return out
}

// ReadDetailed returns a copy of the current relays without refreshing.
func (s *Store) ReadDetailed() []model.Relay {
	snap := s.detailed.Load()
	if snap == nil {
		return []model.Relay{}
	}
	return slices.Clone(snap.Items)
}

// ExitInfo returns the metadata of the exit snapshot.
func (s *Store) ExitInfo() model.SnapshotInfo {
	return s.exit.Load().Info(model.CacheExit, s.now(), s.exitTTL)
}

// DetailedInfo returns the metadata of the detailed snapshot.
func (s *Store) DetailedInfo() model.SnapshotInfo {
	return s.detailed.Load().Info(model.CacheDetailed, s.now(), s.detailedTTL)
}

// Info returns the metadata of the named cache.
func (s *Store) Info(name model.CacheName) (model.SnapshotInfo, error) {
	switch name {
	case model.CacheExit:
		return s.ExitInfo(), nil
	case model.CacheDetailed:
		return s.DetailedInfo(), nil
	default:
		return model.SnapshotInfo{}, fmt.Errorf("%w: %q", ErrUnknownCache, name)
	}
}

// cloneOrEmpty copies items into a new non-nil slice.
func cloneOrEmpty[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
