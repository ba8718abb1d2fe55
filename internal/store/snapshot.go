package store

import (
	"time"

	"github.com/nao1215/tornodes/internal/model"
)

// Snapshot is the materialized content of one cache plus its metadata.
// A Snapshot is immutable once published; replacing a cache publishes a
// new Snapshot.
type Snapshot[T any] struct {
	// Items is the cached collection.
	Items []T

	// Exists is true when the snapshot was saved or loaded. An explicitly
	// saved empty collection exists; a never populated cache does not.
	Exists bool

	// LastUpdate is the time of the successful save.
	LastUpdate time.Time

	// TTL is the maximum age before the snapshot is stale.
	TTL time.Duration
}

// Stale reports whether the snapshot is absent or older than its TTL at now.
// The comparison is strict: a snapshot exactly TTL old is still fresh.
func (s *Snapshot[T]) Stale(now time.Time) bool {
	if s == nil || !s.Exists {
		return true
	}
	return now.Sub(s.LastUpdate) > s.TTL
}

// Len returns the number of items, zero for a nil snapshot.
func (s *Snapshot[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Info returns the metadata of the snapshot at now.
func (s *Snapshot[T]) Info(name model.CacheName, now time.Time, ttl time.Duration) model.SnapshotInfo {
	info := model.SnapshotInfo{
		Name:        name,
		NeedsUpdate: s.Stale(now),
		ItemCount:   s.Len(),
		TTL:         ttl,
	}
	if s != nil && s.Exists {
		info.Exists = true
		last := s.LastUpdate
		info.LastUpdate = &last
	}
	return info
}
