package model

import "time"

// CacheName identifies one of the two caches.
type CacheName string

const (
	// CacheExit is the durable exit address list.
	CacheExit CacheName = "exit"

	// CacheDetailed is the in-memory detailed relay set.
	CacheDetailed CacheName = "detailed"
)

// String returns the cache name.
func (c CacheName) String() string {
	return string(c)
}

// SnapshotInfo describes the state of one cache without exposing its contents.
type SnapshotInfo struct {
	// Name is the cache this info belongs to.
	Name CacheName `json:"name"`

	// Exists is true once a snapshot was saved or loaded, even an empty one.
	Exists bool `json:"exists"`

	// LastUpdate is the time of the last successful save, nil if none.
	LastUpdate *time.Time `json:"last_update"`

	// NeedsUpdate is true when the snapshot is older than TTL or absent.
	NeedsUpdate bool `json:"needs_update"`

	// ItemCount is the number of entries in the snapshot.
	ItemCount int `json:"item_count"`

	// TTL is the maximum age before the snapshot is considered stale.
	TTL time.Duration `json:"ttl"`
}
