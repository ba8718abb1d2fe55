package model

import "time"

// RefreshTrigger tells what started a refresh.
type RefreshTrigger string

const (
	// TriggerStartup is the refresh of stale caches when the service starts.
	TriggerStartup RefreshTrigger = "startup"

	// TriggerBackground is a refresh started by the periodic loop.
	TriggerBackground RefreshTrigger = "background"

	// TriggerOnDemand is a refresh started by a read of a stale cache.
	TriggerOnDemand RefreshTrigger = "on_demand"

	// TriggerManual is a forced refresh, e.g. from the fetch command.
	TriggerManual RefreshTrigger = "manual"
)

// String returns the trigger name.
func (t RefreshTrigger) String() string {
	return string(t)
}

// RefreshEvent is the outcome of one refresh attempt of one cache.
// Joined callers of an in-flight refresh share a single event.
type RefreshEvent struct {
	// ID is assigned by the history database; zero before it is stored.
	ID int64 `json:"id,omitempty"`

	// Cache is the refreshed cache.
	Cache CacheName `json:"cache"`

	// Trigger is what started the refresh.
	Trigger RefreshTrigger `json:"trigger"`

	// StartedAt is when the fetch began.
	StartedAt time.Time `json:"started_at"`

	// Duration covers the fetch and the save.
	Duration time.Duration `json:"duration"`

	// ItemCount is the number of entries saved. Zero on failure.
	ItemCount int `json:"item_count"`

	// Success is true when the new snapshot was published.
	Success bool `json:"success"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`
}
