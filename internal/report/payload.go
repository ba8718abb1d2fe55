package report

import (
	"time"

	"github.com/nao1215/tornodes/internal/model"
)

// Payload status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusOnline  = "online"
)

// ServiceName is reported by the index and status payloads.
const ServiceName = "tornodes"

// Endpoint describes one HTTP route on the index payload.
type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// IndexPayload is the body of GET /.
type IndexPayload struct {
	Service             string     `json:"service"`
	Version             string     `json:"version"`
	IPCount             int        `json:"ip_count"`
	TotalDetailedNodes  int        `json:"total_detailed_nodes"`
	CacheExists         bool       `json:"cache_exists"`
	DetailedCacheExists bool       `json:"detailed_cache_exists"`
	LastUpdate          *time.Time `json:"last_update"`
	DetailedLastUpdate  *time.Time `json:"detailed_last_update"`
	Endpoints           []Endpoint `json:"endpoints"`
}

// NewIndexPayload summarizes both caches for the index page.
func NewIndexPayload(version string, exit, detailed model.SnapshotInfo, endpoints []Endpoint) IndexPayload {
	if endpoints == nil {
		endpoints = []Endpoint{}
	}
	return IndexPayload{
		Service:             ServiceName,
		Version:             version,
		IPCount:             exit.ItemCount,
		TotalDetailedNodes:  detailed.ItemCount,
		CacheExists:         exit.Exists,
		DetailedCacheExists: detailed.Exists,
		LastUpdate:          exit.LastUpdate,
		DetailedLastUpdate:  detailed.LastUpdate,
		Endpoints:           endpoints,
	}
}

// StatusPayload is the body of GET /status.
type StatusPayload struct {
	Service             string     `json:"service"`
	Status              string     `json:"status"`
	CacheExists         bool       `json:"cache_exists"`
	LastUpdate          *time.Time `json:"last_update"`
	NeedsUpdate         bool       `json:"needs_update"`
	IPCount             int        `json:"ip_count"`
	DetailedCacheExists bool       `json:"detailed_cache_exists"`
	DetailedLastUpdate  *time.Time `json:"detailed_last_update"`
	DetailedNeedsUpdate bool       `json:"detailed_needs_update"`
	TotalDetailedNodes  int        `json:"total_detailed_nodes"`
	CurrentTime         time.Time  `json:"current_time"`
}

// NewStatusPayload reports the state of both caches at now.
func NewStatusPayload(exit, detailed model.SnapshotInfo, now time.Time) StatusPayload {
	return StatusPayload{
		Service:             ServiceName,
		Status:              StatusOnline,
		CacheExists:         exit.Exists,
		LastUpdate:          exit.LastUpdate,
		NeedsUpdate:         exit.NeedsUpdate,
		IPCount:             exit.ItemCount,
		DetailedCacheExists: detailed.Exists,
		DetailedLastUpdate:  detailed.LastUpdate,
		DetailedNeedsUpdate: detailed.NeedsUpdate,
		TotalDetailedNodes:  detailed.ItemCount,
		CurrentTime:         now.UTC(),
	}
}

// NodesPayload is the body of every relay listing.
type NodesPayload struct {
	Status      string        `json:"status"`
	Country     string        `json:"country,omitempty"`
	TotalNodes  int           `json:"total_nodes"`
	LastUpdated *time.Time    `json:"last_updated"`
	Nodes       []model.Relay `json:"nodes"`
}

// NewNodesPayload wraps relays with the detailed cache metadata.
func NewNodesPayload(relays []model.Relay, detailed model.SnapshotInfo) NodesPayload {
	if relays == nil {
		relays = []model.Relay{}
	}
	return NodesPayload{
		Status:      StatusSuccess,
		TotalNodes:  len(relays),
		LastUpdated: detailed.LastUpdate,
		Nodes:       relays,
	}
}

// StatsPayload is the body of GET /api/stats.
type StatsPayload struct {
	Status     string           `json:"status"`
	Statistics model.Statistics `json:"statistics"`
}

// NewStatsPayload wraps stats.
func NewStatsPayload(stats model.Statistics) StatsPayload {
	return StatsPayload{Status: StatusSuccess, Statistics: stats}
}

// HistoryPayload is the body of GET /api/refreshes.
type HistoryPayload struct {
	Status string               `json:"status"`
	Total  int                  `json:"total"`
	Events []model.RefreshEvent `json:"events"`
}

// NewHistoryPayload wraps refresh events, newest first.
func NewHistoryPayload(events []model.RefreshEvent) HistoryPayload {
	if events == nil {
		events = []model.RefreshEvent{}
	}
	return HistoryPayload{Status: StatusSuccess, Total: len(events), Events: events}
}

// ErrorPayload is the body of every failed JSON request. The counts are
// always zero so clients reading them never see stale numbers.
type ErrorPayload struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	TotalNodes int    `json:"total_nodes"`
	RetryAfter string `json:"retry_after,omitempty"`
}

// NewErrorPayload creates an error body for msg.
func NewErrorPayload(msg string) ErrorPayload {
	return ErrorPayload{Status: StatusError, Error: msg}
}
