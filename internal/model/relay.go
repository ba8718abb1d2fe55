package model

import "slices"

// FlagExit is the relay flag that marks an exit relay.
const FlagExit = "Exit"

// Unknown is the placeholder used for absent descriptive fields.
const Unknown = "Unknown"

// Relay is a single Tor relay from the relay summary document.
// FirstSeen and LastSeen are opaque upstream strings and are not reparsed.
type Relay struct {
	Nickname    string   `json:"nickname"`
	Fingerprint string   `json:"fingerprint"`
	Addresses   []string `json:"addresses"`
	Running     bool     `json:"running"`
	Flags       []string `json:"flags"`
	Bandwidth   int64    `json:"bandwidth"`
	Country     string   `json:"country"`
	ASName      string   `json:"as_name"`
	FirstSeen   string   `json:"first_seen"`
	LastSeen    string   `json:"last_seen"`

	// IsExit is derived from Flags by SetFlags.
	IsExit bool `json:"exit_node"`
}

// HasFlag reports whether the relay carries the given flag.
func (r Relay) HasFlag(flag string) bool {
	return slices.Contains(r.Flags, flag)
}

// SetFlags replaces the flag set and recomputes IsExit.
func (r *Relay) SetFlags(flags []string) {
	r.Flags = flags
	r.IsExit = r.HasFlag(FlagExit)
}
