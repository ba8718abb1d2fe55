// Package model defines the core data structures shared by the tornodes packages.
//
// This package contains the following main types:
//   - ExitAddress: An exit node IP address as published by the exit list
//   - Relay: One detailed Tor relay from the relay summary document
//   - SnapshotInfo: Metadata describing the state of one cache
//   - Statistics: Aggregates computed over the detailed relay set
//   - RefreshEvent: One recorded refresh attempt of either cache
//
// The models carry JSON tags because they are rendered directly by the
// HTTP layer and by the CLI. They hold no behavior that touches the network
// or the file system.
package model
