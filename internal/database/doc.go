// Package database provides SQLite-based storage for the refresh history.
//
// Every refresh attempt of either cache is appended to a single table, so
// an operator can see when the upstreams were last reachable, how long the
// fetches took and why they failed. The history is advisory: the caches do
// not depend on it and a failed insert never fails a refresh.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// binary stays statically linked. WAL mode lets the history command read
// while a running server writes.
package database
