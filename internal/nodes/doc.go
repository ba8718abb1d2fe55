// Package nodes is the read side of the service.
//
// Every getter first asks the refresh coordinator to bring its cache up to
// date when it is stale, then answers from the store. A refresh failure is
// not a read failure as long as a snapshot exists: the last good data is
// served and the failure is logged. Only a cache that has never held data
// turns a refresh failure into ErrNoData.
//
// Filters and statistics are computed per call over an immutable snapshot
// and never mutate it.
package nodes
