// Package store holds the two relay caches and their freshness metadata.
//
// The exit address snapshot is durable: it is written to three files under
// the cache directory and reloaded on start. The detailed relay snapshot
// lives in memory only; its short TTL makes a cold refresh at start cheap.
//
// Each snapshot is published through an atomic pointer. Readers load the
// pointer once and therefore always observe either the previous or the new
// snapshot in full. Durable writes go to temporary files that are renamed
// into place, with the timestamp file renamed last, so a failed write leaves
// the existing on-disk state untouched.
package store
