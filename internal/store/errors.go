package store

import "errors"

var (
	// ErrPersistence is returned when the durable exit snapshot cannot be
	// written or read. The previous snapshot stays in effect.
	ErrPersistence = errors.New("cache persistence failure")

	// ErrUnknownCache is returned by Info for a name that is not a cache.
	ErrUnknownCache = errors.New("unknown cache")
)
