package nodes

import "errors"

var (
	// ErrInvalidArgument is returned for malformed input such as a country
	// code that is not two ASCII letters. No cache is touched.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoData is returned when a cache has never been populated and the
	// refresh needed to populate it failed. It wraps the refresh error.
	ErrNoData = errors.New("no data available")
)
