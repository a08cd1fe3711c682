package query

import "errors"

var (
	// ErrInvalidArgument is returned for a negative or NaN radius, a negative
	// limit, or an unrecognized capability tag. No work is done.
	ErrInvalidArgument = errors.New("query: invalid argument")

	// ErrMissingRegionCache means a loaded region has no cache in the registry.
	// This breaks the chunk-lifecycle contract and is not retryable.
	ErrMissingRegionCache = errors.New("query: loaded region has no cache")
)
