// Package counter provides atomic windowed request counters behind a single
// Store interface. Two strategies are included: a Redis-backed sliding window
// that is correct across any number of application instances, and an
// in-process fixed window for single-instance deployments with no external
// dependencies.
package counter

import (
	"context"
	"time"
)

// Result reports the outcome of one counted request.
type Result struct {
	Allowed   bool      // whether the request fits within the limit
	Count     int64     // observed requests in the current window, including this one
	Remaining int       // requests left before the limit is reached
	ResetAt   time.Time // when the current window ends
}

// Store is a windowed counter with atomic increment semantics: concurrent
// increments for the same key must all be reflected in the count, with no
// lost updates. Implementations must be safe for concurrent use.
type Store interface {
	// Increment counts one request against key and reports whether it fits
	// within limit for the given window.
	Increment(ctx context.Context, key string, window time.Duration, limit int) (Result, error)

	// Close releases resources and stops background goroutines.
	Close() error
}
