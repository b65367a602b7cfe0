package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"botgate/internal/counter"
	"botgate/internal/signals"
)

// DefaultStoreTimeout bounds the counter-store round trip. Strategy A talks
// to Redis over the network; a slow store must not stall the request path.
const DefaultStoreTimeout = 150 * time.Millisecond

// Decision is the outcome of one quota check, including the metadata needed
// for X-RateLimit response headers.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Class     Class     `json:"class"`
	Key       string    `json:"key"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// Limiter enforces per-class quotas through a pluggable counter store. When
// the store is unreachable it fails open by default: availability wins over
// strict enforcement, and the degradation is surfaced through
// Decision.Degraded so callers can emit telemetry.
type Limiter struct {
	store        counter.Store
	classes      map[Class]ClassLimit
	storeTimeout time.Duration
	failOpen     bool

	// degradedLog throttles the warn-level log line during a store outage so
	// a sustained failure does not flood the log stream. The structured
	// security event is still emitted per occurrence by the caller.
	degradedLog *rate.Limiter
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStoreTimeout overrides the counter-store timeout budget.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.storeTimeout = d
		}
	}
}

// WithFailClosed makes the limiter deny requests when the store is
// unreachable. Intended for deployments where strict enforcement outranks
// availability.
func WithFailClosed() Option {
	return func(l *Limiter) { l.failOpen = false }
}

// New creates a Limiter over the given store. Classes missing from limits
// fall back to the defaults.
func New(store counter.Store, limits map[Class]ClassLimit, opts ...Option) *Limiter {
	classes := DefaultClassLimits()
	for class, cl := range limits {
		if cl.Limit > 0 && cl.Window > 0 {
			classes[class] = cl
		}
	}

	l := &Limiter{
		store:        store,
		classes:      classes,
		storeTimeout: DefaultStoreTimeout,
		failOpen:     true,
		degradedLog:  rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consults the counter store for the request's bucket. It never returns
// an error: store failures resolve to a degraded decision according to the
// fail-open policy.
func (l *Limiter) Check(ctx context.Context, sig signals.Signals, class Class) Decision {
	cl, ok := l.classes[class]
	if !ok {
		cl = l.classes[ClassGeneral]
	}
	key := string(class) + ":" + sig.ClientIP

	ctx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()

	res, err := l.store.Increment(ctx, key, cl.Window, cl.Limit)
	if err != nil {
		if l.degradedLog.Allow() {
			slog.Warn("Counter store unavailable, rate limiting degraded",
				"error", err,
				"class", string(class),
				"fail_open", l.failOpen)
		}
		return Decision{
			Allowed:   l.failOpen,
			Limit:     cl.Limit,
			Remaining: cl.Limit,
			ResetAt:   time.Now().Add(cl.Window),
			Class:     class,
			Key:       key,
			Degraded:  true,
		}
	}

	return Decision{
		Allowed:   res.Allowed,
		Limit:     cl.Limit,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
		Class:     class,
		Key:       key,
	}
}
