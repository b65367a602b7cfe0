// Package events renders gate verdicts into structured security telemetry.
// Events are emitted to the process log stream (tailed by an external
// collector) and optionally to an append-only audit sink. Emission is
// fire-and-forget: a telemetry failure must never alter a request's outcome.
package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"botgate/internal/classify"
	"botgate/internal/gate"
	"botgate/internal/ratelimit"
	"botgate/internal/signals"
)

// Type enumerates security event kinds.
type Type string

const (
	TypeBotBlocked        Type = "bot_blocked"
	TypeRateLimited       Type = "rate_limited"
	TypeSuspiciousAllowed Type = "suspicious_allowed"
	TypeRequestAllowed    Type = "request_allowed"
	TypeLimiterDegraded   Type = "limiter_degraded"
)

// Event is one append-only security record. The gating layer writes events
// and never reads them back.
type Event struct {
	ID             string              `json:"id"`
	Timestamp      time.Time           `json:"timestamp"`
	Category       string              `json:"category"`
	Type           Type                `json:"event_type"`
	Outcome        string              `json:"outcome"`
	Signals        signals.Signals     `json:"signals"`
	Classification *classify.Result    `json:"classification,omitempty"`
	RateLimit      *ratelimit.Decision `json:"rate_limit,omitempty"`
}

// Sink receives events for out-of-band persistence. Implementations must not
// block the caller; errors are swallowed by the Logger.
type Sink interface {
	Write(ctx context.Context, ev Event) error
	Close() error
}

// Logger renders verdicts into events. Blocked, rate-limited and monitored
// requests are always recorded; plain allows only for page navigations, so
// API polling and asset fetches do not swamp the log volume.
type Logger struct {
	log  *slog.Logger
	sink Sink
}

// NewLogger creates a Logger writing to log. sink may be nil.
func NewLogger(log *slog.Logger, sink Sink) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log, sink: sink}
}

// Log emits the telemetry for one decided request. It never returns an error
// and never panics into the request path.
func (l *Logger) Log(ctx context.Context, v gate.Verdict, sig signals.Signals, cls classify.Result, rl *ratelimit.Decision) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("Security event emission panicked", "panic", r)
		}
	}()

	if rl != nil && rl.Degraded {
		l.emit(ctx, slog.LevelWarn, Event{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UTC(),
			Category:  "security",
			Type:      TypeLimiterDegraded,
			Outcome:   "failure",
			Signals:   sig,
			RateLimit: rl,
		})
	}

	eventType, outcome, level := describe(v)
	if eventType == TypeRequestAllowed && !isPageNavigation(sig) {
		return
	}

	ev := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Category:  "security",
		Type:      eventType,
		Outcome:   outcome,
		Signals:   sig,
		RateLimit: rl,
	}
	if eventType != TypeRequestAllowed {
		ev.Classification = &cls
	}
	l.emit(ctx, level, ev)
}

// emit writes the event to the log stream and, when configured, to the audit
// sink. Sink errors are swallowed.
func (l *Logger) emit(ctx context.Context, level slog.Level, ev Event) {
	attrs := []any{
		"event_id", ev.ID,
		"category", ev.Category,
		"event_type", string(ev.Type),
		"outcome", ev.Outcome,
		"client_ip", ev.Signals.ClientIP,
		"method", ev.Signals.Method,
		"path", ev.Signals.Path,
		"user_agent", ev.Signals.UserAgent,
	}
	if ev.Classification != nil {
		attrs = append(attrs,
			"confidence", ev.Classification.Confidence,
			"reasons", strings.Join(ev.Classification.Reasons, "; "))
	}
	if ev.RateLimit != nil {
		attrs = append(attrs,
			"rate_limit_class", string(ev.RateLimit.Class),
			"rate_limit_limit", ev.RateLimit.Limit,
			"rate_limit_remaining", ev.RateLimit.Remaining,
			"rate_limit_reset", ev.RateLimit.ResetAt.Unix())
	}
	l.log.Log(ctx, level, "Security event", attrs...)

	if l.sink != nil {
		if err := l.sink.Write(ctx, ev); err != nil {
			l.log.Debug("Audit sink write failed", "error", err)
		}
	}
}

// describe maps a verdict to its event type, outcome and log level.
func describe(v gate.Verdict) (Type, string, slog.Level) {
	switch v.Outcome {
	case gate.Blocked:
		return TypeBotBlocked, "failure", slog.LevelWarn
	case gate.RateLimited:
		return TypeRateLimited, "failure", slog.LevelWarn
	case gate.AllowMonitored:
		return TypeSuspiciousAllowed, "success", slog.LevelInfo
	default:
		return TypeRequestAllowed, "success", slog.LevelInfo
	}
}

// isPageNavigation reports whether the request looks like a top-level page
// load rather than an API or asset call.
func isPageNavigation(sig signals.Signals) bool {
	return sig.Method == "GET" && strings.Contains(sig.Accept, "text/html")
}
