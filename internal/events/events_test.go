package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botgate/internal/classify"
	"botgate/internal/gate"
	"botgate/internal/ratelimit"
	"botgate/internal/signals"
)

// newCapturedLogger returns a Logger writing JSON lines into buf.
func newCapturedLogger(buf *bytes.Buffer, sink Sink) *Logger {
	return NewLogger(slog.New(slog.NewJSONHandler(buf, nil)), sink)
}

// logLines parses each emitted JSON log line.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &m))
		lines = append(lines, m)
	}
	return lines
}

func blockedVerdict() gate.Verdict {
	return gate.Verdict{Outcome: gate.Blocked, Confidence: 80, Reasons: []string{"automation tool user agent"}}
}

func apiSignals() signals.Signals {
	return signals.Signals{ClientIP: "203.0.113.7", Method: "POST", Path: "/api/chat", UserAgent: "curl/7.68.0"}
}

func TestLog_BlockedEmitsSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	l := newCapturedLogger(&buf, nil)

	cls := classify.Result{IsBot: true, Confidence: 80, Reasons: []string{"automation tool user agent"}}
	l.Log(context.Background(), blockedVerdict(), apiSignals(), cls, nil)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "security", lines[0]["category"])
	assert.Equal(t, string(TypeBotBlocked), lines[0]["event_type"])
	assert.Equal(t, "failure", lines[0]["outcome"])
	assert.Equal(t, "203.0.113.7", lines[0]["client_ip"])
	assert.Equal(t, float64(80), lines[0]["confidence"])
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.NotEmpty(t, lines[0]["event_id"])
}

func TestLog_RateLimitedCarriesQuotaFields(t *testing.T) {
	var buf bytes.Buffer
	l := newCapturedLogger(&buf, nil)

	rl := &ratelimit.Decision{Allowed: false, Limit: 10, Remaining: 0, Class: ratelimit.ClassAIChat, ResetAt: time.Now().Add(time.Minute)}
	v := gate.Verdict{Outcome: gate.RateLimited, RateLimit: rl}
	l.Log(context.Background(), v, apiSignals(), classify.Result{}, rl)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, string(TypeRateLimited), lines[0]["event_type"])
	assert.Equal(t, "ai_chat", lines[0]["rate_limit_class"])
	assert.Equal(t, float64(10), lines[0]["rate_limit_limit"])
	assert.Equal(t, float64(0), lines[0]["rate_limit_remaining"])
}

func TestLog_MonitoredIsAlwaysLogged(t *testing.T) {
	var buf bytes.Buffer
	l := newCapturedLogger(&buf, nil)

	v := gate.Verdict{Outcome: gate.AllowMonitored, Confidence: 45}
	l.Log(context.Background(), v, apiSignals(), classify.Result{Confidence: 45}, nil)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, string(TypeSuspiciousAllowed), lines[0]["event_type"])
	assert.Equal(t, "success", lines[0]["outcome"])
}

func TestLog_PlainAllowOnlyForPageNavigations(t *testing.T) {
	var buf bytes.Buffer
	l := newCapturedLogger(&buf, nil)

	// API call: not logged.
	l.Log(context.Background(), gate.Verdict{Outcome: gate.Allow}, apiSignals(), classify.Result{}, nil)
	assert.Empty(t, buf.String())

	// Page navigation: logged.
	nav := signals.Signals{ClientIP: "203.0.113.7", Method: "GET", Path: "/dashboard", Accept: "text/html,*/*"}
	l.Log(context.Background(), gate.Verdict{Outcome: gate.Allow}, nav, classify.Result{}, nil)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, string(TypeRequestAllowed), lines[0]["event_type"])
}

func TestLog_DegradedLimiterEmitsDedicatedEvent(t *testing.T) {
	var buf bytes.Buffer
	l := newCapturedLogger(&buf, nil)

	rl := &ratelimit.Decision{Allowed: true, Degraded: true, Class: ratelimit.ClassGeneral, Limit: 100}
	l.Log(context.Background(), gate.Verdict{Outcome: gate.Allow, RateLimit: rl}, apiSignals(), classify.Result{}, rl)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1, "degraded event is emitted even when the allow itself is not logged")
	assert.Equal(t, string(TypeLimiterDegraded), lines[0]["event_type"])
	assert.Equal(t, "failure", lines[0]["outcome"])
	assert.Equal(t, "WARN", lines[0]["level"])
}

// failingSink always errors.
type failingSink struct{}

func (failingSink) Write(context.Context, Event) error { return errors.New("sink down") }
func (failingSink) Close() error                       { return nil }

// panickingSink simulates a broken sink implementation.
type panickingSink struct{}

func (panickingSink) Write(context.Context, Event) error { panic("sink bug") }
func (panickingSink) Close() error                       { return nil }

func TestLog_SinkFailuresAreSwallowed(t *testing.T) {
	var buf bytes.Buffer
	l := newCapturedLogger(&buf, failingSink{})

	assert.NotPanics(t, func() {
		l.Log(context.Background(), blockedVerdict(), apiSignals(), classify.Result{IsBot: true}, nil)
	})
	// The security event itself still goes out.
	lines := logLines(t, &buf)
	require.NotEmpty(t, lines)
	assert.Equal(t, string(TypeBotBlocked), lines[0]["event_type"])
}

func TestLog_SinkPanicsAreSwallowed(t *testing.T) {
	var buf bytes.Buffer
	l := newCapturedLogger(&buf, panickingSink{})

	assert.NotPanics(t, func() {
		l.Log(context.Background(), blockedVerdict(), apiSignals(), classify.Result{IsBot: true}, nil)
	})
}
