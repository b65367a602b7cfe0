// Package gate composes classification and rate-limit results into a single
// request verdict under a fixed precedence order. The engine is a pure
// function with four terminal outcomes and no retryable states.
package gate

import (
	"botgate/internal/classify"
	"botgate/internal/ratelimit"
)

// Outcome is the terminal decision for one request.
type Outcome string

const (
	// Allow admits the request with no further scrutiny.
	Allow Outcome = "allow"
	// AllowMonitored admits the request but flags it as suspicious for
	// observability. Requests just under the block threshold are the best
	// signal for tuning it.
	AllowMonitored Outcome = "allow_monitored"
	// Blocked rejects the request as hostile automation.
	Blocked Outcome = "blocked"
	// RateLimited rejects the request for quota exhaustion.
	RateLimited Outcome = "rate_limited"
)

// Verdict is the engine's decision plus the evidence that produced it. It is
// consumed immediately by the middleware and the event logger and never
// stored beyond the request.
type Verdict struct {
	Outcome    Outcome             `json:"outcome"`
	Reasons    []string            `json:"reasons,omitempty"`
	Confidence int                 `json:"confidence,omitempty"`
	RateLimit  *ratelimit.Decision `json:"rate_limit,omitempty"`
}

// Terminal reports whether the verdict ends the request at the gate.
func (v Verdict) Terminal() bool {
	return v.Outcome == Blocked || v.Outcome == RateLimited
}

// Engine applies the precedence order. monitorThreshold is the confidence
// above which an admitted request is flagged for monitoring.
type Engine struct {
	monitorThreshold int
}

// NewEngine creates an Engine. Non-positive thresholds fall back to the
// classifier default.
func NewEngine(monitorThreshold int) *Engine {
	if monitorThreshold <= 0 {
		monitorThreshold = classify.DefaultMonitorThreshold
	}
	return &Engine{monitorThreshold: monitorThreshold}
}

// Decide resolves one request. rl is nil for paths outside the rate-limited
// surface. Precedence, first match wins:
//
//  1. trusted bot: allow unconditionally, quota included; throttling
//     search crawlers breaks indexing and previews
//  2. hostile bot: block, even with quota to spare
//  3. quota exhausted: rate limited
//  4. suspicious but under the block threshold: allow, monitored
//  5. otherwise: allow
func (e *Engine) Decide(cls classify.Result, rl *ratelimit.Decision) Verdict {
	if cls.KnownGoodBot {
		return Verdict{Outcome: Allow, Reasons: cls.Reasons}
	}

	if cls.IsBot {
		return Verdict{
			Outcome:    Blocked,
			Reasons:    cls.Reasons,
			Confidence: cls.Confidence,
			RateLimit:  rl,
		}
	}

	if rl != nil && !rl.Allowed {
		return Verdict{Outcome: RateLimited, RateLimit: rl}
	}

	if cls.Confidence > e.monitorThreshold {
		return Verdict{
			Outcome:    AllowMonitored,
			Reasons:    cls.Reasons,
			Confidence: cls.Confidence,
			RateLimit:  rl,
		}
	}

	return Verdict{Outcome: Allow, RateLimit: rl}
}
