// Package classify scores request signals against a weighted rule table to
// decide whether a request originates from automated tooling. Classification
// is a pure function of the input signals: no single header omission is
// conclusive on its own, but several together, or a scripting-library
// signature, reliably separate automation from browsers.
package classify

import "botgate/internal/signals"

// Default thresholds. Two medium-weight signals stay below the block
// threshold; three cross it.
const (
	DefaultBlockThreshold   = 50
	DefaultMonitorThreshold = 30
)

// Result is the outcome of classifying one request's signals.
type Result struct {
	IsBot        bool     `json:"is_bot"`
	Confidence   int      `json:"confidence"`
	Reasons      []string `json:"reasons,omitempty"`
	KnownGoodBot bool     `json:"known_good_bot"`
}

// Classifier scores signals against the rule table. The zero value is not
// usable; construct with New.
type Classifier struct {
	blockThreshold   int
	monitorThreshold int
}

// New creates a Classifier with the given thresholds. Non-positive values
// fall back to the defaults.
func New(blockThreshold, monitorThreshold int) *Classifier {
	if blockThreshold <= 0 {
		blockThreshold = DefaultBlockThreshold
	}
	if monitorThreshold <= 0 {
		monitorThreshold = DefaultMonitorThreshold
	}
	return &Classifier{
		blockThreshold:   blockThreshold,
		monitorThreshold: monitorThreshold,
	}
}

// BlockThreshold returns the confidence at or above which a request is
// classified as a bot.
func (c *Classifier) BlockThreshold() int { return c.blockThreshold }

// MonitorThreshold returns the confidence above which an allowed request is
// flagged as suspicious.
func (c *Classifier) MonitorThreshold() int { return c.monitorThreshold }

// Classify scores the signals. Allowlisted crawlers short-circuit with
// confidence 0 and KnownGoodBot set; everything else accumulates rule weights
// capped at 100.
func (c *Classifier) Classify(sig signals.Signals) Result {
	if isAllowedBot(sig.UserAgent) {
		return Result{
			IsBot:        true,
			Confidence:   0,
			Reasons:      []string{"allowed bot"},
			KnownGoodBot: true,
		}
	}

	var confidence int
	var reasons []string
	for _, r := range scoringRules {
		if r.match(sig) {
			confidence += r.weight
			reasons = append(reasons, r.reason)
		}
	}
	if confidence > 100 {
		confidence = 100
	}

	return Result{
		IsBot:      confidence >= c.blockThreshold,
		Confidence: confidence,
		Reasons:    reasons,
	}
}
