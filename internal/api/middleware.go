package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"botgate/internal/classify"
	"botgate/internal/events"
	"botgate/internal/gate"
	"botgate/internal/models"
	"botgate/internal/observability"
	"botgate/internal/ratelimit"
	"botgate/internal/signals"
)

// Gate is the request-gating middleware. It runs the full pipeline for every
// request outside the bypass list: extract signals, classify, check the
// quota for classified paths, decide, log the event, and either pass the
// request on or terminate it with the 403/429 contract.
type Gate struct {
	classifier *classify.Classifier
	limiter    *ratelimit.Limiter
	engine     *gate.Engine
	events     *events.Logger
	metrics    *observability.GateMetrics
	bypass     []string
}

// NewGate wires the gating pipeline. limiter may be nil when rate limiting
// is disabled; metrics may be nil when the meter provider is not set up.
func NewGate(
	classifier *classify.Classifier,
	limiter *ratelimit.Limiter,
	engine *gate.Engine,
	eventLog *events.Logger,
	metrics *observability.GateMetrics,
	cfg models.GateConfig,
) *Gate {
	return &Gate{
		classifier: classifier,
		limiter:    limiter,
		engine:     engine,
		events:     eventLog,
		metrics:    metrics,
		bypass:     cfg.BypassPaths,
	}
}

// Middleware returns the mux middleware enforcing the gate.
func (g *Gate) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.bypassed(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			verdict, sig, cls, rl := g.evaluate(r)

			if g.events != nil {
				g.events.Log(r.Context(), verdict, sig, cls, rl)
			}
			g.metrics.RecordVerdict(r.Context(), string(verdict.Outcome), cls.Confidence)

			switch verdict.Outcome {
			case gate.Blocked:
				writeBlocked(w)
			case gate.RateLimited:
				writeRateLimited(w, rl)
			default:
				if rl != nil {
					setRateLimitHeaders(w.Header(), rl)
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}

// evaluate runs extraction, classification, and the quota check. A panic
// anywhere in the pipeline fails safe to a plain Allow so a classifier bug
// can never take down legitimate traffic.
func (g *Gate) evaluate(r *http.Request) (verdict gate.Verdict, sig signals.Signals, cls classify.Result, rl *ratelimit.Decision) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("gate pipeline panic, failing open",
				"panic", fmt.Sprintf("%v", p),
				"path", r.URL.Path)
			verdict = gate.Verdict{Outcome: gate.Allow}
			rl = nil
		}
	}()

	sig = signals.Extract(r)
	cls = g.classifier.Classify(sig)

	// Trusted crawlers skip the quota check entirely so they never burn
	// window slots, and everything else is counted whether or not the
	// classifier ends up blocking it.
	if !cls.KnownGoodBot && g.limiter != nil {
		if class, ok := ratelimit.ClassifyPath(sig.Path); ok {
			d := g.limiter.Check(r.Context(), sig, class)
			rl = &d
		}
	}

	verdict = g.engine.Decide(cls, rl)
	return verdict, sig, cls, rl
}

// bypassed reports whether the path skips the gate. Rules ending in "/"
// match as prefixes, everything else matches exactly.
func (g *Gate) bypassed(path string) bool {
	for _, rule := range g.bypass {
		if strings.HasSuffix(rule, "/") {
			if strings.HasPrefix(path, rule) {
				return true
			}
		} else if path == rule {
			return true
		}
	}
	return false
}

func writeBlocked(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Bot-Protection", "blocked")
	w.WriteHeader(http.StatusForbidden)
	errorResp := models.NewErrorResponse("Automated traffic detected", models.ErrorCodeBotDetected)
	json.NewEncoder(w).Encode(errorResp)
}

func writeRateLimited(w http.ResponseWriter, rl *ratelimit.Decision) {
	setRateLimitHeaders(w.Header(), rl)
	retryAfter := int(time.Until(rl.ResetAt).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	errorResp := models.NewRateLimitErrorResponse(rl.Limit, rl.Remaining, rl.ResetAt)
	json.NewEncoder(w).Encode(errorResp)
}

func setRateLimitHeaders(h http.Header, rl *ratelimit.Decision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
}
