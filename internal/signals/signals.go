// Package signals extracts the request metadata the gating layer scores and
// keys on: client IP, user agent, content-negotiation headers, path and method.
// Extraction never fails; absent headers are represented as empty strings so
// the classifier can score their absence directly.
package signals

import (
	"net"
	"net/http"
	"strings"
)

// fallbackIP is used when no proxy header is present and the peer address
// cannot be parsed.
const fallbackIP = "127.0.0.1"

// Signals holds the per-request metadata consumed by the classifier and the
// rate limiter. It is created fresh for each request and never persisted.
type Signals struct {
	ClientIP       string `json:"client_ip"`
	UserAgent      string `json:"user_agent"`
	Accept         string `json:"accept"`
	AcceptLanguage string `json:"accept_language"`
	AcceptEncoding string `json:"accept_encoding"`
	Path           string `json:"path"`
	Method         string `json:"method"`
}

// Extract builds Signals from an incoming request. It is the single source of
// client identity: both classification and rate-limit keying must go through
// the ClientIP field so an attacker cannot present one identity to the
// classifier and another to the limiter.
func Extract(r *http.Request) Signals {
	return Signals{
		ClientIP:       clientIP(r),
		UserAgent:      r.Header.Get("User-Agent"),
		Accept:         r.Header.Get("Accept"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		Path:           r.URL.Path,
		Method:         r.Method,
	}
}

// clientIP resolves the client address, checking proxy headers in a fixed
// order before falling back to the direct peer. The first X-Forwarded-For
// entry is the original client when the chain is trusted.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	for _, header := range []string{"X-Real-IP", "CF-Connecting-IP", "True-Client-IP"} {
		if ip := strings.TrimSpace(r.Header.Get(header)); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return fallbackIP
}
