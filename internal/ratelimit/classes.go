// Package ratelimit maps requests to per-endpoint-class quota buckets and
// consults a counter.Store to enforce them. Identity is always the client IP
// from signal extraction, never the user agent: detection signals can be
// forged per-request, the transport address cannot.
package ratelimit

import (
	"strings"
	"time"
)

// Class is a coarse endpoint category carrying its own quota.
type Class string

const (
	ClassAIChat     Class = "ai_chat"
	ClassVoice      Class = "voice"
	ClassFileUpload Class = "file_upload"
	ClassGeneral    Class = "general"
)

// ClassLimit is the quota for one endpoint class.
type ClassLimit struct {
	Limit  int
	Window time.Duration
}

// DefaultClassLimits are illustrative production defaults: generation
// endpoints tightest, general API loosest.
func DefaultClassLimits() map[Class]ClassLimit {
	return map[Class]ClassLimit{
		ClassAIChat:     {Limit: 10, Window: time.Minute},
		ClassVoice:      {Limit: 20, Window: time.Minute},
		ClassFileUpload: {Limit: 30, Window: time.Minute},
		ClassGeneral:    {Limit: 100, Window: time.Minute},
	}
}

// classRule maps a path fragment to a class. Rules are ordered; the first
// match wins, so specific prefixes must precede the general API catch-all.
type classRule struct {
	match string
	class Class
}

var classRules = []classRule{
	{match: "/api/chat", class: ClassAIChat},
	{match: "/api/ai/", class: ClassAIChat},
	{match: "/api/generate", class: ClassAIChat},
	{match: "/api/voice", class: ClassVoice},
	{match: "/api/transcribe", class: ClassVoice},
	{match: "/api/upload", class: ClassFileUpload},
	{match: "/api/files", class: ClassFileUpload},
	{match: "/api/", class: ClassGeneral},
}

// ClassifyPath returns the endpoint class for a request path. ok is false for
// paths outside the rate-limited surface (static assets, framework routes):
// those bypass rate limiting entirely.
func ClassifyPath(path string) (Class, bool) {
	for _, r := range classRules {
		if strings.HasPrefix(path, r.match) {
			return r.class, true
		}
	}
	return "", false
}
