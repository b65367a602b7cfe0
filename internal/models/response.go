// Package models - API response types and error handling.
// This file defines the gate's outgoing response structures: the JSON error
// envelope used for blocked and rate-limited requests, and the health
// response. Timestamps are RFC3339 for log-pipeline compatibility.
package models

import "time"

// Error code constants for the machine-readable Code field.
const (
	ErrorCodeBotDetected       = "BOT_DETECTED"         // 403: request classified as hostile automation
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"  // 429: per-class quota exhausted
	ErrorCodeInvalidRequest    = "INVALID_REQUEST"      // 400: malformed request
	ErrorCodeNotFound          = "NOT_FOUND"            // 404: no such resource
	ErrorCodeInternalError     = "INTERNAL_ERROR"       // 500: server-side failure
)

// ErrorResponse is the JSON envelope for all non-2xx responses produced by
// the gate.
type ErrorResponse struct {
	Error     string    `json:"error"`          // Error type (always "error")
	Message   string    `json:"message"`        // Human-readable description
	Code      string    `json:"code,omitempty"` // Machine-readable error code
	Timestamp time.Time `json:"timestamp"`      // Error occurrence time
}

// RateLimitErrorResponse extends the error envelope with the quota metadata
// mandated for 429 responses.
type RateLimitErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     int64     `json:"reset"` // unix seconds when the window ends
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheckResponse reports service liveness and component state.
type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth is one named component's health entry.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewErrorResponse builds the standard error envelope.
func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// NewRateLimitErrorResponse builds the 429 envelope with quota metadata.
func NewRateLimitErrorResponse(limit, remaining int, reset time.Time) *RateLimitErrorResponse {
	return &RateLimitErrorResponse{
		Error:     "error",
		Message:   "Rate limit exceeded",
		Code:      ErrorCodeRateLimitExceeded,
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset.Unix(),
		Timestamp: time.Now(),
	}
}
