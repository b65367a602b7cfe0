package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"botgate/internal/models"
	"botgate/internal/version"
)

// Handlers contains the HTTP handlers for the service's own endpoints. The
// protected routes are deliberately thin: the gate in front of them is the
// product, the handlers just prove traffic made it through.
type Handlers struct {
	version version.Info
}

// NewHandlers creates a new handlers instance.
func NewHandlers(ver version.Info) *Handlers {
	return &Handlers{version: ver}
}

// HealthCheck handles health check requests.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version.Version,
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// Chat handles the chat completion endpoint.
// POST /api/chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "accepted",
		"kind":   "chat",
	})
}

// Transcribe handles the voice transcription endpoint.
// POST /api/voice/transcribe
func (h *Handlers) Transcribe(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "accepted",
		"kind":   "voice",
	})
}

// Upload handles the file upload endpoint.
// POST /api/upload
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "accepted",
		"kind":   "upload",
	})
}

// Data handles generic API reads.
// GET /api/data
func (h *Handlers) Data(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "ok",
		"kind":   "general",
	})
}

// Home serves the landing page.
// GET /
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<!DOCTYPE html><html><body><h1>botgate</h1></body></html>"))
}

// writeJSONResponse writes a JSON response with the given status code
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
