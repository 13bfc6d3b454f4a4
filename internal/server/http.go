package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/patterns", s.handleListPatterns)
	mux.HandleFunc("GET /v1/patterns/{entry_id}", s.handleGetPattern)
	mux.HandleFunc("GET /v1/log", s.handleLogSince)
	mux.HandleFunc("GET /v1/log/export", s.handleExport)
	mux.HandleFunc("POST /v1/entries", s.handleAppend)
	mux.HandleFunc("POST /v1/merge", s.handleMerge)
	mux.HandleFunc("POST /v1/share", s.handleShare)
	mux.HandleFunc("POST /v1/sync", s.handleSync)
	mux.HandleFunc("POST /v1/expire", s.handleExpire)
	mux.HandleFunc("GET /v1/peers", s.handlePeers)
	mux.HandleFunc("GET /v1/peers/{peer}/patterns", s.handlePeerPatterns)
	mux.HandleFunc("GET /v1/quarantine", s.handleQuarantine)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = AuthMiddleware(authToken, h)
	h = LoggingMiddleware(s.logger, h)
	h = RecoveryMiddleware(s.logger, h)
	return h
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "peer_id": s.node.PeerID()})
}

// handleStats handles GET /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Stats())
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps a node error to an HTTP status.
func statusFor(err error) int {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var ioe *model.IOError
	if errors.As(err, &ioe) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
