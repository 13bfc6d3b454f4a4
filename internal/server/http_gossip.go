package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/node"
)

type shareRequest struct {
	Patterns []model.Pattern `json:"patterns"`
}

type shareResponse struct {
	node.ShareResult
	Error string `json:"error,omitempty"`
}

// handleShare handles POST /v1/share.
//
// A publish or save failure after patterns were logged still returns the
// result, with status 502 and the error attached.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Patterns) == 0 {
		writeError(w, http.StatusBadRequest, "patterns is required")
		return
	}
	res, err := s.node.Share(r.Context(), req.Patterns)
	if err != nil {
		if len(res.Entries) == 0 {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusBadGateway, shareResponse{ShareResult: res, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{ShareResult: res})
}

// handleSync handles POST /v1/sync.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.node.Sync(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExpire handles POST /v1/expire.
func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	removed, err := s.node.Expire(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"removed": removed, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// handlePeers handles GET /v1/peers.
// Optional stale_threshold_secs hides peers silent for longer.
func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	var stale time.Duration
	if v := r.URL.Query().Get("stale_threshold_secs"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			stale = time.Duration(secs) * time.Second
		}
	}
	peers := s.node.Engine().Peers(stale)
	writeJSON(w, http.StatusOK, map[string]any{"peers": peers, "total": len(peers)})
}

// handlePeerPatterns handles GET /v1/peers/{peer}/patterns.
func (s *Server) handlePeerPatterns(w http.ResponseWriter, r *http.Request) {
	patterns := s.node.Engine().PatternsByPeer(r.PathValue("peer"))
	writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns, "total": len(patterns)})
}

// handleQuarantine handles GET /v1/quarantine.
func (s *Server) handleQuarantine(w http.ResponseWriter, _ *http.Request) {
	held := s.node.Hold().List()
	writeJSON(w, http.StatusOK, map[string]any{"held": held, "total": len(held)})
}
