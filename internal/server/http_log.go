package server

import (
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/clawnet/internal/logstore"
	"github.com/alfredjeanlab/clawnet/internal/model"
	logsync "github.com/alfredjeanlab/clawnet/internal/sync"
)

// handleListPatterns handles GET /v1/patterns.
//
// Query params: source (origin peer), limit (most recent N, newest first).
// Without limit, patterns are returned oldest first.
func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	st := s.node.Store()
	var recs []model.PatternRecord
	switch source := q.Get("source"); {
	case source != "":
		recs = st.PatternsBySource(source)
		if limit > 0 {
			recs = newestFirst(recs, limit)
		}
	case limit > 0:
		recs = st.RecentPatterns(limit)
	default:
		recs = st.AllPatterns()
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": recs, "total": len(recs)})
}

// newestFirst returns the last n records of an oldest-first slice, reversed.
func newestFirst(recs []model.PatternRecord, n int) []model.PatternRecord {
	if n > len(recs) {
		n = len(recs)
	}
	out := make([]model.PatternRecord, 0, n)
	for i := len(recs) - 1; i >= len(recs)-n; i-- {
		out = append(out, recs[i])
	}
	return out
}

// handleGetPattern handles GET /v1/patterns/{entry_id}.
func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("entry_id")
	rec, ok := s.node.Store().Pattern(id)
	if !ok {
		writeError(w, http.StatusNotFound, "pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleLogSince handles GET /v1/log?since=<unix millis>.
func (s *Server) handleLogSince(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be unix milliseconds")
			return
		}
		since = n
	}
	st := s.node.Store()
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":      st.LogSince(since),
		"vector_clock": st.Clock(),
	})
}

// handleExport handles GET /v1/log/export as JSONL.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.node.PeerID()+`.jsonl"`)
	if err := logsync.ExportJSONL(r.Context(), s.node.Store(), w); err != nil {
		// Headers are already sent; the client sees a truncated body.
		s.logger.Error("export failed", "peer", s.node.PeerID(), "err", err)
	}
}

type appendRequest struct {
	Payload model.Payload `json:"payload"`
}

type appendResponse struct {
	Entry     model.LogEntry `json:"entry"`
	SaveError string         `json:"save_error,omitempty"`
}

// handleAppend handles POST /v1/entries.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	entry, err := s.node.Append(r.Context(), req.Payload)
	if err != nil && entry.ID == "" {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := appendResponse{Entry: entry}
	if err != nil {
		s.logger.Warn("entry appended but not saved", "peer", s.node.PeerID(), "entry", entry.ID, "err", err)
		resp.SaveError = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

type mergeRequest struct {
	RemotePeer string           `json:"remote_peer"`
	Entries    []model.LogEntry `json:"entries"`
}

type mergeResponse struct {
	logstore.MergeResult
	SaveError string `json:"save_error,omitempty"`
}

// handleMerge handles POST /v1/merge.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !model.ValidPeerID(req.RemotePeer) {
		writeError(w, http.StatusBadRequest, "remote_peer is required")
		return
	}
	if req.RemotePeer == s.node.PeerID() {
		writeError(w, http.StatusBadRequest, "remote_peer must not be the local peer")
		return
	}
	res, err := s.node.MergeRemote(r.Context(), req.Entries, req.RemotePeer)
	resp := mergeResponse{MergeResult: res}
	if err != nil {
		s.logger.Warn("merge not saved", "peer", s.node.PeerID(), "remote", req.RemotePeer, "err", err)
		resp.SaveError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
