package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/alfredjeanlab/clawnet/internal/exchange"
	"github.com/alfredjeanlab/clawnet/internal/logstore"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/node"
	"github.com/alfredjeanlab/clawnet/internal/scan"
)

func TestHealth(t *testing.T) {
	_, _, h := newTestServer(t)
	var resp map[string]string
	rec := doRequest(t, h, http.MethodGet, "/v1/health", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp["status"] != "ok" || resp["peer_id"] != "alice" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestAuthEnforcedOnRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.NewHTTPHandler("secret")
	if rec := doRequest(t, h, http.MethodGet, "/v1/stats", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/v1/health", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for health, got %d", rec.Code)
	}
}

func TestAppendAndQuery(t *testing.T) {
	_, _, h := newTestServer(t)

	var created appendResponse
	rec := doRequest(t, h, http.MethodPost, "/v1/entries",
		appendRequest{Payload: mustPatternPayload(t, designPattern("p1"))}, &created)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d; body: %s", rec.Code, rec.Body.String())
	}
	if created.Entry.Origin != "alice" || created.Entry.Clock.Get("alice") != 1 {
		t.Fatalf("unexpected entry: %+v", created.Entry)
	}

	var list struct {
		Patterns []model.PatternRecord `json:"patterns"`
		Total    int                   `json:"total"`
	}
	doRequest(t, h, http.MethodGet, "/v1/patterns", nil, &list)
	if list.Total != 1 || list.Patterns[0].LogEntryID != created.Entry.ID || list.Patterns[0].SourcePeer != "alice" {
		t.Fatalf("patterns = %+v", list)
	}

	var rec1 model.PatternRecord
	if rec := doRequest(t, h, http.MethodGet, "/v1/patterns/"+created.Entry.ID, nil, &rec1); rec.Code != http.StatusOK {
		t.Fatalf("get pattern: %d", rec.Code)
	}
	if rec1.ID != "p1" {
		t.Fatalf("pattern = %+v", rec1)
	}
	if rec := doRequest(t, h, http.MethodGet, "/v1/patterns/missing", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var stats node.Stats
	doRequest(t, h, http.MethodGet, "/v1/stats", nil, &stats)
	if stats.Log.TotalPatterns != 1 || stats.Log.TotalLogEntries != 1 || stats.Gossip.PeerID != "alice" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestAppend_Rejected(t *testing.T) {
	_, _, h := newTestServer(t)
	for _, tc := range []struct {
		name string
		body string
	}{
		{"MalformedJSON", `{"payload":`},
		{"UnknownField", `{"payload":{"type":"note"},"extra":1}`},
		{"UntypedPayload", `{"payload":{"body":{"text":"hi"}}}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/v1/entries", tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d; body: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPatterns_SourceAndLimit(t *testing.T) {
	srv, _, h := newTestServer(t)
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := srv.node.Append(ctx, mustPatternPayload(t, designPattern(id))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var list struct {
		Patterns []model.PatternRecord `json:"patterns"`
	}
	doRequest(t, h, http.MethodGet, "/v1/patterns?limit=2", nil, &list)
	if len(list.Patterns) != 2 || list.Patterns[0].ID != "p3" || list.Patterns[1].ID != "p2" {
		t.Fatalf("recent = %+v", list.Patterns)
	}

	doRequest(t, h, http.MethodGet, "/v1/patterns?source=alice&limit=1", nil, &list)
	if len(list.Patterns) != 1 || list.Patterns[0].ID != "p3" {
		t.Fatalf("source+limit = %+v", list.Patterns)
	}

	list.Patterns = nil
	doRequest(t, h, http.MethodGet, "/v1/patterns?source=bob", nil, &list)
	if list.Patterns == nil || len(list.Patterns) != 0 {
		t.Fatalf("unknown source should give empty list, got %+v", list.Patterns)
	}

	if rec := doRequest(t, h, http.MethodGet, "/v1/patterns?limit=-1", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestLogSince(t *testing.T) {
	srv, _, h := newTestServer(t)
	first, err := srv.node.Append(context.Background(), mustPatternPayload(t, designPattern("p1")))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	var resp struct {
		Entries []model.LogEntry  `json:"entries"`
		Clock   model.VectorClock `json:"vector_clock"`
	}
	doRequest(t, h, http.MethodGet, "/v1/log", nil, &resp)
	if len(resp.Entries) != 1 || resp.Clock.Get("alice") != 1 {
		t.Fatalf("log = %+v", resp)
	}

	resp.Entries = nil
	doRequest(t, h, http.MethodGet, "/v1/log?since="+strconv.FormatInt(first.WallClock, 10), nil, &resp)
	if len(resp.Entries) != 0 {
		t.Fatalf("since is exclusive, got %+v", resp.Entries)
	}

	if rec := doRequest(t, h, http.MethodGet, "/v1/log?since=yesterday", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExport(t *testing.T) {
	srv, _, h := newTestServer(t)
	if _, err := srv.node.Append(context.Background(), mustPatternPayload(t, designPattern("p1"))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rec := doRequest(t, h, http.MethodGet, "/v1/log/export", nil, nil)
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	// header + entry + pattern
	if len(lines) != 3 || !strings.Contains(lines[0], `"peer":"alice"`) {
		t.Fatalf("export = %s", rec.Body.String())
	}
}

func TestMerge(t *testing.T) {
	_, _, h := newTestServer(t)
	payload := mustPatternPayload(t, designPattern("p1"))
	good := model.LogEntry{
		ID: "bob-1", Origin: "bob", WallClock: 1_700_000_000_000,
		Clock: model.VectorClock{"bob": 1}, Payload: payload, Checksum: model.Digest(payload),
	}
	bad := good
	bad.ID = "bob-2"
	bad.Checksum = "forged"

	var res mergeResponse
	rec := doRequest(t, h, http.MethodPost, "/v1/merge",
		mergeRequest{RemotePeer: "bob", Entries: []model.LogEntry{good, bad, good}}, &res)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
	want := logstore.MergeResult{Merged: 1, Invalid: 1, Duplicates: 1, Total: 1}
	if res.MergeResult != want {
		t.Fatalf("merge = %+v, want %+v", res.MergeResult, want)
	}

	if rec := doRequest(t, h, http.MethodPost, "/v1/merge", mergeRequest{Entries: []model.LogEntry{good}}, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without remote_peer, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodPost, "/v1/merge", mergeRequest{RemotePeer: "alice", Entries: []model.LogEntry{good}}, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for the local peer as remote_peer, got %d", rec.Code)
	}
}

func TestShareSyncAndPeers(t *testing.T) {
	srv, ex, h := newTestServer(t)
	bob := newTestNode(t, "bob", ex, NewEventStream(nil, nil), nil)

	if _, err := bob.Share(context.Background(), []model.Pattern{designPattern("p-bob")}); err != nil {
		t.Fatalf("bob Share: %v", err)
	}

	var res node.SyncResult
	rec := doRequest(t, h, http.MethodPost, "/v1/sync", nil, &res)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: %d %s", rec.Code, rec.Body.String())
	}
	if len(res.Received) != 1 || res.Merged != 1 {
		t.Fatalf("sync = %+v", res)
	}
	if got := srv.node.Store().PatternsBySource("bob"); len(got) != 1 {
		t.Fatalf("patterns from bob = %+v", got)
	}

	var peers struct {
		Total int `json:"total"`
	}
	doRequest(t, h, http.MethodGet, "/v1/peers", nil, &peers)
	if peers.Total != 1 {
		t.Fatalf("peers total = %d, want 1", peers.Total)
	}
	var pp struct {
		Patterns []model.Pattern `json:"patterns"`
	}
	doRequest(t, h, http.MethodGet, "/v1/peers/bob/patterns", nil, &pp)
	if len(pp.Patterns) != 1 || pp.Patterns[0].ID != "p-bob" {
		t.Fatalf("peer patterns = %+v", pp.Patterns)
	}

	var shared shareResponse
	rec = doRequest(t, h, http.MethodPost, "/v1/share", shareRequest{Patterns: []model.Pattern{designPattern("p-alice")}}, &shared)
	if rec.Code != http.StatusOK || shared.MessageID == "" || len(shared.Entries) != 1 {
		t.Fatalf("share: %d %+v", rec.Code, shared)
	}

	var expired map[string]int
	doRequest(t, h, http.MethodPost, "/v1/expire", nil, &expired)
	if expired["removed"] != 0 {
		t.Fatalf("fresh messages expired: %v", expired)
	}
}

func TestShare_EmptyRejected(t *testing.T) {
	_, _, h := newTestServer(t)
	if rec := doRequest(t, h, http.MethodPost, "/v1/share", shareRequest{}, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQuarantine(t *testing.T) {
	ex := exchange.NewMemory()
	stream := NewEventStream(nil, nil)
	quarantineAll := scan.ScannerFunc(func(_ context.Context, p model.Pattern) (scan.Result, error) {
		return scan.Result{Decision: scan.Quarantine, Cleaned: p, Reasons: []string{"needs review"}}, nil
	})
	srv := New(newTestNode(t, "alice", ex, stream, quarantineAll), stream, nil)
	h := srv.NewHTTPHandler("")

	var shared shareResponse
	doRequest(t, h, http.MethodPost, "/v1/share", shareRequest{Patterns: []model.Pattern{designPattern("p1")}}, &shared)
	if shared.Quarantined != 1 || len(shared.Entries) != 0 {
		t.Fatalf("share = %+v", shared)
	}

	var held struct {
		Held  []scan.Held `json:"held"`
		Total int         `json:"total"`
	}
	doRequest(t, h, http.MethodGet, "/v1/quarantine", nil, &held)
	if held.Total != 1 || held.Held[0].Pattern.ID != "p1" || held.Held[0].Direction != scan.Outbound {
		t.Fatalf("held = %+v", held)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := doRequest(t, h, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "clawnet_") {
		t.Fatalf("metrics output missing clawnet collectors")
	}
}
