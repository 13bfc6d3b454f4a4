package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/exchange"
	"github.com/alfredjeanlab/clawnet/internal/gossip"
	"github.com/alfredjeanlab/clawnet/internal/logstore"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/node"
	"github.com/alfredjeanlab/clawnet/internal/scan"
)

var testInterests = model.InterestVector{"design": 0.9, "planning": 0.8}

// steppingClock returns a distinct millisecond on every call.
func steppingClock() func() time.Time {
	var ms atomic.Int64
	ms.Store(1_700_000_000_000)
	return func() time.Time { return time.UnixMilli(ms.Add(1)) }
}

// newTestNode builds a node on ex whose events feed stream.
func newTestNode(t *testing.T, peer string, ex exchange.Exchange, stream *EventStream, scanner scan.Scanner) *node.Node {
	t.Helper()
	ctx := context.Background()
	st, err := logstore.Open(ctx, logstore.Config{PeerID: peer, Now: steppingClock()})
	if err != nil {
		t.Fatalf("logstore.Open: %v", err)
	}
	eng, err := gossip.New(gossip.Config{PeerID: peer, Exchange: ex, Publisher: stream})
	if err != nil {
		t.Fatalf("gossip.New: %v", err)
	}
	n, err := node.New(node.Config{
		Store:     st,
		Engine:    eng,
		Scanner:   scanner,
		Filter:    gossip.DefaultFilter(),
		Interests: testInterests,
		Publisher: stream,
	})
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}
	t.Cleanup(n.Close)
	return n
}

// newTestServer returns a server for peer "alice" on a fresh memory exchange.
func newTestServer(t *testing.T) (*Server, *exchange.Memory, http.Handler) {
	t.Helper()
	ex := exchange.NewMemory()
	stream := NewEventStream(nil, nil)
	srv := New(newTestNode(t, "alice", ex, stream, nil), stream, nil)
	return srv, ex, srv.NewHTTPHandler("")
}

// doRequest sends body to handler and decodes the response into out. A
// string body is sent verbatim; anything else is JSON-encoded.
func doRequest(t *testing.T, handler http.Handler, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if raw, ok := body.(string); ok {
		buf.WriteString(raw)
	} else if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v; body: %s", method, path, err, rec.Body.String())
		}
	}
	return rec
}

func designPattern(id string) model.Pattern {
	return model.Pattern{ID: id, Description: "shape before building", Contexts: []string{"design", "planning"}, Confidence: 0.9}
}

func mustPatternPayload(t *testing.T, p model.Pattern) model.Payload {
	t.Helper()
	payload, err := model.NewPatternPayload(p)
	if err != nil {
		t.Fatalf("NewPatternPayload: %v", err)
	}
	return payload
}
