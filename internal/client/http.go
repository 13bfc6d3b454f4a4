package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/node"
	"github.com/alfredjeanlab/clawnet/internal/presence"
	"github.com/alfredjeanlab/clawnet/internal/scan"
)

// HTTPClient implements Client using the clawnet HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*node.Stats, error) {
	var stats node.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// --- Log Store ---

func (c *HTTPClient) ListPatterns(ctx context.Context, req *ListPatternsRequest) ([]model.PatternRecord, error) {
	q := url.Values{}
	if req != nil {
		if req.Source != "" {
			q.Set("source", req.Source)
		}
		if req.Limit > 0 {
			q.Set("limit", strconv.Itoa(req.Limit))
		}
	}
	path := "/v1/patterns"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Patterns []model.PatternRecord `json:"patterns"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Patterns, nil
}

func (c *HTTPClient) GetPattern(ctx context.Context, entryID string) (*model.PatternRecord, error) {
	var rec model.PatternRecord
	if err := c.doJSON(ctx, http.MethodGet, "/v1/patterns/"+url.PathEscape(entryID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) LogSince(ctx context.Context, since int64) (*LogResponse, error) {
	path := "/v1/log"
	if since > 0 {
		path += "?since=" + strconv.FormatInt(since, 10)
	}
	var resp LogResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export streams the JSONL export to w.
func (c *HTTPClient) Export(ctx context.Context, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/v1/log/export", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	return nil
}

func (c *HTTPClient) Append(ctx context.Context, payload model.Payload) (*AppendResponse, error) {
	body := map[string]any{"payload": payload}
	var resp AppendResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/entries", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Merge(ctx context.Context, remotePeer string, entries []model.LogEntry) (*MergeResponse, error) {
	body := map[string]any{"remote_peer": remotePeer, "entries": entries}
	var resp MergeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/merge", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Gossip ---

func (c *HTTPClient) Share(ctx context.Context, patterns []model.Pattern) (*ShareResponse, error) {
	body := map[string]any{"patterns": patterns}
	var resp ShareResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/share", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Sync(ctx context.Context) (*node.SyncResult, error) {
	var res node.SyncResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sync", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Expire(ctx context.Context) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/expire", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (c *HTTPClient) Peers(ctx context.Context, stale time.Duration) ([]presence.PeerRecord, error) {
	path := "/v1/peers"
	if secs := int(stale.Seconds()); secs > 0 {
		path += "?stale_threshold_secs=" + strconv.Itoa(secs)
	}
	var resp struct {
		Peers []presence.PeerRecord `json:"peers"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

func (c *HTTPClient) PeerPatterns(ctx context.Context, peer string) ([]model.Pattern, error) {
	var resp struct {
		Patterns []model.Pattern `json:"patterns"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/peers/"+url.PathEscape(peer)+"/patterns", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Patterns, nil
}

func (c *HTTPClient) Quarantine(ctx context.Context) ([]scan.Held, error) {
	var resp struct {
		Held []scan.Held `json:"held"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/quarantine", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Held, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func apiError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}

// do sends a request with an optional JSON body.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	return resp, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode >= 400 {
		return apiError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
