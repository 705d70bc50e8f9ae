// Package agentclient is the hub's HTTP client for calling an agent's
// control endpoint (C5): readiness fetch (used by the scheduler and
// the cache-miss path), health_detailed fetch (used by the health
// poller), and execute dispatch (used by the scheduler). Every call
// takes a context carrying the deadline spec.md §6 assigns to it; a
// deadline expiring is handled identically to any other transport
// error by the caller.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/exostack/exostack/internal/wire"
)

// Client calls a single agent's HTTP surface by host:port.
type Client struct {
	httpClient *http.Client
}

// New builds a Client with a shared *http.Client (connection reuse
// across nodes and calls).
func New() *Client {
	return &Client{httpClient: &http.Client{}}
}

func baseURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

// FetchReadiness calls GET /ai-readiness on the node.
func (c *Client) FetchReadiness(ctx context.Context, host string, port int) (wire.ReadinessSnapshot, error) {
	var snap wire.ReadinessSnapshot
	err := c.getJSON(ctx, baseURL(host, port)+"/ai-readiness", &snap)
	return snap, err
}

// FetchHealthDetailed calls GET /health/detailed on the node.
func (c *Client) FetchHealthDetailed(ctx context.Context, host string, port int) (wire.HealthDetailedResponse, error) {
	var resp wire.HealthDetailedResponse
	err := c.getJSON(ctx, baseURL(host, port)+"/health/detailed", &resp)
	return resp, err
}

// Execute calls POST /tasks/execute on the node.
func (c *Client) Execute(ctx context.Context, host string, port int, req wire.ExecuteRequest) (wire.ExecuteResponse, error) {
	var resp wire.ExecuteResponse
	err := c.postJSON(ctx, baseURL(host, port)+"/tasks/execute", req, &resp)
	return resp, err
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(httpReq, out)
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, out)
}

func (c *Client) do(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling %s: %w", httpReq.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("node returned status %d for %s", resp.StatusCode, httpReq.URL)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", httpReq.URL, err)
	}
	return nil
}
