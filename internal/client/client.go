// Package client talks to a running reverie server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lazypower/reverie/internal/engine"
	"github.com/lazypower/reverie/internal/memory"
)

const (
	DefaultURL  = "http://127.0.0.1:37778"
	httpTimeout = 90 * time.Second
)

// Client is an HTTP client for the reverie API.
type Client struct {
	http      *http.Client
	serverURL string
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// New creates a client for serverURL. An empty serverURL uses REVERIE_URL,
// then DefaultURL.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("REVERIE_URL")
	}
	if serverURL == "" {
		serverURL = DefaultURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
	}
}

// URL returns the server base URL.
func (c *Client) URL() string { return c.serverURL }

// raw sends a request and returns the response body. body is sent as-is.
func (c *Client) raw(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(data))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return data, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: msg}
	}
	return data, nil
}

// do encodes in as JSON (when non-nil) and decodes the answer into out
// (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}
	data, err := c.raw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil) == nil
}

// ClockState is the server's simulation clock.
type ClockState struct {
	Now   string `json:"now"`
	Ticks int64  `json:"ticks"`
}

// Clock reads the simulation clock.
func (c *Client) Clock(ctx context.Context) (*ClockState, error) {
	var out ClockState
	if err := c.do(ctx, http.MethodGet, "/api/clock", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tick advances the simulation clock by steps.
func (c *Client) Tick(ctx context.Context, steps int) (*ClockState, error) {
	var out ClockState
	in := map[string]int{"steps": steps}
	if err := c.do(ctx, http.MethodPost, "/api/clock/tick", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Agents lists every agent.
func (c *Client) Agents(ctx context.Context) ([]engine.AgentInfo, error) {
	var out struct {
		Agents []engine.AgentInfo `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/agents", nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// CreateAgent creates an agent with empty memories.
func (c *Client) CreateAgent(ctx context.Context, name, currently string, attentionSpan int, learnedTraits string) (*engine.AgentInfo, error) {
	in := map[string]any{
		"name":           name,
		"currently":      currently,
		"attention_span": attentionSpan,
		"learned_traits": learnedTraits,
	}
	var out engine.AgentInfo
	if err := c.do(ctx, http.MethodPost, "/api/agents", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Perceive sends facts to an agent's short-term memory.
func (c *Client) Perceive(ctx context.Context, name string, facts []memory.Fact) (*engine.PerceiveResult, error) {
	var out engine.PerceiveResult
	in := map[string]any{"facts": facts}
	if err := c.do(ctx, http.MethodPost, agentPath(name, "/perceive"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Retrieve ranks one of an agent's memories against the focal points.
func (c *Client) Retrieve(ctx context.Context, name, which string, focalPoints []string) ([]engine.ConceptView, error) {
	in := map[string]any{"memory": which, "focal_points": focalPoints}
	var out struct {
		Results []engine.ConceptView `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, agentPath(name, "/retrieve"), in, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Forget removes a concept from one of an agent's memories.
func (c *Client) Forget(ctx context.Context, name, which string, id int64) error {
	path := agentPath(name, fmt.Sprintf("/concepts/%d?memory=%s", id, url.QueryEscape(which)))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Export returns an agent's memories as the JSON document import accepts.
func (c *Client) Export(ctx context.Context, name string) ([]byte, error) {
	return c.raw(ctx, http.MethodGet, agentPath(name, "/export"), nil)
}

// Import replaces an agent's memories with an exported document, creating
// the agent if needed.
func (c *Client) Import(ctx context.Context, name string, doc []byte) (*engine.AgentInfo, error) {
	data, err := c.raw(ctx, http.MethodPut, agentPath(name, "/import"), doc)
	if err != nil {
		return nil, err
	}
	var out engine.AgentInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	return &out, nil
}

func agentPath(name, suffix string) string {
	return "/api/agents/" + url.PathEscape(name) + suffix
}
