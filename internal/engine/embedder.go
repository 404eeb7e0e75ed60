package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embedder generates vector embeddings for text. Every Embedder satisfies
// memory.EmbeddingProvider; Model names the vector space so cached and stored
// vectors from different models are never mixed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
	Dimensions() int
}

// AgentScoped is implemented by embedders whose vector space depends on the
// agent, such as a TF-IDF vocabulary drawn from that agent's memories.
type AgentScoped interface {
	ForAgent(name string) (Embedder, error)
}

// embedderFor returns the embedder an agent's memories and focal points use.
func (e *Engine) embedderFor(name string) (Embedder, error) {
	if scoped, ok := e.Embedder.(AgentScoped); ok {
		return scoped.ForAgent(name)
	}
	return e.Embedder, nil
}

// OllamaEmbedder uses Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	endpoint string
	model    string
	dims     int
	http     *http.Client
}

// NewOllamaEmbedder creates an embedder for model served at baseURL. dims is
// a hint until the first vector arrives.
func NewOllamaEmbedder(baseURL, model string, dims int) *OllamaEmbedder {
	return &OllamaEmbedder{
		endpoint: baseURL + "/api/embed",
		model:    model,
		dims:     dims,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *OllamaEmbedder) Model() string   { return "ollama:" + o.model }
func (o *OllamaEmbedder) Dimensions() int { return o.dims }

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns the vector for one concept description or focal point.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := ollamaEmbed(ctx, o.http, o.endpoint, o.model, text)
	if err != nil {
		return nil, err
	}
	o.dims = len(vec)
	return vec, nil
}

func ollamaEmbed(ctx context.Context, c *http.Client, endpoint, model, text string) ([]float64, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	var out ollamaEmbedResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(data, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("ollama embed status %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("ollama embed status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings for %s", model)
	}
	return out.Embeddings[0], nil
}

// OllamaAvailable reports whether baseURL can embed with model. A pulled
// model that cannot embed reports false.
func OllamaAvailable(ctx context.Context, baseURL, model string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := ollamaEmbed(ctx, http.DefaultClient, baseURL+"/api/embed", model, "agent is idle")
	return err == nil
}
