package llm

import (
	"context"
	"net/http"
	"strings"
)

// Ollama rates impact with a local Ollama model.
type Ollama struct {
	endpoint string
	model    string
	http     *http.Client
}

// NewOllama creates a client for the Ollama server at url.
func NewOllama(url, model string) *Ollama {
	return &Ollama{
		endpoint: strings.TrimRight(url, "/") + "/api/generate",
		model:    model,
		http:     newHTTPClient(),
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Complete sends a non-streaming generate request.
func (o *Ollama) Complete(ctx context.Context, prompt string) (*Response, error) {
	var out ollamaResponse
	err := postJSON(ctx, o.http, "ollama", o.endpoint, nil, ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		Options: ollamaOptions{
			Temperature: ratingTemperature,
			NumPredict:  ratingMaxTokens,
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &Response{
		Content:    strings.TrimSpace(out.Response),
		Provider:   "ollama",
		TokensUsed: out.PromptEvalCount + out.EvalCount,
	}, nil
}
