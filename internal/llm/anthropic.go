package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// Anthropic rates impact through the Anthropic Messages API.
type Anthropic struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

// NewAnthropic creates a client. An empty baseURL uses api.anthropic.com.
func NewAnthropic(apiKey, baseURL, model string) *Anthropic {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &Anthropic{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/messages",
		http:     newHTTPClient(),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt as one user message and returns the first text
// block of the answer.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (*Response, error) {
	header := http.Header{}
	header.Set("x-api-key", a.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var out anthropicResponse
	err := postJSON(ctx, a.http, "anthropic", a.endpoint, header, anthropicRequest{
		Model:       a.model,
		MaxTokens:   ratingMaxTokens,
		Temperature: ratingTemperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}, &out)
	if err != nil {
		return nil, err
	}

	for _, block := range out.Content {
		if block.Type == "text" {
			return &Response{
				Content:    strings.TrimSpace(block.Text),
				Provider:   "anthropic",
				TokensUsed: out.Usage.InputTokens + out.Usage.OutputTokens,
			}, nil
		}
	}
	return nil, fmt.Errorf("anthropic api: no text in response (stop_reason %q)", out.StopReason)
}
