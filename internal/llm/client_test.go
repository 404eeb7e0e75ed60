package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/lazypower/reverie/internal/config"
)

func TestNewClientClaudeCLI(t *testing.T) {
	cfg := config.LLMConfig{Provider: "claude-cli", Model: "haiku"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*ClaudeCLI); !ok {
		t.Errorf("expected *ClaudeCLI, got %T", client)
	}
}

func TestNewClientAnthropic(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key", Model: "claude-haiku-4-5-20251001"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Anthropic); !ok {
		t.Errorf("expected *Anthropic, got %T", client)
	}
}

func TestNewClientAnthropicMissingKey(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic"}
	_, err := NewClient(cfg)
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientOllama(t *testing.T) {
	cfg := config.LLMConfig{Provider: "ollama", OllamaModel: "llama3.2"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Ollama); !ok {
		t.Errorf("expected *Ollama, got %T", client)
	}
}

func TestNewClientOpenAI(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "openai", OpenAIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	o, ok := client.(*OpenAI)
	if !ok {
		t.Fatalf("expected *OpenAI, got %T", client)
	}
	if o.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", o.model)
	}

	if _, err := NewClient(config.LLMConfig{Provider: "openai"}); err == nil {
		t.Error("expected error without key or base url")
	}
}

func TestNewClientUnknown(t *testing.T) {
	cfg := config.LLMConfig{Provider: "gpt"}
	_, err := NewClient(cfg)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFilterEnv(t *testing.T) {
	env := []string{
		"HOME=/home/user",
		"CLAUDE_SESSION_ID=abc123",
		"CLAUDE_TRANSCRIPT=/tmp/t.jsonl",
		"PATH=/usr/bin",
	}
	filtered := filterEnv(env)
	if len(filtered) != 2 {
		t.Errorf("expected 2 vars, got %d: %v", len(filtered), filtered)
	}
	for _, e := range filtered {
		if e == "CLAUDE_SESSION_ID=abc123" || e == "CLAUDE_TRANSCRIPT=/tmp/t.jsonl" {
			t.Errorf("CLAUDE_ var not filtered: %s", e)
		}
	}
}

func TestImpactPrompt(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"event", "event: Klaus is reading"},
		{"thought", "thought: Klaus is reading"},
		{"chat", "conversation: Klaus is reading"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			p := ImpactPrompt(tt.kind, "Isabella Rodriguez", "Isabella runs Hobbs Cafe.", "Klaus is reading")
			if !strings.Contains(p, tt.want) {
				t.Errorf("prompt missing %q:\n%s", tt.want, p)
			}
			if !strings.Contains(p, "Isabella runs Hobbs Cafe.") {
				t.Error("prompt missing identity")
			}
			if !strings.Contains(p, "ONE integer between 1 and 10") {
				t.Error("prompt missing output rule")
			}
		})
	}

	p := ImpactPrompt("event", "Klaus", "", "x")
	if !strings.Contains(p, "Klaus has no further description.") {
		t.Error("empty identity should get a placeholder")
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), "test prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("content = %q, want %q", resp.Content, "test response")
	}
	if len(mock.Calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(mock.Calls))
	}
	if mock.Calls[0] != "test prompt" {
		t.Errorf("call[0] = %q, want %q", mock.Calls[0], "test prompt")
	}
}

func TestMockClientSequence(t *testing.T) {
	mock := &MockClient{Responses: []*Response{
		{Content: "maybe"},
		{Content: "7"},
	}}
	for _, want := range []string{"maybe", "7", "7"} {
		resp, err := mock.Complete(context.Background(), "p")
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if resp.Content != want {
			t.Errorf("content = %q, want %q", resp.Content, want)
		}
	}
}
