package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIComplete(t *testing.T) {
	var gotModel, gotPrompt string
	var gotMaxTokens int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		var req struct {
			MaxTokens int    `json:"max_tokens"`
			Model     string `json:"model"`
			Messages  []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		gotMaxTokens = req.MaxTokens
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"6"}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	client := NewOpenAI("sk-test", srv.URL, "gpt-4o-mini")
	resp, err := client.Complete(context.Background(), "rate this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "6" || resp.Provider != "openai" || resp.TokensUsed != 12 {
		t.Errorf("resp = %+v", resp)
	}
	if gotModel != "gpt-4o-mini" || gotPrompt != "rate this" {
		t.Errorf("request model=%q prompt=%q", gotModel, gotPrompt)
	}
	if gotMaxTokens != ratingMaxTokens {
		t.Errorf("max_tokens = %d, want %d", gotMaxTokens, ratingMaxTokens)
	}
}

func TestOpenAICompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAI("sk-test", srv.URL, "gpt-4o-mini")
	if _, err := client.Complete(context.Background(), "rate this"); err == nil {
		t.Fatal("expected error for 500")
	}
}
