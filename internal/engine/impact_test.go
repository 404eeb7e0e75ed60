package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/reverie/internal/llm"
	"github.com/lazypower/reverie/internal/memory"
)

func TestParseImpact(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"7", 7, true},
		{" 3\n", 3, true},
		{"9.", 9, true},
		{"-2", -2, true},
		{"12", 12, true},
		{"seven", 0, false},
		{"Rating: 5", 0, false},
		{"5 out of 10", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseImpact(tt.in)
		assert.Equal(t, tt.ok, ok, "parseImpact(%q)", tt.in)
		assert.Equal(t, tt.want, got, "parseImpact(%q)", tt.in)
	}
}

func responses(contents ...string) []*llm.Response {
	out := make([]*llm.Response, len(contents))
	for i, c := range contents {
		out[i] = &llm.Response{Content: c}
	}
	return out
}

func TestLLMImpactRetries(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		want    int
		calls   int
	}{
		{"first answer", []string{"6"}, 6, 1},
		{"second answer", []string{"I think", "8"}, 8, 2},
		{"fallback", []string{"hmm", "maybe", "dunno", "5"}, FallbackImpact, 3},
		{"clamped high", []string{"15"}, memory.MaxImpact, 1},
		{"clamped low", []string{"0"}, memory.MinImpact, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &llm.MockClient{Responses: responses(tt.answers...)}
			p := &LLMImpact{Client: mock, Agent: "Klaus"}

			got, err := p.Impact(context.Background(), memory.KindEvent, "Maria is drinking coffee")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, mock.Calls, tt.calls)
		})
	}
}

func TestLLMImpactPrompt(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "3"}}
	p := &LLMImpact{
		Client:   mock,
		Agent:    "Klaus",
		Identity: func() string { return "Klaus studies gentrification." },
	}

	_, err := p.Impact(context.Background(), memory.KindChat, "Maria asked about the party")
	require.NoError(t, err)
	require.Len(t, mock.Calls, 1)
	prompt := mock.Calls[0]
	assert.Contains(t, prompt, "Klaus studies gentrification.")
	assert.Contains(t, prompt, "conversation: Maria asked about the party")
	assert.True(t, strings.HasSuffix(prompt, "Rating:"))
}

func TestLLMImpactTransportFailure(t *testing.T) {
	boom := fmt.Errorf("timeout")
	mock := &llm.MockClient{Err: boom}
	p := &LLMImpact{Client: mock, Agent: "Klaus"}

	_, err := p.Impact(context.Background(), memory.KindThought, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, mock.Calls, 1, "transport errors are not retried")
}

func TestFixedImpact(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{4, 4}, {0, 1}, {20, 10}} {
		got, err := FixedImpact(tt.in).Impact(context.Background(), memory.KindEvent, "x")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
