package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lazypower/reverie/internal/clock"
	"github.com/lazypower/reverie/internal/config"
	"github.com/lazypower/reverie/internal/llm"
	"github.com/lazypower/reverie/internal/store"
)

var base = time.Date(2023, 2, 13, 9, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testEngine wires an engine to db with a word embedder and a clock at base.
// A nil client rates everything FallbackImpact.
func testEngine(t *testing.T, db *store.DB, client llm.Client) *Engine {
	t.Helper()
	e := New(db, client, clock.New(base, time.Minute), config.Default().Memory)
	e.SetEmbedder(newWordEmbedder())
	return e
}

var testVocab = []string{
	"coffee", "cafe", "party", "paper", "research",
	"physics", "library", "sleep", "painting", "music",
}

// wordEmbedder marks which vocabulary words appear in the text, plus a
// constant bias so no vector is all zeros.
type wordEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func newWordEmbedder() *wordEmbedder { return &wordEmbedder{} }

func (w *wordEmbedder) Model() string   { return "words" }
func (w *wordEmbedder) Dimensions() int { return len(testVocab) + 1 }

func (w *wordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	vec := make([]float64, len(testVocab)+1)
	words := strings.Fields(strings.ToLower(text))
	for i, v := range testVocab {
		for _, word := range words {
			if strings.Trim(word, ".,!?'") == v {
				vec[i] = 1
			}
		}
	}
	vec[len(testVocab)] = 0.1
	return vec, nil
}

func (w *wordEmbedder) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}
