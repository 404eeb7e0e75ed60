package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var ctxBG = context.Background()

var base = time.Date(2023, time.February, 13, 9, 0, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type countingImpact struct {
	value int
	err   error
	calls int
}

func (p *countingImpact) Impact(_ context.Context, _ Kind, _ string) (int, error) {
	p.calls++
	return p.value, p.err
}

// lengthEmbedder returns a vector derived from the text length so identical
// descriptions embed identically.
type lengthEmbedder struct {
	err   error
	calls int
}

func (e *lengthEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	n := float64(len(text))
	return []float64{n, 1, n / 2}, nil
}

type fixture struct {
	clock    *testClock
	impact   *countingImpact
	embedder *lengthEmbedder
}

func newFixture() *fixture {
	return &fixture{
		clock:    &testClock{now: base},
		impact:   &countingImpact{value: 5},
		embedder: &lengthEmbedder{},
	}
}

func (f *fixture) config() Config {
	return Config{
		Clock:      f.clock.Now,
		Embeddings: f.embedder,
		Impact:     f.impact,
	}
}

func (f *fixture) shortTerm(t *testing.T, span int) *ShortTermMemory {
	t.Helper()
	currently := "drinking coffee"
	m, err := NewShortTermMemory(StoreRecord{Currently: &currently, AttentionSpan: &span}, "Isabella Rodriguez", f.config())
	require.NoError(t, err)
	return m
}

func (f *fixture) longTerm(t *testing.T, limit int) *LongTermMemory {
	t.Helper()
	traits := "Isabella is a friendly cafe owner"
	m, err := NewLongTermMemory(StoreRecord{LearnedTraits: &traits}, limit, f.config())
	require.NoError(t, err)
	return m
}

func addEvent(t *testing.T, s *Store, created time.Time, subject, object string, impact int, emb []float64) *Concept {
	t.Helper()
	c, err := s.AddConcept(context.Background(), ConceptInput{
		Kind:        KindEvent,
		Created:     created,
		Subject:     subject,
		Predicate:   "is",
		Object:      object,
		Description: subject + " is " + object,
		Impact:      impact,
		Embedding:   emb,
	})
	require.NoError(t, err)
	return c
}

// dotScorer scores with a plain dot product so tests can dial exact values.
type dotScorer struct{}

func (dotScorer) Dimensions() int { return 1 }

func (dotScorer) Score(_ time.Time, q []float64, c *Concept) []float64 {
	var d float64
	for i := range q {
		d += q[i] * c.embedding[i]
	}
	return []float64{d}
}
