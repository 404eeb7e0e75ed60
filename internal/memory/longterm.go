package memory

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// LongTermWeights weighs (recency, impact, similarity) for long-term recall.
// Similarity dominates; recency matters least.
var LongTermWeights = []float64{0.5, 1.5, 3}

const (
	longTermHalfLifeDays = 90.0
	longTermRecencyFloor = 0.1
	longTermImpactFloor  = 0.3
)

// LongTermScorer decays slowly (90-day half-life, never below 0.1) and gives
// every impact level at least 0.3, so old but poignant memories resurface.
type LongTermScorer struct{}

func (LongTermScorer) Dimensions() int { return 3 }

func (LongTermScorer) Score(now time.Time, query []float64, c *Concept) []float64 {
	dt := elapsedDays(now, c.lastAccessed)
	recency := math.Max(longTermRecencyFloor, math.Pow(0.5, dt/longTermHalfLifeDays))
	impact := longTermImpactFloor + (1-longTermImpactFloor)*float64(c.impact-MinImpact)/float64(MaxImpact-MinImpact)
	return []float64{recency, impact, CosineSimilarity(query, c.embedding)}
}

// LongTermMemory is an agent's durable memory plus its learned traits.
type LongTermMemory struct {
	*Store
	learnedTraits string
	recallLimit   int
}

// NewLongTermMemory builds a long-term memory from a record, which must carry
// learned_traits. recallLimit caps retrieval results; 0 means no cap.
func NewLongTermMemory(rec StoreRecord, recallLimit int, cfg Config) (*LongTermMemory, error) {
	if rec.LearnedTraits == nil {
		return nil, errors.Wrap(ErrMalformedRecord, "long-term memory: missing learned_traits")
	}
	if recallLimit < 0 {
		return nil, errors.Errorf("memory: recall limit %d is negative", recallLimit)
	}
	if err := checkArity(LongTermScorer{}, LongTermWeights); err != nil {
		return nil, err
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.load(rec.Nodes); err != nil {
		return nil, err
	}
	return &LongTermMemory{
		Store:         store,
		learnedTraits: *rec.LearnedTraits,
		recallLimit:   recallLimit,
	}, nil
}

func (m *LongTermMemory) LearnedTraits() string { return m.learnedTraits }

// ReviseLearnedTraits replaces the personality drift summary.
func (m *LongTermMemory) ReviseLearnedTraits(traits string) {
	m.learnedTraits = traits
}

// Retrieve ranks every concept against the focal points.
func (m *LongTermMemory) Retrieve(queries [][]float64) ([]Ranked, error) {
	ranked, err := m.Rank(queries, LongTermScorer{}, LongTermWeights)
	if err != nil {
		return nil, err
	}
	if m.recallLimit > 0 && len(ranked) > m.recallLimit {
		ranked = ranked[:m.recallLimit]
	}
	return ranked, nil
}

// RetrieveRelevantConcepts is Retrieve without the scores.
func (m *LongTermMemory) RetrieveRelevantConcepts(queries [][]float64) ([]*Concept, error) {
	ranked, err := m.Retrieve(queries)
	if err != nil {
		return nil, err
	}
	return conceptsOf(ranked), nil
}

// Export returns the memory in its persisted shape.
func (m *LongTermMemory) Export() StoreRecord {
	traits := m.learnedTraits
	return StoreRecord{
		Nodes:         m.records(),
		LearnedTraits: &traits,
	}
}
