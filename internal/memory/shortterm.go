package memory

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Fact is one perceived (subject, predicate, object) triple with its sentence.
type Fact struct {
	Subject     string `json:"subject"`
	Predicate   string `json:"predicate"`
	Object      string `json:"object"`
	Description string `json:"description"`
}

// ShortTermWeights weighs (recency, impact, similarity) for short-term recall.
var ShortTermWeights = []float64{1, 2, 2}

// ShortTermScorer decays recency steeply: 1.1^(-4·Δt²) with Δt in days.
type ShortTermScorer struct{}

func (ShortTermScorer) Dimensions() int { return 3 }

func (ShortTermScorer) Score(now time.Time, query []float64, c *Concept) []float64 {
	dt := elapsedDays(now, c.lastAccessed)
	return []float64{
		math.Pow(1.1, -4*dt*dt),
		impactWeight(c.impact),
		CosineSimilarity(query, c.embedding),
	}
}

// impactWeight is an S-curve over impact 1..10 with a floor of 0.2.
func impactWeight(impact int) float64 {
	x := float64(impact - 1)
	num := math.Exp(0.85*x) - math.Exp(0.4*x)
	den := math.Exp(0.8*x) + math.Exp(-0.2*x)
	return 0.5*num/den + 0.2
}

// ShortTermMemory holds what an agent has just perceived.
type ShortTermMemory struct {
	*Store
	self          string
	currently     string
	attentionSpan int
}

// NewShortTermMemory builds a short-term memory from a record. The record
// must carry currently and a positive attention_span. self is the agent's own
// name; facts about self are kept out of ProcessEvents.
func NewShortTermMemory(rec StoreRecord, self string, cfg Config) (*ShortTermMemory, error) {
	if rec.Currently == nil {
		return nil, errors.Wrap(ErrMalformedRecord, "short-term memory: missing currently")
	}
	if rec.AttentionSpan == nil {
		return nil, errors.Wrap(ErrMalformedRecord, "short-term memory: missing attention_span")
	}
	if *rec.AttentionSpan <= 0 {
		return nil, errors.Wrapf(ErrMalformedRecord, "short-term memory: attention_span %d", *rec.AttentionSpan)
	}
	if err := checkArity(ShortTermScorer{}, ShortTermWeights); err != nil {
		return nil, err
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.load(rec.Nodes); err != nil {
		return nil, err
	}
	return &ShortTermMemory{
		Store:         store,
		self:          self,
		currently:     *rec.Currently,
		attentionSpan: *rec.AttentionSpan,
	}, nil
}

func (m *ShortTermMemory) Self() string       { return m.self }
func (m *ShortTermMemory) Currently() string  { return m.currently }
func (m *ShortTermMemory) AttentionSpan() int { return m.attentionSpan }

// SetCurrently replaces the current-activity label.
func (m *ShortTermMemory) SetCurrently(s string) {
	m.currently = s
}

// ProcessEvents stores each perceived fact as an event at the current time,
// skipping facts whose exact triple is already remembered and facts about the
// agent itself. It returns the concepts it created. On a provider error the
// concepts created so far are returned along with the error.
func (m *ShortTermMemory) ProcessEvents(ctx context.Context, facts []Fact) ([]*Concept, error) {
	now := m.Now()
	var created []*Concept
	for _, f := range facts {
		if m.self != "" && f.Subject == m.self {
			m.log.WithField("subject", f.Subject).Debug("skipping self fact; use RecordAction")
			continue
		}
		if m.findEvent(f.Subject, f.Predicate, f.Object) != nil {
			continue
		}
		c, err := m.AddConcept(ctx, ConceptInput{
			Kind:        KindEvent,
			Created:     now,
			Subject:     f.Subject,
			Predicate:   f.Predicate,
			Object:      f.Object,
			Description: f.Description,
		})
		if err != nil {
			return created, err
		}
		created = append(created, c)
	}
	return created, nil
}

// RecordAction registers an action the agent itself starts. The fact's
// subject must be the agent. Repeating the triple of a remembered event
// returns that event instead of creating another.
func (m *ShortTermMemory) RecordAction(ctx context.Context, f Fact) (*Concept, error) {
	if m.self == "" || f.Subject != m.self {
		return nil, errors.Errorf("memory: action subject %q is not %q", f.Subject, m.self)
	}
	if existing := m.findEvent(f.Subject, f.Predicate, f.Object); existing != nil {
		return existing, nil
	}
	c, err := m.AddConcept(ctx, ConceptInput{
		Kind:        KindEvent,
		Created:     m.Now(),
		Subject:     f.Subject,
		Predicate:   f.Predicate,
		Object:      f.Object,
		Description: f.Description,
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"id": c.id, "predicate": f.Predicate}).Debug("recorded action")
	return c, nil
}

func (m *ShortTermMemory) findEvent(subject, predicate, object string) *Concept {
	for _, c := range m.chronological[KindEvent] {
		if c.sameTriple(subject, predicate, object) {
			return c
		}
	}
	return nil
}

// Retrieve ranks every concept against the focal points and keeps at most
// AttentionSpan results.
func (m *ShortTermMemory) Retrieve(queries [][]float64) ([]Ranked, error) {
	ranked, err := m.Rank(queries, ShortTermScorer{}, ShortTermWeights)
	if err != nil {
		return nil, err
	}
	if len(ranked) > m.attentionSpan {
		ranked = ranked[:m.attentionSpan]
	}
	return ranked, nil
}

// RetrieveRelevantConcepts is Retrieve without the scores.
func (m *ShortTermMemory) RetrieveRelevantConcepts(queries [][]float64) ([]*Concept, error) {
	ranked, err := m.Retrieve(queries)
	if err != nil {
		return nil, err
	}
	return conceptsOf(ranked), nil
}

// CurrentEvents returns the concepts created exactly at the current time.
func (m *ShortTermMemory) CurrentEvents() []*Concept {
	now := m.Now()
	var out []*Concept
	for _, c := range m.Concepts() {
		if c.created.Equal(now) {
			out = append(out, c)
		}
	}
	return out
}

// Export returns the memory in its persisted shape.
func (m *ShortTermMemory) Export() StoreRecord {
	currently := m.currently
	span := m.attentionSpan
	return StoreRecord{
		Nodes:         m.records(),
		Currently:     &currently,
		AttentionSpan: &span,
	}
}

func conceptsOf(ranked []Ranked) []*Concept {
	out := make([]*Concept, len(ranked))
	for i, r := range ranked {
		out[i] = r.Concept
	}
	return out
}
