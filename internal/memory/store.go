package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Clock supplies simulation time. The store never reads the wall clock.
type Clock func() time.Time

// EmbeddingProvider turns a description into a vector. It must be
// deterministic for identical text under a fixed model.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ImpactProvider rates how poignant a description is, from 1 to 10.
type ImpactProvider interface {
	Impact(ctx context.Context, kind Kind, description string) (int, error)
}

// Config wires a store to its collaborators. Clock is required; the providers
// are only needed when concepts are added without an impact or embedding.
type Config struct {
	Clock      Clock
	Embeddings EmbeddingProvider
	Impact     ImpactProvider
	Logger     *logrus.Entry
}

// ConceptInput describes a concept to create. A zero Impact or nil Embedding
// is derived through the configured providers.
type ConceptInput struct {
	Kind         Kind
	Created      time.Time
	Subject      string
	Predicate    string
	Object       string
	Description  string
	Contributing []int64
	Impact       int
	Embedding    []float64
}

const (
	MinImpact = 1
	MaxImpact = 10
)

// Store owns concepts and their per-kind indices. It is not safe for
// concurrent use; each agent owns its stores exclusively.
type Store struct {
	clock      Clock
	embeddings EmbeddingProvider
	impact     ImpactProvider
	log        *logrus.Entry

	nextID        int64
	byID          map[int64]*Concept
	chronological [numKinds][]*Concept
	keywordIndex  [numKinds]map[string][]*Concept
}

func newStore(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, errors.New("memory: clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.WithField("component", "memory")
	}
	s := &Store{
		clock:      cfg.Clock,
		embeddings: cfg.Embeddings,
		impact:     cfg.Impact,
		log:        logger,
		nextID:     1,
		byID:       make(map[int64]*Concept),
	}
	for i := range s.keywordIndex {
		s.keywordIndex[i] = make(map[string][]*Concept)
	}
	return s, nil
}

// Now returns the current simulation time in UTC, truncated to the second.
func (s *Store) Now() time.Time {
	return simTime(s.clock())
}

// AddConcept creates a new concept. It never deduplicates; callers that want
// fact-level dedup must check before calling. Provider errors are returned as is.
func (s *Store) AddConcept(ctx context.Context, in ConceptInput) (*Concept, error) {
	if !in.Kind.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedKind, "%d", int(in.Kind))
	}

	impact := in.Impact
	switch {
	case IsIdle(in.Description):
		impact = MinImpact
	case impact != 0:
		if err := validateImpact(impact); err != nil {
			return nil, err
		}
	default:
		if s.impact == nil {
			return nil, errors.New("memory: no impact provider configured")
		}
		v, err := s.impact.Impact(ctx, in.Kind, in.Description)
		if err != nil {
			return nil, err
		}
		impact = clampImpact(v)
	}

	embedding := in.Embedding
	if embedding == nil {
		if s.embeddings == nil {
			return nil, errors.New("memory: no embedding provider configured")
		}
		v, err := s.embeddings.Embed(ctx, in.Description)
		if err != nil {
			return nil, err
		}
		embedding = v
	}

	c := s.insert(0, in.Kind, simTime(in.Created), in.Subject, in.Predicate, in.Object,
		in.Description, embedding, impact, in.Contributing)
	s.log.WithFields(logrus.Fields{
		"id":     c.id,
		"kind":   c.kind.String(),
		"impact": c.impact,
	}).Debugf("added concept %q", c.description)
	return c, nil
}

// insert registers a fully specified concept. id 0 assigns the next id.
func (s *Store) insert(id int64, kind Kind, created time.Time,
	subject, predicate, object, description string,
	embedding []float64, impact int, contributing []int64) *Concept {
	if id == 0 {
		id = s.nextID
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}

	c := &Concept{
		id:           id,
		kind:         kind,
		created:      created,
		lastAccessed: created,
		subject:      subject,
		predicate:    predicate,
		object:       object,
		description:  description,
		embedding:    copyVector(embedding),
		impact:       impact,
		keywords:     deriveKeywords(subject, object),
		contributing: append([]int64(nil), contributing...),
	}
	if kind == KindThought {
		c.depth = 1
		for _, cid := range contributing {
			if src, ok := s.byID[cid]; ok && src.depth+1 > c.depth {
				c.depth = src.depth + 1
			}
		}
	}

	s.byID[id] = c
	s.chronological[kind] = append([]*Concept{c}, s.chronological[kind]...)
	for _, kw := range c.keywords {
		s.keywordIndex[kind][kw] = append([]*Concept{c}, s.keywordIndex[kind][kw]...)
	}
	return c
}

// RemoveConcept drops a concept from every index. Removing an unknown or
// already removed id fails with ErrNotFound.
func (s *Store) RemoveConcept(id int64) error {
	c, ok := s.byID[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "id %d", id)
	}
	delete(s.byID, id)
	s.chronological[c.kind] = without(s.chronological[c.kind], c)
	for _, kw := range c.keywords {
		bucket := without(s.keywordIndex[c.kind][kw], c)
		if len(bucket) == 0 {
			delete(s.keywordIndex[c.kind], kw)
			continue
		}
		s.keywordIndex[c.kind][kw] = bucket
	}
	s.log.WithField("id", id).Debug("removed concept")
	return nil
}

func without(list []*Concept, c *Concept) []*Concept {
	for i, n := range list {
		if n == c {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// Get returns the concept with the given id.
func (s *Store) Get(id int64) (*Concept, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Len returns the number of stored concepts.
func (s *Store) Len() int {
	return len(s.byID)
}

// Concepts returns every stored concept ordered by id.
func (s *Store) Concepts() []*Concept {
	out := make([]*Concept, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Latest returns up to n concepts of a kind, most recently added first.
// n <= 0 returns all of them.
func (s *Store) Latest(kind Kind, n int) []*Concept {
	if !kind.Valid() {
		return nil
	}
	list := s.chronological[kind]
	if n > 0 && n < len(list) {
		list = list[:n]
	}
	return append([]*Concept(nil), list...)
}

// ByKeyword returns the concepts of a kind indexed under keyword, newest first.
func (s *Store) ByKeyword(kind Kind, keyword string) []*Concept {
	if !kind.Valid() {
		return nil
	}
	return append([]*Concept(nil), s.keywordIndex[kind][strings.ToLower(keyword)]...)
}

func validateImpact(v int) error {
	if v < MinImpact || v > MaxImpact {
		return errors.Errorf("memory: impact %d outside [%d,%d]", v, MinImpact, MaxImpact)
	}
	return nil
}

func clampImpact(v int) int {
	if v < MinImpact {
		return MinImpact
	}
	if v > MaxImpact {
		return MaxImpact
	}
	return v
}

func copyVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
