package engine

import (
	"github.com/lazypower/reverie/internal/memory"
)

// ConceptView is the JSON shape of a concept returned by the engine.
type ConceptView struct {
	ID           int64    `json:"id"`
	Kind         string   `json:"kind"`
	Created      string   `json:"created"`
	LastAccessed string   `json:"last_accessed"`
	Subject      string   `json:"subject"`
	Predicate    string   `json:"predicate"`
	Object       string   `json:"object"`
	Description  string   `json:"description"`
	Impact       int      `json:"impact"`
	Depth        int      `json:"depth"`
	Keywords     []string `json:"keywords"`
	Filling      []int64  `json:"filling"`
	Score        *float64 `json:"score,omitempty"`
}

func viewOf(c *memory.Concept) ConceptView {
	filling := c.Contributing()
	if filling == nil {
		filling = []int64{}
	}
	keywords := c.Keywords()
	if keywords == nil {
		keywords = []string{}
	}
	return ConceptView{
		ID:           c.ID(),
		Kind:         c.Kind().String(),
		Created:      memory.FormatTime(c.Created()),
		LastAccessed: memory.FormatTime(c.LastAccessed()),
		Subject:      c.Subject(),
		Predicate:    c.Predicate(),
		Object:       c.Object(),
		Description:  c.Description(),
		Impact:       c.Impact(),
		Depth:        c.Depth(),
		Keywords:     keywords,
		Filling:      filling,
	}
}

func viewsOf(cs []*memory.Concept) []ConceptView {
	out := make([]ConceptView, len(cs))
	for i, c := range cs {
		out[i] = viewOf(c)
	}
	return out
}

func rankedViews(rs []memory.Ranked) []ConceptView {
	out := make([]ConceptView, len(rs))
	for i, r := range rs {
		score := r.Score
		out[i] = viewOf(r.Concept)
		out[i].Score = &score
	}
	return out
}
