package memory

import (
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Scorer produces a fixed-arity vector of relevance components for one
// candidate against one query embedding.
type Scorer interface {
	Dimensions() int
	Score(now time.Time, query []float64, candidate *Concept) []float64
}

// Ranked pairs a concept with its final relevance score.
type Ranked struct {
	Concept *Concept
	Score   float64
}

// parallelThreshold is the candidate count above which scoring fans out.
const parallelThreshold = 512

// checkArity fails when weights cannot be combined with scorer output.
func checkArity(scorer Scorer, weights []float64) error {
	if len(weights) != scorer.Dimensions() {
		return errors.Wrapf(ErrArityMismatch, "scorer has %d dimensions, got %d weights",
			scorer.Dimensions(), len(weights))
	}
	return nil
}

// Rank scores every stored concept against every query and returns them by
// descending score. A candidate's score is the maximum weighted relevance over
// all queries; a candidate whose embedding equals a query is skipped for that
// query, and dropped entirely when it matched every query. Ties go to the
// lower id.
func (s *Store) Rank(queries [][]float64, scorer Scorer, weights []float64) ([]Ranked, error) {
	if err := checkArity(scorer, weights); err != nil {
		return nil, err
	}
	if len(queries) == 0 || len(s.byID) == 0 {
		return nil, nil
	}

	candidates := s.Concepts()
	now := s.Now()
	scores := make([]float64, len(candidates))
	scored := make([]bool, len(candidates))

	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			best := math.Inf(-1)
			for _, q := range queries {
				if sameVector(q, candidates[i].embedding) {
					continue
				}
				r := combine(scorer.Score(now, q, candidates[i]), weights)
				if r > best {
					best = r
				}
				scored[i] = true
			}
			scores[i] = best
		}
	}

	if len(candidates) < parallelThreshold {
		scoreRange(0, len(candidates))
	} else {
		workers := runtime.GOMAXPROCS(0)
		chunk := (len(candidates) + workers - 1) / workers
		var g errgroup.Group
		for lo := 0; lo < len(candidates); lo += chunk {
			lo, hi := lo, min(lo+chunk, len(candidates))
			g.Go(func() error {
				scoreRange(lo, hi)
				return nil
			})
		}
		_ = g.Wait()
	}

	out := make([]Ranked, 0, len(candidates))
	for i, c := range candidates {
		if !scored[i] {
			continue
		}
		out = append(out, Ranked{Concept: c, Score: scores[i]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Concept.id < out[j].Concept.id
	})
	return out, nil
}

func combine(components, weights []float64) float64 {
	var total float64
	for i, w := range weights {
		total += components[i] * w
	}
	return total
}

func sameVector(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths, empty vectors and zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// elapsedDays converts the gap between now and t to days, never negative.
func elapsedDays(now, t time.Time) float64 {
	d := now.Sub(t).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}
