package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/lazypower/reverie/internal/store"
)

// minAgentDocs is how many descriptions an agent needs before it gets a
// vocabulary of its own instead of the shared one.
const minAgentDocs = 8

// TFIDFEmbedder embeds text as augmented term frequency times smoothed IDF
// over a fixed vocabulary, L2 normalized.
type TFIDFEmbedder struct {
	model string
	terms map[string]int // term -> vector position
	idf   []float64
}

// NewTFIDFEmbedderFromDocs builds an embedder whose vocabulary is the
// maxTerms terms found in the most docs.
func NewTFIDFEmbedderFromDocs(docs []string, maxTerms int) *TFIDFEmbedder {
	return newTFIDF("tfidf", docs, maxTerms)
}

func newTFIDF(model string, docs []string, maxTerms int) *TFIDFEmbedder {
	if maxTerms <= 0 {
		maxTerms = 512
	}

	df := make(map[string]int)
	for _, doc := range docs {
		for term := range termCounts(doc) {
			df[term]++
		}
	}
	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if df[vocab[i]] != df[vocab[j]] {
			return df[vocab[i]] > df[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if len(vocab) > maxTerms {
		vocab = vocab[:maxTerms]
	}

	n := math.Max(float64(len(docs)), 1)
	t := &TFIDFEmbedder{
		model: model,
		terms: make(map[string]int, len(vocab)),
		// An empty corpus still yields one-dimensional zero vectors.
		idf: make([]float64, max(len(vocab), 1)),
	}
	for i, term := range vocab {
		t.terms[term] = i
		t.idf[i] = math.Log(n/float64(df[term])) + 1
	}
	return t
}

func (t *TFIDFEmbedder) Model() string   { return t.model }
func (t *TFIDFEmbedder) Dimensions() int { return len(t.idf) }

// Embed never fails; text with no known terms maps to the zero vector.
func (t *TFIDFEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, len(t.idf))
	counts := termCounts(text)
	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}
	for term, c := range counts {
		i, ok := t.terms[term]
		if !ok {
			continue
		}
		vec[i] = (0.5 + 0.5*float64(c)/float64(peak)) * t.idf[i]
	}
	normalize(vec)
	return vec, nil
}

// TFIDFIndex hands each agent a TF-IDF embedder over its own concept
// descriptions. Agents with fewer than minAgentDocs descriptions share a
// vocabulary drawn from every agent. An agent's embedder is fixed the first
// time it is asked for, so its stored vectors stay comparable.
type TFIDFIndex struct {
	db       *store.DB
	maxTerms int
	shared   *TFIDFEmbedder

	mu     sync.Mutex
	agents map[string]*TFIDFEmbedder
}

// NewTFIDFIndex builds the shared vocabulary from the descriptions already
// stored.
func NewTFIDFIndex(db *store.DB, maxTerms int) (*TFIDFIndex, error) {
	docs, err := db.ConceptDescriptions("", 0)
	if err != nil {
		return nil, fmt.Errorf("load descriptions for tfidf: %w", err)
	}
	return &TFIDFIndex{
		db:       db,
		maxTerms: maxTerms,
		shared:   newTFIDF("tfidf", docs, maxTerms),
		agents:   make(map[string]*TFIDFEmbedder),
	}, nil
}

func (x *TFIDFIndex) Model() string   { return x.shared.Model() }
func (x *TFIDFIndex) Dimensions() int { return x.shared.Dimensions() }

// Embed uses the shared vocabulary.
func (x *TFIDFIndex) Embed(ctx context.Context, text string) ([]float64, error) {
	return x.shared.Embed(ctx, text)
}

// ForAgent returns the embedder for name's memories and focal points.
func (x *TFIDFIndex) ForAgent(name string) (Embedder, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if emb, ok := x.agents[name]; ok {
		return emb, nil
	}
	docs, err := x.db.ConceptDescriptions(name, 0)
	if err != nil {
		return nil, fmt.Errorf("load %s descriptions for tfidf: %w", name, err)
	}
	emb := x.shared
	if len(docs) >= minAgentDocs {
		emb = newTFIDF("tfidf:"+name, docs, x.maxTerms)
	}
	x.agents[name] = emb
	return emb, nil
}

// stopwords are the connectives every "<subject> is <object>" description
// carries.
var stopwords = map[string]bool{
	"is": true, "are": true, "was": true, "the": true, "an": true,
	"at": true, "of": true, "to": true, "in": true, "on": true,
	"and": true, "with": true, "for": true,
}

// tokenize lowercases text and splits it on anything but letters, digits,
// hyphens and underscores, so "the Ville:Hobbs Cafe" yields its place names.
// Single characters and stopwords are dropped.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 && !stopwords[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokenize(text) {
		counts[tok]++
	}
	return counts
}

// normalize scales vec to unit length in place. The zero vector is left alone.
func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
