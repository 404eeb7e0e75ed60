package memory

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind identifies what a concept remembers.
type Kind int

const (
	KindEvent Kind = iota
	KindThought
	KindChat

	numKinds
)

// Kinds lists every valid kind in index order.
var Kinds = [numKinds]Kind{KindEvent, KindThought, KindChat}

var kindNames = [numKinds]string{"event", "thought", "chat"}

func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k]
}

// Valid reports whether k is one of the three supported kinds.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

// ParseKind maps "event", "thought" or "chat" to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Kind(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedKind, "%q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedKind, "%d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// idleMarker in a description pins the concept's impact to 1.
const idleMarker = "is idle"

// IsIdle reports whether a description describes an idle state.
func IsIdle(description string) bool {
	return strings.Contains(description, idleMarker)
}

// Concept is one remembered fact, thought or chat turn. It is immutable once
// a Store has created it.
type Concept struct {
	id           int64
	kind         Kind
	depth        int
	created      time.Time
	lastAccessed time.Time

	subject   string
	predicate string
	object    string

	description  string
	embedding    []float64
	impact       int
	keywords     []string
	contributing []int64
}

func (c *Concept) ID() int64               { return c.id }
func (c *Concept) Kind() Kind              { return c.kind }
func (c *Concept) Depth() int              { return c.depth }
func (c *Concept) Created() time.Time      { return c.created }
func (c *Concept) LastAccessed() time.Time { return c.lastAccessed }
func (c *Concept) Subject() string         { return c.subject }
func (c *Concept) Predicate() string       { return c.predicate }
func (c *Concept) Object() string          { return c.object }
func (c *Concept) Description() string     { return c.description }
func (c *Concept) Impact() int             { return c.impact }

// Embedding returns the stored vector. Callers must not modify it.
func (c *Concept) Embedding() []float64 { return c.embedding }

// Keywords returns the lower-cased index keys derived from subject and object.
func (c *Concept) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// Contributing returns the ids this concept was synthesized from.
func (c *Concept) Contributing() []int64 {
	return append([]int64(nil), c.contributing...)
}

// SPOSummary returns the (subject, predicate, object) triple.
func (c *Concept) SPOSummary() (string, string, string) {
	return c.subject, c.predicate, c.object
}

// Equal compares the remembered fact, not the id: two concepts are equal when
// created time, triple and description all match.
func (c *Concept) Equal(o *Concept) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.created.Equal(o.created) &&
		c.subject == o.subject &&
		c.predicate == o.predicate &&
		c.object == o.object &&
		c.description == o.description
}

func (c *Concept) sameTriple(subject, predicate, object string) bool {
	return c.subject == subject && c.predicate == predicate && c.object == object
}

// deriveKeywords takes the last ':'-separated segment of subject and object,
// lower-cased. "the Ville:cafe:counter" becomes "counter".
func deriveKeywords(subject, object string) []string {
	var out []string
	seen := make(map[string]bool, 2)
	for _, s := range []string{subject, object} {
		parts := strings.Split(s, ":")
		kw := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
