package memory

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// TimeLayout is the persisted timestamp format.
const TimeLayout = "2006-01-02 15:04:05"

// NodeRecord is the exchanged shape of one concept. ID is optional on input;
// when present on every node the ids are preserved.
type NodeRecord struct {
	ID          int64     `json:"id,omitempty"`
	Kind        Kind      `json:"kind"`
	Created     string    `json:"created"`
	Subject     string    `json:"subject"`
	Predicate   string    `json:"predicate"`
	Object      string    `json:"object"`
	Description string    `json:"description"`
	Embedding   []float64 `json:"embedding"`
	Impact      int       `json:"impact"`
	Filling     []int64   `json:"filling"`
}

var requiredNodeKeys = []string{
	"kind", "created", "subject", "predicate", "object",
	"description", "embedding", "impact",
}

// UnmarshalJSON rejects nodes that lack a required key.
func (r *NodeRecord) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, requiredNodeKeys); err != nil {
		return err
	}
	type plain NodeRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Wrapf(ErrMalformedRecord, "node: %v", err)
	}
	*r = NodeRecord(p)
	return nil
}

// StoreRecord is the exchanged shape of a whole memory. Which optional fields
// are required depends on the memory being built from it.
type StoreRecord struct {
	Nodes         []NodeRecord `json:"nodes"`
	Currently     *string      `json:"currently,omitempty"`
	AttentionSpan *int         `json:"attention_span,omitempty"`
	LearnedTraits *string      `json:"learned_traits,omitempty"`
}

// UnmarshalJSON rejects stores without a nodes list.
func (r *StoreRecord) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, []string{"nodes"}); err != nil {
		return err
	}
	type plain StoreRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Wrapf(ErrMalformedRecord, "store: %v", err)
	}
	*r = StoreRecord(p)
	return nil
}

func requireKeys(data []byte, keys []string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrapf(ErrMalformedRecord, "%v", err)
	}
	for _, k := range keys {
		if _, ok := raw[k]; !ok {
			return errors.Wrapf(ErrMalformedRecord, "missing key %q", k)
		}
	}
	return nil
}

// FormatTime renders a simulation timestamp in TimeLayout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// simTime is t at the resolution records can carry: UTC, whole seconds.
func simTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ParseTime reads a TimeLayout timestamp as UTC.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.UTC)
}

type loadedNode struct {
	rec     NodeRecord
	created time.Time
}

// load validates every record before inserting any, so a bad node leaves the
// store untouched.
func (s *Store) load(nodes []NodeRecord) error {
	withIDs := 0
	for _, n := range nodes {
		if n.ID > 0 {
			withIDs++
		}
	}
	if withIDs != 0 && withIDs != len(nodes) {
		return errors.Wrap(ErrMalformedRecord, "either every node or no node carries an id")
	}

	loaded := make([]loadedNode, 0, len(nodes))
	seen := make(map[int64]bool, len(nodes))
	for i, n := range nodes {
		if !n.Kind.Valid() {
			return errors.Wrapf(ErrMalformedRecord, "node %d: kind %d", i, int(n.Kind))
		}
		created, err := ParseTime(n.Created)
		if err != nil {
			return errors.Wrapf(ErrMalformedRecord, "node %d: created: %v", i, err)
		}
		if err := validateImpact(n.Impact); err != nil {
			return errors.Wrapf(ErrMalformedRecord, "node %d: %v", i, err)
		}
		if n.Embedding == nil {
			return errors.Wrapf(ErrMalformedRecord, "node %d: missing embedding", i)
		}
		if n.ID > 0 {
			if seen[n.ID] {
				return errors.Wrapf(ErrMalformedRecord, "duplicate node id %d", n.ID)
			}
			seen[n.ID] = true
		}
		loaded = append(loaded, loadedNode{rec: n, created: created})
	}

	if withIDs > 0 {
		sort.SliceStable(loaded, func(i, j int) bool { return loaded[i].rec.ID < loaded[j].rec.ID })
	}
	for _, l := range loaded {
		r := l.rec
		s.insert(r.ID, r.Kind, l.created, r.Subject, r.Predicate, r.Object,
			r.Description, r.Embedding, r.Impact, r.Filling)
	}
	return nil
}

// records exports every concept in id order.
func (s *Store) records() []NodeRecord {
	concepts := s.Concepts()
	out := make([]NodeRecord, 0, len(concepts))
	for _, c := range concepts {
		filling := c.Contributing()
		if filling == nil {
			filling = []int64{}
		}
		out = append(out, NodeRecord{
			ID:          c.id,
			Kind:        c.kind,
			Created:     FormatTime(c.created),
			Subject:     c.subject,
			Predicate:   c.predicate,
			Object:      c.object,
			Description: c.description,
			Embedding:   copyVector(c.embedding),
			Impact:      c.impact,
			Filling:     filling,
		})
	}
	return out
}
