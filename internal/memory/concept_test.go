package memory

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"event", KindEvent, false},
		{"thought", KindThought, false},
		{"Chat", KindChat, false},
		{" event ", KindEvent, false},
		{"dream", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrUnsupportedKind), "ParseKind(%q) err = %v", tt.in, err)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestKindJSON(t *testing.T) {
	b, err := json.Marshal(KindThought)
	require.NoError(t, err)
	assert.Equal(t, `"thought"`, string(b))

	var k Kind
	require.NoError(t, json.Unmarshal([]byte(`"chat"`), &k))
	assert.Equal(t, KindChat, k)

	_, err = json.Marshal(Kind(9))
	assert.Error(t, err)
}

func TestDeriveKeywords(t *testing.T) {
	tests := []struct {
		subject, object string
		want            []string
	}{
		{"the Ville:Hobbs Cafe:cafe:counter", "Isabella Rodriguez", []string{"counter", "isabella rodriguez"}},
		{"Klaus", "klaus", []string{"klaus"}},
		{"desk", "", []string{"desk"}},
		{"", "", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, deriveKeywords(tt.subject, tt.object), "%q/%q", tt.subject, tt.object)
	}
}

func TestIsIdle(t *testing.T) {
	assert.True(t, IsIdle("bed is idle"))
	assert.True(t, IsIdle("the Ville:cafe:stove is idle"))
	assert.False(t, IsIdle("stove is heating"))
}

func TestConceptEqualIgnoresID(t *testing.T) {
	f := newFixture()
	m := f.shortTerm(t, 5)
	a := addEvent(t, m.Store, base, "Klaus", "reading", 3, []float64{1, 0})
	b := addEvent(t, m.Store, base, "Klaus", "reading", 7, []float64{0, 1})

	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, a.Equal(b))

	c := addEvent(t, m.Store, base.Add(1), "Klaus", "reading", 3, []float64{1, 0})
	assert.False(t, a.Equal(c), "different created time")

	s, p, o := a.SPOSummary()
	assert.Equal(t, []string{"Klaus", "is", "reading"}, []string{s, p, o})
}

func TestConceptAccessorsCopy(t *testing.T) {
	f := newFixture()
	m := f.shortTerm(t, 5)
	c, err := m.AddConcept(ctxBG, ConceptInput{
		Kind: KindThought, Created: base, Subject: "Isabella", Predicate: "plans", Object: "party",
		Description: "Isabella plans a party", Impact: 8, Embedding: []float64{1}, Contributing: []int64{42},
	})
	require.NoError(t, err)

	c.Contributing()[0] = 7
	c.Keywords()[0] = "mutated"
	assert.Equal(t, []int64{42}, c.Contributing())
	assert.Equal(t, []string{"isabella", "party"}, c.Keywords())
	assert.Equal(t, base, c.LastAccessed())
}
