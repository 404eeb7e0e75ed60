package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ConceptAdded("short", "event")
	r.ConceptAdded("short", "event")
	r.ConceptAdded("long", "thought")
	r.ConceptRemoved("long")
	r.ImpactCall("fallback")
	r.CacheLookup(false)
	r.Perceived(3)

	body := scrape(t, r)
	assert.Contains(t, body, `reverie_memory_concepts_added_total{kind="event",memory="short"} 2`)
	assert.Contains(t, body, `reverie_memory_concepts_added_total{kind="thought",memory="long"} 1`)
	assert.Contains(t, body, `reverie_memory_concepts_removed_total{memory="long"} 1`)
	assert.Contains(t, body, `reverie_providers_impact_calls_total{outcome="fallback"} 1`)
	assert.Contains(t, body, `reverie_providers_embedding_cache_total{result="miss"} 1`)
	assert.Contains(t, body, `reverie_engine_perceptions_total 3`)
}

func TestRecorderRetrievals(t *testing.T) {
	r := New()
	r.Retrieval("long", 20*time.Millisecond, nil)
	r.Retrieval("long", time.Millisecond, errors.New("boom"))
	r.AgentsLoaded(2)

	body := scrape(t, r)
	assert.Contains(t, body, `reverie_memory_retrievals_total{memory="long",status="error"} 1`)
	assert.Contains(t, body, `reverie_memory_retrievals_total{memory="long",status="ok"} 1`)
	assert.Contains(t, body, `reverie_engine_agents_loaded 2`)
	assert.Contains(t, body, `reverie_memory_retrieval_latency_seconds_count{memory="long"} 2`)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ConceptAdded("short", "event")
	r.Retrieval("short", time.Second, nil)
	r.CacheLookup(true)
	assert.Nil(t, r.Registry())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
