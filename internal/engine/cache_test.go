package engine

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/reverie/internal/metrics"
)

func TestCachedEmbedder(t *testing.T) {
	inner := newWordEmbedder()
	rec := metrics.New()
	c, err := NewCachedEmbedder(inner, 100, rec)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, inner.Model(), c.Model())
	assert.Equal(t, inner.Dimensions(), c.Dimensions())

	first, err := c.Embed(context.Background(), "coffee at the cafe")
	require.NoError(t, err)
	c.Wait()

	// Callers may scribble on what they get back.
	first[0] = 42

	second, err := c.Embed(context.Background(), "coffee at the cafe")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.Calls())
	assert.Equal(t, 1.0, second[0])

	_, err = c.Embed(context.Background(), "music")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), `reverie_providers_embedding_cache_total{result="hit"} 1`)
	assert.Contains(t, string(body), `reverie_providers_embedding_cache_total{result="miss"} 2`)
}

func TestCachedEmbedderErrorsNotCached(t *testing.T) {
	inner := newWordEmbedder()
	inner.err = fmt.Errorf("down")
	c, err := NewCachedEmbedder(inner, 10, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(context.Background(), "coffee")
	require.Error(t, err)
	c.Wait()

	inner.err = nil
	vec, err := c.Embed(context.Background(), "coffee")
	require.NoError(t, err)
	assert.Equal(t, 1.0, vec[0])
	assert.Equal(t, 2, inner.Calls())
}

func TestCachedEmbedderSize(t *testing.T) {
	_, err := NewCachedEmbedder(newWordEmbedder(), 0, nil)
	assert.Error(t, err)
}
