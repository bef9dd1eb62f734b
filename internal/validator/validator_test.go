package validator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func similarityServer(t *testing.T, scores map[string]float64, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var req similarityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		score, ok := scores[req.Word2]
		if !ok {
			score, ok = scores[req.Word1]
		}
		json.NewEncoder(w).Encode(similarityResponse{Score: score, Known: ok})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientValidate(t *testing.T) {
	var calls int32
	srv := similarityServer(t, map[string]float64{"sea": 0.81, "chair": 0.12}, &calls)
	c := NewClient(srv.URL, cache.NewMemory())
	ctx := context.Background()

	v, err := c.ValidateSimilarity(ctx, "ocean", "Sea ", "en", 0.6)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.InDelta(t, 0.81, v.Score, 1e-9)
	assert.Equal(t, 0.6, v.ThresholdUsed)
	assert.False(t, v.Heuristic)

	v, err = c.ValidateSimilarity(ctx, "ocean", "chair", "en", 0)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonBelowThreshold, v.RejectionReason)
	assert.Equal(t, DefaultThreshold, v.ThresholdUsed)

	// second lookup of the same pair is served from cache
	_, err = c.ValidateSimilarity(ctx, "ocean", "sea", "en", 0.6)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientUnknownWordIsInvalidNotError(t *testing.T) {
	var calls int32
	srv := similarityServer(t, map[string]float64{}, &calls)
	c := NewClient(srv.URL, nil)

	v, err := c.ValidateSimilarity(context.Background(), "ocean", "zzxq", "en", 0.5)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonUnknownWord, v.RejectionReason)
}

func TestClientRejectsTargetAndEmpty(t *testing.T) {
	c := NewClient("http://unused.invalid", nil)

	v, err := c.ValidateSimilarity(context.Background(), "ocean", "OCEAN", "en", 0.5)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonSameAsTarget, v.RejectionReason)

	v, err = c.ValidateSimilarity(context.Background(), "ocean", "  ", "en", 0.5)
	require.NoError(t, err)
	assert.Equal(t, ReasonEmpty, v.RejectionReason)
}

func TestFallbackFlagsHeuristic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var fallbacks int
	f := NewFallback(NewClient(srv.URL, nil))
	f.OnFallback = func(error) { fallbacks++ }

	v, err := f.ValidateSimilarity(context.Background(), "night", "nightly", "en", 0.5)
	require.NoError(t, err)
	assert.True(t, v.Heuristic)
	assert.True(t, v.Valid)
	assert.Equal(t, 1, fallbacks)
}

func TestHeuristicSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("sea", "sea"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.Greater(t, Similarity("night", "nightly"), Similarity("night", "chair"))
}
