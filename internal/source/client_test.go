package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Magalhaes24/scout/internal/model"
)

var fixedNow = time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)

type fakeTier struct {
	name       model.Tier
	candidates []model.Candidate
	err        error
	calls      int
	closes     int
}

func (f *fakeTier) Name() model.Tier { return f.name }

func (f *fakeTier) Search(context.Context, string) ([]model.Candidate, error) {
	f.calls++
	return f.candidates, f.err
}

func (f *fakeTier) Close() error {
	f.closes++
	return errors.New("already closed")
}

func newTestClient(fast, fallback Tier, opts Options) *Client {
	return New(opts, WithTiers(fast, fallback), WithClock(func() time.Time { return fixedNow }))
}

func TestClient_EndToEndFastTier(t *testing.T) {
	t.Parallel()

	page := readFixture(t, "search_messi.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "L. Messi", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, MaxAttempts: 1}, WithClock(func() time.Time { return fixedNow }))
	defer c.Close() //nolint:errcheck

	res, tier, err := c.Resolve(context.Background(), "L. Messi", "Inter Miami")
	require.NoError(t, err)
	assert.Equal(t, model.TierFast, tier)
	assert.Equal(t, model.StatusOK, res.Status)
	require.NotNil(t, res.Value)
	assert.Equal(t, int64(30_000_000), *res.Value)
	assert.Contains(t, res.MatchedAffiliation, "Inter Miami")
	assert.Equal(t, srv.URL+"/lionel-messi/profil/spieler/28003", res.URL)
	assert.Equal(t, fixedNow, res.UpdatedAt)
}

func TestClient_FastTierSingleRequestByDefault(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL}, WithClock(func() time.Time { return fixedNow }))
	defer c.Close() //nolint:errcheck

	res, tier, err := c.Resolve(context.Background(), "Pedri", "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, model.TierFast, tier)
	assert.Equal(t, model.StatusNotFound, res.Status)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_FastTierRetriesWhenConfigured(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, MaxAttempts: 2}, WithClock(func() time.Time { return fixedNow }))
	defer c.Close() //nolint:errcheck

	_, _, err := c.Resolve(context.Background(), "Pedri", "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_FallbackWhenNoLabels(t *testing.T) {
	t.Parallel()

	fast := &fakeTier{name: model.TierFast, candidates: []model.Candidate{
		{ProfileURL: "fast/1", DisplayName: "Lionel Messi", RawValue: "€30.00m"},
		{ProfileURL: "fast/2", DisplayName: "Lionel Messi"},
	}}
	fallback := &fakeTier{name: model.TierFallback, candidates: []model.Candidate{
		{ProfileURL: "browser/1", DisplayName: "Lionel Messi", Labels: []string{"Inter Miami CF"}, RawValue: "€30.00m"},
	}}
	c := newTestClient(fast, fallback, Options{})

	res, tier, err := c.Resolve(context.Background(), "Lionel Messi", "Inter Miami")
	require.NoError(t, err)
	assert.Equal(t, model.TierFallback, tier)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, "browser/1", res.URL)
	assert.Equal(t, "Inter Miami CF", res.MatchedAffiliation)
	assert.Equal(t, model.StatusOK, res.Status)
}

func TestClient_NoFallbackWhenFastIsComplete(t *testing.T) {
	t.Parallel()

	fast := &fakeTier{name: model.TierFast, candidates: []model.Candidate{
		{ProfileURL: "fast/1", DisplayName: "Lionel Messi", Labels: []string{"Inter Miami CF"}, RawValue: "€30.00m"},
	}}
	fallback := &fakeTier{name: model.TierFallback}
	c := newTestClient(fast, fallback, Options{})

	_, tier, err := c.Resolve(context.Background(), "Lionel Messi", "Inter Miami")
	require.NoError(t, err)
	assert.Equal(t, model.TierFast, tier)
	assert.Equal(t, 0, fallback.calls)
}

func TestClient_FallbackOnMissingValue(t *testing.T) {
	t.Parallel()

	fast := &fakeTier{name: model.TierFast, candidates: []model.Candidate{
		{ProfileURL: "fast/1", DisplayName: "Lionel Messi", Labels: []string{"Inter Miami CF"}},
	}}
	fallback := &fakeTier{name: model.TierFallback}
	c := newTestClient(fast, fallback, Options{})

	res, tier, err := c.Resolve(context.Background(), "Lionel Messi", "Inter Miami")
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.calls)
	// The fallback found nothing, so the fast result stands.
	assert.Equal(t, model.TierFast, tier)
	assert.Equal(t, model.StatusValueNotFound, res.Status)
	assert.Equal(t, "fast/1", res.URL)
}

func TestClient_NotFound(t *testing.T) {
	t.Parallel()

	fast := &fakeTier{name: model.TierFast, candidates: []model.Candidate{
		{ProfileURL: "fast/1", DisplayName: "Kevin De Bruyne", Labels: []string{"Manchester City"}},
	}}
	c := newTestClient(fast, nil, Options{})

	res, tier, err := c.Resolve(context.Background(), "Lionel Messi", "Inter Miami")
	require.NoError(t, err)
	assert.Equal(t, model.TierFast, tier)
	assert.Equal(t, model.StatusNotFound, res.Status)
	assert.Empty(t, res.URL)
	assert.Nil(t, res.Value)
}

func TestClient_FastFailureFallsThrough(t *testing.T) {
	t.Parallel()

	fast := &fakeTier{name: model.TierFast, err: errors.New("dial tcp: connection refused")}
	fallback := &fakeTier{name: model.TierFallback, candidates: []model.Candidate{
		{ProfileURL: "browser/1", DisplayName: "Pedri", Labels: []string{"FC Barcelona"}, RawValue: "€80.00m"},
	}}
	c := newTestClient(fast, fallback, Options{})

	res, tier, err := c.Resolve(context.Background(), "Pedri", "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, model.TierFallback, tier)
	assert.Equal(t, model.StatusOK, res.Status)
	require.NotNil(t, res.Value)
	assert.Equal(t, int64(80_000_000), *res.Value)
}

func TestClient_FallbackErrorPropagates(t *testing.T) {
	t.Parallel()

	fast := &fakeTier{name: model.TierFast}
	fallback := &fakeTier{name: model.TierFallback, err: errors.New("browser: chrome did not start in time")}
	c := newTestClient(fast, fallback, Options{})

	_, tier, err := c.Resolve(context.Background(), "Pedri", "Barcelona")
	require.Error(t, err)
	assert.Equal(t, model.TierFallback, tier)
}

func TestClient_BreakerSkipsFastTier(t *testing.T) {
	t.Parallel()

	fast := &fakeTier{name: model.TierFast, err: errors.New("read: connection reset by peer")}
	c := newTestClient(fast, nil, Options{BreakerThreshold: 2, BreakerReset: time.Hour})

	for i := 0; i < 5; i++ {
		res, _, err := c.Resolve(context.Background(), "Pedri", "Barcelona")
		require.NoError(t, err)
		assert.Equal(t, model.StatusNotFound, res.Status)
	}
	assert.Equal(t, 2, fast.calls)
}

func TestClient_CloseOnce(t *testing.T) {
	t.Parallel()

	fast := &fakeTier{name: model.TierFast}
	fallback := &fakeTier{name: model.TierFallback}
	c := newTestClient(fast, fallback, Options{})

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Equal(t, 1, fast.closes)
	assert.Equal(t, 1, fallback.closes)
}

func TestClient_BrowserDisabledByDefault(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	assert.Nil(t, c.fallback)

	c = New(Options{BrowserEnabled: true})
	assert.NotNil(t, c.fallback)
}
