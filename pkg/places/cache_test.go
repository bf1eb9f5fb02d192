package places

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	searchCalls  int
	detailsCalls int
	results      []Place
	details      *Place
}

func (c *countingClient) SearchText(context.Context, string, string) ([]Place, error) {
	c.searchCalls++
	return c.results, nil
}

func (c *countingClient) Details(context.Context, string) (*Place, error) {
	c.detailsCalls++
	return c.details, nil
}

func newTestCache(t *testing.T, inner Client) *CachedClient {
	t.Helper()
	cached, err := NewCachedClient(inner, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cached.Close() })
	return cached
}

func TestCachedClient_SearchHitSkipsInner(t *testing.T) {
	inner := &countingClient{results: []Place{{ID: "p1", FormattedAddress: "123 Main St"}}}
	cached := newTestCache(t, inner)
	ctx := context.Background()

	first, err := cached.SearchText(ctx, "Clinic A, Manila, PH", "PH")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, inner.searchCalls)

	second, err := cached.SearchText(ctx, "Clinic A, Manila, PH", "PH")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.searchCalls)
}

func TestCachedClient_SearchKeyNormalization(t *testing.T) {
	inner := &countingClient{results: []Place{{ID: "p1"}}}
	cached := newTestCache(t, inner)
	ctx := context.Background()

	_, err := cached.SearchText(ctx, "Clinic A, Manila, PH", "ph")
	require.NoError(t, err)

	// Case and surrounding whitespace variants hit the same row.
	_, err = cached.SearchText(ctx, "  clinic a, manila, ph ", "PH")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.searchCalls)

	// A different region is a different lookup.
	_, err = cached.SearchText(ctx, "Clinic A, Manila, PH", "TH")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.searchCalls)
}

func TestCachedClient_EmptySearchNotCached(t *testing.T) {
	inner := &countingClient{}
	cached := newTestCache(t, inner)
	ctx := context.Background()

	_, err := cached.SearchText(ctx, "Nonexistent", "")
	require.NoError(t, err)
	_, err = cached.SearchText(ctx, "Nonexistent", "")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.searchCalls)
}

func TestCachedClient_DetailsHitSkipsInner(t *testing.T) {
	inner := &countingClient{details: &Place{ID: "p1", FormattedAddress: "123 Main St"}}
	cached := newTestCache(t, inner)
	ctx := context.Background()

	first, err := cached.Details(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.detailsCalls)

	second, err := cached.Details(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.detailsCalls)
}

func TestCachedClient_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	inner := &countingClient{details: &Place{ID: "p1"}}
	ctx := context.Background()

	cached, err := NewCachedClient(inner, path)
	require.NoError(t, err)
	_, err = cached.Details(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, cached.Close())

	reopened, err := NewCachedClient(inner, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Details(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, 1, inner.detailsCalls)
}
