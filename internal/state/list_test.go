package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scent-cart/internal/domain"
)

func TestListAddRejectsDuplicates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	fav := s.Favorites()

	require.NoError(t, fav.Add(ctx, domain.ListEntry{ProductID: 42, Product: snapshot("Noir")}))

	err := fav.Add(ctx, domain.ListEntry{ProductID: 42, Product: snapshot("Noir")})
	assert.ErrorIs(t, err, ErrAlreadyAdded)
	assert.Equal(t, 1, fav.Count(ctx))
}

func TestListRemoveAbsentIsNoOp(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	fav := s.Favorites()

	require.NoError(t, fav.Add(ctx, domain.ListEntry{ProductID: 1, Product: snapshot("A")}))

	fav.Remove(ctx, 99)
	assert.Equal(t, 1, fav.Count(ctx))
}

func TestListRemoveLastEntryDeletesStorageKey(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	fav := s.Favorites()

	require.NoError(t, fav.Add(ctx, domain.ListEntry{ProductID: 1, Product: snapshot("A")}))
	require.Equal(t, 1, kv.Len())

	fav.Remove(ctx, 1)
	assert.Equal(t, 0, kv.Len())
	assert.False(t, fav.Contains(ctx, 1))
}

func TestListContains(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cmp := s.Comparison()

	require.NoError(t, cmp.Add(ctx, domain.ListEntry{ProductID: 5, Product: snapshot("E")}))

	assert.True(t, cmp.Contains(ctx, 5))
	assert.False(t, cmp.Contains(ctx, 6))
}

func TestListCorruptStoredValueLoadsEmpty(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "sess:test-session:"+KeyFavorites, `"not a list"`))

	assert.Empty(t, s.Favorites().Entries(ctx))
	assert.Equal(t, 0, s.Favorites().Count(ctx))
}

func TestListsAreIndependentCollections(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Favorites().Add(ctx, domain.ListEntry{ProductID: 1, Product: snapshot("A")}))

	assert.False(t, s.Comparison().Contains(ctx, 1))
	assert.Equal(t, 0, s.Comparison().Count(ctx))
}

func TestListMutationsPublishTheirEvent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	favEvents, cmpEvents := 0, 0
	cancelFav := s.Subscribe(CollectionFavorites, func() { favEvents++ })
	defer cancelFav()
	cancelCmp := s.Subscribe(CollectionComparison, func() { cmpEvents++ })
	defer cancelCmp()

	require.NoError(t, s.Favorites().Add(ctx, domain.ListEntry{ProductID: 1, Product: snapshot("A")}))
	assert.Equal(t, 1, favEvents)
	assert.Equal(t, 0, cmpEvents)

	// A rejected duplicate changes nothing and publishes nothing.
	_ = s.Favorites().Add(ctx, domain.ListEntry{ProductID: 1, Product: snapshot("A")})
	assert.Equal(t, 1, favEvents)

	s.Favorites().Remove(ctx, 1)
	assert.Equal(t, 2, favEvents)
	assert.Equal(t, 0, cmpEvents)
}

func TestListSurvivesReloadFromStorage(t *testing.T) {
	kv := newTestStore2KV(t)
	ctx := context.Background()

	first := newStoreOn(t, kv)
	require.NoError(t, first.Favorites().Add(ctx, domain.ListEntry{ProductID: 3, Product: snapshot("C")}))

	second := newStoreOn(t, kv)
	entries := second.Favorites().Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].ProductID)
	assert.Equal(t, "C", entries[0].Product.Name)
}
