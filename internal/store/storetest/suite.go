// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/tags"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) store.Store

func names(collection []tags.Tag) []string {
	out := make([]string, len(collection))
	for i, t := range collection {
		out[i] = t.Name
	}
	return out
}

// Run exercises the store contract against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("empty store reads as empty non-nil slice", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		all, err := s.ReadAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		require.NoError(t, s.Ping(ctx))
	})

	t.Run("save assigns ids in insertion order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		saved, err := s.SaveAll(ctx, []tags.Tag{
			{Name: "javascript", Count: 300, SharePercent: 50},
			{Name: "python", Count: 200, SharePercent: 33.3},
			{Name: "go", Count: 100, SharePercent: 16.7},
		})
		require.NoError(t, err)
		require.Len(t, saved, 3)
		assert.Equal(t, []string{"javascript", "python", "go"}, names(saved))
		for i := 1; i < len(saved); i++ {
			assert.Less(t, saved[i-1].ID, saved[i].ID)
		}
		assert.Positive(t, saved[0].ID)
		assert.InDelta(t, 33.3, saved[1].SharePercent, 1e-9)

		all, err := s.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, saved, all)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("save upserts by name and keeps ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.SaveAll(ctx, []tags.Tag{
			{Name: "java", Count: 10, SharePercent: 100},
		})
		require.NoError(t, err)
		require.Len(t, first, 1)

		second, err := s.SaveAll(ctx, []tags.Tag{
			{Name: "java", Count: 20, SharePercent: 40},
			{Name: "rust", Count: 30, SharePercent: 60},
		})
		require.NoError(t, err)
		require.Len(t, second, 2)

		assert.Equal(t, first[0].ID, second[0].ID)
		assert.Equal(t, "java", second[0].Name)
		assert.Equal(t, int64(20), second[0].Count)
		assert.InDelta(t, 40.0, second[0].SharePercent, 1e-9)
		assert.Equal(t, "rust", second[1].Name)
		assert.Greater(t, second[1].ID, second[0].ID)
	})

	t.Run("save of nothing keeps the collection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.SaveAll(ctx, []tags.Tag{{Name: "c", Count: 1, SharePercent: 100}})
		require.NoError(t, err)

		saved, err := s.SaveAll(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, saved, 1)
	})

	t.Run("delete all clears and ids are not reused", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		before, err := s.SaveAll(ctx, []tags.Tag{
			{Name: "php", Count: 5, SharePercent: 50},
			{Name: "ruby", Count: 5, SharePercent: 50},
		})
		require.NoError(t, err)

		require.NoError(t, s.DeleteAll(ctx))

		all, err := s.ReadAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)

		after, err := s.SaveAll(ctx, []tags.Tag{{Name: "php", Count: 7, SharePercent: 100}})
		require.NoError(t, err)
		require.Len(t, after, 1)
		assert.Greater(t, after[0].ID, before[1].ID)
	})
}
