package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/store/cache"
	"github.com/sotags/sotags-api/internal/store/mocks"
	"github.com/sotags/sotags-api/internal/store/storetest"
	"github.com/sotags/sotags-api/internal/tags"
)

func newClient(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := cache.NewClient(context.Background(), &redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	return client, mr
}

func TestStore(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		client, _ := newClient(t)
		s := cache.NewStore(store.NewMemoryStore(), client, "test:", time.Minute)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNewClient_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := cache.NewClient(context.Background(), &redis.Options{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestClient_GetMiss(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t)
	var dest []tags.Tag
	err := client.Get(context.Background(), "missing", &dest)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestStore_ServesReadsFromCache(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	inner := mocks.NewMockStore(ctrl)
	client, mr := newClient(t)

	collection := []tags.Tag{{ID: 1, Name: "go", Count: 10, SharePercent: 100}}
	inner.EXPECT().ReadAll(gomock.Any()).Return(collection, nil).Times(1)

	s := cache.NewStore(inner, client, "sotags:", time.Minute)
	ctx := context.Background()

	first, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, collection, first)
	assert.True(t, mr.Exists("sotags:tags:all"))

	second, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, collection, second)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_ExpiredEntryReadsThrough(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	inner := mocks.NewMockStore(ctrl)
	client, mr := newClient(t)

	inner.EXPECT().ReadAll(gomock.Any()).Return([]tags.Tag{}, nil).Times(2)

	s := cache.NewStore(inner, client, "sotags:", time.Minute)
	ctx := context.Background()

	_, err := s.ReadAll(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = s.ReadAll(ctx)
	require.NoError(t, err)
}

func TestStore_WritesUpdateCache(t *testing.T) {
	t.Parallel()

	client, mr := newClient(t)
	s := cache.NewStore(store.NewMemoryStore(), client, "sotags:", time.Minute)
	ctx := context.Background()

	saved, err := s.SaveAll(ctx, []tags.Tag{{Name: "go", Count: 1, SharePercent: 100}})
	require.NoError(t, err)
	require.True(t, mr.Exists("sotags:tags:all"))

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, all)

	require.NoError(t, s.DeleteAll(ctx))
	assert.False(t, mr.Exists("sotags:tags:all"))
}

func TestStore_FailedWriteInvalidates(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	inner := mocks.NewMockStore(ctrl)
	client, mr := newClient(t)

	s := cache.NewStore(inner, client, "sotags:", time.Minute)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "sotags:tags:all", []tags.Tag{{ID: 1, Name: "stale"}}, time.Minute))
	inner.EXPECT().SaveAll(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))

	_, err := s.SaveAll(ctx, []tags.Tag{{Name: "go"}})
	require.Error(t, err)
	assert.False(t, mr.Exists("sotags:tags:all"))
}

func TestStore_RedisDownFallsBackToInner(t *testing.T) {
	t.Parallel()

	client, mr := newClient(t)
	inner := store.NewMemoryStore()
	ctx := context.Background()
	_, err := inner.SaveAll(ctx, []tags.Tag{{Name: "go", Count: 1, SharePercent: 100}})
	require.NoError(t, err)

	s := cache.NewStore(inner, client, "sotags:", time.Minute)
	mr.Close()

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.Ping(ctx))
}

func TestStore_DefaultTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client, mr := newClient(t)
	s := cache.NewStore(store.NewMemoryStore(), client, "sotags:", 0)

	_, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultTTL, mr.TTL("sotags:tags:all"))
	assert.LessOrEqual(t, cache.DefaultTTL, time.Minute)
}

func TestStore_ReplicasSeeRefreshOnSharedBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client, _ := newClient(t)
	shared := store.NewMemoryStore()
	replicaA := cache.NewStore(shared, client, "sotags:", 0)
	replicaB := cache.NewStore(shared, client, "sotags:", 0)

	_, err := replicaA.SaveAll(ctx, []tags.Tag{{Name: "go", Count: 3}, {Name: "rust", Count: 1}})
	require.NoError(t, err)
	warm, err := replicaA.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, warm, 2)

	// a refresh on B clears the shared key before refilling
	require.NoError(t, replicaB.DeleteAll(ctx))
	got, err := replicaA.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = replicaB.SaveAll(ctx, []tags.Tag{{Name: "zig", Count: 5}})
	require.NoError(t, err)
	got, err = replicaA.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "zig", got[0].Name)
}
