package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sotags/sotags-api/internal/app/storage/mocks"
	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/store/cache"
	"github.com/sotags/sotags-api/internal/tags"
)

func TestCachedFactory_CreateStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)
	ctrl := gomock.NewController(t)

	inner := store.NewMemoryStore()
	mockFactory := mocks.NewMockFactory(ctrl)
	mockFactory.EXPECT().CreateStore(gomock.Any()).Return(inner, nil).Times(1)
	mockFactory.EXPECT().Cleanup().Times(1)

	factory := NewCachedFactory(mockFactory, &config.RedisConfig{
		Address:   mr.Addr(),
		KeyPrefix: "test:",
	})

	st, err := factory.CreateStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &cache.Store{}, st)

	again, err := factory.CreateStore(ctx)
	require.NoError(t, err)
	assert.Same(t, st, again)

	_, err = st.SaveAll(ctx, []tags.Tag{{Name: "go", Count: 1, SharePercent: 100}})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:tags:all"))

	factory.Cleanup()
}

func TestCachedFactory_InnerFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockFactory := mocks.NewMockFactory(ctrl)
	mockFactory.EXPECT().CreateStore(gomock.Any()).Return(nil, errors.New("disk full"))

	factory := NewCachedFactory(mockFactory, &config.RedisConfig{Address: "localhost:1"})
	_, err := factory.CreateStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCachedFactory_RedisUnreachable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctrl := gomock.NewController(t)
	mockFactory := mocks.NewMockFactory(ctrl)
	mockFactory.EXPECT().CreateStore(gomock.Any()).Return(store.NewMemoryStore(), nil)

	factory := NewCachedFactory(mockFactory, &config.RedisConfig{Address: addr})
	_, err := factory.CreateStore(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create tag cache")
}

func TestCachedFactory_DelegatesStatusPersistence(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := status.NewMemoryStatusPersistence()
	mockFactory := mocks.NewMockFactory(ctrl)
	mockFactory.EXPECT().CreateStatusPersistence(gomock.Any()).Return(persistence, nil)

	factory := NewCachedFactory(mockFactory, &config.RedisConfig{Address: "localhost:6379"})
	got, err := factory.CreateStatusPersistence(context.Background())
	require.NoError(t, err)
	assert.Equal(t, persistence, got)
}
