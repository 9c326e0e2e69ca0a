package coordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/sources"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/sync"
	syncmocks "github.com/sotags/sotags-api/internal/sync/mocks"
	"github.com/sotags/sotags-api/internal/tags"
)

func TestNextInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interval time.Duration
	}{
		{name: "one hour", interval: time.Hour},
		{name: "one minute", interval: time.Minute},
		{name: "tiny", interval: 5 * time.Nanosecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for range 100 {
				got := nextInterval(tt.interval)
				jitter := tt.interval / maxJitterFraction
				assert.GreaterOrEqual(t, got, tt.interval-jitter)
				assert.LessOrEqual(t, got, tt.interval+jitter)
			}
		})
	}
}

func TestCoordinator_New(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockEngine := syncmocks.NewMockEngine(ctrl)
	cfg := &config.Config{Sync: config.SyncConfig{RefreshOnStartup: true, RefreshInterval: "24h"}}

	c := New(mockEngine, cfg)
	require.NotNil(t, c)

	dc, ok := c.(*defaultCoordinator)
	require.True(t, ok)
	assert.True(t, dc.refreshOnStartup)
	assert.Equal(t, 24*time.Hour, dc.interval)
	assert.NotNil(t, dc.done)
}

func TestCoordinator_StopBeforeStart(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := New(syncmocks.NewMockEngine(ctrl), &config.Config{})
	assert.NoError(t, c.Stop())
}

func TestCoordinator_StartupWarmUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "success", err: nil},
		{name: "failure is logged and ignored", err: errors.New("upstream down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockEngine := syncmocks.NewMockEngine(ctrl)

			called := make(chan struct{})
			mockEngine.EXPECT().EnsureFresh(gomock.Any()).
				DoAndReturn(func(ctx context.Context) ([]tags.Tag, error) {
					trigger, ok := sync.TriggerFrom(ctx)
					assert.True(t, ok)
					assert.Equal(t, status.TriggerStartup, trigger)
					close(called)
					return []tags.Tag{{ID: 1, Name: "go"}}, tt.err
				})

			c := New(mockEngine, &config.Config{Sync: config.SyncConfig{RefreshOnStartup: true}})

			errCh := make(chan error, 1)
			go func() { errCh <- c.Start(context.Background()) }()

			select {
			case <-called:
			case <-time.After(5 * time.Second):
				t.Fatal("startup sync was not run")
			}

			require.NoError(t, c.Stop())
			require.NoError(t, <-errCh)
		})
	}
}

func TestCoordinator_NoStartupSyncWhenDisabled(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockEngine := syncmocks.NewMockEngine(ctrl)
	// no calls expected

	c := New(mockEngine, &config.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, c.Stop())
}

func TestCoordinator_ScheduledRefresh(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockEngine := syncmocks.NewMockEngine(ctrl)

	ticks := make(chan status.Trigger, 10)
	mockEngine.EXPECT().Rebuild(gomock.Any()).
		DoAndReturn(func(ctx context.Context) (*sync.Result, error) {
			trigger, _ := sync.TriggerFrom(ctx)
			select {
			case ticks <- trigger:
			default:
			}
			return &sync.Result{Success: true, CycleID: "c1", Tags: []tags.Tag{{ID: 1}}}, nil
		}).
		MinTimes(2)

	c := New(mockEngine, &config.Config{Sync: config.SyncConfig{RefreshInterval: "20ms"}})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	for range 2 {
		select {
		case trigger := <-ticks:
			assert.Equal(t, status.TriggerScheduled, trigger)
		case <-time.After(5 * time.Second):
			t.Fatal("scheduled refresh was not run")
		}
	}

	require.NoError(t, c.Stop())
	require.NoError(t, <-errCh)
}

func TestCoordinator_ScheduledRefreshSurvivesFailures(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockEngine := syncmocks.NewMockEngine(ctrl)

	calls := make(chan struct{}, 10)
	gomock.InOrder(
		mockEngine.EXPECT().Rebuild(gomock.Any()).DoAndReturn(func(context.Context) (*sync.Result, error) {
			select {
			case calls <- struct{}{}:
			default:
			}
			return nil, sync.ErrUpstream
		}),
		mockEngine.EXPECT().Rebuild(gomock.Any()).DoAndReturn(func(context.Context) (*sync.Result, error) {
			select {
			case calls <- struct{}{}:
			default:
			}
			return &sync.Result{Success: false}, nil
		}),
		mockEngine.EXPECT().Rebuild(gomock.Any()).DoAndReturn(func(context.Context) (*sync.Result, error) {
			select {
			case calls <- struct{}{}:
			default:
			}
			return &sync.Result{Success: true}, nil
		}).AnyTimes(),
	)

	c := New(mockEngine, &config.Config{Sync: config.SyncConfig{RefreshInterval: "10ms"}})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	for range 3 {
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator stopped refreshing after a failure")
		}
	}

	require.NoError(t, c.Stop())
	require.NoError(t, <-errCh)
}

// throttledSource rejects every page the way the upstream does once the quota is spent
type throttledSource struct {
	calls chan struct{}
}

func (s *throttledSource) FetchPage(context.Context, int) (*sources.Page, error) {
	select {
	case s.calls <- struct{}{}:
	default:
	}
	return nil, errors.New("HTTP 400 throttle_violation")
}

func (s *throttledSource) PageSize() int {
	return 100
}

func TestCoordinator_ScheduledRefreshKeepsCacheOnUpstreamFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := store.NewMemoryStore()
	seed := make([]tags.Tag, 0, config.DefaultMaxTags)
	for i := range config.DefaultMaxTags {
		seed = append(seed, tags.Tag{Name: fmt.Sprintf("tag-%04d", i), Count: int64(i + 1)})
	}
	_, err := st.SaveAll(ctx, seed)
	require.NoError(t, err)

	src := &throttledSource{calls: make(chan struct{}, 10)}
	engine := sync.New(st, src)
	c := New(engine, &config.Config{Sync: config.SyncConfig{RefreshInterval: "10ms"}})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	for range 2 {
		select {
		case <-src.calls:
		case <-time.After(5 * time.Second):
			t.Fatal("scheduled refresh was not run")
		}
	}
	require.NoError(t, c.Stop())
	require.NoError(t, <-errCh)

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxTags, count)

	s := engine.Status()
	assert.Equal(t, status.SyncPhaseFailed, s.Phase)
	assert.Equal(t, status.TriggerScheduled, s.Trigger)
}
