package sync_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sotags/sotags-api/internal/sources"
	sourcesmocks "github.com/sotags/sotags-api/internal/sources/mocks"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	storemocks "github.com/sotags/sotags-api/internal/store/mocks"
	tagsync "github.com/sotags/sotags-api/internal/sync"
	"github.com/sotags/sotags-api/internal/tags"
)

const testPageSize = 100

// pagedSource serves generated pages and counts requests
type pagedSource struct {
	pageSize int
	pages    func(page int) (*sources.Page, error)
	calls    atomic.Int32
}

func (s *pagedSource) FetchPage(_ context.Context, page int) (*sources.Page, error) {
	s.calls.Add(1)
	return s.pages(page)
}

func (s *pagedSource) PageSize() int {
	return s.pageSize
}

// uniquePages returns full pages of distinct names forever
func uniquePages(page int) (*sources.Page, error) {
	items := make([]sources.Item, 0, testPageSize)
	for i := range testPageSize {
		n := (page-1)*testPageSize + i
		items = append(items, sources.Item{Name: fmt.Sprintf("tag-%05d", n), Count: int64(100000 - n)})
	}
	return &sources.Page{Items: items, QuotaRemaining: 300 - int64(page)}, nil
}

func singlePage(items ...sources.Item) func(int) (*sources.Page, error) {
	return func(page int) (*sources.Page, error) {
		if page > 1 {
			return &sources.Page{Items: []sources.Item{}, QuotaRemaining: -1}, nil
		}
		return &sources.Page{Items: items, QuotaRemaining: -1}, nil
	}
}

func collectionOf(n int) []tags.Tag {
	out := make([]tags.Tag, 0, n)
	for i := range n {
		out = append(out, tags.Tag{ID: int64(i + 1), Name: fmt.Sprintf("t%d", i), Count: 1})
	}
	return out
}

func shareSum(collection []tags.Tag) float64 {
	var sum float64
	for _, t := range collection {
		sum += t.SharePercent
	}
	return sum
}

func TestEngine_NeedsRefresh(t *testing.T) {
	t.Parallel()

	engine := tagsync.New(store.NewMemoryStore(), &pagedSource{pageSize: testPageSize})

	tests := []struct {
		name       string
		collection []tags.Tag
		want       bool
	}{
		{name: "nil collection", collection: nil, want: true},
		{name: "empty collection", collection: []tags.Tag{}, want: true},
		{name: "one tag", collection: collectionOf(1), want: true},
		{name: "just below threshold", collection: collectionOf(1000), want: true},
		{name: "at threshold", collection: collectionOf(1001), want: false},
		{name: "above threshold", collection: collectionOf(1100), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, engine.NeedsRefresh(tt.collection))
		})
	}
}

func TestEngine_FetchAndMerge_SingleShortPage(t *testing.T) {
	t.Parallel()

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(sources.Item{Name: "js", Count: 100})}
	st := store.NewMemoryStore()
	engine := tagsync.New(st, src)

	result, err := engine.FetchAndMerge(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.PagesFetched)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.NotEmpty(t, result.CycleID)
	require.Len(t, result.Tags, 1)
	assert.Equal(t, tags.Tag{ID: 1, Name: "js", Count: 100, SharePercent: 100}, result.Tags[0])

	stored, err := st.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.Tags, stored)
}

func TestEngine_FetchAndMerge_StopsAtMaxTags(t *testing.T) {
	t.Parallel()

	src := &pagedSource{pageSize: testPageSize, pages: uniquePages}
	engine := tagsync.New(store.NewMemoryStore(), src)

	result, err := engine.FetchAndMerge(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	// 10 pages give 1000 tags, the 11th crosses 1001
	assert.Equal(t, 11, result.PagesFetched)
	assert.Len(t, result.Tags, 1100)
	assert.False(t, engine.NeedsRefresh(result.Tags))
	assert.InDelta(t, 100.0, shareSum(result.Tags), 1e-6)

	names := make(map[string]struct{}, len(result.Tags))
	for _, tag := range result.Tags {
		_, dup := names[tag.Name]
		assert.False(t, dup, "duplicate name %s", tag.Name)
		names[tag.Name] = struct{}{}
	}
}

func TestEngine_FetchAndMerge_FirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(
		sources.Item{Name: "go", Count: 100},
		sources.Item{Name: "rust", Count: 50},
		sources.Item{Name: "rust", Count: 999},
	)}
	st := store.NewMemoryStore()
	engine := tagsync.New(st, src)

	seed := []tags.Tag{{Name: "go", Count: 25}, {Name: "go", Count: 7}}
	result, err := engine.FetchAndMerge(context.Background(), seed)
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Len(t, result.Tags, 2)
	assert.Equal(t, "go", result.Tags[0].Name)
	assert.Equal(t, int64(25), result.Tags[0].Count)
	assert.Equal(t, "rust", result.Tags[1].Name)
	assert.Equal(t, int64(50), result.Tags[1].Count)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, int64(75), result.TotalCount)
	assert.InDelta(t, 100.0*25/75, result.Tags[0].SharePercent, 1e-9)
	assert.InDelta(t, 100.0, shareSum(result.Tags), 1e-9)
}

func TestEngine_FetchAndMerge_ZeroCounts(t *testing.T) {
	t.Parallel()

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(
		sources.Item{Name: "a", Count: 0},
		sources.Item{Name: "b", Count: 0},
	)}
	engine := tagsync.New(store.NewMemoryStore(), src)

	result, err := engine.FetchAndMerge(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	for _, tag := range result.Tags {
		assert.Zero(t, tag.SharePercent)
		assert.False(t, math.IsNaN(tag.SharePercent))
	}
}

func TestEngine_FetchAndMerge_EmptyUpstream(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockStore := storemocks.NewMockStore(ctrl)
	// nothing is persisted

	src := &pagedSource{pageSize: testPageSize, pages: singlePage()}
	engine := tagsync.New(mockStore, src)

	result, err := engine.FetchAndMerge(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Tags)
	assert.Equal(t, status.SyncPhaseFailed, engine.Status().Phase)
}

func TestEngine_FetchAndMerge_StopsWhenExhausted(t *testing.T) {
	t.Parallel()

	noMore := false
	src := &pagedSource{pageSize: testPageSize, pages: func(page int) (*sources.Page, error) {
		p, _ := uniquePages(page)
		if page == 2 {
			p.HasMore = &noMore
		}
		return p, nil
	}}
	engine := tagsync.New(store.NewMemoryStore(), src)

	result, err := engine.FetchAndMerge(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.PagesFetched)
	assert.Len(t, result.Tags, 200)
}

func TestEngine_FetchAndMerge_StopsAtMaxPages(t *testing.T) {
	t.Parallel()

	// every page repeats page 1, so the working set never grows
	src := &pagedSource{pageSize: testPageSize, pages: func(int) (*sources.Page, error) {
		return uniquePages(1)
	}}
	engine := tagsync.New(store.NewMemoryStore(), src, tagsync.WithMaxPages(3))

	result, err := engine.FetchAndMerge(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.PagesFetched)
	assert.Equal(t, int32(3), src.calls.Load())
	assert.Len(t, result.Tags, 100)
}

func TestEngine_FetchAndMerge_UpstreamFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockStore := storemocks.NewMockStore(ctrl)
	mockSource := sourcesmocks.NewMockTagSource(ctrl)

	mockSource.EXPECT().PageSize().Return(testPageSize).AnyTimes()
	first, _ := uniquePages(1)
	gomock.InOrder(
		mockSource.EXPECT().FetchPage(gomock.Any(), 1).Return(first, nil),
		mockSource.EXPECT().FetchPage(gomock.Any(), 2).
			Return(nil, fmt.Errorf("%w: HTTP 503", sources.ErrUpstreamFailure)),
	)
	// no SaveAll: a failed cycle commits nothing

	engine := tagsync.New(mockStore, mockSource)

	result, err := engine.FetchAndMerge(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, tagsync.ErrUpstream)
	assert.ErrorIs(t, err, sources.ErrUpstreamFailure)

	st := engine.Status()
	assert.Equal(t, status.SyncPhaseFailed, st.Phase)
	assert.Contains(t, st.Message, "HTTP 503")
}

func TestEngine_FetchAndMerge_PersistenceFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockStore := storemocks.NewMockStore(ctrl)
	mockStore.EXPECT().SaveAll(gomock.Any(), gomock.Len(1)).Return(nil, errors.New("disk full"))

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(sources.Item{Name: "js", Count: 100})}
	engine := tagsync.New(mockStore, src)

	result, err := engine.FetchAndMerge(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, status.SyncPhaseFailed, engine.Status().Phase)
}

func TestEngine_Refresh(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	_, err := st.SaveAll(context.Background(), []tags.Tag{
		{Name: "old-1", Count: 10},
		{Name: "old-2", Count: 20},
	})
	require.NoError(t, err)

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(
		sources.Item{Name: "new-1", Count: 30},
		sources.Item{Name: "new-2", Count: 10},
	)}
	engine := tagsync.New(st, src)

	result, err := engine.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)

	stored, err := st.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "new-1", stored[0].Name)
	assert.Equal(t, "new-2", stored[1].Name)
	assert.InDelta(t, 75.0, stored[0].SharePercent, 1e-9)
	// ids are never reused after a delete
	assert.Greater(t, stored[0].ID, int64(2))

	s := engine.Status()
	assert.Equal(t, status.SyncPhaseComplete, s.Phase)
	assert.Equal(t, status.TriggerRefresh, s.Trigger)
	assert.Equal(t, 2, s.TagCount)
	assert.Equal(t, result.CycleID, s.CycleID)
}

func TestEngine_Refresh_DeleteFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockStore := storemocks.NewMockStore(ctrl)
	mockStore.EXPECT().DeleteAll(gomock.Any()).Return(errors.New("locked"))

	src := &pagedSource{pageSize: testPageSize, pages: uniquePages}
	engine := tagsync.New(mockStore, src)

	result, err := engine.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, src.calls.Load())
}

func TestEngine_Refresh_UsesContextTrigger(t *testing.T) {
	t.Parallel()

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(sources.Item{Name: "js", Count: 1})}
	engine := tagsync.New(store.NewMemoryStore(), src)

	ctx := tagsync.WithTrigger(context.Background(), status.TriggerScheduled)
	_, err := engine.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.TriggerScheduled, engine.Status().Trigger)
}

func TestEngine_Rebuild_SwapsCollection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := store.NewMemoryStore()
	_, err := st.SaveAll(ctx, []tags.Tag{{Name: "old-1", Count: 10}, {Name: "old-2", Count: 20}})
	require.NoError(t, err)

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(
		sources.Item{Name: "new-1", Count: 30},
		sources.Item{Name: "new-2", Count: 10},
	)}
	engine := tagsync.New(st, src)

	result, err := engine.Rebuild(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)

	stored, err := st.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "new-1", stored[0].Name)
	assert.InDelta(t, 75.0, stored[0].SharePercent, 1e-9)

	s := engine.Status()
	assert.Equal(t, status.SyncPhaseComplete, s.Phase)
	assert.Equal(t, status.TriggerScheduled, s.Trigger)
}

func TestEngine_Rebuild_KeepsStoreWhenUpstreamFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := store.NewMemoryStore()
	_, err := st.SaveAll(ctx, collectionOf(1001))
	require.NoError(t, err)

	// the first page succeeds, the second is throttled
	src := &pagedSource{pageSize: testPageSize, pages: func(page int) (*sources.Page, error) {
		if page == 2 {
			return nil, errors.New("HTTP 400 throttle_violation")
		}
		return uniquePages(page)
	}}
	engine := tagsync.New(st, src)

	result, err := engine.Rebuild(tagsync.WithTrigger(ctx, status.TriggerScheduled))
	require.ErrorIs(t, err, tagsync.ErrUpstream)
	assert.Nil(t, result)

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1001, count)

	stored, err := st.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t0", stored[0].Name)

	s := engine.Status()
	assert.Equal(t, status.SyncPhaseFailed, s.Phase)
	assert.Equal(t, status.TriggerScheduled, s.Trigger)
}

func TestEngine_Rebuild_KeepsStoreWhenUpstreamIsEmpty(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	// neither DeleteAll nor SaveAll may be called
	mockStore := storemocks.NewMockStore(ctrl)

	engine := tagsync.New(mockStore, &pagedSource{pageSize: testPageSize, pages: singlePage()})

	result, err := engine.Rebuild(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Tags)
}

func TestEngine_EnsureFresh_AdequateStore(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockSource := sourcesmocks.NewMockTagSource(ctrl)
	// no upstream calls expected

	st := store.NewMemoryStore()
	_, err := st.SaveAll(context.Background(), []tags.Tag{{Name: "a", Count: 1}, {Name: "b", Count: 1}})
	require.NoError(t, err)

	engine := tagsync.New(st, mockSource, tagsync.WithMaxTags(2))

	collection, err := engine.EnsureFresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, collection, 2)
	assert.Equal(t, status.SyncPhaseIdle, engine.Status().Phase)
}

func TestEngine_EnsureFresh_FillsEmptyStore(t *testing.T) {
	t.Parallel()

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(sources.Item{Name: "js", Count: 100})}
	engine := tagsync.New(store.NewMemoryStore(), src)

	collection, err := engine.EnsureFresh(context.Background())
	require.NoError(t, err)
	require.Len(t, collection, 1)
	assert.Equal(t, "js", collection[0].Name)
	assert.Equal(t, status.TriggerListing, engine.Status().Trigger)
}

func TestEngine_EnsureFresh_ServesStoredTagsWhenPersistFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockStore := storemocks.NewMockStore(ctrl)
	existing := []tags.Tag{{ID: 1, Name: "go", Count: 5, SharePercent: 100}}
	mockStore.EXPECT().ReadAll(gomock.Any()).Return(existing, nil).Times(3)
	mockStore.EXPECT().SaveAll(gomock.Any(), gomock.Any()).Return(nil, errors.New("read-only"))

	src := &pagedSource{pageSize: testPageSize, pages: singlePage(sources.Item{Name: "js", Count: 100})}
	engine := tagsync.New(mockStore, src)

	collection, err := engine.EnsureFresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, existing, collection)
}

func TestEngine_EnsureFresh_UpstreamFailure(t *testing.T) {
	t.Parallel()

	src := &pagedSource{pageSize: testPageSize, pages: func(int) (*sources.Page, error) {
		return nil, sources.ErrUpstreamFailure
	}}
	engine := tagsync.New(store.NewMemoryStore(), src)

	_, err := engine.EnsureFresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, tagsync.ErrUpstream)
}

func TestEngine_EnsureFresh_ConcurrentCallersShareOneCycle(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	src := &pagedSource{pageSize: testPageSize}
	src.pages = func(int) (*sources.Page, error) {
		<-release
		return &sources.Page{Items: []sources.Item{{Name: "js", Count: 100}}, QuotaRemaining: -1}, nil
	}
	engine := tagsync.New(store.NewMemoryStore(), src, tagsync.WithMaxTags(1))

	const callers = 10
	var wg sync.WaitGroup
	results := make([][]tags.Tag, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.EnsureFresh(context.Background())
		}(i)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, "js", results[i][0].Name)
	}
}

func TestEngine_EnsureFresh_SurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	src := &pagedSource{pageSize: testPageSize}
	src.pages = func(int) (*sources.Page, error) {
		close(started)
		<-release
		return &sources.Page{Items: []sources.Item{{Name: "js", Count: 100}}, QuotaRemaining: -1}, nil
	}
	st := store.NewMemoryStore()
	engine := tagsync.New(st, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := engine.EnsureFresh(ctx)
		done <- err
	}()

	<-started
	cancel()
	close(release)
	require.NoError(t, <-done)

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
