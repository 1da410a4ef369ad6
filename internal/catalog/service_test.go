package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	id     content.CategoryID
	limit  int
	offset int
}

type fakeBackend struct {
	mu      sync.Mutex
	calls   []call
	results map[content.CategoryID][]content.Item
	fail    map[content.CategoryID]error
	block   chan struct{}
	started chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		results: map[content.CategoryID][]content.Item{},
		fail:    map[content.CategoryID]error{},
	}
}

func (f *fakeBackend) fetch(ctx context.Context, id content.CategoryID, limit, offset int) (content.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{id: id, limit: limit, offset: offset})
	started, block := f.started, f.block
	err := f.fail[id]
	items := f.results[id]
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return content.Page{}, err
	}
	return content.Page{Results: items}, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) endpoints() Endpoints {
	return Endpoints{Content: f.fetch, Video: f.fetch, Post: f.fetch, Event: f.fetch}
}

func items(n int, kind content.Kind) []content.Item {
	out := make([]content.Item, n)
	for i := range out {
		out[i] = content.Item{ID: fmt.Sprintf("%s-%d", kind, i), Kind: kind, Title: fmt.Sprintf("Item %d", i)}
	}
	return out
}

func newTestService(t *testing.T, fb *fakeBackend) *Service {
	t.Helper()
	svc, err := NewService(ServiceDeps{Endpoints: fb.endpoints(), Store: NewMemoryStore()})
	require.NoError(t, err)
	return svc
}

func TestGetVideoCategoryDispatchesFirstPage(t *testing.T) {
	fb := newFakeBackend()
	fb.results["42"] = items(5, content.KindVideo)
	svc := newTestService(t, fb)

	got, err := svc.Get(context.Background(), content.KindVideo, "42")
	require.NoError(t, err)
	require.Len(t, got, 5)

	require.Equal(t, []call{{id: "42", limit: 8, offset: 0}}, fb.calls)

	cached, ok := svc.Lookup(content.KindVideo, "42")
	require.True(t, ok)
	require.Len(t, cached, 5)
	require.False(t, svc.Loading(content.KindVideo, "42"))
}

func TestGetConcurrentCallersShareOneFetch(t *testing.T) {
	fb := newFakeBackend()
	fb.results["7"] = items(3, content.KindPost)
	fb.block = make(chan struct{})
	fb.started = make(chan struct{}, 1)
	m := metrics.NewCatalog(nil)
	svc, err := NewService(ServiceDeps{Endpoints: fb.endpoints(), Store: NewMemoryStore(), Metrics: m})
	require.NoError(t, err)

	const callers = 10
	var (
		wg   sync.WaitGroup
		errs atomic.Int32
		lens = make([]int, callers)
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err := svc.Get(context.Background(), content.KindPost, "7")
		if err != nil {
			errs.Add(1)
		}
		lens[0] = len(got)
	}()
	<-fb.started
	require.True(t, svc.Loading(content.KindPost, "7"))

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := svc.Get(context.Background(), content.KindPost, "7")
			if err != nil {
				errs.Add(1)
			}
			lens[i] = len(got)
		}(i)
	}
	// release only once every follower has seen the fetch in flight
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.SharedWaits.WithLabelValues(string(content.KindPost))) == callers-1
	}, 2*time.Second, 5*time.Millisecond)
	require.True(t, svc.Loading(content.KindPost, "7"))
	close(fb.block)
	wg.Wait()

	require.Zero(t, errs.Load())
	require.Equal(t, 1, fb.callCount())
	for i, n := range lens {
		require.Equalf(t, 3, n, "caller %d", i)
	}
	require.False(t, svc.Loading(content.KindPost, "7"))
}

func TestGetCachedEntryIsNeverRefetched(t *testing.T) {
	fb := newFakeBackend()
	svc := newTestService(t, fb)

	for i := 0; i < 3; i++ {
		got, err := svc.Get(context.Background(), content.KindEvent, "empty")
		require.NoError(t, err)
		require.Empty(t, got)
	}
	require.Equal(t, 1, fb.callCount())

	cached, ok := svc.Lookup(content.KindEvent, "empty")
	require.True(t, ok)
	require.NotNil(t, cached)
}

func TestGetFailureLeavesEntryUnsetAndRetries(t *testing.T) {
	fb := newFakeBackend()
	boom := errors.New("backend down")
	fb.fail["9"] = boom
	svc := newTestService(t, fb)

	_, err := svc.Get(context.Background(), content.KindContent, "9")
	require.ErrorIs(t, err, boom)

	_, ok := svc.Lookup(content.KindContent, "9")
	require.False(t, ok)
	require.False(t, svc.Loading(content.KindContent, "9"))

	fb.mu.Lock()
	delete(fb.fail, "9")
	fb.results["9"] = items(2, content.KindContent)
	fb.mu.Unlock()

	got, err := svc.Get(context.Background(), content.KindContent, "9")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 2, fb.callCount())
}

func TestGetCancelledWaiterDoesNotCancelFetch(t *testing.T) {
	fb := newFakeBackend()
	fb.results["1"] = items(4, content.KindVideo)
	fb.block = make(chan struct{})
	fb.started = make(chan struct{}, 1)
	svc := newTestService(t, fb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Get(ctx, content.KindVideo, "1")
		done <- err
	}()
	<-fb.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(fb.block)
	require.Eventually(t, func() bool {
		_, ok := svc.Lookup(content.KindVideo, "1")
		return ok && !svc.Loading(content.KindVideo, "1")
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, fb.callCount())
}

func TestGetDistinctKeysFetchIndependently(t *testing.T) {
	fb := newFakeBackend()
	svc := newTestService(t, fb)

	_, err := svc.Get(context.Background(), content.KindVideo, "1")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), content.KindPost, "1")
	require.NoError(t, err)
	require.Equal(t, 2, fb.callCount())
}

func TestGetUnknownKind(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	_, err := svc.Get(context.Background(), content.Kind("podcast"), "1")
	require.ErrorIs(t, err, content.ErrUnknownKind)
}

func TestWarmContinuesPastFailures(t *testing.T) {
	fb := newFakeBackend()
	fb.results["a"] = items(2, content.KindContent)
	fb.results["b"] = items(1, content.KindVideo)
	fb.fail["c"] = errors.New("nope")
	svc := newTestService(t, fb)

	got := svc.Warm(context.Background(), []Request{
		{Kind: content.KindContent, ID: "a"},
		{Kind: content.KindVideo, ID: "b"},
		{Kind: content.KindPost, ID: "c"},
	})
	require.Len(t, got, 2)
	require.Len(t, got["content-a"], 2)
	require.Len(t, got["video-b"], 1)
	_, ok := svc.Lookup(content.KindPost, "c")
	require.False(t, ok)
}

func TestFetchPageBypassesCacheAfterFirstPage(t *testing.T) {
	fb := newFakeBackend()
	fb.results["x"] = items(8, content.KindContent)
	svc := newTestService(t, fb)

	_, err := svc.FetchPage(context.Background(), content.KindContent, "x", 0)
	require.NoError(t, err)
	_, err = svc.FetchPage(context.Background(), content.KindContent, "x", 0)
	require.NoError(t, err)
	require.Equal(t, 1, fb.callCount())

	_, err = svc.FetchPage(context.Background(), content.KindContent, "x", 8)
	require.NoError(t, err)
	require.Equal(t, 2, fb.callCount())
	require.Equal(t, call{id: "x", limit: 8, offset: 8}, fb.calls[1])
}

func TestNewServiceValidatesDeps(t *testing.T) {
	fb := newFakeBackend()
	eps := fb.endpoints()
	eps.Event = nil

	_, err := NewService(ServiceDeps{Endpoints: eps, Store: NewMemoryStore()})
	require.ErrorIs(t, err, ErrEndpointsMissing)

	_, err = NewService(ServiceDeps{Endpoints: fb.endpoints()})
	require.ErrorIs(t, err, ErrStoreMissing)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	src := items(2, content.KindPost)
	require.NoError(t, store.Set(context.Background(), "post-1", src))
	src[0].Title = "mutated"

	got, ok, err := store.Get(context.Background(), "post-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Item 0", got[0].Title)
	require.Equal(t, 1, store.Len())
}
