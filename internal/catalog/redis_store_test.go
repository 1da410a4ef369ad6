package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediahub.dev/portal/internal/content"
)

func newMiniRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniRedisStore(t, 0)
	key := content.CacheKey(content.KindVideo, "42")

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, key, nil))
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got)
	require.Empty(t, got)

	require.NoError(t, store.Set(ctx, key, items(3, content.KindVideo)))
	got, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, items(3, content.KindVideo), got)

	require.True(t, mr.Exists(redisKeyPrefix+key))
	require.False(t, mr.Exists(key))
	require.Zero(t, mr.TTL(redisKeyPrefix+key))
}

func TestRedisStoreTTLExpiresEntries(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniRedisStore(t, time.Minute)
	key := content.CacheKey(content.KindPost, "community")

	require.NoError(t, store.Set(ctx, key, items(2, content.KindPost)))
	require.Equal(t, time.Minute, mr.TTL(redisKeyPrefix+key))

	mr.FastForward(2 * time.Minute)
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStoreRejectsCorruptValue(t *testing.T) {
	store, mr := newMiniRedisStore(t, 0)
	key := content.CacheKey(content.KindEvent, "workshops")
	require.NoError(t, mr.Set(redisKeyPrefix+key, "{not json"))

	_, ok, err := store.Get(context.Background(), key)
	require.Error(t, err)
	require.False(t, ok)
}

func TestNewRedisStorePingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{})
	require.Error(t, err)
}

func TestServiceOnRedisFetchesOncePerKey(t *testing.T) {
	store, _ := newMiniRedisStore(t, 0)
	fb := newFakeBackend()
	fb.results["42"] = items(5, content.KindVideo)

	first, err := NewService(ServiceDeps{Endpoints: fb.endpoints(), Store: store})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := first.Get(context.Background(), content.KindVideo, "42")
			assert.NoError(t, err)
			assert.Len(t, got, 5)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, fb.callCount())

	// a second instance sharing the store reads the entry without fetching
	second, err := NewService(ServiceDeps{Endpoints: fb.endpoints(), Store: store})
	require.NoError(t, err)
	got, err := second.Get(context.Background(), content.KindVideo, "42")
	require.NoError(t, err)
	require.Len(t, got, 5)
	cached, ok := second.Lookup(content.KindVideo, "42")
	require.True(t, ok)
	require.Len(t, cached, 5)
	require.Equal(t, 1, fb.callCount())
}
