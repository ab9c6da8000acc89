package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

func setupTestRedis(t *testing.T) (*LocalCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLocalCache(client, 24*time.Hour), mr
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestLocalCache_Get_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("storefront:"+domain.CartRecordKey, `[{"productId":"1"}]`))

	data, err := cache.Get(context.Background(), domain.CartRecordKey)
	require.NoError(t, err)
	assert.Equal(t, `[{"productId":"1"}]`, string(data))
}

func TestLocalCache_Get_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	_, err := cache.Get(context.Background(), domain.CartRecordKey)
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestLocalCache_Get_ConnectionError(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), domain.CartRecordKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrCacheMiss)
	assert.Contains(t, err.Error(), "redis get cart:v1")
}

// ---------------------------------------------------------------------------
// Set / Delete
// ---------------------------------------------------------------------------

func TestLocalCache_Set_AppliesTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, cache.Set(context.Background(), domain.GuestWishlistKey, []byte(`["A"]`)))

	got, err := mr.Get("storefront:" + domain.GuestWishlistKey)
	require.NoError(t, err)
	assert.Equal(t, `["A"]`, got)
	assert.Equal(t, 24*time.Hour, mr.TTL("storefront:"+domain.GuestWishlistKey))

	mr.FastForward(25 * time.Hour)
	_, err = cache.Get(context.Background(), domain.GuestWishlistKey)
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestLocalCache_Delete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, domain.CartRecordKey, []byte(`[]`)))
	require.NoError(t, cache.Delete(ctx, domain.CartRecordKey))
	assert.False(t, mr.Exists("storefront:"+domain.CartRecordKey))

	require.NoError(t, cache.Delete(ctx, "never-written"))
}

func TestLocalCache_PrefixedSession(t *testing.T) {
	cache, mr := setupTestRedis(t)
	scoped := repository.Prefixed(cache, "session:abc:")

	require.NoError(t, scoped.Set(context.Background(), domain.CartRecordKey, []byte(`[]`)))
	assert.True(t, mr.Exists("storefront:session:abc:cart:v1"))
}

func TestLocalCache_Ping(t *testing.T) {
	cache, mr := setupTestRedis(t)
	assert.NoError(t, cache.Ping(context.Background()))
	mr.Close()
	assert.Error(t, cache.Ping(context.Background()))
}
