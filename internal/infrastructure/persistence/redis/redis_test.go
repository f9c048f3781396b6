package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/application/multilingual"
	"finsaathi-ai-api/internal/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func TestTranslationCache_GetSetTTL(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewTranslationCache(client)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "translate:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "translate:abc", "hello", time.Hour))
	v, ok, err := cache.Get(ctx, "translate:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.Equal(t, time.Hour, mr.TTL("translate:abc"))

	mr.FastForward(time.Hour + time.Second)
	_, ok, err = cache.Get(ctx, "translate:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTranslationCache_ServerDownIsError(t *testing.T) {
	client, mr := newTestClient(t)
	mr.Close()

	_, ok, err := NewTranslationCache(client).Get(context.Background(), "translate:x")
	assert.Error(t, err)
	assert.False(t, ok)
}

type countingTranslator struct{ calls int }

func (c *countingTranslator) Translate(_ context.Context, text, _, tgt string) (string, error) {
	c.calls++
	return tgt + ":" + text, nil
}

func TestTranslationCache_WithPipeline(t *testing.T) {
	client, mr := newTestClient(t)
	tr := &countingTranslator{}
	p := multilingual.NewPipeline(tr, NewTranslationCache(client), multilingual.Config{WorkingLanguage: "en", CacheTTL: 24 * time.Hour})
	ctx := context.Background()

	assert.Equal(t, "en:मेरा बजट", p.ToWorkingLanguage(ctx, "मेरा बजट", "hi"))
	assert.Equal(t, "en:मेरा बजट", p.ToWorkingLanguage(ctx, "मेरा बजट", "hi"))
	assert.Equal(t, 1, tr.calls)

	key := multilingual.CacheKey("hi", "en", "मेरा बजट")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	// 缓存不可用时仍然实时翻译
	mr.Close()
	assert.Equal(t, "en:नया", p.ToWorkingLanguage(ctx, "नया", "hi"))
	assert.Equal(t, 2, tr.calls)
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	client, _ := newTestClient(t)
	l := NewRateLimiter(client)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()
	key := BuildOwnerRateLimitKey("u-1", "chat")

	for i := 0; i < 3; i++ {
		ok, remaining, err := l.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 2-i, remaining)
	}
	ok, remaining, err := l.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, remaining)

	now = now.Add(61 * time.Second)
	ok, _, err = l.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Reset(ctx, key))
	ok, remaining, err = l.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, remaining)
}

func TestRateLimiter_KeysAreIsolated(t *testing.T) {
	client, _ := newTestClient(t)
	l := NewRateLimiter(client)
	ctx := context.Background()

	ok, _, err := l.Allow(ctx, BuildOwnerRateLimitKey("u-1", "chat"), 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _, err = l.Allow(ctx, BuildOwnerRateLimitKey("u-2", "chat"), 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _, err = l.Allow(ctx, BuildOwnerRateLimitKey("u-1", "chat"), 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Server().Addr().Port

	client, err := NewClient(context.Background(), &config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, client.HealthCheck(context.Background()))
	_, err = NewClient(context.Background(), &config.RedisConfig{Host: host, Port: port, DialTimeout: 100 * time.Millisecond})
	assert.Error(t, err)
}

func TestKeyspace(t *testing.T) {
	assert.Equal(t, "translate", keyspace(multilingual.CacheKey("hi", "en", "namaste")))
	assert.Equal(t, "a:b", keyspace("a:b:c"))
	assert.Equal(t, "plain", keyspace("plain"))
}
