package redis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// TranslationCache 翻译结果缓存，键由调用方按内容哈希生成
type TranslationCache struct {
	client *Client
}

func NewTranslationCache(client *Client) *TranslationCache {
	return &TranslationCache{client: client}
}

// Get 未命中返回 ok=false 且 err=nil
func (c *TranslationCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "cache.translation.Get")
	defer span.End()

	val, err := c.client.Get(ctx, key)
	if err != nil {
		if IsNil(err) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return "", false, nil
		}
		return "", false, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return val, true, nil
}

// Set 写入并设置 TTL
func (c *TranslationCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "cache.translation.Set")
	defer span.End()

	return c.client.Set(ctx, key, value, ttl)
}
