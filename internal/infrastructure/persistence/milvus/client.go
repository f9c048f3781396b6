// Package milvus 提供按 owner 隔离的知识块向量存储
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"finsaathi-ai-api/internal/config"
)

var tracer = otel.Tracer("milvus")

// connectTimeout 启动时连接上限，超时后向量功能降级而不是卡住启动
const connectTimeout = 10 * time.Second

// healthProbeCollection 仅用于探活，不会被创建
const healthProbeCollection = "health_probe"

// Client Milvus 客户端，集合名统一加前缀
type Client struct {
	milvus client.Client
	config *config.MilvusConfig
}

// NewClient 连接 Milvus，未配置账号时匿名连接
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc, err := client.NewClient(ctx, client.Config{
		Address:  addr,
		Username: cfg.User,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", addr, err)
	}
	return &Client{milvus: mc, config: cfg}, nil
}

// Milvus 获取底层 Milvus 客户端
func (c *Client) Milvus() client.Client {
	return c.milvus
}

// Close 关闭 Milvus 连接
func (c *Client) Close() error {
	return c.milvus.Close()
}

// HealthCheck 通过一次元数据请求确认服务可达
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck")
	defer span.End()

	if _, err := c.milvus.HasCollection(ctx, c.CollectionName(healthProbeCollection)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// CollectionName 加上部署前缀，入参已是 [a-z0-9_] 的 owner 集合名
func (c *Client) CollectionName(name string) string {
	if p := c.config.CollectionPrefix; p != "" {
		return p + "_" + name
	}
	return name
}

// HasCollection 检查 owner 集合是否存在
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	ok, err := c.milvus.HasCollection(ctx, c.CollectionName(name))
	if err != nil {
		span.RecordError(err)
	}
	return ok, err
}

// LoadCollection 同步加载集合，返回后即可检索
func (c *Client) LoadCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "milvus.LoadCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	if err := c.milvus.LoadCollection(ctx, c.CollectionName(name), false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}
