package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/pkg/logger"
	"finsaathi-ai-api/pkg/metrics"
)

const (
	defaultTopK         = 5
	maxTopK             = 50
	defaultQueryTimeout = 8 * time.Second
)

// EngineConfig 检索参数
type EngineConfig struct {
	DefaultTopK   int
	Timeout       time.Duration
	MaxOwnerRunes int
}

// Engine 在 owner 自己的集合内做相似度检索
type Engine struct {
	store VectorStore

	defaultTopK   int
	timeout       time.Duration
	maxOwnerRunes int
}

func NewEngine(store VectorStore, cfg EngineConfig) *Engine {
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = defaultTopK
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Engine{
		store:         store,
		defaultTopK:   topK,
		timeout:       timeout,
		maxOwnerRunes: cfg.MaxOwnerRunes,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.store != nil
}

// Query 任何失败都返回空切片，不返回错误。
func (e *Engine) Query(ctx context.Context, req QueryRequest) []entity.RetrievalResult {
	out := []entity.RetrievalResult{}
	space := string(req.Space)

	if err := validateOwner(req.Space, req.OwnerID); err != nil {
		logger.Warn(ctx, "knowledge query rejected", "error", err.Error())
		return out
	}
	text := strings.TrimSpace(req.Text)
	if text == "" || !e.Enabled() {
		return out
	}
	topK := req.TopK
	if topK <= 0 {
		topK = e.defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	collection := CollectionName(req.Space, req.OwnerID, e.maxOwnerRunes)
	if err := e.store.GetOrCreateCollection(ctx, collection); err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(space, "error").Inc()
		logger.Error(ctx, "knowledge query failed", err, "space", space, "owner_id", req.OwnerID)
		return out
	}
	hits, err := e.store.Query(ctx, collection, Filter{OwnerID: req.OwnerID}, text, topK)
	metrics.MilvusSearchDuration.WithLabelValues(space).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(space, "error").Inc()
		logger.Error(ctx, "knowledge query failed", err, "space", space, "owner_id", req.OwnerID)
		return out
	}
	metrics.MilvusSearchTotal.WithLabelValues(space, "ok").Inc()

	for _, hit := range hits {
		if hit.Chunk.OwnerID != req.OwnerID {
			// 集合按 owner 隔离，出现其他 owner 的片段说明写入路径有缺陷
			logger.Error(ctx, "foreign chunk in owner collection", nil,
				"space", space,
				"owner_id", req.OwnerID,
				"chunk_id", hit.Chunk.ID,
			)
			continue
		}
		out = append(out, entity.RetrievalResult{
			Text:      hit.Chunk.Text,
			SourceTag: sourceTag(hit.Chunk),
			Score:     1 - hit.Distance,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func sourceTag(c entity.KnowledgeChunk) string {
	if c.Category == "" {
		return c.SourceID
	}
	return c.Category + ":" + c.SourceID
}
