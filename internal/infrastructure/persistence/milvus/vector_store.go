package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"finsaathi-ai-api/internal/application/retrieval"
	domain "finsaathi-ai-api/internal/domain/entity"
)

// VectorStore 基于 Milvus 的知识片段存储，向量化在写入与检索时完成
type VectorStore struct {
	client   *Client
	embedder embedding.Embedder
	dim      int

	ready sync.Map // 已确认存在且已加载的集合
	sf    singleflight.Group
}

var _ retrieval.VectorStore = (*VectorStore)(nil)

// NewVectorStore 创建向量存储
func NewVectorStore(client *Client, embedder embedding.Embedder, dim int) *VectorStore {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &VectorStore{client: client, embedder: embedder, dim: dim}
}

func (s *VectorStore) configured() bool {
	return s != nil && s.client != nil && s.client.milvus != nil && s.embedder != nil
}

// GetOrCreateCollection 幂等；并发调用同一集合只会创建一次
func (s *VectorStore) GetOrCreateCollection(ctx context.Context, collection string) error {
	if !s.configured() {
		return retrieval.ErrVectorDisabled
	}
	if _, ok := s.ready.Load(collection); ok {
		return nil
	}

	_, err, _ := s.sf.Do(collection, func() (interface{}, error) {
		if _, ok := s.ready.Load(collection); ok {
			return nil, nil
		}
		if err := s.ensure(ctx, collection); err != nil {
			return nil, err
		}
		s.ready.Store(collection, struct{}{})
		return nil, nil
	})
	return err
}

func (s *VectorStore) ensure(ctx context.Context, collection string) error {
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		name := s.client.CollectionName(collection)
		if err := s.client.milvus.CreateCollection(ctx, KnowledgeChunksSchema(name, s.dim), entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, s.hnswM(), s.hnswEf())
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := s.client.milvus.CreateIndex(ctx, name, FieldVector, idx, false); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return s.client.LoadCollection(ctx, collection)
}

func (s *VectorStore) hnswM() int {
	if m := s.client.config.HNSWM; m > 0 {
		return m
	}
	return 16
}

func (s *VectorStore) hnswEf() int {
	if ef := s.client.config.HNSWEfConstruction; ef > 0 {
		return ef
	}
	return 200
}

func (s *VectorStore) searchEf() int {
	if ef := s.client.config.SearchEf; ef > 0 {
		return ef
	}
	return 128
}

// AddDocuments 向量化后写入；主键相同的片段被覆盖
func (s *VectorStore) AddDocuments(ctx context.Context, collection string, chunks []*domain.KnowledgeChunk) error {
	if !s.configured() {
		return retrieval.ErrVectorDisabled
	}
	ctx, span := tracer.Start(ctx, "milvus.AddDocuments",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("count", len(chunks)),
		))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return err
	}

	n := len(chunks)
	ids := make([]string, n)
	owners := make([]string, n)
	sources := make([]string, n)
	indexes := make([]int64, n)
	totals := make([]int64, n)
	categories := make([]string, n)
	subjects := make([]string, n)
	contents := make([]string, n)
	for i, c := range chunks {
		ids[i] = c.ID
		owners[i] = c.OwnerID
		sources[i] = c.SourceID
		indexes[i] = int64(c.ChunkIndex)
		totals[i] = int64(c.TotalChunks)
		categories[i] = c.Category
		subjects[i] = c.SubjectRef
		contents[i] = truncateBytes(c.Text, maxTextContentLen)
	}

	_, err = s.client.milvus.Upsert(ctx, s.client.CollectionName(collection), "",
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldVector, s.dim, vectors),
		entity.NewColumnVarChar(FieldOwnerID, owners),
		entity.NewColumnVarChar(FieldSourceID, sources),
		entity.NewColumnInt64(FieldChunkIndex, indexes),
		entity.NewColumnInt64(FieldTotalChunks, totals),
		entity.NewColumnVarChar(FieldCategory, categories),
		entity.NewColumnVarChar(FieldSubjectRef, subjects),
		entity.NewColumnVarChar(FieldTextContent, contents),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// Query 单次向量化后检索，Distance = 1 - 余弦相似度
func (s *VectorStore) Query(ctx context.Context, collection string, filter retrieval.Filter, text string, topK int) ([]retrieval.VectorHit, error) {
	if !s.configured() {
		return nil, retrieval.ErrVectorDisabled
	}
	ctx, span := tracer.Start(ctx, "milvus.Query",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sp, err := entity.NewIndexHNSWSearchParam(s.searchEf())
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := s.client.milvus.Search(ctx,
		s.client.CollectionName(collection),
		nil,
		searchExpr(filter),
		outputFields,
		[]entity.Vector{entity.FloatVector(vectors[0])},
		FieldVector,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := hitsFromResults(results)
	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// DeleteByFilter 集合不存在时返回 0
func (s *VectorStore) DeleteByFilter(ctx context.Context, collection string, filter retrieval.Filter) (int, error) {
	if !s.configured() {
		return 0, retrieval.ErrVectorDisabled
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByFilter",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("source_id", filter.SourceID),
		))
	defer span.End()

	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		s.ready.Delete(collection)
		return 0, nil
	}
	if err := s.GetOrCreateCollection(ctx, collection); err != nil {
		return 0, err
	}

	expr := filterExpr(filter)
	name := s.client.CollectionName(collection)
	rs, err := s.client.milvus.Query(ctx, name, nil, expr, []string{FieldID})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	n := 0
	if col := rs.GetColumn(FieldID); col != nil {
		n = col.Len()
	}
	if n == 0 {
		return 0, nil
	}

	if err := s.client.milvus.Delete(ctx, name, "", expr); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	span.SetAttributes(attribute.Int("deleted", n))
	return n, nil
}

func (s *VectorStore) embed(ctx context.Context, texts []string) ([][]float32, error) {
	raw, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed: %w", err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(raw))
	}
	out := make([][]float32, len(raw))
	for i, v := range raw {
		if len(v) != s.dim {
			return nil, fmt.Errorf("embedding dimension mismatch: want %d, got %d", s.dim, len(v))
		}
		out[i] = toFloat32(v)
	}
	return out, nil
}

// filterExpr 空过滤条件匹配全部片段
func filterExpr(f retrieval.Filter) string {
	if expr := searchExpr(f); expr != "" {
		return expr
	}
	return FieldID + ` != ""`
}

// searchExpr 过滤条件为空时返回空表达式，检索不加过滤
func searchExpr(f retrieval.Filter) string {
	conds := make([]string, 0, 2)
	if f.OwnerID != "" {
		conds = append(conds, FieldOwnerID+" == "+strconv.Quote(f.OwnerID))
	}
	if f.SourceID != "" {
		conds = append(conds, FieldSourceID+" == "+strconv.Quote(f.SourceID))
	}
	return strings.Join(conds, " && ")
}

func hitsFromResults(results []client.SearchResult) []retrieval.VectorHit {
	hits := []retrieval.VectorHit{}
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			chunk := domain.KnowledgeChunk{
				ID:          varCharAt(result.Fields, FieldID, i),
				OwnerID:     varCharAt(result.Fields, FieldOwnerID, i),
				SourceID:    varCharAt(result.Fields, FieldSourceID, i),
				ChunkIndex:  int(int64At(result.Fields, FieldChunkIndex, i)),
				TotalChunks: int(int64At(result.Fields, FieldTotalChunks, i)),
				Category:    varCharAt(result.Fields, FieldCategory, i),
				SubjectRef:  varCharAt(result.Fields, FieldSubjectRef, i),
				Text:        varCharAt(result.Fields, FieldTextContent, i),
			}
			hits = append(hits, retrieval.VectorHit{
				Chunk:    chunk,
				Distance: 1 - float64(result.Scores[i]),
			})
		}
	}
	return hits
}

func varCharAt(rs client.ResultSet, field string, i int) string {
	if col, ok := rs.GetColumn(field).(*entity.ColumnVarChar); ok && i < col.Len() {
		return col.Data()[i]
	}
	return ""
}

func int64At(rs client.ResultSet, field string, i int) int64 {
	if col, ok := rs.GetColumn(field).(*entity.ColumnInt64); ok && i < col.Len() {
		return col.Data()[i]
	}
	return 0
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// truncateBytes 按字节上限截断且不切开多字节字符
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := 0
	for i := range s {
		if i > max {
			break
		}
		cut = i
	}
	return s[:cut]
}
