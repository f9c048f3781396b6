package milvus

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/config"
)

type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, f.dim)
		out[i][0] = 0.25
	}
	return out, nil
}

func TestVectorStore_NotConfigured(t *testing.T) {
	var s *VectorStore
	ctx := context.Background()

	assert.ErrorIs(t, s.GetOrCreateCollection(ctx, "c"), retrieval.ErrVectorDisabled)
	_, err := s.Query(ctx, "c", retrieval.Filter{OwnerID: "u-1"}, "q", 3)
	assert.ErrorIs(t, err, retrieval.ErrVectorDisabled)
	_, err = s.DeleteByFilter(ctx, "c", retrieval.Filter{SourceID: "doc"})
	assert.ErrorIs(t, err, retrieval.ErrVectorDisabled)

	s = NewVectorStore(&Client{config: &config.MilvusConfig{}}, nil, 0)
	assert.Equal(t, DefaultVectorDimension, s.dim)
	assert.ErrorIs(t, s.AddDocuments(ctx, "c", nil), retrieval.ErrVectorDisabled)
}

func TestVectorStore_Embed(t *testing.T) {
	s := NewVectorStore(nil, &fakeEmbedder{dim: 4}, 4)
	vecs, err := s.embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.25, 0, 0, 0}, vecs[0])

	s = NewVectorStore(nil, &fakeEmbedder{dim: 3}, 4)
	_, err = s.embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "dimension mismatch")

	s = NewVectorStore(nil, &fakeEmbedder{err: errors.New("boom")}, 4)
	_, err = s.embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "boom")
}

func TestFilterExpr(t *testing.T) {
	assert.Equal(t, `source_id == "doc-1"`, filterExpr(retrieval.Filter{SourceID: "doc-1"}))
	assert.Equal(t, `source_id == "a\"b"`, filterExpr(retrieval.Filter{SourceID: `a"b`}))
	assert.Equal(t, `id != ""`, filterExpr(retrieval.Filter{}))
	assert.Equal(t, `owner_id == "u-1" && source_id == "doc-1"`, filterExpr(retrieval.Filter{OwnerID: "u-1", SourceID: "doc-1"}))
}

func TestSearchExpr(t *testing.T) {
	assert.Equal(t, `owner_id == "u-1"`, searchExpr(retrieval.Filter{OwnerID: "u-1"}))
	assert.Equal(t, `owner_id == "a\"b"`, searchExpr(retrieval.Filter{OwnerID: `a"b`}))
	assert.Empty(t, searchExpr(retrieval.Filter{}))
}

func TestHitsFromResults(t *testing.T) {
	results := []client.SearchResult{{
		ResultCount: 2,
		Scores:      []float32{0.9, 0.4},
		Fields: client.ResultSet{
			entity.NewColumnVarChar(FieldID, []string{"c1", "c2"}),
			entity.NewColumnVarChar(FieldOwnerID, []string{"u-1", "u-1"}),
			entity.NewColumnVarChar(FieldSourceID, []string{"doc", "doc"}),
			entity.NewColumnInt64(FieldChunkIndex, []int64{0, 1}),
			entity.NewColumnInt64(FieldTotalChunks, []int64{2, 2}),
			entity.NewColumnVarChar(FieldCategory, []string{"tax", ""}),
			entity.NewColumnVarChar(FieldTextContent, []string{"first", "second"}),
		},
	}}

	hits := hitsFromResults(results)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].Chunk.ID)
	assert.Equal(t, "u-1", hits[0].Chunk.OwnerID)
	assert.Equal(t, "tax", hits[0].Chunk.Category)
	assert.Equal(t, 1, hits[1].Chunk.ChunkIndex)
	assert.Equal(t, 2, hits[1].Chunk.TotalChunks)
	assert.Equal(t, "second", hits[1].Chunk.Text)
	assert.Empty(t, hits[1].Chunk.SubjectRef)
	assert.InDelta(t, 0.1, hits[0].Distance, 1e-6)
	assert.InDelta(t, 0.6, hits[1].Distance, 1e-6)

	assert.Empty(t, hitsFromResults(nil))
}

func TestTruncateBytes(t *testing.T) {
	assert.Equal(t, "abc", truncateBytes("abc", 5))
	s := "नमस्ते"
	out := truncateBytes(s, 7)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), 7)
	assert.Equal(t, "नम", out)
}

func TestKnowledgeChunksSchema(t *testing.T) {
	schema := KnowledgeChunksSchema("user_docs_u1_abcd1234", 8)
	assert.Equal(t, "user_docs_u1_abcd1234", schema.CollectionName)
	require.Len(t, schema.Fields, 9)
	assert.True(t, schema.Fields[0].PrimaryKey)
	assert.Equal(t, "8", schema.Fields[1].TypeParams["dim"])
}
