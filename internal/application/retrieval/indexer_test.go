package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/domain/entity"
)

func newTestIndexer(store VectorStore) *Indexer {
	return NewIndexer(store, IndexerConfig{MinChunkRunes: 20})
}

func TestIndexer_AdvisorNoteProducesTwoChunks(t *testing.T) {
	store := newMemStore()
	idx := newTestIndexer(store)

	note := strings.Repeat("n", 1200)
	n := idx.Index(context.Background(), IndexRequest{
		Space:    entity.SpaceAdvisorPersona,
		OwnerID:  "advisor-1",
		SourceID: "note-1",
		Text:     note,
		Class:    entity.ContentClassAdvisorNote,
	})
	assert.Equal(t, 2, n)

	coll := CollectionName(entity.SpaceAdvisorPersona, "advisor-1", 0)
	require.Equal(t, 2, store.count(coll))
	for i, c := range store.collections[coll] {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, 2, c.TotalChunks)
		assert.Equal(t, "advisor-1", c.OwnerID)
		assert.Equal(t, "note-1", c.SourceID)
	}
}

func TestIndexer_ShortTextSingleChunk(t *testing.T) {
	store := newMemStore()
	n := newTestIndexer(store).Index(context.Background(), IndexRequest{
		Space: entity.SpaceUserDocs, OwnerID: "u1", SourceID: "d1", Text: "salary slip march",
	})
	assert.Equal(t, 1, n)
}

func TestIndexer_StoreDownReturnsZero(t *testing.T) {
	store := newMemStore()
	store.down = true
	n := newTestIndexer(store).Index(context.Background(), IndexRequest{
		Space: entity.SpaceUserDocs, OwnerID: "u1", SourceID: "d1", Text: "some document text",
	})
	assert.Equal(t, 0, n)
}

func TestIndexer_NotConfigured(t *testing.T) {
	idx := NewIndexer(nil, IndexerConfig{})
	assert.Equal(t, 0, idx.Index(context.Background(), IndexRequest{
		Space: entity.SpaceUserDocs, OwnerID: "u1", SourceID: "d1", Text: "text",
	}))
	_, err := idx.IndexStrict(context.Background(), IndexRequest{
		Space: entity.SpaceUserDocs, OwnerID: "u1", SourceID: "d1", Text: "text",
	})
	assert.ErrorIs(t, err, ErrVectorDisabled)
}

func TestIndexer_InvalidRequest(t *testing.T) {
	idx := newTestIndexer(newMemStore())
	_, err := idx.IndexStrict(context.Background(), IndexRequest{Space: entity.SpaceUserDocs, SourceID: "d1", Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = idx.IndexStrict(context.Background(), IndexRequest{Space: "shared", OwnerID: "u1", SourceID: "d1", Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIndexer_ReindexReplacesChunks(t *testing.T) {
	store := newMemStore()
	idx := newTestIndexer(store)
	ctx := context.Background()
	req := IndexRequest{Space: entity.SpaceUserDocs, OwnerID: "u1", SourceID: "d1", Text: strings.Repeat("x", 1200)}

	first := idx.Index(ctx, req)
	require.Equal(t, 3, first)

	req.Text = "short replacement"
	assert.Equal(t, 1, idx.Index(ctx, req))
	assert.Equal(t, 1, store.count(CollectionName(entity.SpaceUserDocs, "u1", 0)))
}

func TestIndexer_DeleteBySource(t *testing.T) {
	store := newMemStore()
	idx := newTestIndexer(store)
	ctx := context.Background()

	idx.Index(ctx, IndexRequest{Space: entity.SpaceUserDocs, OwnerID: "u1", SourceID: "d1", Text: "insurance policy"})
	idx.Index(ctx, IndexRequest{Space: entity.SpaceUserDocs, OwnerID: "u1", SourceID: "d2", Text: "tax receipt"})

	n, err := idx.DeleteBySource(ctx, entity.SpaceUserDocs, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// 再删一次是 no-op
	n, err = idx.DeleteBySource(ctx, entity.SpaceUserDocs, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, 1, store.count(CollectionName(entity.SpaceUserDocs, "u1", 0)))
}
