package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"finsaathi-ai-api/internal/domain/entity"
)

var errStoreDown = errors.New("dial tcp 127.0.0.1:19530: connect: connection refused")

// memStore 按集合保存片段，用词袋余弦近似相似度
type memStore struct {
	mu          sync.Mutex
	collections map[string][]*entity.KnowledgeChunk
	down        bool
	created     []string
}

func newMemStore() *memStore {
	return &memStore{collections: map[string][]*entity.KnowledgeChunk{}}
}

func (m *memStore) GetOrCreateCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errStoreDown
	}
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = nil
		m.created = append(m.created, collection)
	}
	return nil
}

func (m *memStore) AddDocuments(_ context.Context, collection string, chunks []*entity.KnowledgeChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errStoreDown
	}
	m.collections[collection] = append(m.collections[collection], chunks...)
	return nil
}

func (m *memStore) Query(_ context.Context, collection string, filter Filter, text string, topK int) ([]VectorHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errStoreDown
	}
	hits := make([]VectorHit, 0)
	for _, c := range m.collections[collection] {
		if !filter.matches(c) {
			continue
		}
		hits = append(hits, VectorHit{Chunk: *c, Distance: 1 - bagCosine(text, c.Text)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *memStore) DeleteByFilter(_ context.Context, collection string, filter Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return 0, errStoreDown
	}
	kept := m.collections[collection][:0]
	removed := 0
	for _, c := range m.collections[collection] {
		if filter.matches(c) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if _, ok := m.collections[collection]; ok {
		m.collections[collection] = kept
	}
	return removed, nil
}

func (f Filter) matches(c *entity.KnowledgeChunk) bool {
	return (f.OwnerID == "" || c.OwnerID == f.OwnerID) && (f.SourceID == "" || c.SourceID == f.SourceID)
}

func (m *memStore) count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

func bagCosine(a, b string) float64 {
	va, vb := bag(a), bag(b)
	var dot, na, nb float64
	for k, x := range va {
		dot += x * vb[k]
		na += x * x
	}
	for _, y := range vb {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func bag(s string) map[string]float64 {
	out := map[string]float64{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w]++
	}
	return out
}
