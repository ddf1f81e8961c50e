package vectordb

import (
	"context"
	"math"
	"sort"

	"ReqGraph/internal/modules/rag/domain/repository"
)

// StoreIndex 内嵌向量检索：直接扫描图库里带 embedding 的 chunk，
// 逐条算余弦相似度。不依赖外部向量库，是默认实现。
type StoreIndex struct {
	store repository.GraphStore
}

func NewStoreIndex(store repository.GraphStore) *StoreIndex {
	return &StoreIndex{store: store}
}

// Upsert 向量随 chunk 行一起落在图库里，这里无需额外写入
func (s *StoreIndex) Upsert(_ context.Context, _ []repository.VectorItem) error {
	return nil
}

// DeleteByDoc 子图删除时向量随 chunk 行一起删除
func (s *StoreIndex) DeleteByDoc(_ context.Context, _ string) error {
	return nil
}

func (s *StoreIndex) Search(ctx context.Context, vector []float32, topK int, filterDocID string) ([]repository.VectorHit, error) {
	chunks, err := s.store.ListEmbeddedChunks(ctx, filterDocID)
	if err != nil {
		return nil, err
	}

	hits := make([]repository.VectorHit, 0, len(chunks))
	for _, c := range chunks {
		// 维度不一致的候选直接排除
		if len(c.Embedding) != len(vector) {
			continue
		}
		score, ok := cosineSimilarity(vector, c.Embedding)
		if !ok {
			continue
		}
		hits = append(hits, repository.VectorHit{
			ChunkID: c.ChunkId,
			DocID:   c.DocId,
			Score:   score,
			Content: c.Text,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// cosineSimilarity 比较时做 L2 归一化，零向量视为不可比
func cosineSimilarity(a, b []float32) (float32, bool) {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb))), true
}

var _ repository.VectorIndex = (*StoreIndex)(nil)
