package repository

import "context"

// VectorItem 向量写入的标准字段
type VectorItem struct {
	ChunkID string
	DocID   string
	Vector  []float32
	Content string
}

// VectorHit 相似度命中，Score 为余弦相似度，越大越相近
type VectorHit struct {
	ChunkID string
	DocID   string
	Score   float32
	Content string
}

// VectorIndex 是 domain 层定义的“向量检索能力抽象”。
// infrastructure 提供两种实现：内嵌余弦扫描（默认）与 Milvus 适配器，可由配置切换。
type VectorIndex interface {
	Upsert(ctx context.Context, items []VectorItem) error
	DeleteByDoc(ctx context.Context, docID string) error
	// Search 按向量搜索，filterDocID 为空表示全库
	Search(ctx context.Context, vector []float32, topK int, filterDocID string) ([]VectorHit, error)
}
