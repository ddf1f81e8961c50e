package repository

import (
	"context"

	"ReqGraph/internal/modules/rag/domain/graph"
)

// GraphStore 是 domain 层定义的“图持久化能力抽象”。
//
// 设计约束：
// 1) application 层只依赖本接口，不直接依赖 gorm 或具体数据库。
// 2) SaveGraph 必须原子：子图要么整体写入，要么整体回滚。
// 3) DeleteSubtree 必须原子：文档节点连同全部派生节点与边一并删除。
type GraphStore interface {
	CreateDocument(ctx context.Context, doc *graph.Document) error
	GetDocument(ctx context.Context, docID string) (*graph.Document, error)
	ListDocuments(ctx context.Context) ([]graph.Document, error)
	UpdateStatus(ctx context.Context, docID string, status string, errMsg string) error
	MarkIndexed(ctx context.Context, docID string) error
	DeleteDocument(ctx context.Context, docID string) error

	// SaveGraph 写入一篇文档的子图（不含 Document 节点本身）
	SaveGraph(ctx context.Context, g *graph.DocumentGraph) error
	// DeleteSubtree 删除 Document 节点及其全部派生节点与边
	DeleteSubtree(ctx context.Context, docID string) error

	CountChunks(ctx context.Context, docID string) (int64, error)
	ListChunks(ctx context.Context, docID string) ([]graph.Chunk, error)
	// ListEmbeddedChunks 返回带 embedding 的 chunk，docID 为空表示全库
	ListEmbeddedChunks(ctx context.Context, docID string) ([]graph.Chunk, error)
	GetChunks(ctx context.Context, chunkIDs []string) ([]graph.Chunk, error)
	SampleChunks(ctx context.Context, docID string, limit int) ([]graph.Chunk, error)

	ListRequirements(ctx context.Context, docID, reqType string) ([]graph.Requirement, error)
	// ListRequirementDetails 需求连同其关联 chunk 文本与实体名
	ListRequirementDetails(ctx context.Context, docID, reqType string) ([]graph.RequirementDetail, error)
	// ChunkContext 收集 chunk 周边的需求、AAOR 分解与实体
	ChunkContext(ctx context.Context, chunkID string) (*graph.ChunkContext, error)
}
