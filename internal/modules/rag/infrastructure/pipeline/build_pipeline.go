package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/chunking"
	"ReqGraph/internal/modules/rag/infrastructure/nlp"
)

// BuildRequest 图构建 Pipeline 的输入，Text 为已抽取的纯文本
type BuildRequest struct {
	DocID    string
	Filename string
	Text     string
}

// BuildResult 图构建 Pipeline 的输出
type BuildResult struct {
	DocID        string `json:"doc_id"`
	Status       string `json:"status"`
	Language     string `json:"language"`
	Chunks       int    `json:"chunks"`
	Requirements int    `json:"requirements"`
	Entities     int    `json:"entities"`
	EmbedFail    int    `json:"embed_fail"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// BuildPipeline 文档图构建 Pipeline（基于 Eino compose.Graph）
//
// 节点顺序：Prepare → Chunk → Extract → Embed → Assemble → Persist → StatusUpdate
// 任一节点失败，StatusUpdate 负责把文档置为 error 并记录原因。
type BuildPipeline struct {
	store     repository.GraphStore
	index     repository.VectorIndex
	embedder  embedding.Embedder
	chunker   chunking.Chunker
	extractor *nlp.Extractor

	vectorDim int
	batchSize int
	r         compose.Runnable[*BuildRequest, *BuildResult]
}

func NewBuildPipeline(
	store repository.GraphStore,
	index repository.VectorIndex,
	embedder embedding.Embedder,
	chunker chunking.Chunker,
	extractor *nlp.Extractor,
	vectorDim int,
	batchSize int,
) (*BuildPipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store is nil")
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if chunker == nil {
		return nil, fmt.Errorf("chunker is nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is nil")
	}
	if vectorDim <= 0 {
		vectorDim = 384
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	p := &BuildPipeline{
		store:     store,
		index:     index,
		embedder:  embedder,
		chunker:   chunker,
		extractor: extractor,
		vectorDim: vectorDim,
		batchSize: batchSize,
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Build 执行一次图构建（封装 Eino Runnable.Invoke）。
// 构建失败时结果与错误同时返回，调用方仍能拿到 chunks/status 等字段。
func (p *BuildPipeline) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	res, err := p.r.Invoke(ctx, &req)
	if err != nil {
		return nil, err
	}
	if res != nil && res.Status == graph.StatusError {
		msg := res.Error
		if msg == "" {
			msg = "build failed"
		}
		return res, errors.New(msg)
	}
	return res, nil
}

// scrubErrMsg 压缩错误信息后入库，避免超长与换行污染
func scrubErrMsg(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
