package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"ReqGraph/internal/modules/rag/application/dto/respond"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/pkg/zlog"
)

// RetrieveRequest RAG 召回 Pipeline 的输入请求
type RetrieveRequest struct {
	Query          string  // 查询文本，可为空（空查询走无排序采样兜底）
	TopK           int     // 默认取配置值，范围 1-50
	FilterDocID    string  // 只在指定文档内检索，空为全库
	ExcludeDocID   string  // 跨库找相似时排除来源文档
	ScoreThreshold float32 // 相似度阈值，0 表示用配置默认值
}

// RetrieveResult RAG 召回 Pipeline 的输出结果
type RetrieveResult struct {
	Query         string                   `json:"query"`
	Results       []respond.RetrievedChunk `json:"results"`
	TotalHits     int                      `json:"total_hits"`
	ReturnedCount int                      `json:"returned_count"`
	Sampled       bool                     `json:"sampled"`
	IsEmpty       bool                     `json:"is_empty"`
	EmbeddingMs   int64                    `json:"embedding_ms"`
	SearchMs      int64                    `json:"search_ms"`
	EnrichMs      int64                    `json:"enrich_ms"`
	DurationMs    int64                    `json:"duration_ms"`
}

// RetrievePipeline RAG 召回 Pipeline（基于 Eino compose.Graph）
//
// 1. 与 BuildPipeline 保持一致的 Graph + Lambda 节点结构
// 2. 只依赖 domain 层接口，不直接依赖具体向量库
// 3. 结果带 TTL 缓存，检索超时返回空结果而不是错误
type RetrievePipeline struct {
	store    repository.GraphStore
	index    repository.VectorIndex
	embedder embedding.Embedder

	defaultTopK      int
	defaultThreshold float32
	vectorDim        int
	searchTimeout    time.Duration
	cache            *resultCache

	r compose.Runnable[*RetrieveRequest, *RetrieveResult]
}

type RetrieveOptions struct {
	TopK           int
	ScoreThreshold float32
	VectorDim      int
	SearchTimeout  time.Duration
	CacheSize      int
	CacheTTL       time.Duration
}

func NewRetrievePipeline(
	store repository.GraphStore,
	index repository.VectorIndex,
	embedder embedding.Embedder,
	opts RetrieveOptions,
) (*RetrievePipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store is nil")
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = 0.7
	}
	if opts.VectorDim <= 0 {
		opts.VectorDim = 384
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Second
	}

	p := &RetrievePipeline{
		store:            store,
		index:            index,
		embedder:         embedder,
		defaultTopK:      opts.TopK,
		defaultThreshold: opts.ScoreThreshold,
		vectorDim:        opts.VectorDim,
		searchTimeout:    opts.SearchTimeout,
		cache:            newResultCache(opts.CacheSize, opts.CacheTTL),
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Retrieve 执行一次召回。命中缓存直接返回；检索超时返回空结果并记日志。
func (p *RetrievePipeline) Retrieve(ctx context.Context, req *RetrieveRequest) (*RetrieveResult, error) {
	if req == nil {
		return nil, fmt.Errorf("retrieve request is nil")
	}
	req.Query = strings.TrimSpace(req.Query)
	req.TopK = p.normalizeTopK(req.TopK)
	if req.ScoreThreshold <= 0 {
		req.ScoreThreshold = p.defaultThreshold
	}

	if cached, ok := p.cache.Get(req); ok {
		return cached, nil
	}

	tctx, cancel := context.WithTimeout(ctx, p.searchTimeout)
	defer cancel()

	res, err := p.r.Invoke(tctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zlog.Warn("rag retrieve timed out",
				zap.String("query", req.Query),
				zap.Duration("timeout", p.searchTimeout))
			return &RetrieveResult{
				Query:   req.Query,
				Results: []respond.RetrievedChunk{},
				IsEmpty: true,
			}, nil
		}
		return nil, err
	}

	p.cache.Add(req, res)
	return res, nil
}

// InvalidateCache 图重建后清空缓存
func (p *RetrievePipeline) InvalidateCache() {
	p.cache.Purge()
}

func (p *RetrievePipeline) normalizeTopK(topK int) int {
	if topK <= 0 {
		return p.defaultTopK
	}
	if topK > 50 {
		return 50
	}
	return topK
}
