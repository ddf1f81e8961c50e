package service

import (
	"context"
	"fmt"
	"strings"

	"ReqGraph/internal/modules/rag/application/dto/request"
	"ReqGraph/internal/modules/rag/application/dto/respond"
	"ReqGraph/internal/modules/rag/infrastructure/pipeline"
)

// RetrieveService RAG 召回服务接口
type RetrieveService interface {
	// Search 执行一次检索，空查询走采样兜底
	Search(ctx context.Context, req request.SearchRequest) (*respond.SearchRespond, error)
	// Similar 跨文档找相似片段，可排除来源文档
	Similar(ctx context.Context, req request.SimilarRequest) (*respond.SimilarRespond, error)
}

type retrieveServiceImpl struct {
	pipeline *pipeline.RetrievePipeline
}

// NewRetrieveService 创建 RAG 召回服务
func NewRetrieveService(p *pipeline.RetrievePipeline) RetrieveService {
	return &retrieveServiceImpl{pipeline: p}
}

func (s *retrieveServiceImpl) Search(ctx context.Context, req request.SearchRequest) (*respond.SearchRespond, error) {
	if s.pipeline == nil {
		return nil, fmt.Errorf("retrieve pipeline is nil")
	}

	result, err := s.pipeline.Retrieve(ctx, &pipeline.RetrieveRequest{
		Query:       strings.TrimSpace(req.Query),
		TopK:        req.TopK,
		FilterDocID: strings.TrimSpace(req.DocID),
	})
	if err != nil {
		return nil, err
	}

	return &respond.SearchRespond{
		Query:      result.Query,
		Results:    result.Results,
		Count:      result.ReturnedCount,
		Sampled:    result.Sampled,
		DurationMs: result.DurationMs,
	}, nil
}

func (s *retrieveServiceImpl) Similar(ctx context.Context, req request.SimilarRequest) (*respond.SimilarRespond, error) {
	if s.pipeline == nil {
		return nil, fmt.Errorf("retrieve pipeline is nil")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	if topK > 20 {
		topK = 20
	}

	result, err := s.pipeline.Retrieve(ctx, &pipeline.RetrieveRequest{
		Query:        strings.TrimSpace(req.Text),
		TopK:         topK,
		ExcludeDocID: strings.TrimSpace(req.ExcludeDocID),
	})
	if err != nil {
		return nil, err
	}

	return &respond.SimilarRespond{
		SimilarChunks: result.Results,
		Total:         result.ReturnedCount,
	}, nil
}
