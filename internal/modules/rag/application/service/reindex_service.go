package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"ReqGraph/internal/modules/rag/application/dto/respond"
	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/pipeline"
	"ReqGraph/internal/modules/rag/infrastructure/processing"
	"ReqGraph/pkg/xerr"
	"ReqGraph/pkg/zlog"

	"go.uber.org/zap"
)

// ReindexService 重建指定文档的图与向量索引
type ReindexService interface {
	// Reindex 同步重建：删旧子图 → 重抽文本 → 重建图与向量
	Reindex(ctx context.Context, docID string) (*respond.ReindexRespond, error)
}

type reindexServiceImpl struct {
	store     repository.GraphStore
	index     repository.VectorIndex
	extractor *processing.TextExtractor
	build     *pipeline.BuildPipeline
	retrieve  *pipeline.RetrievePipeline
	uploadDir string
}

// NewReindexService 创建重建索引服务
func NewReindexService(
	store repository.GraphStore,
	index repository.VectorIndex,
	extractor *processing.TextExtractor,
	build *pipeline.BuildPipeline,
	retrieve *pipeline.RetrievePipeline,
	uploadDir string,
) ReindexService {
	return &reindexServiceImpl{
		store:     store,
		index:     index,
		extractor: extractor,
		build:     build,
		retrieve:  retrieve,
		uploadDir: uploadDir,
	}
}

func (s *reindexServiceImpl) Reindex(ctx context.Context, docID string) (*respond.ReindexRespond, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, xerr.ErrParam
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	path, ok := s.findUpload(docID, doc.Filename)
	if !ok {
		return nil, xerr.Newf(xerr.NotFound, "原始文件不存在: %s", doc.Filename)
	}

	// 子图连同 Document 节点一并删除，之后重新落一条文档记录
	if err := s.store.DeleteSubtree(ctx, docID); err != nil {
		return nil, err
	}
	if err := s.index.DeleteByDoc(ctx, docID); err != nil {
		zlog.Warn("vector delete failed", zap.String("doc_id", docID), zap.Error(err))
	}
	if s.retrieve != nil {
		s.retrieve.InvalidateCache()
	}

	if err := s.store.CreateDocument(ctx, &graph.Document{
		DocId:    docID,
		Filename: doc.Filename,
		Status:   graph.StatusExtractingText,
	}); err != nil {
		return nil, err
	}
	text, err := s.extractor.Extract(path)
	if err != nil {
		_ = s.store.UpdateStatus(ctx, docID, graph.StatusError, err.Error())
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		// 空文档不进构建管线，状态照实记错
		_ = s.store.UpdateStatus(ctx, docID, graph.StatusError, "no text content found")
		return &respond.ReindexRespond{DocID: docID, Status: graph.StatusError, Chunks: 0}, nil
	}
	if err := s.store.UpdateStatus(ctx, docID, graph.StatusBuildingRAG, ""); err != nil {
		return nil, err
	}

	res, err := s.build.Build(ctx, pipeline.BuildRequest{
		DocID:    docID,
		Filename: doc.Filename,
		Text:     text,
	})
	if err != nil {
		// 失败已记入文档状态，重建结果照实返回
		zlog.Warn("reindex build failed", zap.String("doc_id", docID), zap.Error(err))
		return &respond.ReindexRespond{DocID: docID, Status: graph.StatusError, Chunks: 0}, nil
	}

	chunks, err := s.store.CountChunks(ctx, docID)
	if err != nil {
		return nil, err
	}
	if s.retrieve != nil {
		s.retrieve.InvalidateCache()
	}

	zlog.Info("reindex done",
		zap.String("doc_id", docID),
		zap.Int64("chunks", chunks),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return &respond.ReindexRespond{
		DocID:  docID,
		Status: res.Status,
		Chunks: chunks,
	}, nil
}

// findUpload 按三级回退定位原始文件：
// doc_id 加原扩展名 → 无扩展名的 doc_id → doc_id 前缀匹配
func (s *reindexServiceImpl) findUpload(docID, filename string) (string, bool) {
	if ext := filepath.Ext(filename); ext != "" {
		p := filepath.Join(s.uploadDir, docID+ext)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}

	p := filepath.Join(s.uploadDir, docID)
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return p, true
	}

	matches, err := filepath.Glob(filepath.Join(s.uploadDir, docID+"*"))
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && !fi.IsDir() {
			return m, true
		}
	}
	return "", false
}
