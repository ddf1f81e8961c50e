package queue

import (
	"context"
	"errors"
	"strings"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/pipeline"
	"ReqGraph/internal/modules/rag/infrastructure/processing"
	"ReqGraph/pkg/xerr"
	"ReqGraph/pkg/zlog"

	"go.uber.org/zap"
)

// BuildRunner 从原始文件到文档图的完整构建流程：
// 抽取文本 → 构建 Pipeline → 失效检索缓存。
type BuildRunner struct {
	store     repository.GraphStore
	extractor *processing.TextExtractor
	build     *pipeline.BuildPipeline
	retrieve  *pipeline.RetrievePipeline
}

func NewBuildRunner(store repository.GraphStore, extractor *processing.TextExtractor, build *pipeline.BuildPipeline, retrieve *pipeline.RetrievePipeline) *BuildRunner {
	return &BuildRunner{
		store:     store,
		extractor: extractor,
		build:     build,
		retrieve:  retrieve,
	}
}

func (r *BuildRunner) Process(ctx context.Context, job BuildJob) error {
	docID := strings.TrimSpace(job.DocID)
	if docID == "" {
		return errors.New("build job missing doc_id")
	}

	if _, err := r.store.GetDocument(ctx, docID); err != nil {
		if xerr.IsNotFound(err) {
			zlog.Warn("rag build job skipped, document missing", zap.String("doc_id", docID))
			return nil
		}
		return err
	}

	if err := r.store.UpdateStatus(ctx, docID, graph.StatusExtractingText, ""); err != nil {
		return err
	}

	text, err := r.extractor.Extract(job.Path)
	if err != nil {
		_ = r.store.UpdateStatus(ctx, docID, graph.StatusError, scrubErrMsg(err.Error()))
		zlog.Warn("rag build job text extraction failed",
			zap.String("doc_id", docID),
			zap.String("filename", job.Filename),
			zap.Error(err),
		)
		return nil
	}

	if strings.TrimSpace(text) == "" {
		// 空文档不进构建管线
		_ = r.store.UpdateStatus(ctx, docID, graph.StatusError, "no text content found")
		zlog.Warn("rag build job skipped, empty document",
			zap.String("doc_id", docID),
			zap.String("filename", job.Filename),
		)
		return nil
	}

	if err := r.store.UpdateStatus(ctx, docID, graph.StatusBuildingRAG, ""); err != nil {
		return err
	}

	res, err := r.build.Build(ctx, pipeline.BuildRequest{
		DocID:    docID,
		Filename: job.Filename,
		Text:     text,
	})
	if err != nil {
		// Build 内部已把文档置为 error
		zlog.Warn("rag build job failed",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
		return nil
	}

	if r.retrieve != nil {
		r.retrieve.InvalidateCache()
	}

	zlog.Info("rag build job done",
		zap.String("doc_id", docID),
		zap.Int("chunks", res.Chunks),
		zap.Int("requirements", res.Requirements),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return nil
}
