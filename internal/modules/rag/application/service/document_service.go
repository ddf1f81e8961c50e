package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ReqGraph/internal/modules/rag/application/dto/respond"
	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/pipeline"
	"ReqGraph/internal/modules/rag/infrastructure/processing"
	"ReqGraph/internal/modules/rag/infrastructure/queue"
	"ReqGraph/pkg/util"
	"ReqGraph/pkg/xerr"
	"ReqGraph/pkg/zlog"

	"go.uber.org/zap"
)

// DocumentService 文档生命周期服务接口
type DocumentService interface {
	// Upload 保存上传文件、登记文档并派发异步构建任务
	Upload(ctx context.Context, file *multipart.FileHeader) (*respond.UploadRespond, error)
	// Get 查询单个文档的处理状态
	Get(ctx context.Context, docID string) (*respond.DocumentRespond, error)
	// List 列出全部文档
	List(ctx context.Context) (*respond.DocumentListRespond, error)
	// Delete 删除文档、派生子图、向量与原始文件
	Delete(ctx context.Context, docID string) error
}

type documentServiceImpl struct {
	store      repository.GraphStore
	index      repository.VectorIndex
	extractor  *processing.TextExtractor
	dispatcher queue.Dispatcher
	retrieve   *pipeline.RetrievePipeline
	uploadDir  string
}

// NewDocumentService 创建文档服务
func NewDocumentService(
	store repository.GraphStore,
	index repository.VectorIndex,
	extractor *processing.TextExtractor,
	dispatcher queue.Dispatcher,
	retrieve *pipeline.RetrievePipeline,
	uploadDir string,
) DocumentService {
	return &documentServiceImpl{
		store:      store,
		index:      index,
		extractor:  extractor,
		dispatcher: dispatcher,
		retrieve:   retrieve,
		uploadDir:  uploadDir,
	}
}

func (s *documentServiceImpl) Upload(ctx context.Context, file *multipart.FileHeader) (*respond.UploadRespond, error) {
	if file == nil {
		return nil, xerr.ErrParam
	}
	filename := strings.TrimSpace(filepath.Base(file.Filename))
	if filename == "" || filename == "." {
		return nil, xerr.ErrParam
	}
	if !s.extractor.Supported(filename) {
		return nil, xerr.Newf(xerr.BadRequest, "不支持的文件格式: %s", filepath.Ext(filename))
	}
	if file.Size > s.extractor.MaxSizeBytes() {
		return nil, xerr.Newf(xerr.BadRequest, "文件超过大小限制 %d MB", s.extractor.MaxSizeBytes()>>20)
	}

	docID := util.GenerateDocID()
	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.uploadDir, docID+ext)

	if err := s.saveFile(file, path); err != nil {
		zlog.Error("save upload failed", zap.String("filename", filename), zap.Error(err))
		return nil, fmt.Errorf("save upload: %w", err)
	}

	now := time.Now()
	doc := &graph.Document{
		DocId:     docID,
		Filename:  filename,
		Status:    graph.StatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	if err := s.dispatcher.Dispatch(ctx, queue.BuildJob{
		DocID:    docID,
		Filename: filename,
		Path:     path,
	}); err != nil {
		_ = s.store.UpdateStatus(ctx, docID, graph.StatusError, "dispatch build job failed")
		zlog.Error("dispatch build job failed", zap.String("doc_id", docID), zap.Error(err))
		return nil, err
	}

	zlog.Info("document uploaded",
		zap.String("doc_id", docID),
		zap.String("filename", filename),
		zap.Int64("size", file.Size),
	)
	return &respond.UploadRespond{
		DocID:    docID,
		Filename: filename,
		Status:   graph.StatusReceived,
	}, nil
}

func (s *documentServiceImpl) saveFile(file *multipart.FileHeader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func (s *documentServiceImpl) Get(ctx context.Context, docID string) (*respond.DocumentRespond, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, xerr.ErrParam
	}
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	r := toDocumentRespond(doc)
	return &r, nil
}

func (s *documentServiceImpl) List(ctx context.Context) (*respond.DocumentListRespond, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]respond.DocumentRespond, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentRespond(&docs[i]))
	}
	return &respond.DocumentListRespond{Documents: out, Count: len(out)}, nil
}

func (s *documentServiceImpl) Delete(ctx context.Context, docID string) error {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return xerr.ErrParam
	}
	if _, err := s.store.GetDocument(ctx, docID); err != nil {
		return err
	}

	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	if err := s.index.DeleteByDoc(ctx, docID); err != nil {
		zlog.Warn("vector delete failed", zap.String("doc_id", docID), zap.Error(err))
	}
	s.removeUploads(docID)
	if s.retrieve != nil {
		s.retrieve.InvalidateCache()
	}

	zlog.Info("document deleted", zap.String("doc_id", docID))
	return nil
}

func (s *documentServiceImpl) removeUploads(docID string) {
	matches, err := filepath.Glob(filepath.Join(s.uploadDir, docID+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func toDocumentRespond(doc *graph.Document) respond.DocumentRespond {
	r := respond.DocumentRespond{
		DocID:     doc.DocId,
		Filename:  doc.Filename,
		Status:    doc.Status,
		Error:     doc.Error,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt.Format(time.RFC3339),
	}
	if doc.ProcessedAt.Valid {
		r.ProcessedAt = doc.ProcessedAt.Time.Format(time.RFC3339)
	}
	return r
}
