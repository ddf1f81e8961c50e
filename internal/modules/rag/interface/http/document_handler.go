package http

import (
	"ReqGraph/internal/modules/rag/application/service"
	"ReqGraph/pkg/back"
	"ReqGraph/pkg/xerr"
	"ReqGraph/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DocumentHandler 文档上传与生命周期 HTTP Handler
type DocumentHandler struct {
	docSvc service.DocumentService
}

func NewDocumentHandler(docSvc service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docSvc: docSvc}
}

// Upload 处理文档上传
//
// 路由: POST /rag/documents
// 请求: multipart/form-data，字段名 file
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, "缺少 file 字段")
		return
	}

	data, err := h.docSvc.Upload(c.Request.Context(), file)
	if err != nil {
		zlog.Warn("document upload failed", zap.String("filename", file.Filename), zap.Error(err))
	}
	back.Result(c, data, err)
}

// Get 查询文档处理状态
//
// 路由: GET /rag/documents/:doc_id
func (h *DocumentHandler) Get(c *gin.Context) {
	data, err := h.docSvc.Get(c.Request.Context(), c.Param("doc_id"))
	back.Result(c, data, err)
}

// List 列出全部文档
//
// 路由: GET /rag/documents
func (h *DocumentHandler) List(c *gin.Context) {
	data, err := h.docSvc.List(c.Request.Context())
	back.Result(c, data, err)
}

// Delete 删除文档及其派生数据
//
// 路由: DELETE /rag/documents/:doc_id
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := c.Param("doc_id")
	err := h.docSvc.Delete(c.Request.Context(), docID)
	if err == nil {
		zlog.Info("document delete accepted", zap.String("doc_id", docID))
	}
	back.Result(c, gin.H{"doc_id": docID}, err)
}
