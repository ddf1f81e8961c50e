package http

import (
	ragRequest "ReqGraph/internal/modules/rag/application/dto/request"
	"ReqGraph/internal/modules/rag/application/service"
	"ReqGraph/pkg/back"
	"ReqGraph/pkg/xerr"
	"ReqGraph/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RAGHandler 检索、需求查询与重建索引 HTTP Handler
type RAGHandler struct {
	retrieveSvc service.RetrieveService
	reindexSvc  service.ReindexService
	reqSvc      service.RequirementService
}

func NewRAGHandler(retrieveSvc service.RetrieveService, reindexSvc service.ReindexService, reqSvc service.RequirementService) *RAGHandler {
	return &RAGHandler{
		retrieveSvc: retrieveSvc,
		reindexSvc:  reindexSvc,
		reqSvc:      reqSvc,
	}
}

// Search 执行 RAG 检索
//
// 路由: POST /rag/search
// 请求体: SearchRequest
func (h *RAGHandler) Search(c *gin.Context) {
	var req ragRequest.SearchRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.retrieveSvc.Search(c.Request.Context(), req)
	if err != nil {
		zlog.Warn("rag search failed", zap.String("query", req.Query), zap.Error(err))
	}
	back.Result(c, data, err)
}

// FindSimilar 跨文档找相似片段，可排除来源文档
//
// 路由: GET /rag/similar?text=...&top_k=5&exclude_doc_id=xxx
func (h *RAGHandler) FindSimilar(c *gin.Context) {
	var req ragRequest.SimilarRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.retrieveSvc.Similar(c.Request.Context(), req)
	if err != nil {
		zlog.Warn("rag similar search failed", zap.String("text", req.Text), zap.Error(err))
	}
	back.Result(c, data, err)
}

// Reindex 重建指定文档的图与向量
//
// 路由: POST /rag/reindex
// 请求体: ReindexRequest
func (h *RAGHandler) Reindex(c *gin.Context) {
	var req ragRequest.ReindexRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.reindexSvc.Reindex(c.Request.Context(), req.DocID)
	if err != nil {
		zlog.Warn("rag reindex failed", zap.String("doc_id", req.DocID), zap.Error(err))
	}
	back.Result(c, data, err)
}

// ListRequirements 列出抽取的需求节点
//
// 路由: GET /rag/requirements?doc_id=xxx&type=functional
func (h *RAGHandler) ListRequirements(c *gin.Context) {
	data, err := h.reqSvc.List(c.Request.Context(), c.Query("doc_id"), c.Query("type"))
	back.Result(c, data, err)
}
