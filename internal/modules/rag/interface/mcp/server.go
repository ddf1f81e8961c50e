package mcp

import (
	"context"
	"fmt"
	"strings"

	ragRequest "ReqGraph/internal/modules/rag/application/dto/request"
	"ReqGraph/internal/modules/rag/application/service"
	"ReqGraph/pkg/zlog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ServerConfig MCP Server 配置
type ServerConfig struct {
	Name    string
	Version string
}

// Dependencies MCP 工具依赖的应用服务
type Dependencies struct {
	RetrieveSvc    service.RetrieveService
	DocumentSvc    service.DocumentService
	RequirementSvc service.RequirementService
}

// NewServer 创建 MCP Server 并注册文档检索工具
func NewServer(conf ServerConfig, deps Dependencies) *server.MCPServer {
	s := server.NewMCPServer(
		conf.Name,
		conf.Version,
		server.WithToolCapabilities(true),
	)

	h := &toolHandler{deps: deps}
	h.registerTools(s)
	return s
}

type toolHandler struct {
	deps Dependencies
}

func (h *toolHandler) registerTools(s *server.MCPServer) {
	if h.deps.RetrieveSvc != nil {
		searchTool := mcp.NewTool("search_documents",
			mcp.WithDescription("在已索引的需求文档中做语义检索，返回最相关的文本块及其图上下文"),
			mcp.WithString("query", mcp.Required(), mcp.Description("检索查询文本")),
			mcp.WithNumber("top_k", mcp.Description("返回的结果数，默认取服务端配置")),
			mcp.WithString("doc_id", mcp.Description("限定在单个文档内检索，空为全库")),
		)
		s.AddTool(searchTool, h.handleSearch)
	}

	if h.deps.DocumentSvc != nil {
		listTool := mcp.NewTool("list_documents",
			mcp.WithDescription("列出已上传的文档及其处理状态"),
		)
		s.AddTool(listTool, h.handleListDocuments)
	}

	if h.deps.RequirementSvc != nil {
		reqTool := mcp.NewTool("list_requirements",
			mcp.WithDescription("列出从文档中抽取出的需求条目"),
			mcp.WithString("doc_id", mcp.Description("限定文档，空为全库")),
			mcp.WithString("req_type", mcp.Description("按类型过滤：functional/non_functional/constraint")),
		)
		s.AddTool(reqTool, h.handleListRequirements)
	}
}

func (h *toolHandler) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format, expected map"), nil
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	topK := 0
	if v, ok := args["top_k"].(float64); ok {
		topK = int(v)
	}
	docID, _ := args["doc_id"].(string)

	res, err := h.deps.RetrieveSvc.Search(ctx, ragRequest.SearchRequest{
		Query: query,
		TopK:  topK,
		DocID: docID,
	})
	if err != nil {
		zlog.Error("search_documents failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("检索失败：%v", err)), nil
	}

	if len(res.Results) == 0 {
		return mcp.NewToolResultText("没有检索到相关内容。"), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("检索到 %d 个相关片段：\n", len(res.Results)))
	for i, r := range res.Results {
		sb.WriteString(fmt.Sprintf("%d. [%.3f] (%s) %s\n", i+1, r.Score, r.DocID, r.Text))
		if r.Context != "" {
			sb.WriteString(r.Context)
			sb.WriteString("\n")
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (h *toolHandler) handleListDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.deps.DocumentSvc.List(ctx)
	if err != nil {
		zlog.Error("list_documents failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("查询文档列表失败：%v", err)), nil
	}

	if res.Count == 0 {
		return mcp.NewToolResultText("当前没有已上传的文档。"), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("共 %d 篇文档：\n", res.Count))
	for i, d := range res.Documents {
		sb.WriteString(fmt.Sprintf("%d. %s (ID: %s) - %s\n", i+1, d.Filename, d.DocID, d.Status))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (h *toolHandler) handleListRequirements(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID := ""
	reqType := ""
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		docID, _ = args["doc_id"].(string)
		reqType, _ = args["req_type"].(string)
	}

	res, err := h.deps.RequirementSvc.List(ctx, docID, reqType)
	if err != nil {
		zlog.Error("list_requirements failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("查询需求列表失败：%v", err)), nil
	}

	if res.Count == 0 {
		return mcp.NewToolResultText("没有找到需求条目。"), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("共 %d 条需求：\n", res.Count))
	for i, r := range res.Requirements {
		sb.WriteString(fmt.Sprintf("%d. [%s][%s] %s\n", i+1, r.ReqType, r.DocID, r.Description))
	}
	return mcp.NewToolResultText(sb.String()), nil
}
