package request

// SearchRequest RAG 检索请求
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
	DocID string `json:"doc_id"`
}

// SimilarRequest 跨文档找相似片段，ExcludeDocID 用于排除来源文档
type SimilarRequest struct {
	Text         string `form:"text" json:"text" binding:"required"`
	TopK         int    `form:"top_k" json:"top_k"`
	ExcludeDocID string `form:"exclude_doc_id" json:"exclude_doc_id"`
}

// ReindexRequest 重建指定文档的图与向量
type ReindexRequest struct {
	DocID string `json:"doc_id" binding:"required"`
}

// CompletionRequest 补全请求，UseRAG 控制是否注入召回上下文
type CompletionRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	DocID  string `json:"doc_id"`
	UseRAG bool   `json:"use_rag"`
}

// EditingRequest 文本润色请求
type EditingRequest struct {
	Text        string `json:"text" binding:"required"`
	Instruction string `json:"instruction"`
	DocID       string `json:"doc_id"`
	UseRAG      bool   `json:"use_rag"`
}
