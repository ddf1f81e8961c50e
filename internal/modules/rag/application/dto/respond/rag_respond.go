package respond

// RetrievedChunk 召回结果中的一个 chunk，Context 为图上下文富化文本
type RetrievedChunk struct {
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Score   float32 `json:"score"`
	Text    string  `json:"text"`
	Context string  `json:"context,omitempty"`
}

type SearchRespond struct {
	Query      string           `json:"query"`
	Results    []RetrievedChunk `json:"results"`
	Count      int              `json:"count"`
	Sampled    bool             `json:"sampled"`
	DurationMs int64            `json:"duration_ms"`
}

type SimilarRespond struct {
	SimilarChunks []RetrievedChunk `json:"similar_chunks"`
	Total         int              `json:"total"`
}

type DocumentRespond struct {
	DocID       string `json:"doc_id"`
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

type DocumentListRespond struct {
	Documents []DocumentRespond `json:"documents"`
	Count     int               `json:"count"`
}

type UploadRespond struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

type ReindexRespond struct {
	DocID  string `json:"doc_id"`
	Status string `json:"status"`
	Chunks int64  `json:"chunks"`
}

type RequirementRespond struct {
	ReqID       string   `json:"req_id"`
	DocID       string   `json:"doc_id"`
	ReqType     string   `json:"req_type"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Chunks      []string `json:"chunks"`
	Entities    []string `json:"entities"`
}

type RequirementListRespond struct {
	Requirements []RequirementRespond `json:"requirements"`
	Count        int                  `json:"count"`
}

type CompletionRespond struct {
	Content      string           `json:"content"`
	Model        string           `json:"model"`
	RAGChunks    []RetrievedChunk `json:"rag_chunks,omitempty"`
	PromptTokens int              `json:"prompt_tokens,omitempty"`
	TotalTokens  int              `json:"total_tokens,omitempty"`
	DurationMs   int64            `json:"duration_ms"`
}
