package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"ReqGraph/internal/modules/rag/application/dto/respond"
	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/nlp"
	"ReqGraph/pkg/zlog"
)

// retrieveState 召回 Pipeline 的中间状态（在节点间传递）
type retrieveState struct {
	Req         *RetrieveRequest
	QueryVec    []float32
	Sampled     bool // 空查询或向量化失败时走无排序采样
	Hits        []repository.VectorHit
	Results     []respond.RetrievedChunk
	Start       time.Time
	EmbeddingMs int64
	SearchMs    int64
	EnrichMs    int64
	Err         error
}

// buildGraph 节点顺序：Validate → EmbedQuery → SearchVector → Enrich → BuildResult
func (p *RetrievePipeline) buildGraph(ctx context.Context) (compose.Runnable[*RetrieveRequest, *RetrieveResult], error) {
	const (
		Validate     = "Validate"
		EmbedQuery   = "EmbedQuery"
		SearchVector = "SearchVector"
		Enrich       = "Enrich"
		BuildResult  = "BuildResult"
	)

	g := compose.NewGraph[*RetrieveRequest, *RetrieveResult]()

	_ = g.AddLambdaNode(Validate, compose.InvokableLambdaWithOption(p.validateNode), compose.WithNodeName(Validate))
	_ = g.AddLambdaNode(EmbedQuery, compose.InvokableLambdaWithOption(p.embedQueryNode), compose.WithNodeName(EmbedQuery))
	_ = g.AddLambdaNode(SearchVector, compose.InvokableLambdaWithOption(p.searchVectorNode), compose.WithNodeName(SearchVector))
	_ = g.AddLambdaNode(Enrich, compose.InvokableLambdaWithOption(p.enrichNode), compose.WithNodeName(Enrich))
	_ = g.AddLambdaNode(BuildResult, compose.InvokableLambdaWithOption(p.buildResultNode), compose.WithNodeName(BuildResult))

	_ = g.AddEdge(compose.START, Validate)
	_ = g.AddEdge(Validate, EmbedQuery)
	_ = g.AddEdge(EmbedQuery, SearchVector)
	_ = g.AddEdge(SearchVector, Enrich)
	_ = g.AddEdge(Enrich, BuildResult)
	_ = g.AddEdge(BuildResult, compose.END)

	return g.Compile(ctx, compose.WithGraphName("RAGRetrievePipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// validateNode 节点 1：空查询不报错，标记走采样兜底
func (p *RetrievePipeline) validateNode(ctx context.Context, req *RetrieveRequest, _ ...any) (*retrieveState, error) {
	_ = ctx
	st := &retrieveState{Req: req, Start: time.Now()}
	if req == nil {
		st.Err = fmt.Errorf("retrieve request is nil")
		return st, nil
	}
	if strings.TrimSpace(req.Query) == "" {
		st.Sampled = true
	}
	return st, nil
}

// embedQueryNode 节点 2：查询向量化，失败降级为采样而不是报错
func (p *RetrievePipeline) embedQueryNode(ctx context.Context, st *retrieveState, _ ...any) (*retrieveState, error) {
	if st == nil {
		return &retrieveState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil || st.Sampled {
		return st, nil
	}

	embStart := time.Now()
	vecs, err := p.embedder.EmbedStrings(ctx, []string{st.Req.Query})
	if err != nil || len(vecs) == 0 || len(vecs[0]) != p.vectorDim {
		zlog.Warn("query embedding unavailable, falling back to sample",
			zap.String("query", st.Req.Query),
			zap.Error(err))
		st.Sampled = true
		st.EmbeddingMs = time.Since(embStart).Milliseconds()
		return st, nil
	}

	vec32 := make([]float32, len(vecs[0]))
	for i := range vecs[0] {
		vec32[i] = float32(vecs[0][i])
	}
	st.QueryVec = vec32
	st.EmbeddingMs = time.Since(embStart).Milliseconds()
	return st, nil
}

// searchVectorNode 节点 3：向量检索或无排序采样，然后按阈值过滤
func (p *RetrievePipeline) searchVectorNode(ctx context.Context, st *retrieveState, _ ...any) (*retrieveState, error) {
	if st == nil {
		return &retrieveState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	// 带排除条件时多捞一倍，过滤后再截回 topK
	fetchK := st.Req.TopK
	if st.Req.ExcludeDocID != "" {
		fetchK *= 2
	}

	searchStart := time.Now()
	if st.Sampled {
		chunks, err := p.store.SampleChunks(ctx, st.Req.FilterDocID, fetchK)
		if err != nil {
			st.Err = err
			return st, nil
		}
		hits := make([]repository.VectorHit, 0, len(chunks))
		for _, c := range chunks {
			if st.Req.ExcludeDocID != "" && c.DocId == st.Req.ExcludeDocID {
				continue
			}
			hits = append(hits, repository.VectorHit{
				ChunkID: c.ChunkId,
				DocID:   c.DocId,
				Content: c.Text,
			})
		}
		if len(hits) > st.Req.TopK {
			hits = hits[:st.Req.TopK]
		}
		st.Hits = hits
		st.SearchMs = time.Since(searchStart).Milliseconds()
		return st, nil
	}

	hits, err := p.index.Search(ctx, st.QueryVec, fetchK, st.Req.FilterDocID)
	if err != nil {
		st.Err = err
		return st, nil
	}
	filtered := make([]repository.VectorHit, 0, len(hits))
	for _, h := range hits {
		if h.Score < st.Req.ScoreThreshold {
			continue
		}
		if st.Req.ExcludeDocID != "" && h.DocID == st.Req.ExcludeDocID {
			continue
		}
		filtered = append(filtered, h)
	}
	if len(filtered) > st.Req.TopK {
		filtered = filtered[:st.Req.TopK]
	}
	st.Hits = filtered
	st.SearchMs = time.Since(searchStart).Milliseconds()
	return st, nil
}

// enrichNode 节点 4：沿图的边补需求上下文，单条失败只降级不报错
func (p *RetrievePipeline) enrichNode(ctx context.Context, st *retrieveState, _ ...any) (*retrieveState, error) {
	if st == nil {
		return &retrieveState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	enrichStart := time.Now()
	results := make([]respond.RetrievedChunk, 0, len(st.Hits))
	for _, h := range st.Hits {
		r := respond.RetrievedChunk{
			ChunkID: h.ChunkID,
			DocID:   h.DocID,
			Score:   h.Score,
			Text:    h.Content,
		}
		cc, err := p.store.ChunkContext(ctx, h.ChunkID)
		if err != nil {
			zlog.Warn("chunk context lookup failed",
				zap.String("chunk_id", h.ChunkID),
				zap.Error(err))
		} else {
			r.Context = contextBlock(cc)
		}
		results = append(results, r)
	}
	st.Results = results
	st.EnrichMs = time.Since(enrichStart).Milliseconds()
	return st, nil
}

// buildResultNode 节点 5：组装响应并打点
func (p *RetrievePipeline) buildResultNode(ctx context.Context, st *retrieveState, _ ...any) (*RetrieveResult, error) {
	_ = ctx
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}

	res := &RetrieveResult{Results: []respond.RetrievedChunk{}}
	if st.Req != nil {
		res.Query = st.Req.Query
	}
	if st.Results != nil {
		res.Results = st.Results
	}
	res.TotalHits = len(st.Hits)
	res.ReturnedCount = len(res.Results)
	res.Sampled = st.Sampled
	res.IsEmpty = res.ReturnedCount == 0
	res.EmbeddingMs = st.EmbeddingMs
	res.SearchMs = st.SearchMs
	res.EnrichMs = st.EnrichMs
	res.DurationMs = time.Since(st.Start).Milliseconds()

	topK := 0
	threshold := float32(0)
	filterDocID := ""
	if st.Req != nil {
		topK = st.Req.TopK
		threshold = st.Req.ScoreThreshold
		filterDocID = st.Req.FilterDocID
	}
	zlog.Info("rag retrieve done",
		zap.String("query", res.Query),
		zap.Int("top_k", topK),
		zap.Float32("score_threshold", threshold),
		zap.String("filter_doc_id", filterDocID),
		zap.Bool("sampled", res.Sampled),
		zap.Int("returned_count", res.ReturnedCount),
		zap.Int64("embedding_ms", res.EmbeddingMs),
		zap.Int64("search_ms", res.SearchMs),
		zap.Int64("enrich_ms", res.EnrichMs),
		zap.Int64("duration_ms", res.DurationMs))

	return res, st.Err
}

type contextLabels struct {
	requirement string
	actor       string
	action      string
	object      string
	result      string
	entities    string
}

var enLabels = contextLabels{
	requirement: "Requirement",
	actor:       "Actor",
	action:      "Action",
	object:      "Object",
	result:      "Result",
	entities:    "Entities",
}

var ruLabels = contextLabels{
	requirement: "Требование",
	actor:       "Актор",
	action:      "Действие",
	object:      "Объект",
	result:      "Результат",
	entities:    "Сущности",
}

// contextBlock 把图上下文渲染成标注文本，标签语言跟随需求语言
func contextBlock(cc *graph.ChunkContext) string {
	if cc == nil {
		return ""
	}
	labels := enLabels
	if len(cc.Requirements) > 0 && cc.Requirements[0].Language == nlp.LangRussian {
		labels = ruLabels
	}

	var b strings.Builder
	for _, r := range cc.Requirements {
		fmt.Fprintf(&b, "%s [%s]: %s\n", labels.requirement, r.ReqType, r.Description)
	}
	writeNames := func(label string, names []string) {
		if len(names) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(names, ", "))
		}
	}
	writeNames(labels.actor, actorNames(cc.Actors))
	writeNames(labels.action, actionNames(cc.Actions))
	writeNames(labels.object, objectNames(cc.Objects))
	writeNames(labels.result, resultDescriptions(cc.Results))
	writeNames(labels.entities, entityNames(cc.Entities))
	return strings.TrimRight(b.String(), "\n")
}

func actorNames(in []graph.Actor) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, v.Name)
	}
	return out
}

func actionNames(in []graph.Action) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, v.Name)
	}
	return out
}

func objectNames(in []graph.Object) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, v.Name)
	}
	return out
}

func resultDescriptions(in []graph.Result) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, v.Description)
	}
	return out
}

func entityNames(in []graph.Entity) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, v.Name)
	}
	return out
}
