package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/chunking"
	"ReqGraph/internal/modules/rag/infrastructure/nlp"
	"ReqGraph/pkg/zlog"
)

// buildState 图构建 Pipeline 的中间状态（在节点间传递）
type buildState struct {
	Req        *BuildRequest
	Pieces     []chunking.Piece
	Extraction *nlp.Extraction
	Vectors    [][]float32 // 与 Pieces 对齐，失败项为 nil
	EmbedFail  int
	Graph      *graph.DocumentGraph
	Start      time.Time
	Err        error
}

func (p *BuildPipeline) buildGraph(ctx context.Context) (compose.Runnable[*BuildRequest, *BuildResult], error) {
	const (
		Prepare      = "Prepare"
		Chunk        = "Chunk"
		Extract      = "Extract"
		Embed        = "Embed"
		Assemble     = "Assemble"
		Persist      = "Persist"
		StatusUpdate = "StatusUpdate"
	)

	g := compose.NewGraph[*BuildRequest, *BuildResult]()

	_ = g.AddLambdaNode(Prepare, compose.InvokableLambdaWithOption(p.prepareNode), compose.WithNodeName(Prepare))
	_ = g.AddLambdaNode(Chunk, compose.InvokableLambdaWithOption(p.chunkNode), compose.WithNodeName(Chunk))
	_ = g.AddLambdaNode(Extract, compose.InvokableLambdaWithOption(p.extractNode), compose.WithNodeName(Extract))
	_ = g.AddLambdaNode(Embed, compose.InvokableLambdaWithOption(p.embedNode), compose.WithNodeName(Embed))
	_ = g.AddLambdaNode(Assemble, compose.InvokableLambdaWithOption(p.assembleNode), compose.WithNodeName(Assemble))
	_ = g.AddLambdaNode(Persist, compose.InvokableLambdaWithOption(p.persistNode), compose.WithNodeName(Persist))
	_ = g.AddLambdaNode(StatusUpdate, compose.InvokableLambdaWithOption(p.statusUpdateNode), compose.WithNodeName(StatusUpdate))

	_ = g.AddEdge(compose.START, Prepare)
	_ = g.AddEdge(Prepare, Chunk)
	_ = g.AddEdge(Chunk, Extract)
	_ = g.AddEdge(Extract, Embed)
	_ = g.AddEdge(Embed, Assemble)
	_ = g.AddEdge(Assemble, Persist)
	_ = g.AddEdge(Persist, StatusUpdate)
	_ = g.AddEdge(StatusUpdate, compose.END)

	return g.Compile(ctx, compose.WithGraphName("GraphBuildPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// prepareNode 节点 1：校验请求并 upsert 文档节点，状态置为 processing。
// 文档不存在时就地创建，重建场景不依赖上游先写 Document。
func (p *BuildPipeline) prepareNode(ctx context.Context, req *BuildRequest, _ ...any) (*buildState, error) {
	st := &buildState{Req: req, Start: time.Now()}
	if req == nil {
		st.Err = fmt.Errorf("nil request")
		return st, nil
	}
	if strings.TrimSpace(req.DocID) == "" {
		st.Err = fmt.Errorf("missing doc_id")
		return st, nil
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		if doc, err := p.store.GetDocument(ctx, req.DocID); err == nil && doc != nil {
			filename = doc.Filename
		}
	}
	if filename == "" {
		filename = req.DocID
	}

	if err := p.store.CreateDocument(ctx, &graph.Document{
		DocId:    req.DocID,
		Filename: filename,
		Status:   graph.StatusProcessing,
	}); err != nil {
		st.Err = err
		return st, nil
	}
	return st, nil
}

// chunkNode 节点 2：结构化切分，空文本直接判失败
func (p *BuildPipeline) chunkNode(ctx context.Context, st *buildState, _ ...any) (*buildState, error) {
	if st == nil {
		return &buildState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	pieces, err := p.chunker.Chunk(ctx, st.Req.Text)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if len(pieces) == 0 {
		st.Err = fmt.Errorf("document produced no chunks")
		return st, nil
	}
	st.Pieces = pieces
	return st, nil
}

// extractNode 节点 3：需求与实体抽取
func (p *BuildPipeline) extractNode(ctx context.Context, st *buildState, _ ...any) (*buildState, error) {
	_ = ctx
	if st == nil {
		return &buildState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}
	st.Extraction = p.extractor.Extract(st.Req.Text, st.Pieces)
	return st, nil
}

// embedNode 节点 4：按批向量化，维度不符的单条失败不拖垮整篇
func (p *BuildPipeline) embedNode(ctx context.Context, st *buildState, _ ...any) (*buildState, error) {
	if st == nil {
		return &buildState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	st.Vectors = make([][]float32, 0, len(st.Pieces))
	for lo := 0; lo < len(st.Pieces); lo += p.batchSize {
		hi := lo + p.batchSize
		if hi > len(st.Pieces) {
			hi = len(st.Pieces)
		}
		texts := make([]string, 0, hi-lo)
		for _, piece := range st.Pieces[lo:hi] {
			texts = append(texts, piece.Text)
		}

		vecs, err := p.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			st.Err = err
			return st, nil
		}

		for i := range texts {
			if i >= len(vecs) || len(vecs[i]) != p.vectorDim {
				got := 0
				if i < len(vecs) {
					got = len(vecs[i])
				}
				zlog.Warn("chunk embedding dim mismatch",
					zap.String("doc_id", st.Req.DocID),
					zap.Int("chunk_index", lo+i),
					zap.Int("got", got),
					zap.Int("want", p.vectorDim))
				st.EmbedFail++
				st.Vectors = append(st.Vectors, nil)
				continue
			}
			vec32 := make([]float32, len(vecs[i]))
			for j := range vecs[i] {
				vec32[j] = float32(vecs[i][j])
			}
			st.Vectors = append(st.Vectors, vec32)
		}
	}
	return st, nil
}

// assembleNode 节点 5：组装子图。
// chunk/req/ent 的 ID 由 doc_id 加序号拼出，重建时保持稳定。
func (p *BuildPipeline) assembleNode(ctx context.Context, st *buildState, _ ...any) (*buildState, error) {
	_ = ctx
	if st == nil {
		return &buildState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	docID := st.Req.DocID
	now := time.Now()
	g := &graph.DocumentGraph{}

	for i, piece := range st.Pieces {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, i)
		var emb []float32
		if i < len(st.Vectors) {
			emb = st.Vectors[i]
		}
		g.Chunks = append(g.Chunks, graph.Chunk{
			ChunkId:    chunkID,
			DocId:      docID,
			ChunkIndex: i,
			ChunkType:  piece.Type,
			Text:       piece.Text,
			StartPos:   piece.Start,
			EndPos:     piece.End,
			Embedding:  emb,
			CreatedAt:  now,
		})
		g.Contains = append(g.Contains, graph.Contains{DocId: docID, ChunkId: chunkID})
	}

	for n, cand := range st.Extraction.Requirements {
		reqID := fmt.Sprintf("req_%s_%d", docID, n)
		g.Requirements = append(g.Requirements, graph.Requirement{
			ReqId:       reqID,
			DocId:       docID,
			ReqType:     cand.Type,
			Description: cand.Description,
			Language:    st.Extraction.Language,
			CreatedAt:   now,
		})
		g.References = append(g.References, graph.References{ReqId: reqID, DocId: docID})

		// 抽取阶段记录了来源 chunk，DescribedBy 只挂那一条；
		// 无来源信息时退回子串匹配
		if cand.SourceChunk >= 0 && cand.SourceChunk < len(g.Chunks) {
			g.DescribedBy = append(g.DescribedBy, graph.DescribedBy{ReqId: reqID, ChunkId: g.Chunks[cand.SourceChunk].ChunkId})
		} else {
			for _, c := range g.Chunks {
				if strings.Contains(c.Text, cand.Description) {
					g.DescribedBy = append(g.DescribedBy, graph.DescribedBy{ReqId: reqID, ChunkId: c.ChunkId})
				}
			}
		}

		if cand.Actor != "" {
			actorID := fmt.Sprintf("actor_%s_%d", docID, n)
			g.Actors = append(g.Actors, graph.Actor{
				ActorId: actorID, DocId: docID, Name: cand.Actor, CreatedAt: now,
			})
			g.Performs = append(g.Performs, graph.Performs{ReqId: reqID, ActorId: actorID})
		}
		if cand.Action != "" {
			actionID := fmt.Sprintf("action_%s_%d", docID, n)
			g.Actions = append(g.Actions, graph.Action{
				ActionId: actionID, DocId: docID, Name: cand.Action, CreatedAt: now,
			})
			g.Commits = append(g.Commits, graph.Commits{ReqId: reqID, ActionId: actionID})
		}
		if cand.Object != "" {
			objectID := fmt.Sprintf("object_%s_%d", docID, n)
			g.Objects = append(g.Objects, graph.Object{
				ObjectId: objectID, DocId: docID, Name: cand.Object, CreatedAt: now,
			})
			g.OnWhatPerformed = append(g.OnWhatPerformed, graph.OnWhatPerformed{ReqId: reqID, ObjectId: objectID})
		}
		if cand.Result != "" {
			resultID := fmt.Sprintf("result_%s_%d", docID, n)
			g.Results = append(g.Results, graph.Result{
				ResultId: resultID, DocId: docID, Description: cand.Result, CreatedAt: now,
			})
			g.Expects = append(g.Expects, graph.Expects{ReqId: reqID, ResultId: resultID})
		}
	}

	for n, ent := range st.Extraction.Entities {
		entID := fmt.Sprintf("ent_%s_%d", docID, n)
		g.Entities = append(g.Entities, graph.Entity{
			EntityId: entID, DocId: docID, EntityType: ent.Type, Name: ent.Name, CreatedAt: now,
		})
		for _, c := range g.Chunks {
			if strings.Contains(c.Text, ent.Name) {
				g.Mentions = append(g.Mentions, graph.Mentions{ChunkId: c.ChunkId, EntityId: entID})
			}
		}
		for _, r := range g.Requirements {
			if strings.Contains(r.Description, ent.Name) {
				g.Implements = append(g.Implements, graph.Implements{ReqId: r.ReqId, EntityId: entID})
			}
		}
	}

	st.Graph = g
	return st, nil
}

// persistNode 节点 6：子图落库并写向量索引
func (p *BuildPipeline) persistNode(ctx context.Context, st *buildState, _ ...any) (*buildState, error) {
	if st == nil {
		return &buildState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	if err := p.store.SaveGraph(ctx, st.Graph); err != nil {
		st.Err = err
		return st, nil
	}

	upserts := make([]repository.VectorItem, 0, len(st.Graph.Chunks))
	for _, c := range st.Graph.Chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		upserts = append(upserts, repository.VectorItem{
			ChunkID: c.ChunkId,
			DocID:   c.DocId,
			Vector:  c.Embedding,
			Content: c.Text,
		})
	}
	if len(upserts) > 0 {
		if err := p.index.Upsert(ctx, upserts); err != nil {
			st.Err = err
			return st, nil
		}
	}
	return st, nil
}

// statusUpdateNode 节点 7：落最终状态并打点
func (p *BuildPipeline) statusUpdateNode(ctx context.Context, st *buildState, _ ...any) (*BuildResult, error) {
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}

	res := &BuildResult{}
	if st.Req != nil {
		res.DocID = st.Req.DocID
	}
	if st.Extraction != nil {
		res.Language = st.Extraction.Language
		res.Requirements = len(st.Extraction.Requirements)
		res.Entities = len(st.Extraction.Entities)
	}
	res.Chunks = len(st.Pieces)
	res.EmbedFail = st.EmbedFail
	res.DurationMs = time.Since(st.Start).Milliseconds()

	if st.Err != nil {
		res.Status = graph.StatusError
		res.Error = scrubErrMsg(st.Err)
		res.Chunks = 0
		if res.DocID != "" {
			_ = p.store.UpdateStatus(ctx, res.DocID, graph.StatusError, res.Error)
		}
	} else {
		res.Status = graph.StatusIndexed
		if err := p.store.MarkIndexed(ctx, res.DocID); err != nil {
			res.Status = graph.StatusError
			res.Error = scrubErrMsg(err)
		}
	}

	zlog.Info("rag build done",
		zap.String("doc_id", res.DocID),
		zap.String("status", res.Status),
		zap.String("language", res.Language),
		zap.Int("chunks", res.Chunks),
		zap.Int("requirements", res.Requirements),
		zap.Int("entities", res.Entities),
		zap.Int("embed_fail", res.EmbedFail),
		zap.Int64("ms", res.DurationMs))

	// 节点报错会让整个图返回 nil 结果，失败信息随 res.Error 带出
	return res, nil
}
