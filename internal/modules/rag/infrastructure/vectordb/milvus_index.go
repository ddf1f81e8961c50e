package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"ReqGraph/internal/modules/rag/domain/repository"
)

// MilvusIndex 把召回托管给 Milvus，适合大语料部署。
// 集合字段：id（chunk_id）、doc_id、vector、content。
type MilvusIndex struct {
	cli         mclient.Client
	collection  string
	vectorField string
	metricType  entity.MetricType
	vectorDim   int
	searchParam entity.SearchParam
}

// MetricTypeFromConfig 把配置里的度量名映射到 Milvus 度量类型，默认余弦
func MetricTypeFromConfig(name string) entity.MetricType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "IP":
		return entity.IP
	case "L2":
		return entity.L2
	default:
		return entity.COSINE
	}
}

func NewMilvusIndex(cli mclient.Client, collection string, vectorDim int, metricType entity.MetricType) (*MilvusIndex, error) {
	if cli == nil {
		return nil, errors.New("milvus client is nil")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("collection is empty")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vectorDim: %d", vectorDim)
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	return &MilvusIndex{
		cli:         cli,
		collection:  collection,
		vectorField: "vector",
		metricType:  metricType,
		vectorDim:   vectorDim,
		searchParam: sp,
	}, nil
}

func (s *MilvusIndex) Upsert(ctx context.Context, items []repository.VectorItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	docIDs := make([]string, 0, len(items))
	vectors := make([][]float32, 0, len(items))
	contents := make([]string, 0, len(items))

	for _, it := range items {
		if it.ChunkID == "" {
			return errors.New("upsert item missing chunk id")
		}
		if len(it.Vector) != s.vectorDim {
			return fmt.Errorf("vector dim mismatch for id=%s, got=%d want=%d", it.ChunkID, len(it.Vector), s.vectorDim)
		}
		ids = append(ids, it.ChunkID)
		docIDs = append(docIDs, it.DocID)
		vectors = append(vectors, it.Vector)
		contents = append(contents, truncateContent(it.Content, 4096))
	}

	_, err := s.cli.Upsert(
		ctx,
		s.collection,
		"",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("doc_id", docIDs),
		entity.NewColumnFloatVector(s.vectorField, s.vectorDim, vectors),
		entity.NewColumnVarChar("content", contents),
	)
	return err
}

func (s *MilvusIndex) DeleteByDoc(ctx context.Context, docID string) error {
	if strings.TrimSpace(docID) == "" {
		return nil
	}
	expr := fmt.Sprintf(`doc_id == "%s"`, docID)
	return s.cli.Delete(ctx, s.collection, "", expr)
}

func (s *MilvusIndex) Search(ctx context.Context, vector []float32, topK int, filterDocID string) ([]repository.VectorHit, error) {
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("vector dim mismatch, got=%d want=%d", len(vector), s.vectorDim)
	}
	if topK <= 0 {
		topK = 3
	}
	expr := ""
	if strings.TrimSpace(filterDocID) != "" {
		expr = fmt.Sprintf(`doc_id == "%s"`, filterDocID)
	}

	res, err := s.cli.Search(
		ctx,
		s.collection,
		[]string{},
		expr,
		[]string{"doc_id", "content"},
		[]entity.Vector{entity.FloatVector(vector)},
		s.vectorField,
		s.metricType,
		topK,
		s.searchParam,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return []repository.VectorHit{}, nil
	}
	return parseSearchResult(res[0])
}

func parseSearchResult(sr mclient.SearchResult) ([]repository.VectorHit, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}
	hits := make([]repository.VectorHit, 0, sr.ResultCount)

	idCol := sr.IDs
	docIDCol := columnByName(sr.Fields, "doc_id")
	contentCol := columnByName(sr.Fields, "content")

	for i := 0; i < sr.ResultCount; i++ {
		id, _ := idCol.GetAsString(i)
		score := float32(0)
		if i < len(sr.Scores) {
			score = sr.Scores[i]
		}

		h := repository.VectorHit{ChunkID: id, Score: score}
		if docIDCol != nil {
			v, _ := docIDCol.GetAsString(i)
			h.DocID = v
		}
		if contentCol != nil {
			v, _ := contentCol.GetAsString(i)
			h.Content = v
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

func truncateContent(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var _ repository.VectorIndex = (*MilvusIndex)(nil)
