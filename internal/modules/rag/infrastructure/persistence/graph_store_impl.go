package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/pkg/xerr"
)

type graphStoreImpl struct {
	db *gorm.DB
}

func NewGraphStore(db *gorm.DB) repository.GraphStore {
	return &graphStoreImpl{db: db}
}

func (s *graphStoreImpl) CreateDocument(ctx context.Context, doc *graph.Document) error {
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = graph.StatusReceived
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"filename", "status", "error", "updated_at"}),
	}).Create(doc).Error
}

func (s *graphStoreImpl) GetDocument(ctx context.Context, docID string) (*graph.Document, error) {
	var doc graph.Document
	err := s.db.WithContext(ctx).Where("doc_id = ?", docID).Take(&doc).Error
	if err == nil {
		return &doc, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.ErrNotFound
	}
	return nil, err
}

func (s *graphStoreImpl) ListDocuments(ctx context.Context) ([]graph.Document, error) {
	var docs []graph.Document
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&docs).Error
	return docs, err
}

func (s *graphStoreImpl) UpdateStatus(ctx context.Context, docID string, status string, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&graph.Document{}).
		Where("doc_id = ?", docID).
		Updates(map[string]any{
			"status":     status,
			"error":      errMsg,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return xerr.ErrNotFound
	}
	return nil
}

func (s *graphStoreImpl) MarkIndexed(ctx context.Context, docID string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&graph.Document{}).
		Where("doc_id = ?", docID).
		Updates(map[string]any{
			"status":       graph.StatusIndexed,
			"error":        "",
			"processed_at": sql.NullTime{Time: now, Valid: true},
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return xerr.ErrNotFound
	}
	return nil
}

func (s *graphStoreImpl) DeleteDocument(ctx context.Context, docID string) error {
	return s.DeleteSubtree(ctx, docID)
}

// SaveGraph 子图整体入库，任何一步失败都回滚
func (s *graphStoreImpl) SaveGraph(ctx context.Context, g *graph.DocumentGraph) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createBatch(tx, g.Chunks); err != nil {
			return err
		}
		if err := createBatch(tx, g.Requirements); err != nil {
			return err
		}
		if err := createBatch(tx, g.Actors); err != nil {
			return err
		}
		if err := createBatch(tx, g.Actions); err != nil {
			return err
		}
		if err := createBatch(tx, g.Objects); err != nil {
			return err
		}
		if err := createBatch(tx, g.Results); err != nil {
			return err
		}
		if err := createBatch(tx, g.Entities); err != nil {
			return err
		}
		if err := createBatch(tx, g.Contains); err != nil {
			return err
		}
		if err := createBatch(tx, g.DescribedBy); err != nil {
			return err
		}
		if err := createBatch(tx, g.References); err != nil {
			return err
		}
		if err := createBatch(tx, g.Implements); err != nil {
			return err
		}
		if err := createBatch(tx, g.Mentions); err != nil {
			return err
		}
		if err := createBatch(tx, g.Performs); err != nil {
			return err
		}
		if err := createBatch(tx, g.Commits); err != nil {
			return err
		}
		if err := createBatch(tx, g.OnWhatPerformed); err != nil {
			return err
		}
		return createBatch(tx, g.Expects)
	})
}

func createBatch[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, 200).Error
}

// DeleteSubtree 删除 Document 节点及其全部派生节点与边
func (s *graphStoreImpl) DeleteSubtree(ctx context.Context, docID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteSubtreeTx(tx, docID)
	})
}

func deleteSubtreeTx(tx *gorm.DB, docID string) error {
	chunkIDs := tx.Model(&graph.Chunk{}).Select("chunk_id").Where("doc_id = ?", docID)
	reqIDs := tx.Model(&graph.Requirement{}).Select("req_id").Where("doc_id = ?", docID)

	// 先删边再删节点，需求侧的边都从 req_id 出发
	if err := tx.Where("doc_id = ?", docID).Delete(&graph.Contains{}).Error; err != nil {
		return err
	}
	if err := tx.Where("req_id IN (?)", reqIDs).Delete(&graph.DescribedBy{}).Error; err != nil {
		return err
	}
	if err := tx.Where("doc_id = ?", docID).Delete(&graph.References{}).Error; err != nil {
		return err
	}
	if err := tx.Where("req_id IN (?)", reqIDs).Delete(&graph.Implements{}).Error; err != nil {
		return err
	}
	if err := tx.Where("chunk_id IN (?)", chunkIDs).Delete(&graph.Mentions{}).Error; err != nil {
		return err
	}
	if err := tx.Where("req_id IN (?)", reqIDs).Delete(&graph.Performs{}).Error; err != nil {
		return err
	}
	if err := tx.Where("req_id IN (?)", reqIDs).Delete(&graph.Commits{}).Error; err != nil {
		return err
	}
	if err := tx.Where("req_id IN (?)", reqIDs).Delete(&graph.OnWhatPerformed{}).Error; err != nil {
		return err
	}
	if err := tx.Where("req_id IN (?)", reqIDs).Delete(&graph.Expects{}).Error; err != nil {
		return err
	}

	if err := tx.Where("doc_id = ?", docID).Delete(&graph.Chunk{}).Error; err != nil {
		return err
	}
	if err := tx.Where("doc_id = ?", docID).Delete(&graph.Requirement{}).Error; err != nil {
		return err
	}
	if err := tx.Where("doc_id = ?", docID).Delete(&graph.Actor{}).Error; err != nil {
		return err
	}
	if err := tx.Where("doc_id = ?", docID).Delete(&graph.Action{}).Error; err != nil {
		return err
	}
	if err := tx.Where("doc_id = ?", docID).Delete(&graph.Object{}).Error; err != nil {
		return err
	}
	if err := tx.Where("doc_id = ?", docID).Delete(&graph.Result{}).Error; err != nil {
		return err
	}
	if err := tx.Where("doc_id = ?", docID).Delete(&graph.Entity{}).Error; err != nil {
		return err
	}
	return tx.Where("doc_id = ?", docID).Delete(&graph.Document{}).Error
}

func (s *graphStoreImpl) CountChunks(ctx context.Context, docID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&graph.Chunk{}).Where("doc_id = ?", docID).Count(&n).Error
	return n, err
}

func (s *graphStoreImpl) ListChunks(ctx context.Context, docID string) ([]graph.Chunk, error) {
	var chunks []graph.Chunk
	err := s.db.WithContext(ctx).
		Where("doc_id = ?", docID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

func (s *graphStoreImpl) ListEmbeddedChunks(ctx context.Context, docID string) ([]graph.Chunk, error) {
	q := s.db.WithContext(ctx).
		Where("embedding IS NOT NULL AND embedding NOT IN ('', 'null', '[]')")
	if docID != "" {
		q = q.Where("doc_id = ?", docID)
	}
	var chunks []graph.Chunk
	err := q.Order("chunk_id ASC").Find(&chunks).Error
	return chunks, err
}

func (s *graphStoreImpl) GetChunks(ctx context.Context, chunkIDs []string) ([]graph.Chunk, error) {
	if len(chunkIDs) == 0 {
		return []graph.Chunk{}, nil
	}
	var chunks []graph.Chunk
	err := s.db.WithContext(ctx).Where("chunk_id IN ?", chunkIDs).Find(&chunks).Error
	return chunks, err
}

func (s *graphStoreImpl) SampleChunks(ctx context.Context, docID string, limit int) ([]graph.Chunk, error) {
	if limit <= 0 {
		return []graph.Chunk{}, nil
	}
	q := s.db.WithContext(ctx).Model(&graph.Chunk{})
	if docID != "" {
		q = q.Where("doc_id = ?", docID)
	}
	var chunks []graph.Chunk
	err := q.Order("chunk_id ASC").Limit(limit).Find(&chunks).Error
	return chunks, err
}

func (s *graphStoreImpl) ListRequirements(ctx context.Context, docID, reqType string) ([]graph.Requirement, error) {
	q := s.db.WithContext(ctx).Model(&graph.Requirement{})
	if docID != "" {
		q = q.Where("doc_id = ?", docID)
	}
	if reqType != "" {
		q = q.Where("req_type = ?", reqType)
	}
	var reqs []graph.Requirement
	err := q.Order("req_id ASC").Find(&reqs).Error
	return reqs, err
}

// ChunkContext 沿边收集 chunk 的图上下文：
// DescribedBy 反查需求，再经 Performs/Commits/OnWhatPerformed/Expects
// 拿到 AAOR 分解，Mentions 拿到实体
func (s *graphStoreImpl) ChunkContext(ctx context.Context, chunkID string) (*graph.ChunkContext, error) {
	db := s.db.WithContext(ctx)
	out := &graph.ChunkContext{}

	reqIDs := db.Model(&graph.DescribedBy{}).Select("req_id").Where("chunk_id = ?", chunkID)
	if err := db.Where("req_id IN (?)", reqIDs).Find(&out.Requirements).Error; err != nil {
		return nil, err
	}

	actorIDs := db.Model(&graph.Performs{}).Select("actor_id").Where("req_id IN (?)", reqIDs)
	if err := db.Where("actor_id IN (?)", actorIDs).Find(&out.Actors).Error; err != nil {
		return nil, err
	}

	actionIDs := db.Model(&graph.Commits{}).Select("action_id").Where("req_id IN (?)", reqIDs)
	if err := db.Where("action_id IN (?)", actionIDs).Find(&out.Actions).Error; err != nil {
		return nil, err
	}

	objectIDs := db.Model(&graph.OnWhatPerformed{}).Select("object_id").Where("req_id IN (?)", reqIDs)
	if err := db.Where("object_id IN (?)", objectIDs).Find(&out.Objects).Error; err != nil {
		return nil, err
	}

	resultIDs := db.Model(&graph.Expects{}).Select("result_id").Where("req_id IN (?)", reqIDs)
	if err := db.Where("result_id IN (?)", resultIDs).Find(&out.Results).Error; err != nil {
		return nil, err
	}

	entityIDs := db.Model(&graph.Mentions{}).Select("entity_id").Where("chunk_id = ?", chunkID)
	if err := db.Where("entity_id IN (?)", entityIDs).Find(&out.Entities).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListRequirementDetails 需求连同其 DescribedBy 的 chunk 文本与 Implements 的实体名
func (s *graphStoreImpl) ListRequirementDetails(ctx context.Context, docID, reqType string) ([]graph.RequirementDetail, error) {
	reqs, err := s.ListRequirements(ctx, docID, reqType)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	out := make([]graph.RequirementDetail, 0, len(reqs))
	for i := range reqs {
		d := graph.RequirementDetail{Requirement: reqs[i]}

		err := db.Model(&graph.Chunk{}).
			Joins("JOIN rg_described_by ON rg_described_by.chunk_id = rg_chunk.chunk_id").
			Where("rg_described_by.req_id = ?", reqs[i].ReqId).
			Order("rg_chunk.chunk_id ASC").
			Pluck("rg_chunk.text", &d.Chunks).Error
		if err != nil {
			return nil, err
		}

		err = db.Model(&graph.Entity{}).
			Joins("JOIN rg_implements ON rg_implements.entity_id = rg_entity.entity_id").
			Where("rg_implements.req_id = ?", reqs[i].ReqId).
			Order("rg_entity.entity_id ASC").
			Pluck("rg_entity.name", &d.Entities).Error
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
