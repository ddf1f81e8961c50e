package service

import (
	"context"
	"strings"

	"ReqGraph/internal/modules/rag/application/dto/respond"
	"ReqGraph/internal/modules/rag/domain/repository"
)

// RequirementService 需求节点查询服务
type RequirementService interface {
	// List 列出抽取出的需求，docID 为空表示全库，reqType 为空表示不按类型过滤
	List(ctx context.Context, docID, reqType string) (*respond.RequirementListRespond, error)
}

type requirementServiceImpl struct {
	store repository.GraphStore
}

func NewRequirementService(store repository.GraphStore) RequirementService {
	return &requirementServiceImpl{store: store}
}

func (s *requirementServiceImpl) List(ctx context.Context, docID, reqType string) (*respond.RequirementListRespond, error) {
	details, err := s.store.ListRequirementDetails(ctx, strings.TrimSpace(docID), strings.TrimSpace(reqType))
	if err != nil {
		return nil, err
	}

	out := make([]respond.RequirementRespond, 0, len(details))
	for i := range details {
		chunks := details[i].Chunks
		if chunks == nil {
			chunks = []string{}
		}
		entities := details[i].Entities
		if entities == nil {
			entities = []string{}
		}
		out = append(out, respond.RequirementRespond{
			ReqID:       details[i].ReqId,
			DocID:       details[i].DocId,
			ReqType:     details[i].ReqType,
			Description: details[i].Description,
			Language:    details[i].Language,
			Chunks:      chunks,
			Entities:    entities,
		})
	}
	return &respond.RequirementListRespond{Requirements: out, Count: len(out)}, nil
}
