package service

import (
	"context"
	"testing"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/infrastructure/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementService_ListCarriesChunksAndEntities(t *testing.T) {
	deps := newServiceDeps(t)
	svc := NewRequirementService(deps.store)
	ctx := context.Background()

	text := "The gateway shall validate every JWT token before forwarding the request upstream.\n"
	require.NoError(t, deps.store.CreateDocument(ctx, &graph.Document{DocId: "doc-r", Filename: "auth.txt"}))
	_, err := deps.build.Build(ctx, pipeline.BuildRequest{DocID: "doc-r", Filename: "auth.txt", Text: text})
	require.NoError(t, err)

	out, err := svc.List(ctx, "doc-r", "")
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)

	req := out.Requirements[0]
	assert.Equal(t, "doc-r", req.DocID)
	require.Len(t, req.Chunks, 1)
	assert.Contains(t, req.Chunks[0], "JWT token")
	assert.Contains(t, req.Entities, "JWT")
}

func TestRequirementService_ListTypeFilter(t *testing.T) {
	deps := newServiceDeps(t)
	svc := NewRequirementService(deps.store)
	ctx := context.Background()

	text := "The system shall notify the operator when disk usage crosses the alert threshold.\n"
	require.NoError(t, deps.store.CreateDocument(ctx, &graph.Document{DocId: "doc-f", Filename: "ops.txt"}))
	_, err := deps.build.Build(ctx, pipeline.BuildRequest{DocID: "doc-f", Filename: "ops.txt", Text: text})
	require.NoError(t, err)

	out, err := svc.List(ctx, "doc-f", graph.ReqTypeFunctional)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)

	out, err = svc.List(ctx, "doc-f", graph.ReqTypeConstraint)
	require.NoError(t, err)
	assert.Zero(t, out.Count)
	assert.NotNil(t, out.Requirements)
}
