package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/pkg/xerr"
)

func newTestStore(t *testing.T) repository.GraphStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewGraphStore(db)
}

func seedGraph(t *testing.T, store repository.GraphStore, docID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.CreateDocument(ctx, &graph.Document{
		DocId:    docID,
		Filename: docID + ".txt",
		Status:   graph.StatusProcessing,
	}))

	now := time.Now()
	g := &graph.DocumentGraph{
		Chunks: []graph.Chunk{
			{ChunkId: docID + "_chunk_0", DocId: docID, ChunkIndex: 0, ChunkType: graph.ChunkTypeParagraph,
				Text: "The system shall authenticate the user.", StartPos: 0, EndPos: 39,
				Embedding: []float32{1, 0, 0}, CreatedAt: now},
			{ChunkId: docID + "_chunk_1", DocId: docID, ChunkIndex: 1, ChunkType: graph.ChunkTypeParagraph,
				Text: "Sessions expire after thirty minutes.", StartPos: 40, EndPos: 77,
				Embedding: []float32{0, 1, 0}, CreatedAt: now},
		},
		Requirements: []graph.Requirement{
			{ReqId: "req_" + docID + "_0", DocId: docID, ReqType: graph.ReqTypeFunctional,
				Description: "The system shall authenticate the user.", Language: "en", CreatedAt: now},
		},
		Actors:   []graph.Actor{{ActorId: "actor_" + docID + "_0", DocId: docID, Name: "system", CreatedAt: now}},
		Actions:  []graph.Action{{ActionId: "action_" + docID + "_0", DocId: docID, Name: "authenticate", CreatedAt: now}},
		Objects:  []graph.Object{{ObjectId: "object_" + docID + "_0", DocId: docID, Name: "user", CreatedAt: now}},
		Entities: []graph.Entity{{EntityId: "ent_" + docID + "_0", DocId: docID, EntityType: "term", Name: "Session", CreatedAt: now}},
		Contains: []graph.Contains{
			{DocId: docID, ChunkId: docID + "_chunk_0"},
			{DocId: docID, ChunkId: docID + "_chunk_1"},
		},
		DescribedBy: []graph.DescribedBy{{ReqId: "req_" + docID + "_0", ChunkId: docID + "_chunk_0"}},
		References:  []graph.References{{ReqId: "req_" + docID + "_0", DocId: docID}},
		Implements:  []graph.Implements{{ReqId: "req_" + docID + "_0", EntityId: "ent_" + docID + "_0"}},
		Mentions:    []graph.Mentions{{ChunkId: docID + "_chunk_1", EntityId: "ent_" + docID + "_0"}},
		Performs:    []graph.Performs{{ReqId: "req_" + docID + "_0", ActorId: "actor_" + docID + "_0"}},
		Commits:     []graph.Commits{{ReqId: "req_" + docID + "_0", ActionId: "action_" + docID + "_0"}},
		OnWhatPerformed: []graph.OnWhatPerformed{
			{ReqId: "req_" + docID + "_0", ObjectId: "object_" + docID + "_0"},
		},
	}
	require.NoError(t, store.SaveGraph(ctx, g))
}

func TestGraphStore_DocumentLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDocument(ctx, &graph.Document{DocId: "d1", Filename: "d1.txt"}))

	doc, err := store.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusReceived, doc.Status)

	require.NoError(t, store.UpdateStatus(ctx, "d1", graph.StatusProcessing, ""))
	require.NoError(t, store.MarkIndexed(ctx, "d1"))

	doc, err = store.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusIndexed, doc.Status)
	assert.True(t, doc.ProcessedAt.Valid)
	assert.Empty(t, doc.Error)
}

func TestGraphStore_GetDocumentNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetDocument(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, xerr.IsNotFound(err))
}

func TestGraphStore_UpdateStatusNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateStatus(context.Background(), "missing", graph.StatusError, "boom")
	assert.True(t, xerr.IsNotFound(err))
}

func TestGraphStore_SaveAndQuerySubtree(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, store, "d1")

	n, err := store.CountChunks(ctx, "d1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	chunks, err := store.ListChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "d1_chunk_0", chunks[0].ChunkId)
	assert.Equal(t, []float32{1, 0, 0}, chunks[0].Embedding)

	reqs, err := store.ListRequirements(ctx, "d1", "")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, graph.ReqTypeFunctional, reqs[0].ReqType)

	reqs, err = store.ListRequirements(ctx, "d1", graph.ReqTypeNonFunctional)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	reqs, err = store.ListRequirements(ctx, "d1", graph.ReqTypeFunctional)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}

func TestGraphStore_ChunkContext(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, store, "d1")

	cc, err := store.ChunkContext(ctx, "d1_chunk_0")
	require.NoError(t, err)
	require.Len(t, cc.Requirements, 1)
	require.Len(t, cc.Actors, 1)
	require.Len(t, cc.Actions, 1)
	require.Len(t, cc.Objects, 1)
	assert.Equal(t, "system", cc.Actors[0].Name)
	assert.Equal(t, "authenticate", cc.Actions[0].Name)
	assert.Equal(t, "user", cc.Objects[0].Name)

	cc, err = store.ChunkContext(ctx, "d1_chunk_1")
	require.NoError(t, err)
	assert.Empty(t, cc.Requirements)
	require.Len(t, cc.Entities, 1)
	assert.Equal(t, "Session", cc.Entities[0].Name)
}

func TestGraphStore_DeleteSubtreeRemovesDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, store, "d1")

	require.NoError(t, store.DeleteSubtree(ctx, "d1"))

	n, err := store.CountChunks(ctx, "d1")
	require.NoError(t, err)
	assert.Zero(t, n)

	reqs, err := store.ListRequirements(ctx, "d1", "")
	require.NoError(t, err)
	assert.Empty(t, reqs)

	cc, err := store.ChunkContext(ctx, "d1_chunk_0")
	require.NoError(t, err)
	assert.Empty(t, cc.Requirements)
	assert.Empty(t, cc.Entities)

	// 文档节点一并删除
	_, err = store.GetDocument(ctx, "d1")
	assert.True(t, xerr.IsNotFound(err))
}

func TestGraphStore_DeleteSubtreeIsolatesDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, store, "d1")
	seedGraph(t, store, "d2")

	require.NoError(t, store.DeleteSubtree(ctx, "d1"))

	n, err := store.CountChunks(ctx, "d2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	cc, err := store.ChunkContext(ctx, "d2_chunk_0")
	require.NoError(t, err)
	assert.Len(t, cc.Requirements, 1)
}

func TestGraphStore_ReindexIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, store, "d1")

	// 删除再重建，等价一次 reindex
	require.NoError(t, store.DeleteSubtree(ctx, "d1"))
	seedGraph(t, store, "d1")

	n, err := store.CountChunks(ctx, "d1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestGraphStore_ListEmbeddedChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, store, "d1")

	require.NoError(t, store.SaveGraph(ctx, &graph.DocumentGraph{
		Chunks: []graph.Chunk{{
			ChunkId: "d1_chunk_2", DocId: "d1", ChunkIndex: 2,
			ChunkType: graph.ChunkTypeParagraph, Text: "no embedding yet",
		}},
	}))

	chunks, err := store.ListEmbeddedChunks(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	all, err := store.ListEmbeddedChunks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGraphStore_DeleteDocumentRemovesEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, store, "d1")

	require.NoError(t, store.DeleteDocument(ctx, "d1"))
	_, err := store.GetDocument(ctx, "d1")
	assert.True(t, xerr.IsNotFound(err))
}

func TestGraphStore_ListRequirementDetails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, store, "d1")

	details, err := store.ListRequirementDetails(ctx, "d1", "")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "req_d1_0", details[0].ReqId)
	require.Len(t, details[0].Chunks, 1)
	assert.Equal(t, "The system shall authenticate the user.", details[0].Chunks[0])
	require.Len(t, details[0].Entities, 1)
	assert.Equal(t, "Session", details[0].Entities[0])

	details, err = store.ListRequirementDetails(ctx, "d1", graph.ReqTypeNonFunctional)
	require.NoError(t, err)
	assert.Empty(t, details)
}

// 边的端点方向：References 挂 Requirement→Document，
// Implements 挂 Requirement→Entity，chunk 与实体的关联走 Mentions
func TestGraphStore_EdgeEndpoints(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	store := NewGraphStore(db)
	seedGraph(t, store, "d1")

	var refs []graph.References
	require.NoError(t, db.Find(&refs).Error)
	require.Len(t, refs, 1)
	assert.Equal(t, "req_d1_0", refs[0].ReqId)
	assert.Equal(t, "d1", refs[0].DocId)

	var impls []graph.Implements
	require.NoError(t, db.Find(&impls).Error)
	require.Len(t, impls, 1)
	assert.Equal(t, "req_d1_0", impls[0].ReqId)
	assert.Equal(t, "ent_d1_0", impls[0].EntityId)

	var mentions []graph.Mentions
	require.NoError(t, db.Find(&mentions).Error)
	require.Len(t, mentions, 1)
	assert.Equal(t, "d1_chunk_1", mentions[0].ChunkId)

	var performs []graph.Performs
	require.NoError(t, db.Find(&performs).Error)
	require.Len(t, performs, 1)
	assert.Equal(t, "req_d1_0", performs[0].ReqId)
	assert.Equal(t, "actor_d1_0", performs[0].ActorId)
}
