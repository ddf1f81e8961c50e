package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/chunking"
	"ReqGraph/internal/modules/rag/infrastructure/embedding"
	"ReqGraph/internal/modules/rag/infrastructure/nlp"
	"ReqGraph/internal/modules/rag/infrastructure/persistence"
	"ReqGraph/internal/modules/rag/infrastructure/pipeline"
	"ReqGraph/internal/modules/rag/infrastructure/processing"
	"ReqGraph/internal/modules/rag/infrastructure/vectordb"
	"ReqGraph/pkg/xerr"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDim = 16

type serviceDeps struct {
	store     repository.GraphStore
	index     repository.VectorIndex
	extractor *processing.TextExtractor
	build     *pipeline.BuildPipeline
	retrieve  *pipeline.RetrievePipeline
	uploadDir string
}

func newServiceDeps(t *testing.T) *serviceDeps {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, persistence.Migrate(db))

	store := persistence.NewGraphStore(db)
	index := vectordb.NewStoreIndex(store)
	embedder := embedding.NewMockEmbedder(testDim)
	chunker := chunking.NewChunker("structural", 512, 3)
	extractor := nlp.NewExtractor("en")

	build, err := pipeline.NewBuildPipeline(store, index, embedder, chunker, extractor, testDim, 8)
	require.NoError(t, err)
	retrieve, err := pipeline.NewRetrievePipeline(store, index, embedder, pipeline.RetrieveOptions{
		TopK:           3,
		ScoreThreshold: 0.7,
		VectorDim:      testDim,
	})
	require.NoError(t, err)

	return &serviceDeps{
		store:     store,
		index:     index,
		extractor: processing.NewTextExtractor(20, []string{".txt", ".md"}),
		build:     build,
		retrieve:  retrieve,
		uploadDir: t.TempDir(),
	}
}

func (d *serviceDeps) reindexService() ReindexService {
	return NewReindexService(d.store, d.index, d.extractor, d.build, d.retrieve, d.uploadDir)
}

func (d *serviceDeps) createDoc(t *testing.T, docID, filename, content string) {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, d.store.CreateDocument(ctx, &graph.Document{
		DocId:     docID,
		Filename:  filename,
		Status:    graph.StatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	path := filepath.Join(d.uploadDir, docID+filepath.Ext(filename))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReindexService_RebuildsGraph(t *testing.T) {
	deps := newServiceDeps(t)
	svc := deps.reindexService()
	ctx := context.Background()

	deps.createDoc(t, "doc-1", "auth.txt",
		"The system shall authenticate every user before granting access to stored records.\n\n"+
			"The service must encrypt all traffic in order to protect user privacy.\n")

	res, err := svc.Reindex(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", res.DocID)
	assert.Equal(t, graph.StatusIndexed, res.Status)
	assert.Greater(t, res.Chunks, int64(0))

	doc, err := deps.store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusIndexed, doc.Status)

	// 重复重建结果一致
	res2, err := svc.Reindex(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, res.Chunks, res2.Chunks)
}

func TestReindexService_DocumentNotFound(t *testing.T) {
	deps := newServiceDeps(t)
	svc := deps.reindexService()

	_, err := svc.Reindex(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, xerr.IsNotFound(err))
}

func TestReindexService_UploadFileMissing(t *testing.T) {
	deps := newServiceDeps(t)
	svc := deps.reindexService()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, deps.store.CreateDocument(ctx, &graph.Document{
		DocId:     "doc-2",
		Filename:  "gone.txt",
		Status:    graph.StatusIndexed,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	_, err := svc.Reindex(ctx, "doc-2")
	require.Error(t, err)
	assert.True(t, xerr.IsNotFound(err))
}

// 记录的文件名扩展与磁盘文件不符时，按 doc_id 前缀兜底定位
func TestReindexService_FindsUploadByPrefix(t *testing.T) {
	deps := newServiceDeps(t)
	svc := deps.reindexService()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, deps.store.CreateDocument(ctx, &graph.Document{
		DocId:     "doc-4",
		Filename:  "report.md",
		Status:    graph.StatusIndexed,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	path := filepath.Join(deps.uploadDir, "doc-4.txt")
	require.NoError(t, os.WriteFile(path,
		[]byte("The system shall archive every report after final approval by the board.\n"), 0o644))

	res, err := svc.Reindex(ctx, "doc-4")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusIndexed, res.Status)
	assert.Greater(t, res.Chunks, int64(0))
}

func TestReindexService_EmptyFileMarksError(t *testing.T) {
	deps := newServiceDeps(t)
	svc := deps.reindexService()
	ctx := context.Background()

	deps.createDoc(t, "doc-3", "empty.txt", "   \n\n  ")

	res, err := svc.Reindex(ctx, "doc-3")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusError, res.Status)
	assert.Equal(t, int64(0), res.Chunks)

	doc, err := deps.store.GetDocument(ctx, "doc-3")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusError, doc.Status)
}
