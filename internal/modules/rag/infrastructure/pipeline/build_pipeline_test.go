package pipeline

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/chunking"
	"ReqGraph/internal/modules/rag/infrastructure/embedding"
	"ReqGraph/internal/modules/rag/infrastructure/nlp"
	"ReqGraph/internal/modules/rag/infrastructure/persistence"
	"ReqGraph/internal/modules/rag/infrastructure/vectordb"
)

const testDim = 16

const specText = `1. Functional Requirements

The system shall authenticate the user before granting access. The service must encrypt stored data to protect user privacy.

- The system shall export reports through the REST API on demand.

2. Performance Requirements

The API should respond within two hundred milliseconds under nominal load.
`

func newTestDeps(t *testing.T) (repository.GraphStore, *BuildPipeline, *RetrievePipeline) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, persistence.Migrate(db))
	store := persistence.NewGraphStore(db)

	index := vectordb.NewStoreIndex(store)
	embedder := embedding.NewMockEmbedder(testDim)
	chunker := chunking.NewStructuralChunker(512, 5)
	extractor := nlp.NewExtractor(nlp.LangEnglish)

	bp, err := NewBuildPipeline(store, index, embedder, chunker, extractor, testDim, 32)
	require.NoError(t, err)

	rp, err := NewRetrievePipeline(store, index, embedder, RetrieveOptions{
		TopK:           3,
		ScoreThreshold: 0.7,
		VectorDim:      testDim,
		SearchTimeout:  5 * time.Second,
		CacheSize:      16,
		CacheTTL:       time.Minute,
	})
	require.NoError(t, err)
	return store, bp, rp
}

func buildDoc(t *testing.T, store repository.GraphStore, bp *BuildPipeline, docID, text string) *BuildResult {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateDocument(ctx, &graph.Document{DocId: docID, Filename: docID + ".txt"}))
	res, err := bp.Build(ctx, BuildRequest{DocID: docID, Filename: docID + ".txt", Text: text})
	require.NoError(t, err)
	return res
}

func TestBuildPipeline_FullDocument(t *testing.T) {
	store, bp, _ := newTestDeps(t)
	ctx := context.Background()

	res := buildDoc(t, store, bp, "d1", specText)
	assert.Equal(t, graph.StatusIndexed, res.Status)
	assert.Equal(t, nlp.LangEnglish, res.Language)
	assert.Greater(t, res.Chunks, 0)
	assert.GreaterOrEqual(t, res.Requirements, 4)
	assert.Greater(t, res.Entities, 0)
	assert.Zero(t, res.EmbedFail)

	doc, err := store.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusIndexed, doc.Status)
	assert.True(t, doc.ProcessedAt.Valid)

	n, err := store.CountChunks(ctx, "d1")
	require.NoError(t, err)
	assert.EqualValues(t, res.Chunks, n)

	reqs, err := store.ListRequirements(ctx, "d1", "")
	require.NoError(t, err)
	assert.Len(t, reqs, res.Requirements)
}

func TestBuildPipeline_ChunkIDsAreDeterministic(t *testing.T) {
	store, bp, _ := newTestDeps(t)
	ctx := context.Background()
	buildDoc(t, store, bp, "d1", specText)

	chunks, err := store.ListChunks(ctx, "d1")
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, "d1_chunk_"+strconv.Itoa(i), c.ChunkId)
		assert.Equal(t, specText[c.StartPos:c.EndPos], c.Text)
		assert.Len(t, c.Embedding, testDim)
	}
}

func TestBuildPipeline_DescribedByEdges(t *testing.T) {
	store, bp, _ := newTestDeps(t)
	ctx := context.Background()
	buildDoc(t, store, bp, "d1", specText)

	chunks, err := store.ListChunks(ctx, "d1")
	require.NoError(t, err)

	found := false
	for _, c := range chunks {
		cc, err := store.ChunkContext(ctx, c.ChunkId)
		require.NoError(t, err)
		if len(cc.Requirements) > 0 {
			found = true
			assert.Contains(t, c.Text, cc.Requirements[0].Description)
		}
	}
	assert.True(t, found, "at least one chunk should carry a requirement")
}

func TestBuildPipeline_EmptyTextFailsWithZeroChunks(t *testing.T) {
	store, bp, _ := newTestDeps(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDocument(ctx, &graph.Document{DocId: "d1", Filename: "d1.txt"}))
	res, err := bp.Build(ctx, BuildRequest{DocID: "d1", Filename: "d1.txt", Text: "   \n\n "})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, graph.StatusError, res.Status)
	assert.Zero(t, res.Chunks)

	doc, err := store.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusError, doc.Status)
	assert.NotEmpty(t, doc.Error)

	n, err := store.CountChunks(ctx, "d1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuildPipeline_UpsertsDocument(t *testing.T) {
	store, bp, _ := newTestDeps(t)
	ctx := context.Background()

	// 文档未预先落库，构建过程自行创建
	res, err := bp.Build(ctx, BuildRequest{DocID: "fresh", Filename: "fresh.txt", Text: specText})
	require.NoError(t, err)
	assert.Equal(t, graph.StatusIndexed, res.Status)

	doc, err := store.GetDocument(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh.txt", doc.Filename)
	assert.Equal(t, graph.StatusIndexed, doc.Status)
}

func TestBuildPipeline_KeepsFilenameOnRebuild(t *testing.T) {
	store, bp, _ := newTestDeps(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDocument(ctx, &graph.Document{DocId: "d1", Filename: "original.pdf"}))
	_, err := bp.Build(ctx, BuildRequest{DocID: "d1", Text: specText})
	require.NoError(t, err)

	doc, err := store.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "original.pdf", doc.Filename)
}

func TestBuildPipeline_MissingDocID(t *testing.T) {
	_, bp, _ := newTestDeps(t)
	res, err := bp.Build(context.Background(), BuildRequest{Text: specText})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, graph.StatusError, res.Status)
}

// 同一条需求句出现在两个段落时，各需求只挂回自己来源的 chunk
func TestBuildPipeline_RequirementProvenance(t *testing.T) {
	store, bp, _ := newTestDeps(t)
	ctx := context.Background()

	dup := "The system shall log every login attempt.\n\nThe system shall log every login attempt.\n"
	buildDoc(t, store, bp, "dup", dup)

	chunks, err := store.ListChunks(ctx, "dup")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	seen := map[string]bool{}
	for _, c := range chunks {
		cc, err := store.ChunkContext(ctx, c.ChunkId)
		require.NoError(t, err)
		require.Len(t, cc.Requirements, 1, "chunk %s", c.ChunkId)
		assert.False(t, seen[cc.Requirements[0].ReqId], "requirement linked to more than one chunk")
		seen[cc.Requirements[0].ReqId] = true
	}
}

func TestBuildPipeline_GraphEdgeEndpoints(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, persistence.Migrate(db))
	store := persistence.NewGraphStore(db)

	bp, err := NewBuildPipeline(
		store,
		vectordb.NewStoreIndex(store),
		embedding.NewMockEmbedder(testDim),
		chunking.NewStructuralChunker(512, 5),
		nlp.NewExtractor(nlp.LangEnglish),
		testDim, 32,
	)
	require.NoError(t, err)
	buildDoc(t, store, bp, "d1", specText)

	// 每条需求一条 References 边，指回来源文档
	var refs []graph.References
	require.NoError(t, db.Find(&refs).Error)
	reqs, err := store.ListRequirements(context.Background(), "d1", "")
	require.NoError(t, err)
	require.Len(t, refs, len(reqs))
	for _, r := range refs {
		assert.Equal(t, "d1", r.DocId)
		assert.NotEmpty(t, r.ReqId)
	}

	// chunk 与实体的关联走 Mentions，不再占用 References
	var mentions int64
	require.NoError(t, db.Model(&graph.Mentions{}).Count(&mentions).Error)
	assert.Greater(t, mentions, int64(0))
}
