package nlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/infrastructure/chunking"
)

func chunkText(t *testing.T, text string) []chunking.Piece {
	t.Helper()
	c := chunking.NewStructuralChunker(512, 3)
	pieces, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	return pieces
}

func TestExtract_EnglishModalSentence(t *testing.T) {
	text := "The system shall authenticate the user before granting access. The weather was nice that day anyway.\n"
	e := NewExtractor(LangEnglish)
	got := e.Extract(text, chunkText(t, text))

	require.Len(t, got.Requirements, 1)
	req := got.Requirements[0]
	assert.Equal(t, "The system shall authenticate the user before granting access.", req.Description)
	assert.Equal(t, graph.ReqTypeFunctional, req.Type)
	assert.Equal(t, "system", req.Actor)
	assert.Equal(t, "authenticate", req.Action)
	assert.Equal(t, "user", req.Object)
	assert.Empty(t, req.Result)
	assert.Equal(t, LangEnglish, got.Language)
}

func TestExtract_PurposeResult(t *testing.T) {
	text := "The service must encrypt stored data to protect user privacy at rest in the primary datastore.\n"
	e := NewExtractor(LangEnglish)
	got := e.Extract(text, chunkText(t, text))

	require.Len(t, got.Requirements, 1)
	req := got.Requirements[0]
	assert.Equal(t, "service", req.Actor)
	assert.Equal(t, "encrypt", req.Action)
	assert.Equal(t, "stored data", req.Object)
	assert.Equal(t, "protect user privacy at rest in the primary datastore", req.Result)
}

func TestExtract_RussianModalSentence(t *testing.T) {
	text := "Система должна хранить данные пользователя для аудита безопасности и контроля доступа в организации.\n"
	e := NewExtractor(LangEnglish)
	got := e.Extract(text, chunkText(t, text))

	assert.Equal(t, LangRussian, got.Language)
	require.Len(t, got.Requirements, 1)
	req := got.Requirements[0]
	assert.Equal(t, "Система", req.Actor)
	assert.Equal(t, "хранить", req.Action)
	assert.Equal(t, "данные пользователя", req.Object)
	assert.NotEmpty(t, req.Result)
}

func TestExtract_SectionHeaderSetsType(t *testing.T) {
	text := "2. Performance Requirements\n\n- The API should respond within two hundred milliseconds under nominal load.\n\n3. Constraints\n\n- The deployment must comply with the corporate container platform standard at all times.\n"
	e := NewExtractor(LangEnglish)
	got := e.Extract(text, chunkText(t, text))

	require.Len(t, got.Requirements, 2)
	assert.Equal(t, graph.ReqTypeNonFunctional, got.Requirements[0].Type)
	assert.Equal(t, graph.ReqTypeConstraint, got.Requirements[1].Type)
}

func TestExtract_ListItemWithoutModalInsideSection(t *testing.T) {
	text := "1. Functional Requirements\n\n- Export of reports as PDF files from the dashboard view.\n"
	e := NewExtractor(LangEnglish)
	got := e.Extract(text, chunkText(t, text))

	require.Len(t, got.Requirements, 1)
	assert.Equal(t, graph.ReqTypeFunctional, got.Requirements[0].Type)
	assert.Equal(t, "Export of reports as PDF files from the dashboard view.", got.Requirements[0].Description)
}

func TestExtract_NonModalSentencesIgnored(t *testing.T) {
	text := "This document describes the architecture of the platform in broad strokes for new readers today.\n"
	e := NewExtractor(LangEnglish)
	got := e.Extract(text, chunkText(t, text))
	assert.Empty(t, got.Requirements)
}

func TestExtractEntities_AcronymsAndTerms(t *testing.T) {
	text := "The system shall export data through the REST API managed by Apache Kafka brokers in production deployments.\n"
	e := NewExtractor(LangEnglish)
	got := e.Extract(text, chunkText(t, text))

	var names []string
	for _, ent := range got.Entities {
		names = append(names, ent.Name)
	}
	assert.Contains(t, names, "REST")
	assert.Contains(t, names, "API")
	assert.Contains(t, names, "Apache Kafka")
}

func TestExtractEntities_NoDedup(t *testing.T) {
	text := "The HTTP gateway shall forward HTTP requests to the upstream service without modification of headers.\n"
	e := NewExtractor(LangEnglish)
	got := e.Extract(text, chunkText(t, text))

	count := 0
	for _, ent := range got.Entities {
		if ent.Name == "HTTP" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestExtract_SourceChunkTracksPiece(t *testing.T) {
	text := "The system shall log every login attempt.\n\nThe system shall log every login attempt.\n"
	e := NewExtractor(LangEnglish)
	pieces := chunkText(t, text)
	require.Len(t, pieces, 2)

	got := e.Extract(text, pieces)
	require.Len(t, got.Requirements, 2)
	assert.Equal(t, 0, got.Requirements[0].SourceChunk)
	assert.Equal(t, 1, got.Requirements[1].SourceChunk)
}

func TestExtractEntities_CoversWholeDocument(t *testing.T) {
	// "See GDPR." 行过短不会成为 chunk，实体识别仍应覆盖到
	text := "See GDPR.\n\nThe system shall anonymize exported records before publication to third parties.\n"
	e := NewExtractor(LangEnglish)
	pieces := chunkText(t, text)
	for _, p := range pieces {
		require.NotContains(t, p.Text, "GDPR")
	}

	got := e.Extract(text, pieces)
	var names []string
	for _, ent := range got.Entities {
		names = append(names, ent.Name)
	}
	assert.Contains(t, names, "GDPR")
}

func TestDetectLanguage_FallsBack(t *testing.T) {
	assert.Equal(t, LangEnglish, DetectLanguage("", LangEnglish))
	assert.Equal(t, LangRussian, DetectLanguage("", LangRussian))
	assert.Equal(t, LangEnglish, DetectLanguage("", "de"))
}

func TestSplitSentences_KeepsDecimals(t *testing.T) {
	got := SplitSentences("Latency stays below 3.14 seconds. Throughput stays above 100 rps.")
	require.Len(t, got, 2)
	assert.Equal(t, "Latency stays below 3.14 seconds.", got[0])
	assert.Equal(t, "Throughput stays above 100 rps.", got[1])
}
