package processing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestTextExtractor_PlainText(t *testing.T) {
	e := NewTextExtractor(20, nil)
	path := writeFile(t, "doc.txt", []byte("The system shall work.\n"))

	got, err := e.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "The system shall work.\n", got)
}

func TestTextExtractor_Latin1Fallback(t *testing.T) {
	e := NewTextExtractor(20, nil)
	// 0xE9 单独出现不是合法 UTF-8，按 Latin-1 解码成 é
	path := writeFile(t, "doc.txt", []byte{'c', 'a', 'f', 0xE9})

	got, err := e.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "café", got)
}

func TestTextExtractor_Markdown(t *testing.T) {
	e := NewTextExtractor(20, nil)
	md := "# Requirements\n\nThe system **shall** respond quickly.\n\n- item one here\n- item two here\n"
	path := writeFile(t, "doc.md", []byte(md))

	got, err := e.Extract(path)
	require.NoError(t, err)
	assert.Contains(t, got, "Requirements")
	assert.Contains(t, got, "shall")
	assert.Contains(t, got, "item one here")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "**")
}

func TestTextExtractor_UnsupportedFormat(t *testing.T) {
	e := NewTextExtractor(20, nil)
	path := writeFile(t, "doc.exe", []byte("binary"))

	_, err := e.Extract(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTextExtractor_TooLarge(t *testing.T) {
	e := NewTextExtractor(1, nil)
	path := writeFile(t, "doc.txt", []byte(strings.Repeat("a", 2<<20)))

	_, err := e.Extract(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestTextExtractor_Supported(t *testing.T) {
	e := NewTextExtractor(20, []string{".txt", ".md"})
	assert.True(t, e.Supported("spec.TXT"))
	assert.True(t, e.Supported("notes.md"))
	assert.False(t, e.Supported("report.pdf"))
}
