package processing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	docx "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrFileTooLarge      = errors.New("document exceeds size limit")
)

// TextExtractor 从上传文件中抽取纯文本，按扩展名分派解析器
type TextExtractor struct {
	maxSizeBytes  int64
	supportedExts map[string]bool
}

func NewTextExtractor(maxSizeMB int64, supportedExts []string) *TextExtractor {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	exts := make(map[string]bool, len(supportedExts))
	for _, e := range supportedExts {
		exts[strings.ToLower(strings.TrimSpace(e))] = true
	}
	if len(exts) == 0 {
		exts = map[string]bool{".pdf": true, ".docx": true, ".txt": true, ".md": true}
	}
	return &TextExtractor{maxSizeBytes: maxSizeMB << 20, supportedExts: exts}
}

func (e *TextExtractor) Supported(filename string) bool {
	return e.supportedExts[strings.ToLower(filepath.Ext(filename))]
}

func (e *TextExtractor) MaxSizeBytes() int64 {
	return e.maxSizeBytes
}

func (e *TextExtractor) Extract(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > e.maxSizeBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !e.supportedExts[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	switch ext {
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDocx(path, info.Size())
	case ".md":
		return extractMarkdown(path)
	case ".txt":
		return extractPlainText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractDocx(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := docx.Parse(f, size)
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var sb strings.Builder
	for _, it := range doc.Document.Body.Items {
		switch it.(type) {
		case *docx.Paragraph, *docx.Table:
			fmt.Fprintln(&sb, it)
		}
	}
	return sb.String(), nil
}

// extractMarkdown 走 goldmark 的 AST，只收集文本节点，
// 块级节点之间补换行以保留段落结构
func extractMarkdown(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	root := goldmark.New().Parser().Parse(text.NewReader(source))
	var buf bytes.Buffer
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractPlainText 按 UTF-8 读取，非法编码时按 Latin-1 逐字节解码兜底
func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	runes := make([]rune, 0, len(data))
	for _, b := range data {
		runes = append(runes, rune(b))
	}
	return string(runes), nil
}
