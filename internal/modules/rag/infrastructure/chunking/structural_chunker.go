package chunking

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"ReqGraph/internal/modules/rag/domain/graph"
)

// Piece 一个切分结果，Start/End 为原文中的字节偏移，
// 满足 text[Start:End] == Text
type Piece struct {
	Text  string
	Start int
	End   int
	Type  string
}

// Chunker 文本切分抽象，structural / paragraph / fixed 三种策略
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]Piece, error)
}

// NewChunker 按配置选择切分策略，未知策略回退 structural
func NewChunker(strategy string, maxChunkSize, minChunkWords int) Chunker {
	switch strategy {
	case "fixed":
		return NewFixedChunker(maxChunkSize)
	case "paragraph":
		c := NewStructuralChunker(maxChunkSize, minChunkWords)
		c.paragraphOnly = true
		return c
	default:
		return NewStructuralChunker(maxChunkSize, minChunkWords)
	}
}

var (
	bulletRe   = regexp.MustCompile(`^\s*[-*•]\s+`)
	numberedRe = regexp.MustCompile(`^\s*\d+(?:\.\d+)*[.)]?\s+`)
	mdHeaderRe = regexp.MustCompile(`^\s*#{1,6}\s+`)
)

// StructuralChunker 按文档结构切分：列表项、编号标题、空行分隔的段落
type StructuralChunker struct {
	MaxChunkSize  int // 超长段落按句子再切（rune 数）
	MinChunkWords int // 低于该词数的段落丢弃，列表项与标题不受限
	paragraphOnly bool
}

func NewStructuralChunker(maxChunkSize, minChunkWords int) *StructuralChunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 512
	}
	if minChunkWords < 0 {
		minChunkWords = 0
	}
	return &StructuralChunker{MaxChunkSize: maxChunkSize, MinChunkWords: minChunkWords}
}

type span struct {
	start int
	end   int
}

// Chunk 切分过程是确定性的：相同输入必得到相同的片段序列
func (c *StructuralChunker) Chunk(_ context.Context, text string) ([]Piece, error) {
	if strings.TrimSpace(text) == "" {
		return []Piece{}, nil
	}

	var pieces []Piece
	var paraStart = -1
	var paraEnd int

	flushPara := func() {
		if paraStart < 0 {
			return
		}
		pieces = append(pieces, c.splitParagraph(text, paraStart, paraEnd)...)
		paraStart = -1
	}

	for _, ln := range scanLines(text) {
		line := text[ln.start:ln.end]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flushPara()
			continue
		}

		if !c.paragraphOnly {
			if c.isHeader(trimmed) {
				flushPara()
				if p, ok := trimSpan(text, ln.start, ln.end, graph.ChunkTypeHeader); ok {
					pieces = append(pieces, p)
				}
				continue
			}
			if bulletRe.MatchString(line) || numberedRe.MatchString(line) {
				flushPara()
				if p, ok := trimSpan(text, ln.start, ln.end, graph.ChunkTypeListItem); ok {
					pieces = append(pieces, p)
				}
				continue
			}
		}

		if paraStart < 0 {
			paraStart = ln.start
		}
		paraEnd = ln.end
	}
	flushPara()

	out := pieces[:0]
	for _, p := range pieces {
		if p.Type == graph.ChunkTypeParagraph && wordCount(p.Text) < c.MinChunkWords {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// isHeader 编号或 Markdown 标题行，且足够短、无结句标点
func (c *StructuralChunker) isHeader(trimmed string) bool {
	if mdHeaderRe.MatchString(trimmed) {
		return true
	}
	if !numberedRe.MatchString(trimmed) {
		return false
	}
	if wordCount(trimmed) > 8 {
		return false
	}
	return !strings.ContainsAny(trimmed[strings.LastIndexFunc(trimmed, unicode.IsSpace)+1:], ".!?…")
}

// splitParagraph 段落超长时在句子边界处再切
func (c *StructuralChunker) splitParagraph(text string, start, end int) []Piece {
	p, ok := trimSpan(text, start, end, graph.ChunkTypeParagraph)
	if !ok {
		return nil
	}
	if utf8.RuneCountInString(p.Text) <= c.MaxChunkSize {
		return []Piece{p}
	}

	sentences := sentenceSpans(text, p.Start, p.End)
	if len(sentences) <= 1 {
		return []Piece{p}
	}

	var out []Piece
	cur := sentences[0]
	for _, s := range sentences[1:] {
		merged := text[cur.start:s.end]
		if utf8.RuneCountInString(merged) > c.MaxChunkSize {
			if np, ok := trimSpan(text, cur.start, cur.end, graph.ChunkTypeParagraph); ok {
				out = append(out, np)
			}
			cur = s
			continue
		}
		cur.end = s.end
	}
	if np, ok := trimSpan(text, cur.start, cur.end, graph.ChunkTypeParagraph); ok {
		out = append(out, np)
	}
	return out
}

// sentenceSpans 在 [start,end) 内按结句标点划分句子
func sentenceSpans(text string, start, end int) []span {
	var spans []span
	segStart := start
	i := start
	for i < end {
		r, size := utf8.DecodeRuneInString(text[i:end])
		i += size
		if r == '.' || r == '!' || r == '?' || r == '…' {
			// 标点后跟空白或文本结束才算句子边界，避免切开 "3.14" 之类
			if i >= end {
				break
			}
			next, _ := utf8.DecodeRuneInString(text[i:end])
			if unicode.IsSpace(next) {
				spans = append(spans, span{start: segStart, end: i})
				segStart = i
			}
		}
	}
	if segStart < end {
		spans = append(spans, span{start: segStart, end: end})
	}
	return spans
}

func scanLines(text string) []span {
	var lines []span
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, span{start: start, end: i})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, span{start: start, end: len(text)})
	}
	return lines
}

// trimSpan 去掉首尾空白并同步修正偏移，保证 text[Start:End] == Text
func trimSpan(text string, start, end int, chunkType string) (Piece, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if start >= end {
		return Piece{}, false
	}
	return Piece{Text: text[start:end], Start: start, End: end, Type: chunkType}, true
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
