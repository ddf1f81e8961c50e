package chunking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"

	"ReqGraph/internal/modules/rag/domain/graph"
)

// FixedChunker 固定大小切分，底层复用 Eino 的递归切分器。
// 重叠必须为 0，否则片段无法映射回原文的唯一偏移。
type FixedChunker struct {
	ChunkSize int

	initOnce sync.Once
	initErr  error
	splitter document.Transformer
}

func NewFixedChunker(size int) *FixedChunker {
	if size <= 0 {
		size = 512
	}
	return &FixedChunker{ChunkSize: size}
}

func (c *FixedChunker) init(ctx context.Context) {
	c.initOnce.Do(func() {
		impl, err := recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   c.ChunkSize,
			OverlapSize: 0,
			Separators:  []string{"\n\n", "\n", ". ", "! ", "? ", " "},
			LenFunc: func(s string) int {
				return len([]rune(s))
			},
			KeepType: recursive.KeepTypeEnd,
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.splitter = impl
	})
}

func (c *FixedChunker) Chunk(ctx context.Context, text string) ([]Piece, error) {
	if strings.TrimSpace(text) == "" {
		return []Piece{}, nil
	}

	c.init(ctx)
	if c.initErr != nil {
		return nil, c.initErr
	}

	frags, err := c.splitter.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, err
	}

	// 片段按原文顺序产出，用游标逐个回找字节偏移
	pieces := make([]Piece, 0, len(frags))
	cursor := 0
	for _, f := range frags {
		if f == nil || f.Content == "" {
			continue
		}
		idx := strings.Index(text[cursor:], f.Content)
		if idx < 0 {
			return nil, fmt.Errorf("chunk fragment not found in source text")
		}
		start := cursor + idx
		end := start + len(f.Content)
		if p, ok := trimSpan(text, start, end, graph.ChunkTypeFixed); ok {
			pieces = append(pieces, p)
		}
		cursor = end
	}
	return pieces, nil
}
