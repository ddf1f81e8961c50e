package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/cloudwego/eino/components/embedding"
)

// MockEmbedder 确定性哈希向量，相同文本必得到相同向量，
// 单元测试与离线开发用，不需要外部服务
type MockEmbedder struct {
	Dim int
}

func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	result := make([][]float64, len(texts))
	for i, text := range texts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		state := h.Sum64()
		if state == 0 {
			state = 1
		}

		vec := make([]float64, m.Dim)
		var norm float64
		for j := 0; j < m.Dim; j++ {
			// xorshift64，按文本哈希做种
			state ^= state << 13
			state ^= state >> 7
			state ^= state << 17
			vec[j] = float64(int64(state)) / math.MaxInt64
			norm += vec[j] * vec[j]
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range vec {
				vec[j] /= norm
			}
		}
		result[i] = vec
	}
	return result, nil
}

var _ embedding.Embedder = (*MockEmbedder)(nil)
