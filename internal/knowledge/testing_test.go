package knowledge

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
)

// wordHashEmbedder 确定性词袋嵌入，仅测试使用。
// 共享词汇的文本向量相近，语义由词面重合近似
type wordHashEmbedder struct {
	dims  int
	calls int64
}

func newWordHashEmbedder() *wordHashEmbedder {
	return &wordHashEmbedder{dims: 64}
}

func (e *wordHashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt64(&e.calls, 1)
	vec := make([]float32, e.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,;:!?\"'()")))
		vec[h.Sum32()%uint32(e.dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *wordHashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *wordHashEmbedder) Dimensions() int { return e.dims }

func (e *wordHashEmbedder) Ready() bool { return true }

func (e *wordHashEmbedder) callCount() int64 { return atomic.LoadInt64(&e.calls) }

// failingEmbedder 第failAt次调用Embed后开始报错
type failingEmbedder struct {
	inner  *wordHashEmbedder
	failAt int64
}

func (e *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.inner.callCount() >= e.failAt {
		return nil, fmt.Errorf("embedding backend unavailable")
	}
	return e.inner.Embed(ctx, text)
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *failingEmbedder) Dimensions() int { return e.inner.Dimensions() }

func (e *failingEmbedder) Ready() bool { return true }

// echoGenerator 返回提示词本身，便于断言提示内容
type echoGenerator struct {
	response string
	prompts  []string
}

func (g *echoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.response != "" {
		return g.response, nil
	}
	return prompt, nil
}

func (g *echoGenerator) Ready() bool { return true }
