package knowledge

import (
	"context"
	"strings"

	apperrors "github.com/legalhub/backend-go/internal/errors"
)

// Retriever 文档相关块检索器
type Retriever struct {
	embedder         Embedder
	vectorStore      VectorStore
	collectionPrefix string
	defaultTopK      int
}

// NewRetriever 创建检索器
func NewRetriever(embedder Embedder, vectorStore VectorStore, collectionPrefix string, defaultTopK int) *Retriever {
	if collectionPrefix == "" {
		collectionPrefix = "legaldoc"
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Retriever{
		embedder:         embedder,
		vectorStore:      vectorStore,
		collectionPrefix: collectionPrefix,
		defaultTopK:      defaultTopK,
	}
}

// Retrieve 检索与查询最相关的topK个文档块
// 结果按得分降序，同分按（页码，块序号）升序，保证重复查询结果稳定
// 空白查询不调用嵌入服务，改为按文档顺序等距抽样
func (r *Retriever) Retrieve(ctx context.Context, fingerprint, query string, topK int) ([]SearchMatch, error) {
	if fingerprint == "" {
		return nil, apperrors.NewInvalidInputError("fingerprint", "fingerprint is required")
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	collection := CollectionName(r.collectionPrefix, fingerprint)
	hasCollection, err := r.vectorStore.HasCollection(ctx, collection)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to check vector collection").WithCause(err)
	}
	if !hasCollection {
		return nil, apperrors.NewNotFoundError("document index")
	}

	if strings.TrimSpace(query) == "" {
		return r.sampleChunks(ctx, collection, topK)
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.NewEmbeddingError("failed to embed query", err)
	}

	matches, err := r.vectorStore.Search(ctx, collection, embedding, topK)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "vector search failed").WithCause(err)
	}
	return matches, nil
}

// sampleChunks 空查询回退：按文档顺序等距抽样，不产生嵌入调用
func (r *Retriever) sampleChunks(ctx context.Context, collection string, topK int) ([]SearchMatch, error) {
	chunks, err := r.vectorStore.ListChunks(ctx, collection)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to list chunks").WithCause(err)
	}
	if len(chunks) == 0 {
		return []SearchMatch{}, nil
	}

	if len(chunks) <= topK {
		for i := range chunks {
			chunks[i].Score = 0
		}
		return chunks, nil
	}

	sampled := make([]SearchMatch, 0, topK)
	stride := len(chunks) / topK
	for i := 0; i < topK; i++ {
		match := chunks[i*stride]
		match.Score = 0
		sampled = append(sampled, match)
	}
	return sampled, nil
}
