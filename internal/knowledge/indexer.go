package knowledge

import (
	"context"
	"fmt"

	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

// EmbeddingIndexer 文档向量索引器
// 每个文档对应独立集合，重复索引同一文档是幂等操作
type EmbeddingIndexer struct {
	embedder         Embedder
	vectorStore      VectorStore
	collectionPrefix string
}

// NewEmbeddingIndexer 创建向量索引器
func NewEmbeddingIndexer(embedder Embedder, vectorStore VectorStore, collectionPrefix string) *EmbeddingIndexer {
	if collectionPrefix == "" {
		collectionPrefix = "legaldoc"
	}
	return &EmbeddingIndexer{
		embedder:         embedder,
		vectorStore:      vectorStore,
		collectionPrefix: collectionPrefix,
	}
}

// Collection 返回文档对应的集合名
func (idx *EmbeddingIndexer) Collection(fingerprint string) string {
	return CollectionName(idx.collectionPrefix, fingerprint)
}

// IndexDocument 将文档全部块写入向量存储
// 全有或全无：任一块嵌入失败则不写入任何向量，文档不会出现半索引状态
func (idx *EmbeddingIndexer) IndexDocument(ctx context.Context, fingerprint string, chunks []Chunk) error {
	if fingerprint == "" {
		return apperrors.NewInvalidInputError("fingerprint", "fingerprint is required")
	}
	if len(chunks) == 0 {
		return apperrors.NewIngestionError("document has no indexable chunks", nil)
	}
	if !idx.embedder.Ready() {
		return apperrors.NewIngestionError("embedder is not available", nil)
	}

	// 先完成全部嵌入，再写入存储
	vectorChunks := make([]VectorChunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return apperrors.NewIngestionError(
				fmt.Sprintf("failed to embed chunks %d-%d", start, end-1), err)
		}
		if len(embeddings) != len(batch) {
			return apperrors.NewIngestionError(
				fmt.Sprintf("embedder returned %d vectors for %d chunks", len(embeddings), len(batch)), nil)
		}

		for i, chunk := range batch {
			vectorChunks = append(vectorChunks, VectorChunk{
				ID:        chunk.ID,
				Page:      chunk.Page,
				Index:     chunk.Index,
				Text:      chunk.Text,
				Embedding: embeddings[i],
			})
		}
	}

	collection := idx.Collection(fingerprint)
	dims := idx.embedder.Dimensions()
	if len(vectorChunks) > 0 && dims <= 0 {
		dims = len(vectorChunks[0].Embedding)
	}

	if err := idx.vectorStore.EnsureCollection(ctx, collection, dims); err != nil {
		return apperrors.NewIngestionError("failed to ensure vector collection", err)
	}
	if err := idx.vectorStore.Upsert(ctx, collection, vectorChunks); err != nil {
		return apperrors.NewIngestionError("failed to upsert vectors", err)
	}

	logger.Info("Document indexed",
		zap.String("fingerprint", fingerprint),
		zap.String("collection", collection),
		zap.Int("chunks", len(vectorChunks)))
	return nil
}

// RemoveDocument 删除文档对应的全部向量
func (idx *EmbeddingIndexer) RemoveDocument(ctx context.Context, fingerprint string) error {
	return idx.vectorStore.DropCollection(ctx, idx.Collection(fingerprint))
}

// IsIndexed 检查文档是否已建立索引
func (idx *EmbeddingIndexer) IsIndexed(ctx context.Context, fingerprint string) (bool, error) {
	return idx.vectorStore.HasCollection(ctx, idx.Collection(fingerprint))
}
