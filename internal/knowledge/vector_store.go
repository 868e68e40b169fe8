package knowledge

import (
	"context"
	"strings"
)

// VectorChunk 向量存储条目，ID即块ID
type VectorChunk struct {
	ID        string
	Page      int
	Index     int
	Text      string
	Embedding []float32
}

// SearchMatch 检索结果
type SearchMatch struct {
	ChunkID string
	Page    int
	Index   int
	Text    string
	Score   float64
}

// VectorStore 向量存储抽象。每个文档对应一个集合，
// 集合创建幂等，按块ID覆盖写入
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection string, dims int) error
	Upsert(ctx context.Context, collection string, chunks []VectorChunk) error
	Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]SearchMatch, error)
	ListChunks(ctx context.Context, collection string) ([]SearchMatch, error)
	DropCollection(ctx context.Context, collection string) error
	HasCollection(ctx context.Context, collection string) (bool, error)
	Ready() bool
}

// CollectionName 将文档指纹映射为集合名。
// Milvus集合名只允许字母数字与下划线，指纹为十六进制或guest_前缀形式，直接拼接即可
func CollectionName(prefix, fingerprint string) string {
	if prefix == "" {
		prefix = "legaldoc"
	}
	return prefix + "_" + strings.ReplaceAll(fingerprint, "-", "_")
}
