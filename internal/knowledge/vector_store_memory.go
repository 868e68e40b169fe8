package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// memoryVectorStore 进程内向量存储，用于开发与测试环境。
// 余弦相似度打分，结果排序与Milvus实现保持同一约定
type memoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]VectorChunk
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{
		collections: make(map[string]map[string]VectorChunk),
	}
}

func (s *memoryVectorStore) EnsureCollection(ctx context.Context, collection string, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = make(map[string]VectorChunk)
	}
	return nil
}

func (s *memoryVectorStore) Upsert(ctx context.Context, collection string, chunks []VectorChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]VectorChunk)
		s.collections[collection] = coll
	}
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has empty embedding", chunk.ID)
		}
		coll[chunk.ID] = chunk
	}
	return nil
}

func (s *memoryVectorStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]SearchMatch, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	matches := make([]SearchMatch, 0, len(coll))
	for _, chunk := range coll {
		matches = append(matches, SearchMatch{
			ChunkID: chunk.ID,
			Page:    chunk.Page,
			Index:   chunk.Index,
			Text:    chunk.Text,
			Score:   cosineSimilarity(queryEmbedding, chunk.Embedding),
		})
	}

	sortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// ListChunks 按文档顺序（页码、块序号）返回全部块
func (s *memoryVectorStore) ListChunks(ctx context.Context, collection string) ([]SearchMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	matches := make([]SearchMatch, 0, len(coll))
	for _, chunk := range coll {
		matches = append(matches, SearchMatch{
			ChunkID: chunk.ID,
			Page:    chunk.Page,
			Index:   chunk.Index,
			Text:    chunk.Text,
		})
	}

	sortMatchesByOrder(matches)
	return matches, nil
}

func (s *memoryVectorStore) DropCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

func (s *memoryVectorStore) HasCollection(ctx context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

// sortMatches 统一排序约定：得分降序，同分按（页码，块序号）升序保证确定性
func sortMatches(matches []SearchMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			if matches[i].Page == matches[j].Page {
				return matches[i].Index < matches[j].Index
			}
			return matches[i].Page < matches[j].Page
		}
		return matches[i].Score > matches[j].Score
	})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
