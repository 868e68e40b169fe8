package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/legalhub/backend-go/internal/config"
	"github.com/legalhub/backend-go/internal/database"
	"github.com/legalhub/backend-go/internal/knowledge"
	"github.com/legalhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

// RedisChunkStore Redis分块文本缓存
// 按块ID缓存块文本，证据标注与反馈校验使用，未启用时静默降级
type RedisChunkStore struct {
	client   *redis.Client
	enabled  bool
	ttl      time.Duration
	hitStats *CacheHitStats
}

// CacheHitStats 缓存命中率统计
type CacheHitStats struct {
	hits   int64
	misses int64
	mu     sync.RWMutex
}

// NewRedisChunkStore 创建Redis分块缓存
func NewRedisChunkStore() (*RedisChunkStore, error) {
	cfg := config.AppConfig
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	if database.RedisClient == nil {
		return &RedisChunkStore{enabled: false}, nil
	}

	ttl := time.Duration(cfg.Redis.TTL) * time.Second
	if ttl == 0 {
		ttl = 3600 * time.Second // 默认1小时
	}

	return &RedisChunkStore{
		client:   database.RedisClient,
		enabled:  cfg.Redis.Enabled,
		ttl:      ttl,
		hitStats: &CacheHitStats{},
	}, nil
}

// StoreChunks 缓存文档全部块文本
func (r *RedisChunkStore) StoreChunks(ctx context.Context, fingerprint string, chunks []knowledge.Chunk) error {
	if !r.enabled || r.client == nil {
		return nil
	}

	docKey := r.documentChunksKey(fingerprint)
	for _, chunk := range chunks {
		key := r.chunkKey(chunk.ID)
		data := map[string]interface{}{
			"content":     chunk.Text,
			"page":        chunk.Page,
			"chunk_index": chunk.Index,
		}
		if err := r.client.HSet(ctx, key, data).Err(); err != nil {
			return fmt.Errorf("failed to store chunk to redis: %w", err)
		}
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			logger.Warn("Failed to set TTL for chunk", zap.Error(err))
		}
		if err := r.client.SAdd(ctx, docKey, chunk.ID).Err(); err != nil {
			logger.Warn("Failed to add chunk to document index", zap.Error(err))
		}
	}
	if err := r.client.Expire(ctx, docKey, r.ttl).Err(); err != nil {
		logger.Warn("Failed to set TTL for document chunks index", zap.Error(err))
	}
	return nil
}

// GetChunkText 按块ID读取缓存的块文本
func (r *RedisChunkStore) GetChunkText(ctx context.Context, chunkID string) (string, error) {
	if !r.enabled || r.client == nil {
		r.recordMiss()
		return "", fmt.Errorf("redis chunk store not enabled")
	}

	content, err := r.client.HGet(ctx, r.chunkKey(chunkID), "content").Result()
	if err != nil {
		r.recordMiss()
		if err == redis.Nil {
			return "", fmt.Errorf("chunk not found")
		}
		return "", fmt.Errorf("failed to get chunk from redis: %w", err)
	}

	r.recordHit()
	return content, nil
}

// DeleteDocumentChunks 删除文档的全部缓存块
func (r *RedisChunkStore) DeleteDocumentChunks(ctx context.Context, fingerprint string) error {
	if !r.enabled || r.client == nil {
		return nil
	}

	docKey := r.documentChunksKey(fingerprint)
	chunkIDs, err := r.client.SMembers(ctx, docKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get document chunks: %w", err)
	}

	for _, chunkID := range chunkIDs {
		if err := r.client.Del(ctx, r.chunkKey(chunkID)).Err(); err != nil {
			logger.Warn("Failed to delete chunk", zap.String("chunk_id", chunkID), zap.Error(err))
		}
	}
	return r.client.Del(ctx, docKey).Err()
}

func (r *RedisChunkStore) chunkKey(chunkID string) string {
	return fmt.Sprintf("chunk:%s", chunkID)
}

func (r *RedisChunkStore) documentChunksKey(fingerprint string) string {
	return fmt.Sprintf("doc_chunks:%s", fingerprint)
}

// recordHit 记录缓存命中
func (r *RedisChunkStore) recordHit() {
	if r.hitStats != nil {
		r.hitStats.mu.Lock()
		r.hitStats.hits++
		r.hitStats.mu.Unlock()
	}
}

// recordMiss 记录缓存未命中
func (r *RedisChunkStore) recordMiss() {
	if r.hitStats != nil {
		r.hitStats.mu.Lock()
		r.hitStats.misses++
		r.hitStats.mu.Unlock()
	}
}

// GetCacheStats 获取缓存统计信息
func (r *RedisChunkStore) GetCacheStats() (hits, misses int64, hitRate float64) {
	if r.hitStats == nil {
		return 0, 0, 0
	}
	r.hitStats.mu.RLock()
	defer r.hitStats.mu.RUnlock()

	hits = r.hitStats.hits
	misses = r.hitStats.misses
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}
