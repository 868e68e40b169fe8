package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/legalhub/backend-go/internal/config"
	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/knowledge"
	"github.com/legalhub/backend-go/internal/logger"
	"github.com/legalhub/backend-go/internal/models"
	"github.com/legalhub/backend-go/internal/repository"
	"github.com/legalhub/backend-go/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentService 文档服务：上传、指纹、后台摄取、状态查询、删除
type DocumentService struct {
	documents     repository.DocumentRepository
	parserManager *knowledge.FileParserManager
	chunker       *knowledge.Chunker
	indexer       *knowledge.EmbeddingIndexer
	chunkCache    *RedisChunkStore
	objectStorage storage.ObjectStorage
	uploadCfg     config.FileUploadConfig

	// 同一文档的摄取按指纹串行
	ingestLocks *keyedMutex
}

// DocumentInfo 文档信息响应
type DocumentInfo struct {
	Fingerprint string `json:"fingerprint"`
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	PageCount   int    `json:"page_count"`
	ChunkCount  int    `json:"chunk_count"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// UploadResult 上传响应
type UploadResult struct {
	Fingerprint string `json:"fingerprint"`
	Filename    string `json:"filename"`
	PageCount   int    `json:"page_count"`
	Status      string `json:"status"`
	Duplicate   bool   `json:"duplicate"`
}

// NewDocumentService 创建文档服务
func NewDocumentService(
	documents repository.DocumentRepository,
	parserManager *knowledge.FileParserManager,
	chunker *knowledge.Chunker,
	indexer *knowledge.EmbeddingIndexer,
	chunkCache *RedisChunkStore,
	objectStorage storage.ObjectStorage,
	uploadCfg config.FileUploadConfig,
) *DocumentService {
	return &DocumentService{
		documents:     documents,
		parserManager: parserManager,
		chunker:       chunker,
		indexer:       indexer,
		chunkCache:    chunkCache,
		objectStorage: objectStorage,
		uploadCfg:     uploadCfg,
		ingestLocks:   newKeyedMutex(),
	}
}

// Upload 上传文件并触发后台摄取
// 指纹为文件字节的sha256，游客文档加guest_前缀；同指纹重复上传直接复用已有记录
func (s *DocumentService) Upload(ctx context.Context, ownerID, filename string, content []byte, guest bool) (*UploadResult, error) {
	if len(content) == 0 {
		return nil, apperrors.NewInvalidInputError("file", "file is empty")
	}
	if s.uploadCfg.MaxSize > 0 && int64(len(content)) > s.uploadCfg.MaxSize {
		return nil, apperrors.NewFileTooLargeError(s.uploadCfg.MaxSize)
	}
	if !s.allowedType(filename) {
		return nil, apperrors.NewInvalidFileFormatError(filepath.Ext(filename))
	}

	fingerprint := knowledge.Fingerprint(content)
	if guest {
		fingerprint = models.GuestPrefix + fingerprint
	}

	// 重复检测：已有记录且未失败时复用
	existing, err := s.documents.GetByFingerprint(ctx, fingerprint)
	if err == nil {
		if existing.Status != models.DocumentStatusFailed {
			return &UploadResult{
				Fingerprint: existing.Fingerprint,
				Filename:    existing.Filename,
				PageCount:   existing.PageCount,
				Status:      existing.Status,
				Duplicate:   true,
			}, nil
		}
		// 失败的文档允许重新摄取
	} else if !apperrors.IsCode(err, apperrors.ErrCodeResourceNotFound) {
		return nil, err
	}

	if s.objectStorage != nil {
		key := fmt.Sprintf("documents/%s/%s", fingerprint, filepath.Base(filename))
		if err := s.objectStorage.Put(ctx, key, bytes.NewReader(content), int64(len(content)), ""); err != nil {
			logger.Warn("Failed to store raw file", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
	}

	if existing == nil {
		doc := &models.Document{
			Fingerprint: fingerprint,
			OwnerID:     ownerID,
			Filename:    filepath.Base(filename),
			FileSize:    int64(len(content)),
			Status:      models.DocumentStatusPending,
		}
		if err := s.documents.Create(ctx, doc); err != nil {
			// 同指纹并发首传：输掉唯一键竞争的一方按重复上传处理
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				winner, getErr := s.documents.GetByFingerprint(ctx, fingerprint)
				if getErr != nil {
					return nil, getErr
				}
				return &UploadResult{
					Fingerprint: winner.Fingerprint,
					Filename:    winner.Filename,
					PageCount:   winner.PageCount,
					Status:      winner.Status,
					Duplicate:   true,
				}, nil
			}
			return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to create document record").WithCause(err)
		}
	} else {
		if err := s.documents.Update(ctx, fingerprint, map[string]interface{}{
			"status": models.DocumentStatusPending,
			"error":  "",
		}); err != nil {
			return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to reset document record").WithCause(err)
		}
	}

	// 后台摄取，不阻塞上传响应
	go s.ingest(fingerprint, filename, content)

	return &UploadResult{
		Fingerprint: fingerprint,
		Filename:    filepath.Base(filename),
		Status:      models.DocumentStatusPending,
	}, nil
}

// ingest 摄取流水线：解析 → 切块 → 嵌入索引 → 就绪
func (s *DocumentService) ingest(fingerprint, filename string, content []byte) {
	unlock := s.ingestLocks.Lock(fingerprint)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fail := func(stage string, err error) {
		logger.Error("Document ingestion failed",
			zap.String("fingerprint", fingerprint),
			zap.String("stage", stage),
			zap.Error(err))
		documentsIngested.WithLabelValues(models.DocumentStatusFailed).Inc()
		_ = s.documents.Update(ctx, fingerprint, map[string]interface{}{
			"status": models.DocumentStatusFailed,
			"error":  err.Error(),
		})
	}

	if err := s.documents.Update(ctx, fingerprint, map[string]interface{}{
		"status": models.DocumentStatusChunking,
	}); err != nil {
		fail("status", err)
		return
	}

	pages, err := s.parserManager.ParseFile(bytes.NewReader(content), filename)
	if err != nil {
		fail("parse", err)
		return
	}

	chunks := s.chunker.Split(fingerprint, pages)
	if len(chunks) == 0 {
		fail("chunk", fmt.Errorf("document produced no chunks"))
		return
	}

	if s.chunkCache != nil {
		if err := s.chunkCache.StoreChunks(ctx, fingerprint, chunks); err != nil {
			logger.Warn("Failed to cache chunks", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
	}

	if err := s.documents.Update(ctx, fingerprint, map[string]interface{}{
		"status": models.DocumentStatusEmbedding,
	}); err != nil {
		fail("status", err)
		return
	}

	if err := s.indexer.IndexDocument(ctx, fingerprint, chunks); err != nil {
		fail("index", err)
		return
	}

	if err := s.documents.Update(ctx, fingerprint, map[string]interface{}{
		"status":      models.DocumentStatusReady,
		"page_count":  len(pages),
		"chunk_count": len(chunks),
		"error":       "",
	}); err != nil {
		fail("status", err)
		return
	}

	documentsIngested.WithLabelValues(models.DocumentStatusReady).Inc()
	logger.Info("Document ingested",
		zap.String("fingerprint", fingerprint),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))
}

// GetStatus 查询文档摄取状态
func (s *DocumentService) GetStatus(ctx context.Context, fingerprint string) (*DocumentInfo, error) {
	doc, err := s.documents.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	return toDocumentInfo(doc), nil
}

// List 列出用户的文档（不含游客文档）
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]*DocumentInfo, error) {
	docs, err := s.documents.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to list documents").WithCause(err)
	}
	infos := make([]*DocumentInfo, 0, len(docs))
	for i := range docs {
		infos = append(infos, toDocumentInfo(&docs[i]))
	}
	return infos, nil
}

// Delete 删除文档及其向量集合、块缓存与原始文件
func (s *DocumentService) Delete(ctx context.Context, ownerID, fingerprint string) error {
	doc, err := s.documents.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return err
	}
	if !doc.IsGuest() && doc.OwnerID != ownerID {
		return apperrors.NewNotFoundError("document")
	}

	if err := s.indexer.RemoveDocument(ctx, fingerprint); err != nil {
		logger.Warn("Failed to drop vector collection", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
	if s.chunkCache != nil {
		if err := s.chunkCache.DeleteDocumentChunks(ctx, fingerprint); err != nil {
			logger.Warn("Failed to delete cached chunks", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
	}
	if s.objectStorage != nil {
		key := fmt.Sprintf("documents/%s/%s", fingerprint, doc.Filename)
		if err := s.objectStorage.Remove(ctx, key); err != nil {
			logger.Warn("Failed to remove raw file", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
	}

	return s.documents.Delete(ctx, fingerprint)
}

func (s *DocumentService) allowedType(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.uploadCfg.AllowedTypes {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func toDocumentInfo(doc *models.Document) *DocumentInfo {
	return &DocumentInfo{
		Fingerprint: doc.Fingerprint,
		Filename:    doc.Filename,
		FileSize:    doc.FileSize,
		PageCount:   doc.PageCount,
		ChunkCount:  doc.ChunkCount,
		Status:      doc.Status,
		Error:       doc.Error,
		CreatedAt:   doc.CreatedAt.Format(time.RFC3339),
	}
}
