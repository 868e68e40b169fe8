package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/models"
	"gorm.io/gorm"
)

type documentRepo struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓库
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).First(&doc, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("document")
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByOwner 返回指定用户的文档。游客文档owner为空，不会出现在任何注册用户的列表里
func (r *documentRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND fingerprint NOT LIKE ?", ownerID, models.GuestPrefix+"%").
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepo) Update(ctx context.Context, fingerprint string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("fingerprint = ?", fingerprint).
		Updates(updates).Error
}

func (r *documentRepo) Delete(ctx context.Context, fingerprint string) error {
	return r.db.WithContext(ctx).Delete(&models.Document{}, "fingerprint = ?", fingerprint).Error
}

type answerRepo struct {
	db *gorm.DB
}

// NewAnswerRepository 创建问答历史仓库
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepo{db: db}
}

func (r *answerRepo) Create(ctx context.Context, record *models.AnswerRecord) error {
	record.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *answerRepo) ListByUser(ctx context.Context, userID, fingerprint string, limit int) ([]models.AnswerRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if fingerprint != "" {
		query = query.Where("fingerprint = ?", fingerprint)
	}
	var records []models.AnswerRecord
	err := query.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}
