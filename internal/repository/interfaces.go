package repository

import (
	"context"

	"github.com/legalhub/backend-go/internal/models"
)

// DocumentRepository 文档元数据仓库接口
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error)
	Update(ctx context.Context, fingerprint string, updates map[string]interface{}) error
	Delete(ctx context.Context, fingerprint string) error
}

// AnswerRepository 问答历史仓库接口
type AnswerRepository interface {
	Create(ctx context.Context, record *models.AnswerRecord) error
	ListByUser(ctx context.Context, userID, fingerprint string, limit int) ([]models.AnswerRecord, error)
}

// FeedbackRepository 反馈事件仓库接口。事件只增不改
type FeedbackRepository interface {
	Create(ctx context.Context, event *models.FeedbackEvent) error
	ListTrainable(ctx context.Context, userID string) ([]models.FeedbackEvent, error)
	CountNonConfidential(ctx context.Context, userID string) (int64, error)
}

// RetrainStateRepository 用户重训状态仓库接口
type RetrainStateRepository interface {
	Get(ctx context.Context, userID string) (*models.RetrainState, error)
	Save(ctx context.Context, state *models.RetrainState) error
}
