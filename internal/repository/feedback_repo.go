package repository

import (
	"context"
	"errors"
	"time"

	"github.com/legalhub/backend-go/internal/models"
	"gorm.io/gorm"
)

type feedbackRepo struct {
	db *gorm.DB
}

// NewFeedbackRepository 创建反馈事件仓库
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Create(ctx context.Context, event *models.FeedbackEvent) error {
	event.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(event).Error
}

// ListTrainable 返回可用于训练的反馈：非机密且带有修正输出。
// 机密反馈永远不会出现在结果里，训练数据集的排除不变量在这里保证
func (r *feedbackRepo) ListTrainable(ctx context.Context, userID string) ([]models.FeedbackEvent, error) {
	var events []models.FeedbackEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND confidential = ? AND corrected_output <> ''", userID, false).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *feedbackRepo) CountNonConfidential(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FeedbackEvent{}).
		Where("user_id = ? AND confidential = ?", userID, false).
		Count(&count).Error
	return count, err
}

type retrainStateRepo struct {
	db *gorm.DB
}

// NewRetrainStateRepository 创建重训状态仓库
func NewRetrainStateRepository(db *gorm.DB) RetrainStateRepository {
	return &retrainStateRepo{db: db}
}

// Get 读取用户重训状态，不存在时返回初始accumulating状态（不落库）
func (r *retrainStateRepo) Get(ctx context.Context, userID string) (*models.RetrainState, error) {
	var state models.RetrainState
	err := r.db.WithContext(ctx).First(&state, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.RetrainState{
			UserID: userID,
			State:  models.RetrainStateAccumulating,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *retrainStateRepo) Save(ctx context.Context, state *models.RetrainState) error {
	state.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(state).Error
}
