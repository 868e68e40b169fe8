package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/kafka"
	"github.com/legalhub/backend-go/internal/logger"
	"github.com/legalhub/backend-go/internal/models"
	"github.com/legalhub/backend-go/internal/repository"
	"github.com/legalhub/backend-go/internal/storage"
	"go.uber.org/zap"
)

// RetrainService 重训任务执行器
// 从可训练反馈构建JSONL数据集并分发任务，训练本身由下游消费方完成
type RetrainService struct {
	feedback      repository.FeedbackRepository
	retrainState  repository.RetrainStateRepository
	objectStorage storage.ObjectStorage
	producer      kafka.Producer
	chunkCache    *RedisChunkStore

	// 状态回写与反馈计数共用同一把用户锁，见NewFeedbackService
	userLocks *keyedMutex
}

// retrainSample 微调样本，JSONL每行一条
type retrainSample struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// NewRetrainService 创建重训服务
func NewRetrainService(
	feedback repository.FeedbackRepository,
	retrainState repository.RetrainStateRepository,
	objectStorage storage.ObjectStorage,
	producer kafka.Producer,
	chunkCache *RedisChunkStore,
) *RetrainService {
	if producer == nil {
		producer = kafka.NoopProducer{}
	}
	return &RetrainService{
		feedback:      feedback,
		retrainState:  retrainState,
		objectStorage: objectStorage,
		producer:      producer,
		chunkCache:    chunkCache,
		userLocks:     newKeyedMutex(),
	}
}

// Dispatch 异步执行用户的重训任务
func (s *RetrainService) Dispatch(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Execute(ctx, userID); err != nil {
			logger.Error("Retrain job failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

// Execute 执行重训任务：构建数据集 → 存储 → 分发
// 完成后无论成败都清零计数；LastRetrainAt只在成功时更新
func (s *RetrainService) Execute(ctx context.Context, userID string) error {
	if err := s.transition(ctx, userID, models.RetrainStateRetraining); err != nil {
		return err
	}

	err := s.run(ctx, userID)
	if err != nil {
		retrainJobs.WithLabelValues("failed").Inc()
		if stateErr := s.complete(ctx, userID, false); stateErr != nil {
			logger.Error("Failed to reset retrain state", zap.String("user_id", userID), zap.Error(stateErr))
		}
		return err
	}

	retrainJobs.WithLabelValues("succeeded").Inc()
	return s.complete(ctx, userID, true)
}

func (s *RetrainService) run(ctx context.Context, userID string) error {
	events, err := s.feedback.ListTrainable(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load trainable feedback: %w", err)
	}
	if len(events) == 0 {
		return apperrors.NewStateConflictError("no eligible feedback to retrain on")
	}

	dataset, err := s.buildDataset(ctx, events)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("datasets/%s/%d.jsonl", userID, time.Now().Unix())
	if s.objectStorage != nil {
		if err := s.objectStorage.Put(ctx, key, bytes.NewReader(dataset), int64(len(dataset)), "application/x-ndjson"); err != nil {
			return fmt.Errorf("failed to store retrain dataset: %w", err)
		}
	}

	if err := s.producer.PublishRetrainJob(kafka.RetrainJobMessage{
		UserID:      userID,
		DatasetKey:  key,
		SampleCount: len(events),
		CreatedAt:   time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to dispatch retrain job: %w", err)
	}

	logger.Info("Retrain dataset built",
		zap.String("user_id", userID),
		zap.String("dataset_key", key),
		zap.Int("samples", len(events)))
	return nil
}

// buildDataset 由非机密修正反馈组装JSONL数据集
func (s *RetrainService) buildDataset(ctx context.Context, events []models.FeedbackEvent) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, event := range events {
		prompt := fmt.Sprintf("Based on the following legal document excerpt, answer accurately.\n\nExcerpt [%s]:", event.ChunkID)
		if s.chunkCache != nil {
			if text, err := s.chunkCache.GetChunkText(ctx, event.ChunkID); err == nil {
				prompt = fmt.Sprintf("Based on the following legal document excerpt, answer accurately.\n\nExcerpt [%s]:\n%s", event.ChunkID, text)
			}
		}
		if err := encoder.Encode(retrainSample{
			Prompt:     prompt,
			Completion: event.CorrectedOutput,
		}); err != nil {
			return nil, fmt.Errorf("failed to encode retrain sample: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func (s *RetrainService) transition(ctx context.Context, userID, to string) error {
	unlock := s.userLocks.Lock(userID)
	defer unlock()

	state, err := s.retrainState.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load retrain state: %w", err)
	}
	state.State = to
	return s.retrainState.Save(ctx, state)
}

func (s *RetrainService) complete(ctx context.Context, userID string, success bool) error {
	unlock := s.userLocks.Lock(userID)
	defer unlock()

	state, err := s.retrainState.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load retrain state: %w", err)
	}
	state.PendingCount = 0
	if success {
		now := time.Now()
		state.State = models.RetrainStateIdle
		state.LastRetrainAt = &now
	} else {
		state.State = models.RetrainStateAccumulating
	}
	return s.retrainState.Save(ctx, state)
}
