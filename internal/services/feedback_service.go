package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/logger"
	"github.com/legalhub/backend-go/internal/models"
	"github.com/legalhub/backend-go/internal/repository"
	"go.uber.org/zap"
)

// RetrainDispatcher 重训任务分发接口
type RetrainDispatcher interface {
	Dispatch(userID string)
}

// FeedbackService 反馈台账与重训触发
// 台账只增不改；机密反馈落账但永远不计入重训计数
type FeedbackService struct {
	feedback     repository.FeedbackRepository
	retrainState repository.RetrainStateRepository
	dispatcher   RetrainDispatcher
	threshold    int

	// 计数与比较按用户串行，并发反馈只触发一次重训
	userLocks *keyedMutex
}

// FeedbackRequest 反馈请求
type FeedbackRequest struct {
	FileHash        string `json:"file_hash" validate:"required"`
	ChunkID         string `json:"chunk_id" validate:"required"`
	Rating          int    `json:"rating" validate:"omitempty,min=-1,max=1"`
	CorrectedOutput string `json:"corrected_output"`
	Confidential    bool   `json:"confidential"`
}

// FeedbackResult 反馈响应
type FeedbackResult struct {
	Recorded     bool   `json:"recorded"`
	Counted      bool   `json:"counted"`
	PendingCount int    `json:"pending_count"`
	State        string `json:"state"`
}

// NewFeedbackService 创建反馈服务
func NewFeedbackService(
	feedback repository.FeedbackRepository,
	retrainState repository.RetrainStateRepository,
	dispatcher RetrainDispatcher,
	threshold int,
) *FeedbackService {
	if threshold <= 0 {
		threshold = 5
	}
	s := &FeedbackService{
		feedback:     feedback,
		retrainState: retrainState,
		dispatcher:   dispatcher,
		threshold:    threshold,
		userLocks:    newKeyedMutex(),
	}
	// 进程内重训服务共用同一把用户锁，
	// 任务完成的清零回写与并发反馈的计数回写必须互斥
	if retrainService, ok := dispatcher.(*RetrainService); ok {
		s.userLocks = retrainService.userLocks
	}
	return s
}

// RecordFeedback 写入反馈事件并推进重训状态机
// 机密反馈只落账；非机密反馈计数达到阈值时状态转入retrain_pending并分发任务
func (s *FeedbackService) RecordFeedback(ctx context.Context, userID string, req FeedbackRequest) (*FeedbackResult, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("user_id", "user identity is required")
	}
	if req.FileHash == "" {
		return nil, apperrors.NewInvalidInputError("file_hash", "file hash is required")
	}
	if !strings.HasPrefix(req.ChunkID, req.FileHash+"::") {
		return nil, apperrors.NewInvalidInputError("chunk_id", "chunk id does not belong to the document")
	}

	event := &models.FeedbackEvent{
		UserID:          userID,
		Fingerprint:     req.FileHash,
		ChunkID:         req.ChunkID,
		Rating:          req.Rating,
		CorrectedOutput: req.CorrectedOutput,
		Confidential:    req.Confidential,
	}
	if err := s.feedback.Create(ctx, event); err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to record feedback").WithCause(err)
	}
	feedbackRecorded.WithLabelValues(fmt.Sprintf("%t", req.Confidential)).Inc()

	if req.Confidential {
		// 机密反馈不参与计数，状态机不动
		state, err := s.retrainState.Get(ctx, userID)
		if err != nil {
			return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to load retrain state").WithCause(err)
		}
		return &FeedbackResult{
			Recorded:     true,
			Counted:      false,
			PendingCount: state.PendingCount,
			State:        state.State,
		}, nil
	}

	unlock := s.userLocks.Lock(userID)
	defer unlock()

	state, err := s.retrainState.Get(ctx, userID)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to load retrain state").WithCause(err)
	}

	state.PendingCount++
	if state.State == models.RetrainStateIdle {
		state.State = models.RetrainStateAccumulating
	}

	triggered := false
	if state.State == models.RetrainStateAccumulating && state.PendingCount >= s.threshold {
		state.State = models.RetrainStatePending
		triggered = true
	}

	if err := s.retrainState.Save(ctx, state); err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to save retrain state").WithCause(err)
	}

	if triggered {
		logger.Info("Retrain threshold reached",
			zap.String("user_id", userID),
			zap.Int("pending_count", state.PendingCount))
		s.dispatcher.Dispatch(userID)
	}

	return &FeedbackResult{
		Recorded:     true,
		Counted:      true,
		PendingCount: state.PendingCount,
		State:        state.State,
	}, nil
}

// TriggerRetrain 显式触发重训
// 存在可训练反馈时强制进入retrain_pending，否则返回状态冲突
func (s *FeedbackService) TriggerRetrain(ctx context.Context, userID string) (*models.RetrainState, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("user_id", "user identity is required")
	}

	unlock := s.userLocks.Lock(userID)
	defer unlock()

	state, err := s.retrainState.Get(ctx, userID)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to load retrain state").WithCause(err)
	}
	if state.State == models.RetrainStatePending || state.State == models.RetrainStateRetraining {
		return nil, apperrors.NewStateConflictError("retrain is already in progress")
	}

	trainable, err := s.feedback.ListTrainable(ctx, userID)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to load trainable feedback").WithCause(err)
	}
	if len(trainable) == 0 {
		return nil, apperrors.NewStateConflictError("no eligible feedback to retrain on")
	}

	state.State = models.RetrainStatePending
	if err := s.retrainState.Save(ctx, state); err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to save retrain state").WithCause(err)
	}

	s.dispatcher.Dispatch(userID)
	return state, nil
}

// RetrainStatus 重训状态查询响应
// TotalFeedback为用户累计的非机密反馈数，PendingCount只统计上次重训以来的部分
type RetrainStatus struct {
	State         string     `json:"state"`
	PendingCount  int        `json:"pending_count"`
	TotalFeedback int64      `json:"total_feedback"`
	LastRetrainAt *time.Time `json:"last_retrain_at,omitempty"`
}

// GetRetrainState 查询用户重训状态
func (s *FeedbackService) GetRetrainState(ctx context.Context, userID string) (*RetrainStatus, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("user_id", "user identity is required")
	}
	state, err := s.retrainState.Get(ctx, userID)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to load retrain state").WithCause(err)
	}
	total, err := s.feedback.CountNonConfidential(ctx, userID)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to count feedback").WithCause(err)
	}
	return &RetrainStatus{
		State:         state.State,
		PendingCount:  state.PendingCount,
		TotalFeedback: total,
		LastRetrainAt: state.LastRetrainAt,
	}, nil
}
