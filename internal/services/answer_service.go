package services

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/knowledge"
	"github.com/legalhub/backend-go/internal/logger"
	"github.com/legalhub/backend-go/internal/models"
	"github.com/legalhub/backend-go/internal/repository"
	"go.uber.org/zap"
)

// 摘要类模式覆盖全文，检索数量高于问答默认值
const summaryTopK = 10

// AnswerService 答案服务：问答、摘要、白话、对比、证据标注
type AnswerService struct {
	retriever   *knowledge.Retriever
	composer    *knowledge.AnswerComposer
	highlighter *knowledge.EvidenceHighlighter
	documents   repository.DocumentRepository
	answers     repository.AnswerRepository
}

// QARequest 问答请求
type QARequest struct {
	FileHash string `json:"file_hash" validate:"required"`
	Question string `json:"question" validate:"required,min=1,max=2000"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

// SummarizeRequest 摘要/白话请求
type SummarizeRequest struct {
	FileHash string `json:"file_hash" validate:"required"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

// CompareRequest 文档对比请求
type CompareRequest struct {
	FileHashes  []string `json:"file_hashes" validate:"required,min=2,dive,required"`
	ClauseQuery string   `json:"clause_query" validate:"required,min=1,max=2000"`
	TopK        int      `json:"top_k" validate:"omitempty,min=1,max=50"`
}

// AnswerResponse 答案响应
type AnswerResponse struct {
	Answer     string                 `json:"answer"`
	Confidence float64                `json:"confidence"`
	Mode       string                 `json:"mode"`
	Sources    []knowledge.SearchMatch `json:"sources"`
}

// HighlightResponse 证据标注响应
type HighlightResponse struct {
	Answer     string                   `json:"answer"`
	Confidence float64                  `json:"confidence"`
	ChunkIDs   []string                 `json:"chunk_ids"`
	Evidence   []knowledge.EvidenceSpan `json:"evidence"`
}

// NewAnswerService 创建答案服务
func NewAnswerService(
	retriever *knowledge.Retriever,
	composer *knowledge.AnswerComposer,
	highlighter *knowledge.EvidenceHighlighter,
	documents repository.DocumentRepository,
	answers repository.AnswerRepository,
) *AnswerService {
	return &AnswerService{
		retriever:   retriever,
		composer:    composer,
		highlighter: highlighter,
		documents:   documents,
		answers:     answers,
	}
}

// AnswerQuestion 基于文档内容回答问题
func (s *AnswerService) AnswerQuestion(ctx context.Context, userID string, req QARequest) (*AnswerResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, apperrors.NewInvalidInputError("question", "question is required")
	}
	if _, err := s.documents.GetByFingerprint(ctx, req.FileHash); err != nil {
		return nil, err
	}

	start := time.Now()
	matches, err := s.retriever.Retrieve(ctx, req.FileHash, req.Question, req.TopK)
	if err != nil {
		return nil, err
	}

	composed, err := s.composer.ComposeQA(ctx, req.Question, matches)
	if err != nil {
		return nil, err
	}
	generationDuration.WithLabelValues(string(knowledge.ModeQA)).Observe(time.Since(start).Seconds())
	answersGenerated.WithLabelValues(string(knowledge.ModeQA)).Inc()

	s.recordHistory(ctx, userID, req.FileHash, knowledge.ModeQA, req.Question, composed)
	return toAnswerResponse(knowledge.ModeQA, composed), nil
}

// Summarize 生成文档摘要，检索使用空查询抽样覆盖全文
func (s *AnswerService) Summarize(ctx context.Context, userID string, req SummarizeRequest) (*AnswerResponse, error) {
	return s.summarizeWith(ctx, userID, req, knowledge.ModeSummarize)
}

// Simplify 用通俗语言解释文档
func (s *AnswerService) Simplify(ctx context.Context, userID string, req SummarizeRequest) (*AnswerResponse, error) {
	return s.summarizeWith(ctx, userID, req, knowledge.ModeSimplify)
}

func (s *AnswerService) summarizeWith(ctx context.Context, userID string, req SummarizeRequest, mode knowledge.ComposeMode) (*AnswerResponse, error) {
	if _, err := s.documents.GetByFingerprint(ctx, req.FileHash); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = summaryTopK
	}

	start := time.Now()
	matches, err := s.retriever.Retrieve(ctx, req.FileHash, "", topK)
	if err != nil {
		return nil, err
	}

	var composed *knowledge.ComposedAnswer
	if mode == knowledge.ModeSimplify {
		composed, err = s.composer.ComposeSimplified(ctx, matches)
	} else {
		composed, err = s.composer.ComposeSummary(ctx, matches)
	}
	if err != nil {
		return nil, err
	}
	generationDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	answersGenerated.WithLabelValues(string(mode)).Inc()

	s.recordHistory(ctx, userID, req.FileHash, mode, "", composed)
	return toAnswerResponse(mode, composed), nil
}

// Compare 对比多份文档对同一条款的处理，各文档独立检索
func (s *AnswerService) Compare(ctx context.Context, userID string, req CompareRequest) (*AnswerResponse, error) {
	if len(req.FileHashes) < 2 {
		return nil, apperrors.NewInvalidInputError("file_hashes", "comparison requires at least two documents")
	}
	if strings.TrimSpace(req.ClauseQuery) == "" {
		return nil, apperrors.NewInvalidInputError("clause_query", "clause query is required")
	}

	start := time.Now()
	sections := make([]knowledge.CompareSection, 0, len(req.FileHashes))
	for _, fileHash := range req.FileHashes {
		doc, err := s.documents.GetByFingerprint(ctx, fileHash)
		if err != nil {
			return nil, err
		}
		matches, err := s.retriever.Retrieve(ctx, fileHash, req.ClauseQuery, req.TopK)
		if err != nil {
			return nil, err
		}
		sections = append(sections, knowledge.CompareSection{
			Fingerprint: fileHash,
			Filename:    doc.Filename,
			Matches:     matches,
		})
	}

	composed, err := s.composer.ComposeComparison(ctx, req.ClauseQuery, sections)
	if err != nil {
		return nil, err
	}
	generationDuration.WithLabelValues(string(knowledge.ModeCompare)).Observe(time.Since(start).Seconds())
	answersGenerated.WithLabelValues(string(knowledge.ModeCompare)).Inc()

	// 对比历史记录挂在第一份文档上
	s.recordHistory(ctx, userID, req.FileHashes[0], knowledge.ModeCompare, req.ClauseQuery, composed)
	return toAnswerResponse(knowledge.ModeCompare, composed), nil
}

// Highlight 回答问题并用本地词面重合定位证据片段
func (s *AnswerService) Highlight(ctx context.Context, userID string, req QARequest) (*HighlightResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, apperrors.NewInvalidInputError("question", "question is required")
	}
	if _, err := s.documents.GetByFingerprint(ctx, req.FileHash); err != nil {
		return nil, err
	}

	start := time.Now()
	matches, err := s.retriever.Retrieve(ctx, req.FileHash, req.Question, req.TopK)
	if err != nil {
		return nil, err
	}

	composed, err := s.composer.ComposeQA(ctx, req.Question, matches)
	if err != nil {
		return nil, err
	}
	generationDuration.WithLabelValues(string(knowledge.ModeHighlight)).Observe(time.Since(start).Seconds())
	answersGenerated.WithLabelValues(string(knowledge.ModeHighlight)).Inc()

	// 证据来自本地匹配，不采信生成器自述的引用
	spans := s.highlighter.Highlight(composed.Answer, matches)

	s.recordHistory(ctx, userID, req.FileHash, knowledge.ModeHighlight, req.Question, composed)
	return &HighlightResponse{
		Answer:     composed.Answer,
		Confidence: composed.Confidence,
		ChunkIDs:   knowledge.EvidenceChunkIDs(spans),
		Evidence:   spans,
	}, nil
}

// History 查询用户问答历史
func (s *AnswerService) History(ctx context.Context, userID, fingerprint string, limit int) ([]models.AnswerRecord, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("user_id", "user identity is required")
	}
	return s.answers.ListByUser(ctx, userID, fingerprint, limit)
}

// recordHistory 落库问答历史，游客与游客文档不记录
func (s *AnswerService) recordHistory(ctx context.Context, userID, fingerprint string, mode knowledge.ComposeMode, question string, composed *knowledge.ComposedAnswer) {
	if userID == "" || strings.HasPrefix(fingerprint, models.GuestPrefix) {
		return
	}
	record := &models.AnswerRecord{
		UserID:      userID,
		Fingerprint: fingerprint,
		Mode:        string(mode),
		Question:    question,
		Answer:      composed.Answer,
		Confidence:  composed.Confidence,
	}
	if err := s.answers.Create(ctx, record); err != nil {
		logger.Warn("Failed to record answer history",
			zap.String("user_id", userID),
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
	}
}

func toAnswerResponse(mode knowledge.ComposeMode, composed *knowledge.ComposedAnswer) *AnswerResponse {
	return &AnswerResponse{
		Answer:     composed.Answer,
		Confidence: composed.Confidence,
		Mode:       string(mode),
		Sources:    composed.Sources,
	}
}
