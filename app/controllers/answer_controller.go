package controllers

import (
	"net/http"
	"strings"

	"github.com/legalhub/backend-go/internal/models"
	"github.com/legalhub/backend-go/internal/services"
)

// AnswerController 答案控制器：问答、摘要、白话、对比、证据标注
type AnswerController struct {
	BaseController
	answerService *services.AnswerService
}

// NewAnswerController 创建答案控制器
func NewAnswerController(answerService *services.AnswerService) *AnswerController {
	return &AnswerController{answerService: answerService}
}

// rejectGuestFingerprint 注册用户接口拒绝游客文档
func (c *AnswerController) rejectGuestFingerprint(fileHash string) bool {
	if strings.HasPrefix(fileHash, models.GuestPrefix) {
		c.JSONError(http.StatusNotFound, "document not found")
		return true
	}
	return false
}

// QA 基于文档回答问题
func (c *AnswerController) QA() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req services.QARequest
	if !c.bindJSON(&req) {
		return
	}
	if c.rejectGuestFingerprint(req.FileHash) {
		return
	}

	resp, err := c.answerService.AnswerQuestion(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(resp)
}

// GuestQA 游客问答，仅限guest_文档，不记录历史
func (c *AnswerController) GuestQA() {
	var req services.QARequest
	if !c.bindJSON(&req) {
		return
	}
	if !strings.HasPrefix(req.FileHash, models.GuestPrefix) {
		c.JSONError(http.StatusNotFound, "document not found")
		return
	}

	resp, err := c.answerService.AnswerQuestion(c.Ctx.Request.Context(), "", req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(resp)
}

// Summarize 生成文档摘要
func (c *AnswerController) Summarize() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req services.SummarizeRequest
	if !c.bindJSON(&req) {
		return
	}
	if c.rejectGuestFingerprint(req.FileHash) {
		return
	}

	resp, err := c.answerService.Summarize(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(resp)
}

// GuestSummarize 游客摘要，仅限guest_文档
func (c *AnswerController) GuestSummarize() {
	var req services.SummarizeRequest
	if !c.bindJSON(&req) {
		return
	}
	if !strings.HasPrefix(req.FileHash, models.GuestPrefix) {
		c.JSONError(http.StatusNotFound, "document not found")
		return
	}

	resp, err := c.answerService.Summarize(c.Ctx.Request.Context(), "", req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(resp)
}

// Simplify 用通俗语言解释文档
func (c *AnswerController) Simplify() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req services.SummarizeRequest
	if !c.bindJSON(&req) {
		return
	}
	if c.rejectGuestFingerprint(req.FileHash) {
		return
	}

	resp, err := c.answerService.Simplify(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(resp)
}

// Compare 对比多份文档的条款处理
func (c *AnswerController) Compare() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req services.CompareRequest
	if !c.bindJSON(&req) {
		return
	}
	for _, fileHash := range req.FileHashes {
		if c.rejectGuestFingerprint(fileHash) {
			return
		}
	}

	resp, err := c.answerService.Compare(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(resp)
}

// Highlight 回答问题并返回证据片段
func (c *AnswerController) Highlight() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req services.QARequest
	if !c.bindJSON(&req) {
		return
	}
	if c.rejectGuestFingerprint(req.FileHash) {
		return
	}

	resp, err := c.answerService.Highlight(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(resp)
}

// History 查询问答历史
func (c *AnswerController) History() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	fingerprint := c.GetString("file_hash")
	limit, _ := c.GetInt("limit", 20)

	records, err := c.answerService.History(c.Ctx.Request.Context(), userID, fingerprint, limit)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"records": records,
	})
}
