package controllers

import (
	"net/http"
	"strings"

	"github.com/legalhub/backend-go/internal/models"
	"github.com/legalhub/backend-go/internal/services"
)

// FeedbackController 反馈与重训控制器
type FeedbackController struct {
	BaseController
	feedbackService *services.FeedbackService
}

// NewFeedbackController 创建反馈控制器
func NewFeedbackController(feedbackService *services.FeedbackService) *FeedbackController {
	return &FeedbackController{feedbackService: feedbackService}
}

// Submit 提交反馈
func (c *FeedbackController) Submit() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req services.FeedbackRequest
	if !c.bindJSON(&req) {
		return
	}
	if strings.HasPrefix(req.FileHash, models.GuestPrefix) {
		c.JSONError(http.StatusNotFound, "document not found")
		return
	}

	result, err := c.feedbackService.RecordFeedback(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(result)
}

// TriggerRetrain 显式触发重训
func (c *FeedbackController) TriggerRetrain() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	state, err := c.feedbackService.TriggerRetrain(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(state)
}

// RetrainStatus 查询重训状态
func (c *FeedbackController) RetrainStatus() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	state, err := c.feedbackService.GetRetrainState(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(state)
}
