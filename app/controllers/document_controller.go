package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/legalhub/backend-go/internal/models"
	"github.com/legalhub/backend-go/internal/services"
)

// DocumentController 文档控制器
type DocumentController struct {
	BaseController
	docService *services.DocumentService
}

// NewDocumentController 创建文档控制器
func NewDocumentController(docService *services.DocumentService) *DocumentController {
	return &DocumentController{docService: docService}
}

// Upload 上传文档（注册用户）
func (c *DocumentController) Upload() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}
	c.upload(userID, false)
}

// GuestUpload 上传文档（游客，指纹带guest_前缀，不入用户列表）
func (c *DocumentController) GuestUpload() {
	c.upload("", true)
}

func (c *DocumentController) upload(userID string, guest bool) {
	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSONError(http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	result, err := c.docService.Upload(c.Ctx.Request.Context(), userID, header.Filename, content, guest)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(result)
}

// List 获取用户的文档列表
func (c *DocumentController) List() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	documents, err := c.docService.List(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"documents": documents,
	})
}

// Status 查询文档摄取状态
func (c *DocumentController) Status() {
	if _, ok := c.getAuthenticatedUserID(); !ok {
		return
	}

	fingerprint := c.Ctx.Input.Param(":fingerprint")
	if strings.HasPrefix(fingerprint, models.GuestPrefix) {
		c.JSONError(http.StatusNotFound, "document not found")
		return
	}

	info, err := c.docService.GetStatus(c.Ctx.Request.Context(), fingerprint)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(info)
}

// GuestStatus 查询游客文档摄取状态
func (c *DocumentController) GuestStatus() {
	fingerprint := c.Ctx.Input.Param(":fingerprint")
	if !strings.HasPrefix(fingerprint, models.GuestPrefix) {
		c.JSONError(http.StatusNotFound, "document not found")
		return
	}

	info, err := c.docService.GetStatus(c.Ctx.Request.Context(), fingerprint)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(info)
}

// Delete 删除文档及其索引
func (c *DocumentController) Delete() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	fingerprint := c.Ctx.Input.Param(":fingerprint")
	if err := c.docService.Delete(c.Ctx.Request.Context(), userID, fingerprint); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"deleted": fingerprint,
	})
}
