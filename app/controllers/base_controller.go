package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

var validate = validator.New()

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError 错误分类到HTTP状态码的唯一映射点
func (c *BaseController) JSONAppError(err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Ctx.Request.RequestURI),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
	}
	c.JSON(appErr.HTTPCode, map[string]interface{}{
		"success":   false,
		"error":     appErr.Message,
		"code":      appErr.Code,
		"retryable": appErr.Retryable,
	})
}

// bindJSON 解析并校验请求体
func (c *BaseController) bindJSON(target interface{}) bool {
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, target); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(target); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			fieldErr := validationErrors[0]
			c.JSONError(http.StatusBadRequest,
				"invalid field '"+fieldErr.Field()+"': failed on '"+fieldErr.Tag()+"' rule")
			return false
		}
		c.JSONError(http.StatusBadRequest, "request validation failed")
		return false
	}
	return true
}

// getAuthenticatedUserID 获取网关注入的用户身份
// 身份认证在网关完成，这里只读取透传的header
func (c *BaseController) getAuthenticatedUserID() (string, bool) {
	authHeader := c.Ctx.Input.Header("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1], true
		}
	}

	if userID := c.Ctx.Input.Header("X-User-Id"); userID != "" {
		return userID, true
	}

	c.JSONError(http.StatusUnauthorized, "user identity is required")
	return "", false
}
