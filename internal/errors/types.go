package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"

	// 校验错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"

	// 业务错误
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeStateConflict    ErrorCode = "STATE_CONFLICT"

	// 文档处理错误
	ErrCodeIngestionFailed   ErrorCode = "INGESTION_FAILED"
	ErrCodeFileTooLarge      ErrorCode = "FILE_TOO_LARGE"
	ErrCodeInvalidFileFormat ErrorCode = "INVALID_FILE_FORMAT"

	// 下游服务错误
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrCodeEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Type      ErrorType   `json:"type"`
	HTTPCode  int         `json:"-"`
	Retryable bool        `json:"retryable"`
	Details   interface{} `json:"details,omitempty"`
	Cause     error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewIngestionError 创建文档处理错误（可重试，文档进入failed状态后允许重新上传）
func NewIngestionError(message string, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeIngestionFailed,
		Message:   message,
		Type:      ErrorTypeSystem,
		HTTPCode:  http.StatusInternalServerError,
		Retryable: true,
		Cause:     cause,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeResourceNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewGenerationError 创建生成服务错误（下游暂时性失败，可重试）
func NewGenerationError(message string, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeGenerationFailed,
		Message:   message,
		Type:      ErrorTypeExternal,
		HTTPCode:  http.StatusBadGateway,
		Retryable: true,
		Cause:     cause,
	}
}

// NewValidationError 创建校验错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidInputError 创建输入无效错误
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("invalid input for field '%s': %s", field, reason),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewFileTooLargeError 创建文件超限错误
func NewFileTooLargeError(maxSize int64) *AppError {
	return &AppError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("file exceeds maximum size of %d bytes", maxSize),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidFileFormatError 创建文件格式不支持错误
func NewInvalidFileFormatError(ext string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidFileFormat,
		Message:  fmt.Sprintf("unsupported file type: %s", ext),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewEmbeddingError 创建嵌入服务错误（下游暂时性失败，可重试）
func NewEmbeddingError(message string, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   message,
		Type:      ErrorTypeExternal,
		HTTPCode:  http.StatusBadGateway,
		Retryable: true,
		Cause:     cause,
	}
}

// NewStateConflictError 创建状态冲突错误（上报但不致命，如无可训练反馈时的显式重训请求）
func NewStateConflictError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeStateConflict,
		Message:  message,
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusConflict,
	}
}

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// IsCode 检查错误链中是否存在指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewSystemError(ErrCodeInternalServer, "internal server error").WithCause(err)
}
