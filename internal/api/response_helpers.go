// internal/api/response_helpers.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/utils"

	"github.com/gin-gonic/gin"
)

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct {
	logger *utils.Logger
}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{logger: utils.GetLogger()}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	rh.respond(c, http.StatusOK, data, message...)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	rh.respond(c, http.StatusCreated, data, message...)
}

// Accepted 异步任务已接受
func (rh *ResponseHelper) Accepted(c *gin.Context, data interface{}, message ...string) {
	rh.respond(c, http.StatusAccepted, data, message...)
}

func (rh *ResponseHelper) respond(c *gin.Context, status int, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(status, response)
}

// sanitizeErrorMessage 遮罩消息中的凭据，上游错误体里可能回显凭据
func sanitizeErrorMessage(message string) string {
	return utils.RedactSecrets(message)
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}
	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	c.JSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

// HandleError 把服务层错误转换为响应
func (rh *ResponseHelper) HandleError(c *gin.Context, err error) {
	status, code := statusForError(err)

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		rh.logger.Error("Unhandled error", map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": rh.getRequestID(c),
			"error":      err.Error(),
		})
		rh.Error(c, status, code, "internal server error")
		return
	}

	var details string
	if appErr.Type == apperrors.ErrorTypeProvider && appErr.StatusCode > 0 {
		details = fmt.Sprintf("upstream status %d", appErr.StatusCode)
	}
	if status >= http.StatusInternalServerError {
		rh.logger.Warn("Request failed", map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": rh.getRequestID(c),
			"error_type": string(appErr.Type),
			"error":      err.Error(),
		})
	}
	rh.Error(c, status, code, appErr.Message, details)
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, code, message string) {
	rh.Error(c, http.StatusNotFound, code, message)
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
