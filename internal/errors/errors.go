// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"

	// 模型网关错误类型
	ErrorTypeConfiguration     ErrorType = "configuration_error"
	ErrorTypeProvider          ErrorType = "provider_error"
	ErrorTypeExtraction        ErrorType = "extraction_error"
	ErrorTypeGenerationFailed  ErrorType = "generation_failed"
	ErrorTypeCredentialMissing ErrorType = "credential_missing"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码

	// 仅 provider_error 使用：上游返回的状态码与原始响应体
	StatusCode int
	Body       string
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConfigurationError 模型定义缺少必要的端点或模板；modelName 为空时由上层补充
func NewConfigurationError(modelName, message string) *AppError {
	if modelName != "" {
		message = fmt.Sprintf("%s: %s", modelName, message)
	}
	return NewAppError(ErrorTypeConfiguration, message, nil)
}

// NewProviderError 上游返回非成功状态，保留状态码与响应体
func NewProviderError(statusCode int, body string, originalError error) *AppError {
	msg := fmt.Sprintf("provider returned status %d: %s", statusCode, body)
	if statusCode == 0 {
		msg = "provider request failed"
	}
	appErr := NewAppError(ErrorTypeProvider, msg, originalError)
	appErr.StatusCode = statusCode
	appErr.Body = body
	return appErr
}

// NewExtractionError 无法在配置的路径上找到期望字段
func NewExtractionError(field, modelName, message string) *AppError {
	if message == "" {
		message = fmt.Sprintf("could not extract %s", field)
	}
	if modelName != "" {
		message = fmt.Sprintf("%s (model: %s)", message, modelName)
	}
	return NewAppError(ErrorTypeExtraction, message, nil)
}

// NewGenerationFailedError 提供方在轮询中明确报告失败
func NewGenerationFailedError(status string) *AppError {
	return NewAppError(ErrorTypeGenerationFailed, fmt.Sprintf("generation failed with status: %s", status), nil)
}

// NewTimeoutError 轮询次数耗尽
func NewTimeoutError(attempts int) *AppError {
	return NewAppError(ErrorTypeTimeout, fmt.Sprintf("generation timed out after %d status checks", attempts), nil)
}

// NewCredentialMissingError 原生通道缺少凭据
func NewCredentialMissingError(credentialKey string) *AppError {
	return NewAppError(ErrorTypeCredentialMissing, fmt.Sprintf("credential %q is not configured", credentialKey), nil)
}

// TypeOf 返回错误链上第一个 AppError 的类型，不是 AppError 时返回空字符串
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

func IsConfigurationError(err error) bool {
	return TypeOf(err) == ErrorTypeConfiguration
}

func IsProviderError(err error) bool {
	return TypeOf(err) == ErrorTypeProvider
}

func IsExtractionError(err error) bool {
	return TypeOf(err) == ErrorTypeExtraction
}

func IsGenerationFailedError(err error) bool {
	return TypeOf(err) == ErrorTypeGenerationFailed
}

func IsTimeoutError(err error) bool {
	return TypeOf(err) == ErrorTypeTimeout
}

func IsCredentialMissingError(err error) bool {
	return TypeOf(err) == ErrorTypeCredentialMissing
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "GENERATION_TIMEOUT"
	case ErrorTypeConfiguration:
		return "MODEL_CONFIG_INVALID"
	case ErrorTypeProvider:
		return "PROVIDER_ERROR"
	case ErrorTypeExtraction:
		return "OUTPUT_EXTRACTION_FAILED"
	case ErrorTypeGenerationFailed:
		return "GENERATION_FAILED"
	case ErrorTypeCredentialMissing:
		return "CREDENTIAL_MISSING"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，保留原有类型与原因，只更新消息
		return &AppError{
			Type:       appError.Type,
			Message:    fmt.Sprintf("%s: %s", message, appError.Message),
			Err:        appError.Err,
			Code:       appError.Code,
			StatusCode: appError.StatusCode,
			Body:       appError.Body,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
