// internal/api/error_codes.go
package api

import (
	"net/http"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
)

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest        = "BAD_REQUEST"
	ErrorNotFound          = "NOT_FOUND"
	ErrorInternalError     = "INTERNAL_ERROR"
	ErrorConflict          = "CONFLICT"
	ErrorRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// 模型与凭据
	ErrorModelNotFound      = "MODEL_NOT_FOUND"
	ErrorModelConfigInvalid = "MODEL_CONFIG_INVALID"
	ErrorCredentialMissing  = "CREDENTIAL_MISSING"
	ErrorCredentialInvalid  = "CREDENTIAL_INVALID"

	// 生成相关
	ErrorProvider          = "PROVIDER_ERROR"
	ErrorOutputExtraction  = "OUTPUT_EXTRACTION_FAILED"
	ErrorGenerationFailed  = "GENERATION_FAILED"
	ErrorGenerationTimeout = "GENERATION_TIMEOUT"
	ErrorKindInvalid       = "GENERATION_KIND_INVALID"

	// 任务
	ErrorTaskNotFound = "TASK_NOT_FOUND"
)

// statusForError 按错误类型选择 HTTP 状态码与错误代码
func statusForError(err error) (int, string) {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest, ErrorBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, ErrorNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict, ErrorConflict
	case apperrors.ErrorTypeConfiguration:
		return http.StatusBadRequest, ErrorModelConfigInvalid
	case apperrors.ErrorTypeProvider:
		return http.StatusBadGateway, ErrorProvider
	case apperrors.ErrorTypeExtraction:
		return http.StatusUnprocessableEntity, ErrorOutputExtraction
	case apperrors.ErrorTypeGenerationFailed:
		return http.StatusBadGateway, ErrorGenerationFailed
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout, ErrorGenerationTimeout
	case apperrors.ErrorTypeCredentialMissing:
		return http.StatusPreconditionFailed, ErrorCredentialMissing
	default:
		return http.StatusInternalServerError, ErrorInternalError
	}
}
