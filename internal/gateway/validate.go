// internal/gateway/validate.go
package gateway

import (
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func modelValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateModel 校验用户提交的自定义定义。远程与内置列表不经过这里
func ValidateModel(cfg ModelConfig) error {
	if err := modelValidator().Struct(cfg); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
		}
		msg := "invalid model definition"
		if len(fields) > 0 {
			msg = fmt.Sprintf("invalid model definition: %s", strings.Join(fields, ", "))
		}
		return apperrors.NewValidationError(msg, err)
	}

	if !cfg.IsNative() && cfg.generateEndpoint() == nil {
		return apperrors.NewValidationError(
			fmt.Sprintf("model %q: provider %q requires endpoints.generate", cfg.ID, cfg.Provider), nil)
	}
	if cfg.IsAsync() && cfg.generateEndpoint() == nil {
		return apperrors.NewValidationError(
			fmt.Sprintf("model %q: a status endpoint requires a generate endpoint", cfg.ID), nil)
	}
	return nil
}
