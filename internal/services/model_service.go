// internal/services/model_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Corphon/ScriptStudio/internal/config"
	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/storage"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// CustomModelsFile 自定义模型定义的持久化文件
const CustomModelsFile = "custom_models.json"

// ModelService 管理自定义模型定义，并在注册表之上提供模型解析
type ModelService struct {
	fs       *storage.FileStorage
	registry *gateway.Registry
	logger   *utils.Logger

	mu     sync.RWMutex
	custom []gateway.ModelConfig
}

// NewModelService 创建模型服务并把自身注册为注册表的自定义来源
func NewModelService(fs *storage.FileStorage, registry *gateway.Registry) (*ModelService, error) {
	s := &ModelService{
		fs:       fs,
		registry: registry,
		logger:   utils.GetLogger(),
	}

	var custom []gateway.ModelConfig
	if err := fs.LoadJSONFile(CustomModelsFile, &custom); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load custom models: %w", err)
	}
	s.custom = custom

	registry.SetCustomSource(s)
	return s, nil
}

// CustomModels 实现 gateway.CustomModelSource
func (s *ModelService) CustomModels(ctx context.Context) ([]gateway.ModelConfig, error) {
	return s.ListCustom(), nil
}

// ListCustom 返回自定义定义的副本
func (s *ModelService) ListCustom() []gateway.ModelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]gateway.ModelConfig{}, s.custom...)
}

// SaveCustom 校验后按 id 插入或整体替换
func (s *ModelService) SaveCustom(ctx context.Context, cfg gateway.ModelConfig) (gateway.ModelConfig, error) {
	if err := gateway.ValidateModel(cfg); err != nil {
		return gateway.ModelConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := gateway.MergeDefinitions(s.custom, []gateway.ModelConfig{cfg})
	if err := s.persistLocked(updated); err != nil {
		return gateway.ModelConfig{}, err
	}

	s.logger.Info("Custom model saved", map[string]interface{}{
		"model_id": cfg.ID,
		"provider": cfg.Provider,
	})
	return cfg, nil
}

// ReplaceCustom 用新列表整体替换自定义定义
func (s *ModelService) ReplaceCustom(ctx context.Context, list []gateway.ModelConfig) error {
	seen := make(map[string]struct{}, len(list))
	for _, cfg := range list {
		if err := gateway.ValidateModel(cfg); err != nil {
			return err
		}
		if _, dup := seen[cfg.ID]; dup {
			return apperrors.NewValidationError(fmt.Sprintf("duplicate model id %q", cfg.ID), nil)
		}
		seen[cfg.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if list == nil {
		list = []gateway.ModelConfig{}
	}
	if err := s.persistLocked(list); err != nil {
		return err
	}

	s.logger.Info("Custom models replaced", map[string]interface{}{"count": len(list)})
	return nil
}

// DeleteCustom 删除自定义定义；被覆盖的远程定义随之恢复
func (s *ModelService) DeleteCustom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]gateway.ModelConfig, 0, len(s.custom))
	for _, m := range s.custom {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(s.custom) {
		return apperrors.NewNotFoundError(fmt.Sprintf("custom model %q not found", id), nil)
	}
	return s.persistLocked(kept)
}

func (s *ModelService) persistLocked(list []gateway.ModelConfig) error {
	if err := s.fs.SaveJSONFile(CustomModelsFile, list); err != nil {
		return apperrors.NewProcessingError("failed to save custom models", err)
	}
	s.custom = list
	return nil
}

// Models 合并后的生效模型列表
func (s *ModelService) Models(ctx context.Context) ([]gateway.ModelConfig, error) {
	return s.registry.Models(ctx)
}

// Refresh 重新拉取远程列表
func (s *ModelService) Refresh(ctx context.Context) ([]gateway.ModelConfig, error) {
	return s.registry.Refresh(ctx)
}

// Resolve 按 id 取模型；id 为空时依次使用已保存的默认设置与注册表默认
func (s *ModelService) Resolve(ctx context.Context, id, family string) (gateway.ModelConfig, error) {
	if id == "" {
		return s.Default(ctx, family)
	}

	cfg, ok, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return gateway.ModelConfig{}, apperrors.NewProcessingError("failed to load models", err)
	}
	if !ok {
		return gateway.ModelConfig{}, apperrors.NewNotFoundError(fmt.Sprintf("model %q not found", id), nil)
	}
	return cfg, nil
}

// Default 指定类别的默认模型
func (s *ModelService) Default(ctx context.Context, family string) (gateway.ModelConfig, error) {
	current := config.GetCurrentConfig()
	preferred := current.DefaultModelID
	if family == gateway.FamilyImage {
		preferred = current.DefaultImageModelID
	}

	if preferred != "" {
		if cfg, ok, err := s.registry.Lookup(ctx, preferred); err == nil && ok {
			return cfg, nil
		}
		s.logger.Warn("Configured default model is not available", map[string]interface{}{
			"model_id": preferred,
			"family":   family,
		})
	}

	if family == gateway.FamilyImage {
		models, err := s.registry.Models(ctx)
		if err != nil {
			return gateway.ModelConfig{}, apperrors.NewProcessingError("failed to load models", err)
		}
		for _, m := range models {
			if m.Family == gateway.FamilyImage {
				return m, nil
			}
		}
		return gateway.ModelConfig{}, apperrors.NewNotFoundError("no image model is available", nil)
	}

	cfg, ok, err := s.registry.Default(ctx)
	if err != nil {
		return gateway.ModelConfig{}, apperrors.NewProcessingError("failed to load models", err)
	}
	if !ok {
		return gateway.ModelConfig{}, apperrors.NewNotFoundError("no model is available", nil)
	}
	return cfg, nil
}

// SetDefaults 保存默认文本/图像模型，空字符串表示清除
func (s *ModelService) SetDefaults(ctx context.Context, textModelID, imageModelID string) error {
	for _, id := range []string{textModelID, imageModelID} {
		if id == "" {
			continue
		}
		if _, ok, err := s.registry.Lookup(ctx, id); err != nil || !ok {
			return apperrors.NewValidationError(fmt.Sprintf("model %q not found", id), err)
		}
	}
	if err := config.UpdateDefaultModels(textModelID, imageModelID); err != nil {
		return apperrors.NewProcessingError("failed to save default models", err)
	}
	return nil
}

var _ gateway.CustomModelSource = (*ModelService)(nil)
