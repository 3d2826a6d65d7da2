// internal/gateway/registry.go
package gateway

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Corphon/ScriptStudio/internal/utils"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
	"resty.dev/v3"
)

//go:embed fallback_models.yaml
var fallbackModelsYAML []byte

var (
	fallbackOnce   sync.Once
	fallbackModels []ModelConfig
)

// FallbackModels 返回内置模型列表的副本
func FallbackModels() []ModelConfig {
	fallbackOnce.Do(func() {
		var doc struct {
			Models []ModelConfig `yaml:"models"`
		}
		if err := yaml.Unmarshal(fallbackModelsYAML, &doc); err != nil {
			panic(fmt.Sprintf("embedded fallback model catalog is invalid: %v", err))
		}
		fallbackModels = doc.Models
	})
	return append([]ModelConfig(nil), fallbackModels...)
}

// MergeDefinitions 自定义定义按 id 覆盖同位置条目，新 id 追加到末尾。不修改输入
func MergeDefinitions(base, custom []ModelConfig) []ModelConfig {
	merged := make([]ModelConfig, len(base), len(base)+len(custom))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, m := range merged {
		if _, exists := index[m.ID]; !exists {
			index[m.ID] = i
		}
	}

	for _, c := range custom {
		if i, ok := index[c.ID]; ok {
			merged[i] = c
			continue
		}
		index[c.ID] = len(merged)
		merged = append(merged, c)
	}
	return merged
}

// CustomModelSource 提供用户自定义模型定义
type CustomModelSource interface {
	CustomModels(ctx context.Context) ([]ModelConfig, error)
}

// Registry 远程/内置列表与自定义列表的合并视图
type Registry struct {
	client *resty.Client
	url    string
	group  singleflight.Group
	logger *utils.Logger

	mu     sync.RWMutex
	base   []ModelConfig
	loaded bool
	custom CustomModelSource
}

// NewRegistry 创建注册表；url 为空时始终使用内置列表
func NewRegistry(url string, client *resty.Client) *Registry {
	if client == nil {
		client = NewHTTPClient("registry", 15*time.Second)
	}
	return &Registry{
		client: client,
		url:    url,
		logger: utils.GetLogger(),
	}
}

// SetCustomSource 设置自定义模型来源
func (r *Registry) SetCustomSource(source CustomModelSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = source
}

// FetchDefinitions 拉取远程模型列表。任何失败都静默回退到内置列表，调用方永远不会收到错误
func (r *Registry) FetchDefinitions(ctx context.Context) []ModelConfig {
	models, err := r.fetchShared(ctx)
	if err != nil {
		return FallbackModels()
	}
	return models
}

// fetchShared 并发调用共享同一次拉取。拉取本身不受任一调用方取消的影响，
// 由客户端超时兜底；调用方取消时只有它自己返回 ctx 错误
func (r *Registry) fetchShared(ctx context.Context) ([]ModelConfig, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan("fetch", func() (interface{}, error) {
		models, reason := r.fetchRemote(fetchCtx)
		if reason != "" {
			utils.RegistryFallbacksTotal.WithLabelValues(reason).Inc()
			r.logger.Warn("Using built-in model list", map[string]interface{}{
				"url":    r.url,
				"reason": reason,
			})
			return FallbackModels(), nil
		}
		return models, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		models, _ := res.Val.([]ModelConfig)
		out := make([]ModelConfig, len(models))
		copy(out, models)
		return out, nil
	}
}

// fetchRemote 返回远程列表；失败时返回回退原因
func (r *Registry) fetchRemote(ctx context.Context) ([]ModelConfig, string) {
	if r.url == "" {
		return nil, "not_configured"
	}

	resp, err := r.client.R().SetContext(ctx).SetHeader("Accept", "application/json").Get(r.url)
	if err != nil {
		return nil, "transport"
	}
	if !isSuccessStatus(resp.StatusCode()) {
		return nil, "status"
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(resp.Bytes(), &doc); err != nil {
		return nil, "malformed"
	}
	raw, ok := doc["models"]
	if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '[' {
		return nil, "shape"
	}

	var models []ModelConfig
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, "malformed"
	}
	if models == nil {
		models = []ModelConfig{}
	}
	return models, ""
}

// Refresh 重新拉取基础列表并返回合并结果。调用方已取消时不更新基础列表
func (r *Registry) Refresh(ctx context.Context) ([]ModelConfig, error) {
	base, err := r.fetchShared(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.base = base
	r.loaded = true
	r.mu.Unlock()

	r.logger.Info("Model registry refreshed", map[string]interface{}{
		"base_models": len(base),
	})
	return r.Models(ctx)
}

// Models 返回合并后的模型列表，首次调用时拉取基础列表
func (r *Registry) Models(ctx context.Context) ([]ModelConfig, error) {
	r.mu.RLock()
	loaded := r.loaded
	base := r.base
	source := r.custom
	r.mu.RUnlock()

	if !loaded {
		return r.Refresh(ctx)
	}

	var custom []ModelConfig
	if source != nil {
		var err error
		custom, err = source.CustomModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load custom models: %w", err)
		}
	}
	return MergeDefinitions(base, custom), nil
}

// Lookup 按 id 查找生效的模型定义
func (r *Registry) Lookup(ctx context.Context, id string) (ModelConfig, bool, error) {
	models, err := r.Models(ctx)
	if err != nil {
		return ModelConfig{}, false, err
	}
	for _, m := range models {
		if m.ID == id {
			return m, true, nil
		}
	}
	return ModelConfig{}, false, nil
}

// Default 第一个标记 isDefault 的模型，没有则取第一个
func (r *Registry) Default(ctx context.Context) (ModelConfig, bool, error) {
	models, err := r.Models(ctx)
	if err != nil {
		return ModelConfig{}, false, err
	}
	for _, m := range models {
		if m.IsDefault {
			return m, true, nil
		}
	}
	if len(models) > 0 {
		return models[0], true, nil
	}
	return ModelConfig{}, false, nil
}
