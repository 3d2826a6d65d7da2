// internal/gateway/model.go
package gateway

// ProviderGoogleNative 走原生 Gemini 通道，其余 provider 一律走通用 HTTP 通道
const ProviderGoogleNative = "google_native"

// 模型类别，仅用于选择默认提取路径和展示
const (
	FamilyText  = "text"
	FamilyImage = "image"
	FamilyVideo = "video"
	FamilyAudio = "audio"
)

// 输出映射中的逻辑字段及其默认路径
const (
	OutputText   = "text"
	OutputImage  = "image"
	OutputID     = "id"
	OutputStatus = "status"

	defaultTextPath   = "text"
	defaultImagePath  = "image_url"
	defaultIDPath     = "id"
	defaultStatusPath = "status"
)

// ModelConfig 描述一个可调用的生成模型。值对象，注册表只整体替换不原地修改
type ModelConfig struct {
	ID            string     `json:"id" yaml:"id" validate:"required"`
	Name          string     `json:"name" yaml:"name" validate:"required"`
	Provider      string     `json:"provider" yaml:"provider" validate:"required"`
	Family        string     `json:"family,omitempty" yaml:"family,omitempty"`
	ContextWindow int        `json:"contextWindow,omitempty" yaml:"contextWindow,omitempty"`
	IsDefault     bool       `json:"isDefault,omitempty" yaml:"isDefault,omitempty"`
	Endpoints     *Endpoints `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

// Endpoints 通用 provider 的端点集合；status 仅异步 provider 才有
type Endpoints struct {
	Generate *EndpointDefinition `json:"generate,omitempty" yaml:"generate,omitempty"`
	Status   *EndpointDefinition `json:"status,omitempty" yaml:"status,omitempty"`
}

// EndpointDefinition 一次 HTTP 调用的声明式描述
type EndpointDefinition struct {
	URL           string            `json:"url" yaml:"url" validate:"required"`
	Method        string            `json:"method,omitempty" yaml:"method,omitempty" validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	ParamMapping  *Template         `json:"paramMapping,omitempty" yaml:"paramMapping,omitempty"`
	OutputMapping map[string]string `json:"outputMapping,omitempty" yaml:"outputMapping,omitempty"`
}

// IsNative 是否走原生 SDK 通道
func (m ModelConfig) IsNative() bool {
	return m.Provider == ProviderGoogleNative
}

// IsAsync 是否需要轮询状态端点
func (m ModelConfig) IsAsync() bool {
	return m.Endpoints != nil && m.Endpoints.Status != nil
}

func (m ModelConfig) generateEndpoint() *EndpointDefinition {
	if m.Endpoints == nil {
		return nil
	}
	return m.Endpoints.Generate
}

func (m ModelConfig) statusEndpoint() *EndpointDefinition {
	if m.Endpoints == nil {
		return nil
	}
	return m.Endpoints.Status
}

// displayName 错误信息中使用的模型名称
func (m ModelConfig) displayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// outputPath 返回映射中的路径，缺省时使用默认路径
func (e *EndpointDefinition) outputPath(field, fallback string) string {
	if e == nil || e.OutputMapping == nil {
		return fallback
	}
	if path, ok := e.OutputMapping[field]; ok && path != "" {
		return path
	}
	return fallback
}

func (e *EndpointDefinition) method(fallback string) string {
	if e.Method == "" {
		return fallback
	}
	return e.Method
}

// Inputs 模板运行时输入，键缺失即视为未定义
type Inputs map[string]any

// with 返回合并了额外键值的新 Inputs，不修改原对象
func (in Inputs) with(key string, value any) Inputs {
	merged := make(Inputs, len(in)+1)
	for k, v := range in {
		merged[k] = v
	}
	merged[key] = value
	return merged
}
