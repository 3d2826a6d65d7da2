// internal/gateway/gateway.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/utils"

	"resty.dev/v3"
)

// NativeCredentialKey 原生 Gemini 通道使用的凭据键
const NativeCredentialKey = "gemini_api_key"

// CredentialKey 通用 provider 的凭据键
func CredentialKey(provider string) string {
	return "apikey_" + provider
}

// CredentialProvider 凭据读取能力。每次调用时读取，不做缓存
type CredentialProvider interface {
	Get(name string) (string, bool)
}

// StaticCredentials 固定内容的凭据表
type StaticCredentials map[string]string

func (s StaticCredentials) Get(name string) (string, bool) {
	v, ok := s[name]
	return v, ok && v != ""
}

// ExecuteResult 通用通道的最终响应
type ExecuteResult struct {
	Response any
	// Polled 表示响应来自状态端点
	Polled bool
}

// Gateway 模型网关。除注入的依赖外不持有可变状态，可被多个请求并发使用
type Gateway struct {
	client      *resty.Client
	credentials CredentialProvider
	native      NativeGenerator
	sleeper     Sleeper
	policy      PollPolicy
	logger      *utils.Logger
}

// Option 网关构造选项
type Option func(*Gateway)

// WithHTTPClient 替换默认 HTTP 客户端
func WithHTTPClient(client *resty.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithNativeGenerator 注入原生生成通道
func WithNativeGenerator(native NativeGenerator) Option {
	return func(g *Gateway) {
		g.native = native
	}
}

// WithSleeper 替换轮询等待实现
func WithSleeper(sleeper Sleeper) Option {
	return func(g *Gateway) {
		if sleeper != nil {
			g.sleeper = sleeper
		}
	}
}

// WithPollPolicy 覆盖轮询间隔与次数上限
func WithPollPolicy(policy PollPolicy) Option {
	return func(g *Gateway) {
		if policy.Interval > 0 {
			g.policy.Interval = policy.Interval
		}
		if policy.MaxAttempts > 0 {
			g.policy.MaxAttempts = policy.MaxAttempts
		}
	}
}

// New 创建网关
func New(credentials CredentialProvider, opts ...Option) *Gateway {
	if credentials == nil {
		credentials = StaticCredentials{}
	}
	g := &Gateway{
		credentials: credentials,
		sleeper:     RealSleeper{},
		policy:      DefaultPollPolicy(),
		logger:      utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		g.client = NewHTTPClient("gateway", 60*time.Second)
	}
	return g
}

// Close 释放 HTTP 客户端
func (g *Gateway) Close() error {
	return g.client.Close()
}

// PollPolicy 返回当前轮询策略
func (g *Gateway) PollPolicy() PollPolicy {
	return g.policy
}

// credential 读取 provider 凭据，缺失时返回空字符串
func (g *Gateway) credential(provider string) string {
	value, _ := g.credentials.Get(CredentialKey(provider))
	return value
}

// Execute 通用 HTTP 通道：构建请求、发送、必要时轮询。
// 返回的错误不含模型名称，由 GenerateText / GenerateVisual 统一补充
func (g *Gateway) Execute(ctx context.Context, cfg ModelConfig, inputs Inputs) (*ExecuteResult, error) {
	generate := cfg.generateEndpoint()
	if generate == nil {
		return nil, apperrors.NewConfigurationError("", "no generation endpoint defined")
	}

	requestInputs := inputs.with("id", cfg.ID)
	credential := g.credential(cfg.Provider)

	body := generate.ParamMapping.Build(requestInputs)
	url := ExpandURL(generate.URL, requestInputs, credential)
	headers := ExpandHeaders(generate.Headers, credential)

	response, err := g.send(ctx, generate.method(http.MethodPost), url, headers, body)
	if err != nil {
		utils.ProviderErrorsTotal.WithLabelValues(cfg.Provider, string(apperrors.TypeOf(err))).Inc()
		return nil, err
	}

	parsed, err := decodeJSON(response.Bytes())
	if err != nil {
		utils.ProviderErrorsTotal.WithLabelValues(cfg.Provider, string(apperrors.ErrorTypeExtraction)).Inc()
		return nil, apperrors.NewExtractionError("response", "", "provider response is not valid JSON")
	}

	if !cfg.IsAsync() {
		return &ExecuteResult{Response: parsed}, nil
	}

	final, err := g.Poll(ctx, parsed, cfg, credential)
	if err != nil {
		return nil, err
	}
	return &ExecuteResult{Response: final, Polled: true}, nil
}

// send 发送一次请求；非 2xx 与传输失败都作为 ProviderError 返回
func (g *Gateway) send(ctx context.Context, method, url string, headers map[string]string, body any) (*resty.Response, error) {
	req := g.client.R().SetContext(ctx).SetHeaders(headers)

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrorTypeError, "failed to encode request body", err)
		}
		if !hasHeader(headers, "Content-Type") {
			req.SetHeader("Content-Type", "application/json")
		}
		req.SetBody(payload)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, apperrors.NewProviderError(0, "", err)
	}
	if !isSuccessStatus(resp.StatusCode()) {
		return nil, apperrors.NewProviderError(resp.StatusCode(), strings.TrimSpace(resp.String()), nil)
	}
	return resp, nil
}

// decodeJSON 解析响应，数字保留为 json.Number
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
