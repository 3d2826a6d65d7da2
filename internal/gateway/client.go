// internal/gateway/client.go
package gateway

import (
	"context"
	"time"

	"github.com/Corphon/ScriptStudio/internal/utils"

	"resty.dev/v3"
)

type httpStartedAt struct{}

// NewHTTPClient 创建带调试日志中间件的 resty 客户端，供执行器、轮询与注册表共用
func NewHTTPClient(clientName string, timeout time.Duration) *resty.Client {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		r.SetContext(context.WithValue(r.Context(), httpStartedAt{}, time.Now()))
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		startedAt, _ := r.Request.Context().Value(httpStartedAt{}).(time.Time)

		zl := utils.GetLogger().Zerolog()
		event := zl.Debug().
			Str("client", clientName).
			Str("request_id", utils.RequestIDFrom(r.Request.Context())).
			Int("status", r.StatusCode()).
			Dur("latency", time.Since(startedAt))
		if raw := r.Request.RawRequest; raw != nil {
			// 只记录路径，查询串里可能带着 {{key}} 展开后的凭据
			event = event.Str("method", raw.Method).Str("host", raw.URL.Host).Str("path", raw.URL.Path)
		}
		event.Msg("HTTP client request")
		return nil
	})
	return client
}

// isSuccessStatus 2xx 视为成功
func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}
