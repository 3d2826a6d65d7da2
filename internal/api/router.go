// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/Corphon/ScriptStudio/internal/di"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions 路由相关设置
type RouterOptions struct {
	DebugMode bool
	// 生成接口每个 IP 每分钟的请求上限，<=0 表示不限流
	RateLimitPerMinute int
	RateLimiter        *RateLimiter
}

// SetupRouter 配置HTTP路由，服务全部从容器获取
func SetupRouter(container *di.Container, opts RouterOptions) (*gin.Engine, error) {
	modelService, err := di.Resolve[*services.ModelService](container, di.ServiceModel)
	if err != nil {
		return nil, fmt.Errorf("模型服务未正确初始化: %w", err)
	}
	credentialService, err := di.Resolve[*services.CredentialService](container, di.ServiceCredential)
	if err != nil {
		return nil, fmt.Errorf("凭据服务未正确初始化: %w", err)
	}
	gw, err := di.Resolve[*gateway.Gateway](container, di.ServiceGateway)
	if err != nil {
		return nil, fmt.Errorf("模型网关未正确初始化: %w", err)
	}
	screenplayService, err := di.Resolve[*services.ScreenplayService](container, di.ServiceScreenplay)
	if err != nil {
		return nil, fmt.Errorf("剧本服务未正确初始化: %w", err)
	}
	taskService, err := di.Resolve[*services.TaskService](container, di.ServiceTask)
	if err != nil {
		return nil, fmt.Errorf("任务服务未正确初始化: %w", err)
	}
	progressService, err := di.Resolve[*services.ProgressService](container, di.ServiceProgress)
	if err != nil {
		return nil, fmt.Errorf("进度服务未正确初始化: %w", err)
	}

	handler := NewHandler(modelService, credentialService, gw, screenplayService, taskService, progressService)
	return newEngine(handler, opts), nil
}

func newEngine(handler *Handler, opts RouterOptions) *gin.Engine {
	if !opts.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(corsMiddleware())

	generationLimit := func(c *gin.Context) { c.Next() }
	if opts.RateLimitPerMinute > 0 {
		limiter := opts.RateLimiter
		if limiter == nil {
			limiter = NewRateLimiter()
		}
		generationLimit = RateLimitByIP(limiter, opts.RateLimitPerMinute, time.Minute)
	}

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 任务进度推送
	r.GET("/ws/tasks/:taskID", handler.TaskWebSocket)

	api := r.Group("/api")
	{
		// ===============================
		// 模型相关路由
		// ===============================
		modelsGroup := api.Group("/models")
		{
			modelsGroup.GET("", handler.ListModels)
			modelsGroup.POST("/refresh", handler.RefreshModels)
			modelsGroup.GET("/default", handler.GetDefaultModels)
			modelsGroup.PUT("/default", handler.SetDefaultModels)

			modelsGroup.GET("/custom", handler.ListCustomModels)
			modelsGroup.POST("/custom", handler.SaveCustomModel)
			modelsGroup.PUT("/custom", handler.ReplaceCustomModels)
			modelsGroup.DELETE("/custom/:id", handler.DeleteCustomModel)
		}

		// ===============================
		// 凭据相关路由
		// ===============================
		credentialsGroup := api.Group("/credentials")
		{
			credentialsGroup.GET("", handler.ListCredentials)
			credentialsGroup.PUT("/:name", handler.SetCredential)
			credentialsGroup.DELETE("/:name", handler.DeleteCredential)
		}

		// ===============================
		// 生成相关路由（限流）
		// ===============================
		generateGroup := api.Group("/generate", generationLimit)
		{
			generateGroup.POST("/text", handler.GenerateText)
			generateGroup.POST("/visual", handler.GenerateVisual)
		}

		screenplayGroup := api.Group("/screenplay", generationLimit)
		{
			screenplayGroup.POST("/storyboard", handler.GenerateStoryboard)
			screenplayGroup.POST("/:kind", handler.GenerateScreenplay)
		}

		// ===============================
		// 异步任务
		// ===============================
		api.POST("/tasks/storyboard", generationLimit, handler.StartStoryboardTask)
		api.GET("/tasks/:taskID", handler.GetTask)
	}

	return r
}
