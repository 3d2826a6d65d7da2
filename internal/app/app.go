// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/ScriptStudio/internal/api"
	"github.com/Corphon/ScriptStudio/internal/config"
	"github.com/Corphon/ScriptStudio/internal/di"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/gateway/native"
	"github.com/Corphon/ScriptStudio/internal/services"
	"github.com/Corphon/ScriptStudio/internal/storage"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// secretFile 未配置 CREDENTIAL_SECRET 时生成的密钥文件
const secretFile = ".credential_secret.json"

// 已结束的任务保留时间
const (
	taskRetention       = 30 * time.Minute
	taskCleanupInterval = 5 * time.Minute
)

// Server 可启动和关闭的 HTTP 服务器
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用程序实例
type App struct {
	config    *config.Config
	container *di.Container
	server    Server
	stopChan  chan os.Signal
	closers   []func() error
	logger    *utils.Logger
}

// InitServices 按依赖顺序创建服务并注册到容器，返回需要在退出时调用的关闭函数
func InitServices(ctx context.Context, cfg *config.Config, container *di.Container) ([]func() error, error) {
	logger := utils.GetLogger()
	var closers []func() error

	fs, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("创建文件存储失败: %w", err)
	}

	// 1. 凭据
	secret := cfg.CredentialSecret
	if secret == "" {
		secret, err = services.LoadOrCreateSecret(fs, secretFile)
		if err != nil {
			return nil, fmt.Errorf("生成凭据密钥失败: %w", err)
		}
		logger.Warn("CREDENTIAL_SECRET is not set, using generated secret from data directory", map[string]interface{}{
			"file": filepath.Join(cfg.DataDir, secretFile),
		})
	}
	box, err := utils.NewSecretBox(secret)
	if err != nil {
		return nil, err
	}

	var store storage.KeyValueStore
	if cfg.RedisAddr != "" {
		client, err := storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		closers = append(closers, client.Close)
		store = storage.NewRedisKeyValueStore(client, services.CredentialsHash)
		logger.Info("Credential store: redis", map[string]interface{}{"addr": cfg.RedisAddr})
	} else {
		store = storage.NewFileKeyValueStore(fs, services.CredentialsFile)
		logger.Info("Credential store: file", map[string]interface{}{"file": services.CredentialsFile})
	}
	credentialService := services.NewCredentialService(store, box)
	container.Register(di.ServiceCredential, credentialService)

	// 2. 模型网关
	gw := gateway.New(credentialService,
		gateway.WithHTTPClient(gateway.NewHTTPClient("gateway", cfg.HTTPTimeout)),
		gateway.WithNativeGenerator(native.NewClient(cfg.GeminiBaseURL, gateway.NewHTTPClient("gemini", cfg.HTTPTimeout))),
		gateway.WithPollPolicy(gateway.PollPolicy{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts}),
	)
	closers = append(closers, gw.Close)
	container.Register(di.ServiceGateway, gw)

	registry := gateway.NewRegistry(cfg.ModelRegistryURL, nil)
	container.Register(di.ServiceRegistry, registry)

	// 3. 模型、进度、剧本、任务
	modelService, err := services.NewModelService(fs, registry)
	if err != nil {
		return nil, err
	}
	container.Register(di.ServiceModel, modelService)

	progressService := services.NewProgressService()
	container.Register(di.ServiceProgress, progressService)

	screenplayService := services.NewScreenplayService(gw, modelService)
	container.Register(di.ServiceScreenplay, screenplayService)

	container.Register(di.ServiceTask, services.NewTaskService(screenplayService, progressService))

	// 预热模型列表，失败时注册表会回退到内置列表
	if models, err := modelService.Models(ctx); err == nil {
		logger.Info("Model catalog loaded", map[string]interface{}{"models": len(models)})
	}

	return closers, nil
}

// New 初始化服务与路由并创建 HTTP 服务器
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	container := di.NewContainer()
	closers, err := InitServices(ctx, cfg, container)
	if err != nil {
		return nil, err
	}

	limiter := api.NewRateLimiter()
	closers = append(closers, func() error {
		limiter.Stop()
		return nil
	})

	router, err := api.SetupRouter(container, api.RouterOptions{
		DebugMode:          cfg.DebugMode,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimiter:        limiter,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		config:    cfg,
		container: container,
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		stopChan: make(chan os.Signal, 1),
		closers:  closers,
		logger:   utils.GetLogger(),
	}, nil
}

// Container 依赖注入容器
func (a *App) Container() *di.Container {
	return a.container
}

// Run 启动服务器，收到 SIGINT/SIGTERM 后优雅关闭
func (a *App) Run() error {
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.cleanupTasks(bgCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Infof("Server listening on :%s", a.config.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	case sig := <-a.stopChan:
		a.logger.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	}

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	a.logger.Info("Server stopped", nil)
	return nil
}

// cleanupTasks 定期清理已结束的任务
func (a *App) cleanupTasks(ctx context.Context) {
	progress, err := di.Resolve[*services.ProgressService](a.container, di.ServiceProgress)
	if err != nil {
		return
	}

	ticker := time.NewTicker(taskCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := progress.CleanupCompletedTasks(taskRetention); removed > 0 {
				a.logger.Debug("Finished tasks removed", map[string]interface{}{"count": removed})
			}
		}
	}
}

// cleanup 按注册的逆序释放资源
func (a *App) cleanup() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Cleanup failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}
