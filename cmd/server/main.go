// cmd/server/main.go
package main

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/Corphon/ScriptStudio/internal/app"
	"github.com/Corphon/ScriptStudio/internal/config"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

func main() {
	// 1. 加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化日志
	logFile := ""
	if baseConfig.LogDir != "" {
		logFile = filepath.Join(baseConfig.LogDir, "scriptstudio.log")
	}
	if err := utils.InitLogger(logFile, baseConfig.LogLevel, baseConfig.LogFormat); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	logger := utils.GetLogger()
	defer logger.Close()

	// 3. 初始化运行期配置
	if err := config.InitConfig(baseConfig); err != nil {
		log.Fatalf("初始化配置系统失败: %v", err)
	}

	logger.Info("Starting ScriptStudio", map[string]interface{}{
		"port":          baseConfig.Port,
		"data_dir":      baseConfig.DataDir,
		"registry_url":  baseConfig.ModelRegistryURL,
		"poll_interval": baseConfig.PollInterval.String(),
		"poll_attempts": baseConfig.PollMaxAttempts,
	})

	// 4. 初始化服务与路由
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(ctx, baseConfig)
	cancel()
	if err != nil {
		logger.Error("Failed to initialize services", map[string]interface{}{"error": err.Error()})
		log.Fatalf("初始化服务失败: %v", err)
	}

	// 5. 运行直到收到退出信号
	if err := application.Run(); err != nil {
		logger.Error("Server stopped with error", map[string]interface{}{"error": err.Error()})
		log.Fatalf("%v", err)
	}
}
