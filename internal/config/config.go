// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// Config 由环境变量驱动的启动配置
type Config struct {
	// 基础配置
	Port      string `env:"PORT" envDefault:"8080"`
	DataDir   string `env:"DATA_DIR" envDefault:"data"`
	LogDir    string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	DebugMode bool   `env:"DEBUG_MODE" envDefault:"false"`

	// 模型网关
	ModelRegistryURL string        `env:"MODEL_REGISTRY_URL"`
	GeminiBaseURL    string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"60s"`
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	PollMaxAttempts  int           `env:"POLL_MAX_ATTEMPTS" envDefault:"60"`

	// 凭据存储
	CredentialSecret string `env:"CREDENTIAL_SECRET"`
	RedisAddr        string `env:"REDIS_ADDR"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`

	// 生成接口限流，每个客户端每分钟
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
}

// AppConfig 运行期可修改并持久化到 config.json 的配置
type AppConfig struct {
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 未指定模型时使用；为空时使用注册表默认模型
	DefaultModelID string `json:"default_model_id,omitempty"`
	// 分镜帧默认使用的图像模型
	DefaultImageModelID string `json:"default_image_model_id,omitempty"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.ModelRegistryURL = strings.TrimSpace(cfg.ModelRegistryURL)
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 60
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}

	ensureDir(cfg.DataDir)
	ensureDir(cfg.LogDir)
	return cfg, nil
}

// ensureDir 确保目录存在
func ensureDir(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}
}

// InitConfig 初始化运行期配置，合并 config.json 中已保存的设置
func InitConfig(base *Config) error {
	configFile = filepath.Join(base.DataDir, "config.json")

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:      base.Port,
		DataDir:   base.DataDir,
		LogDir:    base.LogDir,
		DebugMode: base.DebugMode,
	}

	// 尝试从文件加载已保存的配置
	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil {
			// 保留文件中的模型设置，但使用最新的基础配置
			currentConfig.DefaultModelID = saved.DefaultModelID
			currentConfig.DefaultImageModelID = saved.DefaultImageModelID
		}
	}

	return saveLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return &AppConfig{}
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateDefaultModels 更新默认文本/图像模型，空字符串表示清除
func UpdateDefaultModels(textModelID, imageModelID string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.DefaultModelID = textModelID
	currentConfig.DefaultImageModelID = imageModelID
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	// 先写临时文件再重命名
	tmp := configFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("写入配置失败: %w", err)
	}
	return os.Rename(tmp, configFile)
}
