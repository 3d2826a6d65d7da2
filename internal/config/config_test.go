package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("PORT", "9090")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_MAX_ATTEMPTS", "0")
	t.Setenv("MODEL_REGISTRY_URL", "  https://models.example.com/list.json ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 60, cfg.PollMaxAttempts)
	assert.Equal(t, "https://models.example.com/list.json", cfg.ModelRegistryURL)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)

	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.LogDir)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("LOG_DIR", t.TempDir())
	t.Setenv("HTTP_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestInitConfigKeepsSavedModels(t *testing.T) {
	dir := t.TempDir()
	saved, _ := json.Marshal(AppConfig{Port: "1", DefaultModelID: "gpt-4o-mini", DefaultImageModelID: "dall-e-3"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), saved, 0644))

	require.NoError(t, InitConfig(&Config{Port: "8080", DataDir: dir, LogDir: dir}))

	current := GetCurrentConfig()
	assert.Equal(t, "8080", current.Port)
	assert.Equal(t, "gpt-4o-mini", current.DefaultModelID)
	assert.Equal(t, "dall-e-3", current.DefaultImageModelID)

	require.NoError(t, UpdateDefaultModels("gemini-2.5-flash", ""))

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	var onDisk AppConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, "gemini-2.5-flash", onDisk.DefaultModelID)
	assert.Empty(t, onDisk.DefaultImageModelID)

	// 返回的是副本
	current.DefaultModelID = "mutated"
	assert.Equal(t, "gemini-2.5-flash", GetCurrentConfig().DefaultModelID)
}
