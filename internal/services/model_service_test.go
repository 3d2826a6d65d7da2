package services

import (
	"context"
	"testing"

	"github.com/Corphon/ScriptStudio/internal/config"
	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModelService(t *testing.T) (*ModelService, *storage.FileStorage) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, config.InitConfig(&config.Config{DataDir: dir, Port: "0"}))

	fs, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	svc, err := NewModelService(fs, gateway.NewRegistry("", nil))
	require.NoError(t, err)
	return svc, fs
}

func customTextModel(id string) gateway.ModelConfig {
	return gateway.ModelConfig{
		ID:       id,
		Name:     "Local " + id,
		Provider: "ollama",
		Family:   gateway.FamilyText,
		Endpoints: &gateway.Endpoints{
			Generate: &gateway.EndpointDefinition{
				URL:    "http://localhost:11434/api/generate",
				Method: "POST",
				ParamMapping: gateway.NewTemplate(map[string]any{
					"model":  "{{id}}",
					"prompt": "{{prompt}}",
				}),
				OutputMapping: map[string]string{"text": "response"},
			},
		},
	}
}

func TestModelServiceSaveCustom(t *testing.T) {
	svc, fs := newTestModelService(t)
	ctx := context.Background()

	_, err := svc.SaveCustom(ctx, customTextModel("llama3"))
	require.NoError(t, err)

	cfg, err := svc.Resolve(ctx, "llama3", gateway.FamilyText)
	require.NoError(t, err)
	assert.Equal(t, "Local llama3", cfg.Name)

	// 同 id 再次保存为整体替换
	updated := customTextModel("llama3")
	updated.Name = "Llama 3 8B"
	_, err = svc.SaveCustom(ctx, updated)
	require.NoError(t, err)
	assert.Len(t, svc.ListCustom(), 1)

	cfg, err = svc.Resolve(ctx, "llama3", gateway.FamilyText)
	require.NoError(t, err)
	assert.Equal(t, "Llama 3 8B", cfg.Name)

	// 重新加载后仍然存在
	reloaded, err := NewModelService(fs, gateway.NewRegistry("", nil))
	require.NoError(t, err)
	require.Len(t, reloaded.ListCustom(), 1)
	assert.Equal(t, "Llama 3 8B", reloaded.ListCustom()[0].Name)
}

func TestModelServiceSaveCustomRejectsInvalid(t *testing.T) {
	svc, _ := newTestModelService(t)

	invalid := customTextModel("broken")
	invalid.Endpoints.Generate = nil
	_, err := svc.SaveCustom(context.Background(), invalid)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Empty(t, svc.ListCustom())
}

func TestModelServiceOverridesRemoteDefinition(t *testing.T) {
	svc, _ := newTestModelService(t)
	ctx := context.Background()

	override := customTextModel("gpt-4o-mini")
	override.Name = "Proxy GPT"
	_, err := svc.SaveCustom(ctx, override)
	require.NoError(t, err)

	cfg, err := svc.Resolve(ctx, "gpt-4o-mini", "")
	require.NoError(t, err)
	assert.Equal(t, "Proxy GPT", cfg.Name)

	// 删除后恢复内置定义
	require.NoError(t, svc.DeleteCustom(ctx, "gpt-4o-mini"))
	cfg, err = svc.Resolve(ctx, "gpt-4o-mini", "")
	require.NoError(t, err)
	assert.Equal(t, "GPT-4o mini", cfg.Name)
}

func TestModelServiceReplaceCustom(t *testing.T) {
	svc, _ := newTestModelService(t)
	ctx := context.Background()

	err := svc.ReplaceCustom(ctx, []gateway.ModelConfig{customTextModel("a"), customTextModel("a")})
	assert.True(t, apperrors.IsValidationError(err))

	require.NoError(t, svc.ReplaceCustom(ctx, []gateway.ModelConfig{customTextModel("a"), customTextModel("b")}))
	assert.Len(t, svc.ListCustom(), 2)

	require.NoError(t, svc.ReplaceCustom(ctx, nil))
	assert.Empty(t, svc.ListCustom())
}

func TestModelServiceDeleteMissing(t *testing.T) {
	svc, _ := newTestModelService(t)
	err := svc.DeleteCustom(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestModelServiceResolveUnknown(t *testing.T) {
	svc, _ := newTestModelService(t)
	_, err := svc.Resolve(context.Background(), "unknown-model", gateway.FamilyText)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestModelServiceDefaults(t *testing.T) {
	svc, _ := newTestModelService(t)
	ctx := context.Background()

	text, err := svc.Resolve(ctx, "", gateway.FamilyText)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", text.ID)

	image, err := svc.Resolve(ctx, "", gateway.FamilyImage)
	require.NoError(t, err)
	assert.Equal(t, "imagen-4.0-generate-001", image.ID)

	require.NoError(t, svc.SetDefaults(ctx, "gpt-4o-mini", "dall-e-3"))
	assert.Equal(t, "gpt-4o-mini", config.GetCurrentConfig().DefaultModelID)

	text, err = svc.Resolve(ctx, "", gateway.FamilyText)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", text.ID)

	image, err = svc.Default(ctx, gateway.FamilyImage)
	require.NoError(t, err)
	assert.Equal(t, "dall-e-3", image.ID)

	err = svc.SetDefaults(ctx, "missing", "")
	assert.True(t, apperrors.IsValidationError(err))
	assert.Equal(t, "gpt-4o-mini", config.GetCurrentConfig().DefaultModelID)
}
