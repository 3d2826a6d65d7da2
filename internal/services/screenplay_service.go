// internal/services/screenplay_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/utils"

	"github.com/google/uuid"
)

// 文本生成类型
const (
	KindSynopsis        = "synopsis"
	KindSceneBreakdown  = "scene_breakdown"
	KindScreenplay      = "screenplay"
	KindContinuityBrief = "continuity_brief"
	KindShotList        = "shot_list"
)

// Generator 网关的生成能力
type Generator interface {
	GenerateText(ctx context.Context, prompt string, cfg gateway.ModelConfig, systemInstruction string) (string, error)
	GenerateVisualAsset(ctx context.Context, prompt string, cfg gateway.ModelConfig) (*gateway.VisualAsset, error)
}

// ModelResolver 按 id 或类别默认值解析模型
type ModelResolver interface {
	Resolve(ctx context.Context, id, family string) (gateway.ModelConfig, error)
}

// ScreenplayRequest 文本生成请求
type ScreenplayRequest struct {
	ModelID string            `json:"model_id,omitempty"`
	Brief   models.StoryBrief `json:"brief"`
}

// StoryboardRequest 分镜帧请求
type StoryboardRequest struct {
	ModelID    string            `json:"model_id,omitempty"`
	Brief      models.StoryBrief `json:"brief"`
	SceneIndex int               `json:"scene_index"`
	Shot       string            `json:"shot,omitempty"` // 镜头描述，例如 "wide shot, low angle"
	Style      string            `json:"style,omitempty"`
}

// ScreenplayService 把故事资料转换为提示词并调用网关生成
type ScreenplayService struct {
	generator Generator
	models    ModelResolver
	logger    *utils.Logger
}

// NewScreenplayService 创建剧本生成服务
func NewScreenplayService(generator Generator, resolver ModelResolver) *ScreenplayService {
	return &ScreenplayService{
		generator: generator,
		models:    resolver,
		logger:    utils.GetLogger(),
	}
}

// Kinds 支持的文本生成类型
func Kinds() []string {
	return []string{KindSynopsis, KindSceneBreakdown, KindScreenplay, KindContinuityBrief, KindShotList}
}

// IsValidKind 检查生成类型
func IsValidKind(kind string) bool {
	_, ok := systemInstructions[kind]
	return ok
}

// Generate 生成指定类型的文本
func (s *ScreenplayService) Generate(ctx context.Context, kind string, req ScreenplayRequest) (*models.GenerationArtifact, error) {
	if !IsValidKind(kind) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("unknown generation kind %q, expected one of: %s", kind, strings.Join(Kinds(), ", ")), nil)
	}
	if req.Brief.IsEmpty() {
		return nil, apperrors.NewValidationError("brief needs a title, logline, scenes or prior text", nil)
	}
	if kind == KindShotList && len(req.Brief.Scenes) == 0 && req.Brief.PriorText == "" {
		return nil, apperrors.NewValidationError("a shot list needs scenes or prior text", nil)
	}

	cfg, err := s.models.Resolve(ctx, req.ModelID, gateway.FamilyText)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(kind, req.Brief)
	started := time.Now()

	s.logger.Info("Generating screenplay text", map[string]interface{}{
		"kind":       kind,
		"model":      cfg.ID,
		"request_id": utils.RequestIDFrom(ctx),
	})

	text, err := s.generator.GenerateText(ctx, prompt, cfg, SystemInstruction(kind, req.Brief.Language))
	if err != nil {
		return nil, err
	}

	return &models.GenerationArtifact{
		ID:          uuid.NewString(),
		Kind:        kind,
		ModelID:     cfg.ID,
		ModelName:   cfg.Name,
		Title:       req.Brief.Title,
		Content:     strings.TrimSpace(text),
		DurationMS:  time.Since(started).Milliseconds(),
		GeneratedAt: time.Now(),
		RequestID:   utils.RequestIDFrom(ctx),
	}, nil
}

// GenerateStoryboardFrame 为一个场景生成分镜图
func (s *ScreenplayService) GenerateStoryboardFrame(ctx context.Context, req StoryboardRequest) (*models.StoryboardFrame, error) {
	prompt, err := BuildStoryboardPrompt(req)
	if err != nil {
		return nil, err
	}

	cfg, err := s.models.Resolve(ctx, req.ModelID, gateway.FamilyImage)
	if err != nil {
		return nil, err
	}

	asset, err := s.generator.GenerateVisualAsset(ctx, prompt, cfg)
	if err != nil {
		return nil, err
	}

	return &models.StoryboardFrame{
		ID:          uuid.NewString(),
		ModelID:     cfg.ID,
		ModelName:   cfg.Name,
		Prompt:      prompt,
		ImageBase64: asset.Base64,
		MIMEType:    asset.MIMEType,
		GeneratedAt: time.Now(),
	}, nil
}
