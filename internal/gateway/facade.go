// internal/gateway/facade.go
package gateway

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/utils"

	"github.com/gabriel-vasile/mimetype"
)

// NativeTextRequest 原生文本生成请求
type NativeTextRequest struct {
	APIKey            string
	Model             string
	Prompt            string
	SystemInstruction string
}

// NativeImageRequest 原生图像生成请求
type NativeImageRequest struct {
	APIKey string
	Model  string
	Prompt string
}

// NativeGenerator 原生 SDK 通道，对网关是黑盒
type NativeGenerator interface {
	GenerateText(ctx context.Context, req NativeTextRequest) (string, error)
	GenerateImage(ctx context.Context, req NativeImageRequest) (*VisualAsset, error)
}

// VisualAsset 归一化后的图像结果
type VisualAsset struct {
	Base64   string `json:"base64"`
	MIMEType string `json:"mime_type,omitempty"`
}

// GenerateText 生成文本。通用通道的错误统一带上模型名称
func (g *Gateway) GenerateText(ctx context.Context, prompt string, cfg ModelConfig, systemInstruction string) (string, error) {
	started := time.Now()
	text, err := g.generateText(ctx, prompt, cfg, systemInstruction)
	g.observe(FamilyText, cfg, started, err)
	return text, err
}

func (g *Gateway) generateText(ctx context.Context, prompt string, cfg ModelConfig, systemInstruction string) (string, error) {
	if cfg.IsNative() {
		apiKey, err := g.nativeCredential()
		if err != nil {
			return "", err
		}
		return g.native.GenerateText(ctx, NativeTextRequest{
			APIKey:            apiKey,
			Model:             cfg.ID,
			Prompt:            prompt,
			SystemInstruction: systemInstruction,
		})
	}

	inputs := Inputs{"prompt": prompt}
	if systemInstruction != "" {
		inputs["system_instruction"] = systemInstruction
	}

	result, err := g.Execute(ctx, cfg, inputs)
	if err != nil {
		return "", apperrors.WrapError(err, cfg.displayName(), apperrors.ErrorTypeProvider)
	}

	value, _ := Extract(result.Response, cfg.generateEndpoint().outputPath(OutputText, defaultTextPath))
	text, ok := value.(string)
	if !ok {
		return "", apperrors.WrapError(
			apperrors.NewExtractionError("text", "", "provider response did not contain text"),
			cfg.displayName(), apperrors.ErrorTypeExtraction)
	}
	return text, nil
}

// GenerateVisual 生成图像并返回 base64 字符串
func (g *Gateway) GenerateVisual(ctx context.Context, prompt string, cfg ModelConfig) (string, error) {
	asset, err := g.GenerateVisualAsset(ctx, prompt, cfg)
	if err != nil {
		return "", err
	}
	return asset.Base64, nil
}

// GenerateVisualAsset 生成图像，附带探测到的 MIME 类型
func (g *Gateway) GenerateVisualAsset(ctx context.Context, prompt string, cfg ModelConfig) (*VisualAsset, error) {
	started := time.Now()
	asset, err := g.generateVisual(ctx, prompt, cfg)
	g.observe(FamilyImage, cfg, started, err)
	return asset, err
}

func (g *Gateway) generateVisual(ctx context.Context, prompt string, cfg ModelConfig) (*VisualAsset, error) {
	if cfg.IsNative() {
		apiKey, err := g.nativeCredential()
		if err != nil {
			return nil, err
		}
		return g.native.GenerateImage(ctx, NativeImageRequest{APIKey: apiKey, Model: cfg.ID, Prompt: prompt})
	}

	result, err := g.Execute(ctx, cfg, Inputs{"prompt": prompt})
	if err != nil {
		return nil, apperrors.WrapError(err, cfg.displayName(), apperrors.ErrorTypeProvider)
	}

	mappingSource := cfg.generateEndpoint()
	if result.Polled {
		mappingSource = cfg.statusEndpoint()
	}

	value, _ := Extract(result.Response, mappingSource.outputPath(OutputImage, defaultImagePath))
	raw, ok := value.(string)
	if !ok || raw == "" {
		return nil, apperrors.WrapError(
			apperrors.NewExtractionError("image", "", ""),
			cfg.displayName(), apperrors.ErrorTypeExtraction)
	}

	asset, err := g.normalizeVisual(ctx, raw)
	if err != nil {
		return nil, apperrors.WrapError(err, cfg.displayName(), apperrors.ErrorTypeProvider)
	}
	return asset, nil
}

// normalizeVisual 把 URL、data URI、裸 base64 三种结果统一为 base64
func (g *Gateway) normalizeVisual(ctx context.Context, raw string) (*VisualAsset, error) {
	switch {
	case strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://"):
		resp, err := g.send(ctx, "GET", raw, nil, nil)
		if err != nil {
			return nil, err
		}
		data := resp.Bytes()
		return &VisualAsset{
			Base64:   base64.StdEncoding.EncodeToString(data),
			MIMEType: mimetype.Detect(data).String(),
		}, nil

	case strings.HasPrefix(raw, "data:image"):
		payload := raw
		if comma := strings.Index(raw, ","); comma >= 0 {
			payload = raw[comma+1:]
		}
		return &VisualAsset{Base64: payload, MIMEType: sniffBase64(payload)}, nil

	default:
		return &VisualAsset{Base64: raw, MIMEType: sniffBase64(raw)}, nil
	}
}

// sniffBase64 尝试解码并探测类型；解码失败时返回空字符串，不影响结果
func sniffBase64(payload string) string {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return ""
	}
	return mimetype.Detect(data).String()
}

func (g *Gateway) nativeCredential() (string, error) {
	apiKey, ok := g.credentials.Get(NativeCredentialKey)
	if !ok || apiKey == "" {
		return "", apperrors.NewCredentialMissingError(NativeCredentialKey)
	}
	if g.native == nil {
		return "", apperrors.NewConfigurationError(ProviderGoogleNative, "native generator is not configured")
	}
	return apiKey, nil
}

func (g *Gateway) observe(family string, cfg ModelConfig, started time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(apperrors.TypeOf(err))
		if outcome == "" {
			outcome = "error"
		}
		g.logger.Warn("Generation failed", map[string]interface{}{
			"model":    cfg.ID,
			"provider": cfg.Provider,
			"family":   family,
			"error":    err.Error(),
		})
	}
	utils.GenerationRequestsTotal.WithLabelValues(family, cfg.Provider, outcome).Inc()
	utils.GenerationDuration.WithLabelValues(family, cfg.Provider).Observe(time.Since(started).Seconds())
}
