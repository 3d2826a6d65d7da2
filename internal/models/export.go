// internal/models/export.go
package models

import (
	"time"
)

// GenerationArtifact 一次文本生成的结果
type GenerationArtifact struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	ModelID     string    `json:"model_id"`
	ModelName   string    `json:"model_name"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	DurationMS  int64     `json:"duration_ms"`
	GeneratedAt time.Time `json:"generated_at"`
	RequestID   string    `json:"request_id,omitempty"`
}

// StoryboardFrame 一帧分镜图
type StoryboardFrame struct {
	ID          string    `json:"id"`
	ModelID     string    `json:"model_id"`
	ModelName   string    `json:"model_name"`
	Prompt      string    `json:"prompt"`
	ImageBase64 string    `json:"image_base64"`
	MIMEType    string    `json:"mime_type,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
