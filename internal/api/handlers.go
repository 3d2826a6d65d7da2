// internal/api/handlers.go
package api

import (
	"net/http"
	"time"

	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/services"

	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	ModelService      *services.ModelService      // 模型定义与解析
	CredentialService *services.CredentialService // 凭据
	Generator         services.Generator          // 模型网关
	ScreenplayService *services.ScreenplayService // 剧本生成
	TaskService       *services.TaskService       // 异步分镜任务
	ProgressService   *services.ProgressService   // 进度跟踪服务
	Response          *ResponseHelper             // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	modelService *services.ModelService,
	credentialService *services.CredentialService,
	generator services.Generator,
	screenplayService *services.ScreenplayService,
	taskService *services.TaskService,
	progressService *services.ProgressService,
) *Handler {
	return &Handler{
		ModelService:      modelService,
		CredentialService: credentialService,
		Generator:         generator,
		ScreenplayService: screenplayService,
		TaskService:       taskService,
		ProgressService:   progressService,
		Response:          NewResponseHelper(),
	}
}

// GenerateTextRequest 直接调用网关生成文本
type GenerateTextRequest struct {
	ModelID           string `json:"model_id"`
	Prompt            string `json:"prompt" binding:"required"`
	SystemInstruction string `json:"system_instruction"`
}

// GenerateVisualRequest 直接调用网关生成图像
type GenerateVisualRequest struct {
	ModelID string `json:"model_id"`
	Prompt  string `json:"prompt" binding:"required"`
}

// SetCredentialRequest 保存凭据
type SetCredentialRequest struct {
	Value string `json:"value" binding:"required"`
}

// DefaultModelsRequest 设置默认模型，空字符串表示清除
type DefaultModelsRequest struct {
	TextModelID  string `json:"text_model_id"`
	ImageModelID string `json:"image_model_id"`
}

// ===============================
// 健康检查
// ===============================

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	models, err := h.ModelService.Models(c.Request.Context())
	status := "ok"
	if err != nil {
		status = "degraded"
	}
	h.Response.Success(c, gin.H{
		"status": status,
		"models": len(models),
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ===============================
// 模型
// ===============================

// ListModels 生效的模型列表（远程或内置，再合并自定义）
func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.ModelService.Models(c.Request.Context())
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, models)
}

// RefreshModels 重新拉取远程模型列表
func (h *Handler) RefreshModels(c *gin.Context) {
	models, err := h.ModelService.Refresh(c.Request.Context())
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, models, "model catalog refreshed")
}

// GetDefaultModels 当前默认的文本与图像模型
func (h *Handler) GetDefaultModels(c *gin.Context) {
	ctx := c.Request.Context()
	text, err := h.ModelService.Default(ctx, gateway.FamilyText)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}

	result := gin.H{"text": text}
	if image, err := h.ModelService.Default(ctx, gateway.FamilyImage); err == nil {
		result["image"] = image
	}
	h.Response.Success(c, result)
}

// SetDefaultModels 保存默认模型
func (h *Handler) SetDefaultModels(c *gin.Context) {
	var req DefaultModelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}
	if err := h.ModelService.SetDefaults(c.Request.Context(), req.TextModelID, req.ImageModelID); err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, req, "default models saved")
}

// ListCustomModels 自定义模型定义
func (h *Handler) ListCustomModels(c *gin.Context) {
	h.Response.Success(c, h.ModelService.ListCustom())
}

// SaveCustomModel 新增或替换一个自定义定义
func (h *Handler) SaveCustomModel(c *gin.Context) {
	var cfg gateway.ModelConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		h.Response.BadRequest(c, "invalid model definition", err.Error())
		return
	}

	saved, err := h.ModelService.SaveCustom(c.Request.Context(), cfg)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Created(c, saved, "custom model saved")
}

// ReplaceCustomModels 整体替换自定义定义
func (h *Handler) ReplaceCustomModels(c *gin.Context) {
	var list []gateway.ModelConfig
	if err := c.ShouldBindJSON(&list); err != nil {
		h.Response.BadRequest(c, "expected a JSON array of model definitions", err.Error())
		return
	}

	if err := h.ModelService.ReplaceCustom(c.Request.Context(), list); err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, h.ModelService.ListCustom(), "custom models replaced")
}

// DeleteCustomModel 删除自定义定义
func (h *Handler) DeleteCustomModel(c *gin.Context) {
	if err := h.ModelService.DeleteCustom(c.Request.Context(), c.Param("id")); err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, nil, "custom model deleted")
}

// ===============================
// 凭据
// ===============================

// ListCredentials 已保存的凭据（遮罩后）
func (h *Handler) ListCredentials(c *gin.Context) {
	infos, err := h.CredentialService.List(c.Request.Context())
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, infos)
}

// SetCredential 保存凭据
func (h *Handler) SetCredential(c *gin.Context) {
	var req SetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorCredentialInvalid, "credential value is required")
		return
	}

	name := c.Param("name")
	if err := h.CredentialService.Set(c.Request.Context(), name, req.Value); err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, services.CredentialInfo{Name: name}, "credential saved")
}

// DeleteCredential 删除凭据
func (h *Handler) DeleteCredential(c *gin.Context) {
	if err := h.CredentialService.Delete(c.Request.Context(), c.Param("name")); err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, nil, "credential deleted")
}

// ===============================
// 生成
// ===============================

// GenerateText 用指定模型生成文本
func (h *Handler) GenerateText(c *gin.Context) {
	var req GenerateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "prompt is required", err.Error())
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.ModelService.Resolve(ctx, req.ModelID, gateway.FamilyText)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}

	text, err := h.Generator.GenerateText(ctx, req.Prompt, cfg, req.SystemInstruction)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"model_id":   cfg.ID,
		"model_name": cfg.Name,
		"text":       text,
	})
}

// GenerateVisual 用指定模型生成图像，异步 provider 会在请求内轮询完成
func (h *Handler) GenerateVisual(c *gin.Context) {
	var req GenerateVisualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "prompt is required", err.Error())
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.ModelService.Resolve(ctx, req.ModelID, gateway.FamilyImage)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}

	asset, err := h.Generator.GenerateVisualAsset(ctx, req.Prompt, cfg)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"model_id":   cfg.ID,
		"model_name": cfg.Name,
		"base64":     asset.Base64,
		"mime_type":  asset.MIMEType,
	})
}

// ===============================
// 剧本
// ===============================

// GenerateScreenplay 生成剧本文本（梗概、分场、剧本页、连戏、镜头表）
func (h *Handler) GenerateScreenplay(c *gin.Context) {
	kind := c.Param("kind")
	if !services.IsValidKind(kind) {
		h.Response.NotFound(c, ErrorKindInvalid, "unknown generation kind: "+kind)
		return
	}

	var req services.ScreenplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	artifact, err := h.ScreenplayService.Generate(c.Request.Context(), kind, req)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, artifact)
}

// GenerateStoryboard 同步生成分镜帧
func (h *Handler) GenerateStoryboard(c *gin.Context) {
	var req services.StoryboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	frame, err := h.ScreenplayService.GenerateStoryboardFrame(c.Request.Context(), req)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, frame)
}

// ===============================
// 异步任务
// ===============================

// StartStoryboardTask 在后台生成分镜帧，返回任务 ID
func (h *Handler) StartStoryboardTask(c *gin.Context) {
	var req services.StoryboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	taskID, err := h.TaskService.StartStoryboardFrame(c.Request.Context(), req)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Accepted(c, gin.H{"task_id": taskID}, "task started, subscribe to /ws/tasks/"+taskID+" for progress")
}

// GetTask 查询任务状态
func (h *Handler) GetTask(c *gin.Context) {
	snapshot, err := h.TaskService.Get(c.Param("taskID"))
	if err != nil {
		h.Response.NotFound(c, ErrorTaskNotFound, err.Error())
		return
	}
	h.Response.Success(c, snapshot)
}
