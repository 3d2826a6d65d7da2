// internal/services/task_service.go
package services

import (
	"context"
	"fmt"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/utils"

	"github.com/google/uuid"
)

// TaskKindStoryboard 异步分镜帧任务
const TaskKindStoryboard = "storyboard_frame"

// TaskService 在后台执行耗时的图像生成，进度通过 ProgressService 发布
type TaskService struct {
	screenplay *ScreenplayService
	progress   *ProgressService
	logger     *utils.Logger
}

// NewTaskService 创建任务服务
func NewTaskService(screenplay *ScreenplayService, progress *ProgressService) *TaskService {
	return &TaskService{
		screenplay: screenplay,
		progress:   progress,
		logger:     utils.GetLogger(),
	}
}

// StartStoryboardFrame 校验请求后立即返回任务 ID，生成在后台进行。
// 后台任务不随请求取消，但保留请求 ID 用于日志关联
func (s *TaskService) StartStoryboardFrame(ctx context.Context, req StoryboardRequest) (string, error) {
	if _, err := BuildStoryboardPrompt(req); err != nil {
		return "", err
	}

	taskID := uuid.NewString()
	tracker := s.progress.CreateTracker(taskID, TaskKindStoryboard)
	tracker.UpdateProgress(1, "generation started")

	bgCtx := context.WithoutCancel(ctx)
	bgCtx = gateway.WithPollObserver(bgCtx, func(event gateway.PollEvent) {
		if event.MaxAttempts <= 0 {
			return
		}
		percent := 5 + event.Attempt*90/event.MaxAttempts
		tracker.UpdateProgress(percent, fmt.Sprintf("waiting for provider (%s, check %d/%d)",
			event.State, event.Attempt, event.MaxAttempts))
	})

	go s.runStoryboardFrame(bgCtx, tracker, req)

	s.logger.Info("Storyboard task started", map[string]interface{}{
		"task_id":    taskID,
		"request_id": utils.RequestIDFrom(ctx),
	})
	return taskID, nil
}

func (s *TaskService) runStoryboardFrame(ctx context.Context, tracker *ProgressTracker, req StoryboardRequest) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Storyboard task panicked", map[string]interface{}{
				"task_id": tracker.TaskID,
				"panic":   fmt.Sprint(r),
			})
			tracker.Fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	frame, err := s.screenplay.GenerateStoryboardFrame(ctx, req)
	if err != nil {
		s.logger.Warn("Storyboard task failed", map[string]interface{}{
			"task_id":    tracker.TaskID,
			"error_type": string(apperrors.TypeOf(err)),
			"error":      err.Error(),
		})
		tracker.Fail(err.Error())
		return
	}

	tracker.Complete("storyboard frame ready", frame)
	s.logger.Info("Storyboard task completed", map[string]interface{}{
		"task_id":  tracker.TaskID,
		"model_id": frame.ModelID,
	})
}

// Get 查询任务状态
func (s *TaskService) Get(taskID string) (models.TaskSnapshot, error) {
	tracker, ok := s.progress.GetTracker(taskID)
	if !ok {
		return models.TaskSnapshot{}, apperrors.NewNotFoundError(fmt.Sprintf("task %q not found", taskID), nil)
	}
	return tracker.Snapshot(), nil
}
