// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/Corphon/ScriptStudio/internal/models"
)

// ProgressUpdate 表示进度更新
type ProgressUpdate struct {
	TaskID   string      `json:"task_id"`
	Progress int         `json:"progress"` // 进度百分比 (0-100)
	Message  string      `json:"message"`  // 描述性消息
	Status   string      `json:"status"`   // 状态：running, completed, failed
	Result   interface{} `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// ProgressTracker 跟踪长时间运行任务的进度
type ProgressTracker struct {
	TaskID      string
	Kind        string
	Progress    int
	Message     string
	Status      string
	Result      interface{}
	Error       string
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan ProgressUpdate]bool
	Done        chan struct{} // 任务结束时关闭
	mutex       sync.Mutex
}

// ProgressService 管理所有进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker 创建新的进度跟踪器，已存在时返回现有追踪器
func (s *ProgressService) CreateTracker(taskID, kind string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	now := time.Now()
	tracker := &ProgressTracker{
		TaskID:      taskID,
		Kind:        kind,
		Message:     "task queued",
		Status:      models.TaskStatusRunning,
		StartTime:   now,
		UpdateTime:  now,
		Subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
	}

	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker 获取进度跟踪器
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// finished 调用方持有锁
func (t *ProgressTracker) finished() bool {
	return t.Status != models.TaskStatusRunning
}

func (t *ProgressTracker) update() ProgressUpdate {
	return ProgressUpdate{
		TaskID:   t.TaskID,
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
		Result:   t.Result,
		Error:    t.Error,
	}
}

// broadcast 非阻塞通知所有订阅者，通道已满则跳过中间进度；
// 结束状态必须送达，通道已满时丢弃最旧的一条。调用方持有锁
func (t *ProgressTracker) broadcast() {
	update := t.update()
	terminal := t.finished()
	for subscriber := range t.Subscribers {
		select {
		case subscriber <- update:
			continue
		default:
		}
		if !terminal {
			continue
		}
		select {
		case <-subscriber:
		default:
		}
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Current 当前状态的进度消息
func (t *ProgressTracker) Current() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.update()
}

// UpdateProgress 更新任务进度，进度只增不减
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finished() {
		return
	}
	if progress > 99 {
		progress = 99
	}
	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	t.broadcast()
}

// Complete 标记任务完成并保存结果；重复调用无效
func (t *ProgressTracker) Complete(message string, result interface{}) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finished() {
		return
	}

	t.Progress = 100
	t.Message = message
	if t.Message == "" {
		t.Message = "task completed"
	}
	t.Status = models.TaskStatusCompleted
	t.Result = result
	t.UpdateTime = time.Now()
	t.broadcast()
	close(t.Done)
}

// Fail 标记任务失败；重复调用无效
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finished() {
		return
	}

	t.Message = fmt.Sprintf("task failed: %s", errorMsg)
	t.Error = errorMsg
	t.Status = models.TaskStatusFailed
	t.UpdateTime = time.Now()
	t.broadcast()
	close(t.Done)
}

// Snapshot 当前状态
func (t *ProgressTracker) Snapshot() models.TaskSnapshot {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return models.TaskSnapshot{
		TaskID:    t.TaskID,
		Kind:      t.Kind,
		Status:    t.Status,
		Progress:  t.Progress,
		Message:   t.Message,
		Result:    t.Result,
		Error:     t.Error,
		StartedAt: t.StartTime,
		UpdatedAt: t.UpdateTime,
	}
}

// Subscribe 订阅进度更新，订阅时立即收到当前状态
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan ProgressUpdate, 10)
	t.Subscribers[subscriber] = true
	subscriber <- t.update()
	return subscriber
}

// Unsubscribe 取消订阅
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.Subscribers[subscriber]; !ok {
		return
	}
	delete(t.Subscribers, subscriber)
	close(subscriber)
}

// CleanupCompletedTasks 清理结束超过 maxAge 的任务
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		isOld := tracker.finished() && now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if isOld {
			delete(s.trackers, id)
			removed++
		}
	}
	return removed
}
