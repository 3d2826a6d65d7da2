// internal/models/task.go
package models

import "time"

// 异步任务状态
const (
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// TaskSnapshot 异步任务的当前状态
type TaskSnapshot struct {
	TaskID    string      `json:"task_id"`
	Kind      string      `json:"kind"`
	Status    string      `json:"status"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
