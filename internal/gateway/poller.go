// internal/gateway/poller.go
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// PollPolicy 固定间隔、固定次数的轮询策略
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy 2 秒一次，最多 60 次
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: 2 * time.Second, MaxAttempts: 60}
}

// Sleeper 轮询等待。返回错误表示等待被取消
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper 基于计时器的等待，遵守 ctx 取消
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollState 单次状态检查的结果
type PollState string

const (
	PollStatePending   PollState = "pending"
	PollStateTransient PollState = "transient"
	PollStateSucceeded PollState = "succeeded"
	PollStateFailed    PollState = "failed"
)

// PollEvent 每次状态检查后上报给观察者
type PollEvent struct {
	ModelID     string
	TaskID      string
	Attempt     int
	MaxAttempts int
	State       PollState
	Status      string
}

// PollObserver 接收轮询进度
type PollObserver func(PollEvent)

type pollObserverKey struct{}

// WithPollObserver 把观察者放进 ctx，由发起异步任务的服务使用
func WithPollObserver(ctx context.Context, observer PollObserver) context.Context {
	return context.WithValue(ctx, pollObserverKey{}, observer)
}

func pollObserverFrom(ctx context.Context) PollObserver {
	observer, _ := ctx.Value(pollObserverKey{}).(PollObserver)
	return observer
}

var (
	successStatuses = map[string]struct{}{"succeeded": {}, "completed": {}, "done": {}, "success": {}}
	failureStatuses = map[string]struct{}{"failed": {}, "error": {}}
)

// Poll 轮询状态端点直到成功、明确失败或次数耗尽。
// 单次请求失败（传输错误、非 2xx、无法解析）一律视为暂时性错误继续等待
func (g *Gateway) Poll(ctx context.Context, initial any, cfg ModelConfig, credential string) (any, error) {
	status := cfg.statusEndpoint()
	if status == nil {
		return nil, apperrors.NewConfigurationError("", "no status endpoint defined")
	}

	rawID, _ := Extract(initial, cfg.generateEndpoint().outputPath(OutputID, defaultIDPath))
	if isFalsy(rawID) {
		return nil, apperrors.NewExtractionError("task id", "", "")
	}
	taskID := stringifyValue(rawID)

	url := strings.Replace(status.URL, "{{id}}", taskID, 1)
	headers := ExpandHeaders(status.Headers, credential)
	method := status.method(http.MethodGet)
	statusPath := status.outputPath(OutputStatus, defaultStatusPath)
	observer := pollObserverFrom(ctx)

	g.logger.Info("Polling generation task", map[string]interface{}{
		"model":        cfg.ID,
		"task_id":      taskID,
		"interval":     g.policy.Interval.String(),
		"max_attempts": g.policy.MaxAttempts,
	})

	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		if err := g.sleeper.Sleep(ctx, g.policy.Interval); err != nil {
			return nil, err
		}

		event := PollEvent{ModelID: cfg.ID, TaskID: taskID, Attempt: attempt, MaxAttempts: g.policy.MaxAttempts}

		resp, err := g.send(ctx, method, url, headers, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			g.reportPoll(observer, cfg, event, PollStateTransient, "")
			g.logger.Debug("Status check failed, retrying", map[string]interface{}{
				"task_id": taskID,
				"attempt": attempt,
				"error":   err.Error(),
			})
			continue
		}

		parsed, err := decodeJSON(resp.Bytes())
		if err != nil {
			g.reportPoll(observer, cfg, event, PollStateTransient, "")
			continue
		}

		rawStatus, _ := Extract(parsed, statusPath)
		statusText := ""
		if rawStatus != nil {
			statusText = stringifyValue(rawStatus)
		}
		normalized := strings.ToLower(strings.TrimSpace(statusText))

		if _, ok := successStatuses[normalized]; ok {
			g.reportPoll(observer, cfg, event, PollStateSucceeded, statusText)
			return parsed, nil
		}
		if _, ok := failureStatuses[normalized]; ok {
			g.reportPoll(observer, cfg, event, PollStateFailed, statusText)
			return nil, apperrors.NewGenerationFailedError(statusText)
		}
		g.reportPoll(observer, cfg, event, PollStatePending, statusText)
	}

	g.logger.Warn("Polling budget exhausted", map[string]interface{}{
		"model":    cfg.ID,
		"task_id":  taskID,
		"attempts": g.policy.MaxAttempts,
	})
	return nil, apperrors.NewTimeoutError(g.policy.MaxAttempts)
}

func (g *Gateway) reportPoll(observer PollObserver, cfg ModelConfig, event PollEvent, state PollState, status string) {
	event.State = state
	event.Status = status
	utils.PollAttemptsTotal.WithLabelValues(cfg.Provider, string(state)).Inc()
	if observer != nil {
		observer(event)
	}
}

// String 便于日志输出
func (e PollEvent) String() string {
	return fmt.Sprintf("%s attempt %d/%d: %s", e.TaskID, e.Attempt, e.MaxAttempts, e.State)
}
