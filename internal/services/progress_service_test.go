package services

import (
	"testing"
	"time"

	"github.com/Corphon/ScriptStudio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTrackerLifecycle(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("t1", "visual")
	assert.Same(t, tracker, svc.CreateTracker("t1", "visual"))

	sub := tracker.Subscribe()
	initial := <-sub
	assert.Equal(t, models.TaskStatusRunning, initial.Status)

	tracker.UpdateProgress(40, "polling 24/60")
	tracker.UpdateProgress(10, "")
	update := <-sub
	assert.Equal(t, 40, update.Progress)
	<-sub

	snap := tracker.Snapshot()
	assert.Equal(t, 40, snap.Progress)
	assert.Equal(t, "polling 24/60", snap.Message)

	tracker.Complete("done", map[string]string{"image": "QUJD"})
	final := <-sub
	assert.Equal(t, models.TaskStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)

	select {
	case <-tracker.Done:
	default:
		t.Fatal("Done 通道应已关闭")
	}

	// 结束后的调用不再生效，也不会重复关闭通道
	tracker.Fail("late")
	tracker.UpdateProgress(50, "late")
	assert.Equal(t, models.TaskStatusCompleted, tracker.Snapshot().Status)

	tracker.Unsubscribe(sub)
	tracker.Unsubscribe(sub)
}

func TestProgressTrackerFail(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("t2", "visual")
	tracker.Fail("generation failed with status: failed")

	snap := tracker.Snapshot()
	assert.Equal(t, models.TaskStatusFailed, snap.Status)
	assert.Equal(t, "generation failed with status: failed", snap.Error)
}

func TestCleanupCompletedTasks(t *testing.T) {
	svc := NewProgressService()
	done := svc.CreateTracker("done", "visual")
	done.Complete("", nil)
	svc.CreateTracker("running", "visual")

	assert.Equal(t, 0, svc.CleanupCompletedTasks(time.Hour))
	assert.Equal(t, 1, svc.CleanupCompletedTasks(-time.Second))

	_, ok := svc.GetTracker("done")
	assert.False(t, ok)
	_, ok = svc.GetTracker("running")
	require.True(t, ok)
}

func TestTerminalUpdateReachesFullSubscriber(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("slow", "visual")
	sub := tracker.Subscribe()

	// 订阅者不读取，缓冲区被中间进度占满
	for i := 1; i <= 12; i++ {
		tracker.UpdateProgress(i*5, "polling")
	}
	tracker.Complete("storyboard frame ready", "QUJD")

	var last ProgressUpdate
	for len(sub) > 0 {
		last = <-sub
	}
	assert.Equal(t, models.TaskStatusCompleted, last.Status)
	assert.Equal(t, "QUJD", last.Result)
	assert.Equal(t, models.TaskStatusCompleted, tracker.Current().Status)
}

func TestFailedUpdateReachesFullSubscriber(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("slow-fail", "visual")
	sub := tracker.Subscribe()

	for i := 1; i <= 12; i++ {
		tracker.UpdateProgress(i*5, "")
	}
	tracker.Fail("provider returned status 500")

	var last ProgressUpdate
	for len(sub) > 0 {
		last = <-sub
	}
	assert.Equal(t, models.TaskStatusFailed, last.Status)
	assert.Equal(t, "provider returned status 500", last.Error)
}
