package services

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instantSleeper struct{}

func (instantSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

type staticResolver struct {
	cfg gateway.ModelConfig
}

func (r staticResolver) Resolve(ctx context.Context, id, family string) (gateway.ModelConfig, error) {
	return r.cfg, nil
}

// newAsyncImageServer 前两次状态检查返回 processing，第三次返回 finalStatus。
// 关闭 release 之前状态检查一直阻塞
func newAsyncImageServer(t *testing.T, finalStatus string, release <-chan struct{}) *httptest.Server {
	t.Helper()
	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n0000"))
	var checks int32

	mux := http.NewServeMux()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer r8-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"job-7","status":"starting"}`))
	})
	mux.HandleFunc("/predictions/job-7", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&checks, 1) < 3 {
			_, _ = w.Write([]byte(`{"status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"` + finalStatus + `","output":["data:image/png;base64,` + png + `"]}`))
	})
	return httptest.NewServer(mux)
}

func asyncImageModel(baseURL string) gateway.ModelConfig {
	return gateway.ModelConfig{
		ID:       "flux-test",
		Name:     "Flux Test",
		Provider: "replicate",
		Family:   gateway.FamilyImage,
		Endpoints: &gateway.Endpoints{
			Generate: &gateway.EndpointDefinition{
				URL:          baseURL + "/predictions",
				Method:       http.MethodPost,
				Headers:      map[string]string{"Authorization": "Bearer {{key}}"},
				ParamMapping: gateway.NewTemplate(map[string]any{"input": map[string]any{"prompt": "{{prompt}}"}}),
			},
			Status: &gateway.EndpointDefinition{
				URL:           baseURL + "/predictions/{{id}}",
				Headers:       map[string]string{"Authorization": "Bearer {{key}}"},
				OutputMapping: map[string]string{"status": "status", "image": "output[0]"},
			},
		},
	}
}

func newTestTaskService(t *testing.T, baseURL string) (*TaskService, *ProgressService) {
	t.Helper()
	gw := gateway.New(
		gateway.StaticCredentials{gateway.CredentialKey("replicate"): "r8-token"},
		gateway.WithSleeper(instantSleeper{}),
		gateway.WithPollPolicy(gateway.PollPolicy{Interval: 2 * time.Second, MaxAttempts: 5}),
	)
	t.Cleanup(func() { _ = gw.Close() })

	progress := NewProgressService()
	screenplay := NewScreenplayService(gw, staticResolver{cfg: asyncImageModel(baseURL)})
	return NewTaskService(screenplay, progress), progress
}

func waitForTask(t *testing.T, progress *ProgressService, taskID string) models.TaskSnapshot {
	t.Helper()
	tracker, ok := progress.GetTracker(taskID)
	require.True(t, ok)

	select {
	case <-tracker.Done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish")
	}
	return tracker.Snapshot()
}

func TestTaskServiceStoryboardFrameCompletes(t *testing.T) {
	release := make(chan struct{})
	server := newAsyncImageServer(t, "succeeded", release)
	defer server.Close()

	svc, progress := newTestTaskService(t, server.URL)

	// 请求上下文取消不影响后台任务
	ctx, cancel := context.WithCancel(context.Background())
	taskID, err := svc.StartStoryboardFrame(ctx, StoryboardRequest{Brief: sampleBrief()})
	require.NoError(t, err)
	cancel()

	tracker, ok := progress.GetTracker(taskID)
	require.True(t, ok)
	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)
	close(release)

	snapshot := waitForTask(t, progress, taskID)
	assert.Equal(t, models.TaskStatusCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)
	assert.Equal(t, TaskKindStoryboard, snapshot.Kind)

	frame, ok := snapshot.Result.(*models.StoryboardFrame)
	require.True(t, ok)
	assert.Equal(t, "flux-test", frame.ModelID)
	assert.Equal(t, "image/png", frame.MIMEType)
	assert.NotEmpty(t, frame.ImageBase64)

	var sawPolling bool
	for update := range drain(updates) {
		if update.Status == models.TaskStatusRunning && update.Progress > 5 {
			sawPolling = true
		}
	}
	assert.True(t, sawPolling)

	fetched, err := svc.Get(taskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, fetched.Status)
}

func TestTaskServiceStoryboardFrameFails(t *testing.T) {
	release := make(chan struct{})
	close(release)
	server := newAsyncImageServer(t, "failed", release)
	defer server.Close()

	svc, progress := newTestTaskService(t, server.URL)
	taskID, err := svc.StartStoryboardFrame(context.Background(), StoryboardRequest{Brief: sampleBrief()})
	require.NoError(t, err)

	snapshot := waitForTask(t, progress, taskID)
	assert.Equal(t, models.TaskStatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.Error, "failed")
	assert.Nil(t, snapshot.Result)
}

func TestTaskServiceRejectsBadRequestSynchronously(t *testing.T) {
	svc, _ := newTestTaskService(t, "http://127.0.0.1:0")

	_, err := svc.StartStoryboardFrame(context.Background(), StoryboardRequest{Brief: sampleBrief(), SceneIndex: 3})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.Get("unknown")
	assert.True(t, apperrors.IsNotFoundError(err))
}

// drain 返回缓冲区中已有的更新
func drain(ch chan ProgressUpdate) chan ProgressUpdate {
	out := make(chan ProgressUpdate, cap(ch))
	for {
		select {
		case update := <-ch:
			out <- update
		default:
			close(out)
			return out
		}
	}
}
