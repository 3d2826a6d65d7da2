// internal/api/websocket.go
package api

import (
	"net/http"
	"time"

	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/services"
	"github.com/Corphon/ScriptStudio/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TaskMessage 推送给客户端的消息
type TaskMessage struct {
	Type      string                   `json:"type"` // progress, heartbeat, error
	Update    *services.ProgressUpdate `json:"update,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Timestamp int64                    `json:"timestamp"`
}

// TaskWebSocket 推送任务进度，任务结束后关闭连接
func (h *Handler) TaskWebSocket(c *gin.Context) {
	logger := utils.GetLogger()
	taskID := c.Param("taskID")

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		h.Response.NotFound(c, ErrorTaskNotFound, "task not found: "+taskID)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"task_id": taskID,
			"error":   err.Error(),
		})
		return
	}
	defer conn.Close()

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	// 读循环只处理 pong 与关闭
	clientGone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeTaskMessage(conn, TaskMessage{Type: "progress", Update: &update}); err != nil {
				return
			}
			if update.Status != models.TaskStatusRunning {
				closeTaskStream(conn, update.Status)
				return
			}

		case <-tracker.Done:
			// 结束状态以 tracker 为准，不依赖订阅通道是否送达
			final := tracker.Current()
			if err := writeTaskMessage(conn, TaskMessage{Type: "progress", Update: &final}); err != nil {
				return
			}
			closeTaskStream(conn, final.Status)
			return

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if err := writeTaskMessage(conn, TaskMessage{Type: "heartbeat"}); err != nil {
				return
			}
		}
	}
}

func closeTaskStream(conn *websocket.Conn, status string) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, status))
}

func writeTaskMessage(conn *websocket.Conn, msg TaskMessage) error {
	msg.Timestamp = time.Now().Unix()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
