package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hydra/internal/solver/app"
	"hydra/internal/solver/ports"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// handleTaskStream upgrades the connection, replays the task's event history,
// and then forwards live events until the client disconnects or the task's
// history is dropped.
func (s *Server) handleTaskStream(c *gin.Context) {
	taskID := c.Param("id")
	if _, err := s.registry.GetTask(taskID); err != nil {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: err.Error()})
		return
	}

	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed for task %s: %v", taskID, err)
		return
	}

	// Subscribe before snapshotting history so no event falls between the
	// two. Events caught by both are deduplicated by identity during the
	// live phase.
	sub := s.broadcaster.Subscribe(taskID)
	history := s.broadcaster.History(taskID)

	go s.streamEvents(conn, sub, history)
	go s.readLoop(conn)
}

func (s *Server) streamEvents(conn *websocket.Conn, sub *app.Subscription, history []ports.TaskEvent) {
	defer func() {
		s.broadcaster.Unsubscribe(sub)
		_ = conn.Close()
	}()

	replayed := make(map[ports.TaskEvent]struct{}, len(history))
	for _, event := range history {
		replayed[event] = struct{}{}
		if err := s.writeEvent(conn, event); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				// Task history was dropped; end the stream cleanly.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task removed"),
					time.Now().Add(wsWriteWait))
				return
			}
			if _, dup := replayed[event]; dup {
				delete(replayed, event)
				continue
			}
			if err := s.writeEvent(conn, event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeEvent marshals the event with its type tag into the wire envelope.
func (s *Server) writeEvent(conn *websocket.Conn, event ports.TaskEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	payload["type"] = event.EventType()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(payload)
}

// readLoop drains client frames so pong handling and close detection work.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
