package http

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, baseURL, taskID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(baseURL, "http") +
		fmt.Sprintf("/api/solver/task/%s/stream", taskID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStreamDeliversEventsUntilCompletion(t *testing.T) {
	_, ts := newTestServer(t, winningAdapter())

	taskID := startTask(t, ts, SolveRequest{
		ProblemStatement: "prove it",
		NumAgents:        2,
		Model:            "test-model",
		MaxIterations:    3,
	})

	conn := dialStream(t, ts.URL, taskID)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	seen := map[string]int{}
	for {
		var payload map[string]any
		require.NoError(t, conn.ReadJSON(&payload))

		eventType, _ := payload["type"].(string)
		require.NotEmpty(t, eventType, "every frame carries a type tag")
		require.Equal(t, taskID, payload["task_id"])
		seen[eventType]++

		if eventType == "task_complete" {
			break
		}
	}

	assert.Greater(t, seen["agent_update"], 0, "stream must include agent updates")
	assert.Equal(t, 1, seen["solution_found"])
	assert.Equal(t, 1, seen["task_complete"])
}

// A subscriber attaching after completion still sees the full history replay.
func TestStreamReplaysHistoryForLateSubscriber(t *testing.T) {
	_, ts := newTestServer(t, winningAdapter())

	taskID := startTask(t, ts, SolveRequest{
		ProblemStatement: "prove it",
		NumAgents:        1,
		Model:            "test-model",
		MaxIterations:    1,
	})
	waitForStatus(t, ts, taskID, "completed")

	conn := dialStream(t, ts.URL, taskID)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var sawSolution, sawComplete bool
	for !sawComplete {
		var payload map[string]any
		require.NoError(t, conn.ReadJSON(&payload))
		switch payload["type"] {
		case "solution_found":
			sawSolution = true
		case "task_complete":
			sawComplete = true
		}
	}
	assert.True(t, sawSolution)
}

func TestStreamUnknownTask(t *testing.T) {
	_, ts := newTestServer(t, winningAdapter())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/solver/task/task-missing/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
