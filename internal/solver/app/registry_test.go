package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hydraerrors "hydra/internal/errors"
	"hydra/internal/solver/ports"
)

func TestCreateTaskValidation(t *testing.T) {
	registry, _, _ := newTestRegistry(&scriptedAdapter{})

	tests := []struct {
		name    string
		problem string
		config  ports.TaskConfig
	}{
		{
			name:    "zero agents",
			problem: "prove it",
			config:  ports.TaskConfig{AgentCount: 0, Model: "m"},
		},
		{
			name:    "too many agents",
			problem: "prove it",
			config:  ports.TaskConfig{AgentCount: 51, Model: "m"},
		},
		{
			name:    "empty problem",
			problem: "   ",
			config:  ports.TaskConfig{AgentCount: 1, Model: "m"},
		},
		{
			name:    "timeout below minimum",
			problem: "prove it",
			config:  ports.TaskConfig{AgentCount: 1, Model: "m", Timeout: time.Second},
		},
		{
			name:    "negative max iterations",
			problem: "prove it",
			config:  ports.TaskConfig{AgentCount: 1, Model: "m", MaxIterations: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.CreateTask(context.Background(), tt.problem, tt.config)
			require.ErrorIs(t, err, ports.ErrInvalidConfig)
		})
	}

	// Nothing partially registered.
	assert.Empty(t, registry.ListTasks())
}

func TestCreateTaskAppliesDefaults(t *testing.T) {
	registry, _, _ := newTestRegistry(blockingAdapter())

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 2, Model: "m"})
	require.NoError(t, err)

	task, err := registry.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, ports.DefaultMaxIterations, task.Config.MaxIterations)
	assert.Len(t, task.Agents, 2)

	require.NoError(t, registry.CancelTask(taskID))
	waitForSettled(t, registry, taskID, ports.TaskStatusCancelled)
}

func TestAllAgentsFailCompletesWithoutSolution(t *testing.T) {
	registry, broadcaster, _ := newTestRegistry(&scriptedAdapter{})

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 3, Model: "m", MaxIterations: 1})
	require.NoError(t, err)

	task := waitForSettled(t, registry, taskID, ports.TaskStatusCompleted)
	assert.False(t, task.SolutionFound())
	assert.Nil(t, task.Solution)
	assert.Nil(t, task.SolutionAgentID)

	for _, agent := range task.Agents {
		assert.Equal(t, ports.AgentStatusFailed, agent.Status)
		assert.Equal(t, 1, agent.Iteration)
		assert.Equal(t, 1, agent.ErrorCount, "one verification failure per agent")
	}

	history := broadcaster.History(taskID)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	complete, ok := last.(*ports.TaskCompleteEvent)
	require.True(t, ok, "stream must end with task_complete, got %s", last.EventType())
	assert.False(t, complete.SolutionFound)
	assert.Equal(t, ports.TaskStatusCompleted, complete.Status)
}

func TestFirstVerifiedSolutionWins(t *testing.T) {
	const winner = 2

	adapter := &scriptedAdapter{
		verifyFn: func(ctx context.Context, req ports.VerifyRequest) (*ports.Verdict, error) {
			if req.AgentID == winner {
				return &ports.Verdict{Pass: true, Complete: true}, nil
			}
			return &ports.Verdict{Pass: false, Feedback: "gap in step 3"}, nil
		},
	}
	registry, broadcaster, _ := newTestRegistry(adapter)

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 5, Model: "m", MaxIterations: 100})
	require.NoError(t, err)

	task := waitForSettled(t, registry, taskID, ports.TaskStatusCompleted)
	require.True(t, task.SolutionFound())
	require.NotNil(t, task.SolutionAgentID)
	assert.Equal(t, winner, *task.SolutionAgentID)
	assert.Equal(t, "candidate", *task.Solution)

	for _, agent := range task.Agents {
		if agent.ID == winner {
			assert.Equal(t, ports.AgentStatusSuccess, agent.Status)
			require.NotNil(t, agent.Solution)
			assert.Equal(t, "candidate", *agent.Solution)
		} else {
			assert.Equal(t, ports.AgentStatusFailed, agent.Status)
			assert.Nil(t, agent.Solution)
		}
	}

	var found, complete int
	for _, event := range broadcaster.History(taskID) {
		switch e := event.(type) {
		case *ports.SolutionFoundEvent:
			found++
			assert.Equal(t, winner, e.AgentID)
		case *ports.TaskCompleteEvent:
			complete++
			assert.True(t, e.SolutionFound)
		}
	}
	assert.Equal(t, 1, found, "exactly one solution_found")
	assert.Equal(t, 1, complete, "exactly one task_complete")
}

func TestCancelTask(t *testing.T) {
	registry, _, _ := newTestRegistry(blockingAdapter())

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 4, Model: "m"})
	require.NoError(t, err)

	require.NoError(t, registry.CancelTask(taskID))
	task := waitForSettled(t, registry, taskID, ports.TaskStatusCancelled)
	assert.Nil(t, task.Solution)
	for _, agent := range task.Agents {
		assert.Equal(t, ports.AgentStatusFailed, agent.Status)
	}

	// Idempotent after the task is terminal.
	require.NoError(t, registry.CancelTask(taskID))
}

func TestCancelUnknownTask(t *testing.T) {
	registry, _, _ := newTestRegistry(&scriptedAdapter{})
	require.ErrorIs(t, registry.CancelTask("task-missing"), ports.ErrTaskNotFound)
}

func TestGetTaskNotFound(t *testing.T) {
	registry, _, _ := newTestRegistry(&scriptedAdapter{})
	_, err := registry.GetTask("task-missing")
	require.ErrorIs(t, err, ports.ErrTaskNotFound)
}

func TestTerminalTaskSurvivesRetirement(t *testing.T) {
	registry, _, _ := newTestRegistry(&scriptedAdapter{})

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 1, Model: "m", MaxIterations: 1})
	require.NoError(t, err)

	waitForSettled(t, registry, taskID, ports.TaskStatusCompleted)

	// The runtime is garbage-collected once all workers settle; the snapshot
	// stays queryable through the retained cache.
	require.Eventually(t, func() bool {
		registry.mu.RLock()
		_, live := registry.tasks[taskID]
		registry.mu.RUnlock()
		return !live
	}, 5*time.Second, 10*time.Millisecond)

	task, err := registry.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, ports.TaskStatusCompleted, task.Status)
	assert.Contains(t, taskIDs(registry.ListTasks()), taskID)
}

func TestDeleteTask(t *testing.T) {
	registry, broadcaster, _ := newTestRegistry(blockingAdapter())

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 1, Model: "m"})
	require.NoError(t, err)

	err = registry.DeleteTask(taskID)
	require.Error(t, err, "running tasks must be cancelled before deletion")

	require.NoError(t, registry.CancelTask(taskID))
	waitForSettled(t, registry, taskID, ports.TaskStatusCancelled)

	require.NoError(t, registry.DeleteTask(taskID))
	_, err = registry.GetTask(taskID)
	require.ErrorIs(t, err, ports.ErrTaskNotFound)
	assert.Nil(t, broadcaster.History(taskID))

	require.ErrorIs(t, registry.DeleteTask(taskID), ports.ErrTaskNotFound)
}

func TestListTasksNewestFirst(t *testing.T) {
	registry, _, _ := newTestRegistry(&scriptedAdapter{})

	var ids []string
	for i := 0; i < 3; i++ {
		taskID, err := registry.CreateTask(context.Background(), "prove it",
			ports.TaskConfig{AgentCount: 1, Model: "m", MaxIterations: 1})
		require.NoError(t, err)
		ids = append(ids, taskID)
		waitForSettled(t, registry, taskID, ports.TaskStatusCompleted)
	}

	listed := taskIDs(registry.ListTasks())
	require.Len(t, listed, 3)
	assert.Equal(t, ids[2], listed[0])
	assert.Equal(t, ids[0], listed[2])
}

func TestAdapterReceivesTaskModel(t *testing.T) {
	var attemptModel, verifyModel atomic.Value
	adapter := &scriptedAdapter{
		attemptFn: func(ctx context.Context, req ports.AttemptRequest) (*ports.Candidate, error) {
			attemptModel.Store(req.Model)
			return &ports.Candidate{Text: "candidate"}, nil
		},
		verifyFn: func(ctx context.Context, req ports.VerifyRequest) (*ports.Verdict, error) {
			verifyModel.Store(req.Model)
			return &ports.Verdict{Pass: true, Complete: true}, nil
		},
	}
	registry, _, _ := newTestRegistry(adapter)

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 1, Model: "openai/gpt-oss-20b:free", MaxIterations: 1})
	require.NoError(t, err)

	waitForSettled(t, registry, taskID, ports.TaskStatusCompleted)
	assert.Equal(t, "openai/gpt-oss-20b:free", attemptModel.Load())
	assert.Equal(t, "openai/gpt-oss-20b:free", verifyModel.Load())
}

func TestTransientFailuresExhaustRetries(t *testing.T) {
	var calls atomic.Int64
	adapter := &scriptedAdapter{
		attemptFn: func(ctx context.Context, req ports.AttemptRequest) (*ports.Candidate, error) {
			calls.Add(1)
			return nil, hydraerrors.NewTransientError(nil, "rate limited")
		},
	}
	registry, _, _ := newTestRegistry(adapter)

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 1, Model: "m", MaxIterations: 5})
	require.NoError(t, err)

	task := waitForSettled(t, registry, taskID, ports.TaskStatusCompleted)
	assert.False(t, task.SolutionFound())

	agent := task.Agents[0]
	assert.Equal(t, ports.AgentStatusFailed, agent.Status)
	// One initial call plus one retry, each counted on the agent.
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 2, agent.ErrorCount)
}

func TestCountersNeverReset(t *testing.T) {
	var verifies atomic.Int64
	adapter := &scriptedAdapter{
		verifyFn: func(ctx context.Context, req ports.VerifyRequest) (*ports.Verdict, error) {
			// Pass without completing twice, then fail, then finish.
			switch verifies.Add(1) {
			case 1, 2:
				return &ports.Verdict{Pass: true, Complete: false, Feedback: "tighten the bound"}, nil
			case 3:
				return &ports.Verdict{Pass: false, Feedback: "case n=2 is wrong"}, nil
			default:
				return &ports.Verdict{Pass: true, Complete: true}, nil
			}
		},
	}
	registry, _, _ := newTestRegistry(adapter)

	taskID, err := registry.CreateTask(context.Background(), "prove it",
		ports.TaskConfig{AgentCount: 1, Model: "m", MaxIterations: 10})
	require.NoError(t, err)

	task := waitForSettled(t, registry, taskID, ports.TaskStatusCompleted)
	require.True(t, task.SolutionFound())

	agent := task.Agents[0]
	assert.Equal(t, ports.AgentStatusSuccess, agent.Status)
	// Three passes stay counted even though a failure happened in between.
	assert.Equal(t, 3, agent.CorrectCount)
	assert.Equal(t, 1, agent.ErrorCount)
	assert.Equal(t, 3, agent.Iteration)
}

func taskIDs(tasks []*ports.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}
