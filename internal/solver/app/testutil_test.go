package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	hydraerrors "hydra/internal/errors"
	"hydra/internal/solver/ports"
)

// scriptedAdapter lets tests script attempt/verify behavior per call. Nil
// functions fall back to a candidate that never verifies.
type scriptedAdapter struct {
	attemptFn func(ctx context.Context, req ports.AttemptRequest) (*ports.Candidate, error)
	verifyFn  func(ctx context.Context, req ports.VerifyRequest) (*ports.Verdict, error)
}

func (s *scriptedAdapter) Attempt(ctx context.Context, req ports.AttemptRequest) (*ports.Candidate, error) {
	if s.attemptFn != nil {
		return s.attemptFn(ctx, req)
	}
	return &ports.Candidate{Text: "candidate"}, nil
}

func (s *scriptedAdapter) Verify(ctx context.Context, req ports.VerifyRequest) (*ports.Verdict, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, req)
	}
	return &ports.Verdict{Pass: false, Feedback: "incorrect"}, nil
}

// blockingAdapter parks every call until the task context is cancelled.
func blockingAdapter() *scriptedAdapter {
	return &scriptedAdapter{
		attemptFn: func(ctx context.Context, req ports.AttemptRequest) (*ports.Candidate, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

func fastRetry() hydraerrors.RetryConfig {
	return hydraerrors.RetryConfig{
		MaxAttempts:  1,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0,
	}
}

func newTestRegistry(adapter ports.ReasoningAdapter) (*Registry, *EventBroadcaster, *Metrics) {
	metrics := NewMetrics(nil)
	broadcaster := NewEventBroadcaster(metrics)
	registry := NewRegistry(adapter, broadcaster, metrics, RegistryConfig{
		RetainedTasks: 16,
		Retry:         fastRetry(),
	})
	return registry, broadcaster, metrics
}

// waitForSettled blocks until the task reaches the wanted terminal status and
// every agent has settled.
func waitForSettled(t *testing.T, g *Registry, taskID string, want ports.TaskStatus) *ports.Task {
	t.Helper()

	var task *ports.Task
	require.Eventually(t, func() bool {
		snapshot, err := g.GetTask(taskID)
		if err != nil || snapshot.Status != want {
			return false
		}
		for _, agent := range snapshot.Agents {
			if !agent.Status.Terminal() {
				return false
			}
		}
		task = snapshot
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return task
}
