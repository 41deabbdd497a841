package app

import (
	"context"
	"fmt"
	"sync"

	hydraerrors "hydra/internal/errors"
	"hydra/internal/solver/ports"
)

// agentState is one agent's slot in the task. Only the owning worker mutates
// it; the mutex exists so snapshot readers never observe a torn write.
type agentState struct {
	id int
	rt *taskRuntime

	mu           sync.Mutex
	status       ports.AgentStatus
	currentStep  string
	iteration    int
	correctCount int
	errorCount   int
	solution     *string
}

func newAgentState(id int, rt *taskRuntime) *agentState {
	return &agentState{id: id, rt: rt, status: ports.AgentStatusPending}
}

func (a *agentState) snapshot() ports.AgentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := ports.AgentSnapshot{
		ID:           a.id,
		Status:       a.status,
		CurrentStep:  a.currentStep,
		Iteration:    a.iteration,
		CorrectCount: a.correctCount,
		ErrorCount:   a.errorCount,
	}
	if a.solution != nil {
		solution := *a.solution
		snap.Solution = &solution
	}
	return snap
}

// apply runs a mutation under the lock and then publishes the agent_update
// event. The worker goroutine is the only caller, so per-agent events reach
// the broadcaster in mutation order.
func (a *agentState) apply(mutate func()) {
	a.mu.Lock()
	mutate()
	a.mu.Unlock()
	a.publishUpdate()
}

func (a *agentState) publishUpdate() {
	snap := a.snapshot()
	a.rt.broadcaster.Publish(&ports.AgentUpdateEvent{
		BaseEvent:    ports.NewBaseEvent(a.rt.id),
		AgentID:      snap.ID,
		Status:       snap.Status,
		CurrentStep:  snap.CurrentStep,
		Iteration:    snap.Iteration,
		CorrectCount: snap.CorrectCount,
		ErrorCount:   snap.ErrorCount,
		Solution:     snap.Solution,
	})
}

func (a *agentState) log(level ports.LogLevel, format string, args ...any) {
	agentID := a.id
	a.rt.broadcaster.Publish(&ports.LogEvent{
		BaseEvent: ports.NewBaseEvent(a.rt.id),
		AgentID:   &agentID,
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (a *agentState) setStatus(status ports.AgentStatus, step string) {
	a.apply(func() {
		a.status = status
		a.currentStep = step
	})
}

func (a *agentState) iterationCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.iteration
}

// recordAdapterError is invoked per failed adapter call, including the
// retried ones, so observers see the error counter move.
func (a *agentState) recordAdapterError(err error) {
	a.apply(func() { a.errorCount++ })
	a.log(ports.LogLevelWarning, "adapter call failed: %v", err)
}

func (a *agentState) recordCorrect() {
	a.apply(func() { a.correctCount++ })
}

func (a *agentState) recordVerificationFailure() {
	a.apply(func() { a.errorCount++ })
}

func (a *agentState) bumpIteration() {
	a.apply(func() { a.iteration++ })
}

func (a *agentState) succeed(solution string) {
	a.apply(func() {
		a.status = ports.AgentStatusSuccess
		a.currentStep = "solution verified"
		a.solution = &solution
	})
	a.log(ports.LogLevelSuccess, "found a verified solution on iteration %d", a.iterationCount()+1)
}

func (a *agentState) fail(step string) {
	a.apply(func() {
		if a.status.Terminal() {
			return
		}
		a.status = ports.AgentStatusFailed
		a.currentStep = step
	})
}

func (a *agentState) failCancelled() {
	a.fail("cancelled")
	a.log(ports.LogLevelWarning, "cancelled")
}

func (a *agentState) failTransient(err error) {
	a.fail("adapter failure")
	a.log(ports.LogLevelError, "transient adapter failure, retries exhausted: %v", err)
}

func (a *agentState) failExhausted() {
	a.fail("max iterations reached")
	a.log(ports.LogLevelError, "no solution after %d iterations", a.iterationCount())
}

// runAgent drives one agent's attempt/verify loop to success, failure, or
// cancellation.
func (r *taskRuntime) runAgent(a *agentState) {
	defer r.wg.Done()
	defer r.onAgentTerminal()

	var feedback []string
	var previous string

	for a.iterationCount() < r.config.MaxIterations {
		// Cooperative cancellation: checked at the top of every iteration
		// and around each adapter call.
		if r.ctx.Err() != nil {
			a.failCancelled()
			return
		}

		attemptNo := a.iterationCount() + 1
		a.setStatus(ports.AgentStatusRunning, fmt.Sprintf("generating attempt %d", attemptNo))
		a.log(ports.LogLevelInfo, "starting attempt %d/%d", attemptNo, r.config.MaxIterations)

		candidate, err := r.attempt(a, feedback, previous)
		if err != nil {
			if r.ctx.Err() != nil {
				a.failCancelled()
			} else {
				a.failTransient(err)
			}
			return
		}

		if r.ctx.Err() != nil {
			a.failCancelled()
			return
		}
		previous = candidate.Text

		a.setStatus(ports.AgentStatusVerifying, fmt.Sprintf("verifying attempt %d", attemptNo))

		verdict, err := r.verify(a, candidate.Text)
		if err != nil {
			if r.ctx.Err() != nil {
				a.failCancelled()
			} else {
				a.failTransient(err)
			}
			return
		}

		if r.ctx.Err() != nil {
			a.failCancelled()
			return
		}

		if verdict.Pass {
			a.recordCorrect()
			if verdict.Complete {
				if r.claimSuccess(a.id, candidate.Text) {
					a.succeed(candidate.Text)
					r.announceSuccess(a.id, candidate.Text)
				} else {
					// Another terminal outcome reached the decision point
					// first; this agent's result is discarded.
					a.failCancelled()
				}
				return
			}
			a.log(ports.LogLevelInfo, "verification passed but solution is not yet complete")
		} else {
			a.recordVerificationFailure()
			a.log(ports.LogLevelWarning, "verification failed on attempt %d", attemptNo)
		}
		if verdict.Feedback != "" {
			feedback = append(feedback, verdict.Feedback)
		}

		a.setStatus(ports.AgentStatusRunning, "reviewing verifier feedback")
		a.bumpIteration()
	}

	a.failExhausted()
}

// attempt calls the adapter with bounded backoff. Each failed call increments
// the agent's error counter before the retry fires.
func (r *taskRuntime) attempt(a *agentState, feedback []string, previous string) (*ports.Candidate, error) {
	req := ports.AttemptRequest{
		AgentID:             a.id,
		Model:               r.config.Model,
		Problem:             r.problem,
		InstructionVariants: r.config.InstructionVariants,
		Feedback:            feedback,
		Previous:            previous,
		Iteration:           a.iterationCount(),
	}

	return hydraerrors.RetryWithResultAndLog(r.ctx, r.retry, func(ctx context.Context) (*ports.Candidate, error) {
		if err := r.acquireAdapterSlot(ctx); err != nil {
			return nil, err
		}
		defer r.releaseAdapterSlot()

		candidate, err := r.adapter.Attempt(ctx, req)
		if err != nil {
			r.metrics.AdapterCalls.WithLabelValues("attempt", "error").Inc()
			if ctx.Err() == nil {
				a.recordAdapterError(err)
			}
			return nil, err
		}
		r.metrics.AdapterCalls.WithLabelValues("attempt", "ok").Inc()
		return candidate, nil
	}, r.logger)
}

func (r *taskRuntime) verify(a *agentState, candidate string) (*ports.Verdict, error) {
	req := ports.VerifyRequest{AgentID: a.id, Model: r.config.Model, Problem: r.problem, Candidate: candidate}

	return hydraerrors.RetryWithResultAndLog(r.ctx, r.retry, func(ctx context.Context) (*ports.Verdict, error) {
		if err := r.acquireAdapterSlot(ctx); err != nil {
			return nil, err
		}
		defer r.releaseAdapterSlot()

		verdict, err := r.adapter.Verify(ctx, req)
		if err != nil {
			r.metrics.AdapterCalls.WithLabelValues("verify", "error").Inc()
			if ctx.Err() == nil {
				a.recordAdapterError(err)
			}
			return nil, err
		}
		r.metrics.AdapterCalls.WithLabelValues("verify", "ok").Inc()
		return verdict, nil
	}, r.logger)
}

// acquireAdapterSlot enforces the process-wide cap on in-flight adapter
// calls. A nil semaphore disables the cap.
func (r *taskRuntime) acquireAdapterSlot(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}
	return r.sem.Acquire(ctx, 1)
}

func (r *taskRuntime) releaseAdapterSlot() {
	if r.sem != nil {
		r.sem.Release(1)
	}
}
