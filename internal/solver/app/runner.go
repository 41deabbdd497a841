package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	hydraerrors "hydra/internal/errors"
	"hydra/internal/logging"
	"hydra/internal/solver/ports"
)

// taskRuntime owns the mutable state of one running task.
//
// All terminal-outcome decisions (first success, all failed, timeout, cancel)
// funnel through mu so "is this task still open for a terminal outcome" is
// answered atomically. Agent state lives in agentState slots that only the
// owning worker mutates.
type taskRuntime struct {
	id      string
	problem string
	config  ports.TaskConfig

	mu             sync.Mutex
	status         ports.TaskStatus
	solution       *string
	solutionAgent  *int
	createdAt      time.Time
	startedAt      *time.Time
	completedAt    *time.Time
	terminalAgents int

	agents []*agentState

	// ctx carries the shared cooperative cancellation signal for all workers.
	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer

	wg sync.WaitGroup

	adapter     ports.ReasoningAdapter
	broadcaster *EventBroadcaster
	sem         *semaphore.Weighted
	retry       hydraerrors.RetryConfig
	metrics     *Metrics
	logger      logging.Logger
}

func newTaskRuntime(id, problem string, config ports.TaskConfig, adapter ports.ReasoningAdapter,
	broadcaster *EventBroadcaster, sem *semaphore.Weighted, retry hydraerrors.RetryConfig,
	metrics *Metrics, logger logging.Logger) *taskRuntime {

	ctx, cancel := context.WithCancel(context.Background())

	rt := &taskRuntime{
		id:          id,
		problem:     problem,
		config:      config,
		status:      ports.TaskStatusPending,
		createdAt:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		adapter:     adapter,
		broadcaster: broadcaster,
		sem:         sem,
		retry:       retry,
		metrics:     metrics,
		logger:      logger,
	}

	rt.agents = make([]*agentState, config.AgentCount)
	for i := range rt.agents {
		rt.agents[i] = newAgentState(i, rt)
	}

	return rt
}

// start transitions the task to running, arms the deadline, and spawns one
// worker per agent.
func (r *taskRuntime) start() {
	now := time.Now()

	r.mu.Lock()
	r.status = ports.TaskStatusRunning
	r.startedAt = &now
	if r.config.Timeout > 0 {
		// Deadline is measured from startedAt; expiry funnels through the
		// same decision point as explicit cancellation.
		r.timer = time.AfterFunc(r.config.Timeout, r.onTimeout)
	}
	r.mu.Unlock()

	r.logTask(ports.LogLevelInfo, "task started with %d agents (model %s, max %d iterations)",
		r.config.AgentCount, r.config.Model, r.config.MaxIterations)

	for _, agent := range r.agents {
		r.wg.Add(1)
		r.metrics.AgentsSpawned.Inc()
		go r.runAgent(agent)
	}
}

// claimSuccess records the first winning agent. It reports whether the task
// was still open; a false return means another terminal outcome was processed
// first and the caller must treat itself as cancelled.
func (r *taskRuntime) claimSuccess(agentID int, solution string) bool {
	now := time.Now()

	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return false
	}
	r.status = ports.TaskStatusCompleted
	r.solution = &solution
	r.solutionAgent = &agentID
	r.completedAt = &now
	r.stopTimerLocked()
	r.mu.Unlock()

	// Stop further cost on the losing agents. Their eventual termination is
	// best-effort and does not block the completed transition.
	r.cancel()
	r.metrics.TasksFinished.WithLabelValues(string(ports.TaskStatusCompleted)).Inc()
	return true
}

// announceSuccess emits the winning events. Called by the winner after its
// own success update so subscribers see the agent transition first.
func (r *taskRuntime) announceSuccess(agentID int, solution string) {
	r.broadcaster.Publish(&ports.SolutionFoundEvent{
		BaseEvent: ports.NewBaseEvent(r.id),
		AgentID:   agentID,
		Solution:  solution,
	})
	r.logTask(ports.LogLevelSuccess, "agent %d found a solution", agentID)
	r.publishTaskComplete()
}

// onAgentTerminal is invoked exactly once per agent when its worker settles.
// When every agent has failed without a winner the task completes with a nil
// solution.
func (r *taskRuntime) onAgentTerminal() {
	now := time.Now()

	r.mu.Lock()
	r.terminalAgents++
	allDone := r.terminalAgents == len(r.agents)
	open := !r.status.Terminal()
	if allDone && open {
		r.status = ports.TaskStatusCompleted
		r.completedAt = &now
		r.stopTimerLocked()
	}
	r.mu.Unlock()

	if allDone && open {
		r.metrics.TasksFinished.WithLabelValues(string(ports.TaskStatusCompleted)).Inc()
		r.logTask(ports.LogLevelWarning, "all %d agents finished without a solution", len(r.agents))
		r.publishTaskComplete()
	}
}

// onTimeout fires when the configured wall-clock deadline elapses. A success
// or cancel processed first wins the race; the expired timer is then a no-op.
func (r *taskRuntime) onTimeout() {
	now := time.Now()

	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.status = ports.TaskStatusTimedOut
	r.completedAt = &now
	r.mu.Unlock()

	r.cancel()
	r.metrics.TasksFinished.WithLabelValues(string(ports.TaskStatusTimedOut)).Inc()
	r.logTask(ports.LogLevelError, "task timed out after %s", r.config.Timeout)
	r.publishTaskComplete()
}

// requestCancel handles caller-initiated cancellation. Idempotent: cancelling
// a terminal task is a no-op.
func (r *taskRuntime) requestCancel() {
	now := time.Now()

	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.status = ports.TaskStatusCancelled
	r.completedAt = &now
	r.stopTimerLocked()
	r.mu.Unlock()

	r.cancel()
	r.metrics.TasksFinished.WithLabelValues(string(ports.TaskStatusCancelled)).Inc()
	r.logTask(ports.LogLevelWarning, "task cancelled by caller")
	r.publishTaskComplete()
}

func (r *taskRuntime) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *taskRuntime) publishTaskComplete() {
	r.mu.Lock()
	status := r.status
	found := r.solution != nil
	agentID := r.solutionAgent
	r.mu.Unlock()

	r.broadcaster.Publish(&ports.TaskCompleteEvent{
		BaseEvent:       ports.NewBaseEvent(r.id),
		Status:          status,
		SolutionFound:   found,
		SolutionAgentID: agentID,
	})
}

// Snapshot produces an immutable view of the task and all its agents.
func (r *taskRuntime) Snapshot() *ports.Task {
	r.mu.Lock()
	task := &ports.Task{
		ID:          r.id,
		Problem:     r.problem,
		Config:      r.config,
		Status:      r.status,
		CreatedAt:   r.createdAt,
		StartedAt:   r.startedAt,
		CompletedAt: r.completedAt,
	}
	if r.solution != nil {
		solution := *r.solution
		task.Solution = &solution
	}
	if r.solutionAgent != nil {
		agentID := *r.solutionAgent
		task.SolutionAgentID = &agentID
	}
	r.mu.Unlock()

	task.Agents = make([]ports.AgentSnapshot, len(r.agents))
	for i, agent := range r.agents {
		task.Agents[i] = agent.snapshot()
	}
	return task
}

func (r *taskRuntime) logTask(level ports.LogLevel, format string, args ...any) {
	r.logger.Info("[task %s] "+format, append([]any{r.id}, args...)...)
	r.broadcaster.Publish(&ports.LogEvent{
		BaseEvent: ports.NewBaseEvent(r.id),
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	})
}
