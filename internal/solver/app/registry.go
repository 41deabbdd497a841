package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	hydraerrors "hydra/internal/errors"
	"hydra/internal/logging"
	"hydra/internal/solver/ports"
)

// defaultRetainedTasks bounds how many terminal task snapshots survive after
// their runtimes are garbage-collected.
const defaultRetainedTasks = 256

// RegistryConfig tunes the process-wide orchestration policies.
type RegistryConfig struct {
	// MaxInflightAdapterCalls caps concurrent reasoning calls across all
	// tasks to respect upstream rate limits. 0 disables the cap.
	MaxInflightAdapterCalls int64
	// RetainedTasks is the capacity of the terminal-snapshot cache.
	RetainedTasks int
	// Retry governs per-adapter-call backoff inside workers.
	Retry hydraerrors.RetryConfig
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxInflightAdapterCalls: 0,
		RetainedTasks:           defaultRetainedTasks,
		Retry:                   hydraerrors.DefaultRetryConfig(),
	}
}

// Registry is the process-wide store of solve tasks. It is the only component
// that creates and removes tasks; everything else sees snapshots.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*taskRuntime

	// retained holds snapshots of terminal tasks whose runtimes have been
	// garbage-collected, so status/solution queries keep working.
	retained *lru.Cache[string, *ports.Task]

	adapter     ports.ReasoningAdapter
	broadcaster *EventBroadcaster
	sem         *semaphore.Weighted
	config      RegistryConfig
	metrics     *Metrics
	logger      logging.Logger
}

// NewRegistry creates a task registry. The registry is constructed once per
// process and passed by reference; there is no ambient singleton.
func NewRegistry(adapter ports.ReasoningAdapter, broadcaster *EventBroadcaster, metrics *Metrics, config RegistryConfig) *Registry {
	if config.RetainedTasks <= 0 {
		config.RetainedTasks = defaultRetainedTasks
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = hydraerrors.DefaultRetryConfig()
	}

	// lru.New only fails on a non-positive size.
	retained, _ := lru.New[string, *ports.Task](config.RetainedTasks)

	var sem *semaphore.Weighted
	if config.MaxInflightAdapterCalls > 0 {
		sem = semaphore.NewWeighted(config.MaxInflightAdapterCalls)
	}

	return &Registry{
		tasks:       make(map[string]*taskRuntime),
		retained:    retained,
		adapter:     adapter,
		broadcaster: broadcaster,
		sem:         sem,
		config:      config,
		metrics:     metrics,
		logger:      logging.NewComponentLogger("TaskRegistry"),
	}
}

// CreateTask validates the config, registers a new task, and spawns its agent
// workers. A validation failure never partially registers a task.
func (g *Registry) CreateTask(ctx context.Context, problem string, config ports.TaskConfig) (string, error) {
	if strings.TrimSpace(problem) == "" {
		return "", fmt.Errorf("%w: problem statement must not be empty", ports.ErrInvalidConfig)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return "", err
	}

	taskID := fmt.Sprintf("task-%s", uuid.New().String())
	rt := newTaskRuntime(taskID, problem, config, g.adapter, g.broadcaster,
		g.sem, g.config.Retry, g.metrics, g.logger)

	g.mu.Lock()
	g.tasks[taskID] = rt
	g.mu.Unlock()

	g.metrics.TasksCreated.Inc()
	g.logger.Info("Created task %s with %d agents using model %s", taskID, config.AgentCount, config.Model)

	rt.start()

	// Retire the runtime once every worker has settled; the snapshot stays
	// queryable through the retained cache.
	go func() {
		rt.wg.Wait()
		g.retire(rt)
	}()

	return taskID, nil
}

// GetTask returns an immutable snapshot of the task.
func (g *Registry) GetTask(taskID string) (*ports.Task, error) {
	g.mu.RLock()
	rt, ok := g.tasks[taskID]
	g.mu.RUnlock()

	if ok {
		return rt.Snapshot(), nil
	}

	if snapshot, ok := g.retained.Get(taskID); ok {
		return snapshot, nil
	}

	return nil, fmt.Errorf("%w: %s", ports.ErrTaskNotFound, taskID)
}

// ListTasks returns snapshots of all known tasks, newest first.
func (g *Registry) ListTasks() []*ports.Task {
	g.mu.RLock()
	snapshots := make([]*ports.Task, 0, len(g.tasks))
	for _, rt := range g.tasks {
		snapshots = append(snapshots, rt.Snapshot())
	}
	g.mu.RUnlock()

	seen := make(map[string]struct{}, len(snapshots))
	for _, task := range snapshots {
		seen[task.ID] = struct{}{}
	}
	for _, key := range g.retained.Keys() {
		if _, dup := seen[key]; dup {
			continue
		}
		if snapshot, ok := g.retained.Get(key); ok {
			snapshots = append(snapshots, snapshot)
		}
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots
}

// CancelTask requests cooperative cancellation. Idempotent; cancelling a
// terminal task is a no-op.
func (g *Registry) CancelTask(taskID string) error {
	g.mu.RLock()
	rt, ok := g.tasks[taskID]
	g.mu.RUnlock()

	if !ok {
		if _, retained := g.retained.Get(taskID); retained {
			// Already terminal and garbage-collected.
			return nil
		}
		return fmt.Errorf("%w: %s", ports.ErrTaskNotFound, taskID)
	}

	rt.requestCancel()
	return nil
}

// DeleteTask removes a task and its event history. Running tasks must be
// cancelled first.
func (g *Registry) DeleteTask(taskID string) error {
	g.mu.Lock()
	rt, live := g.tasks[taskID]
	if live {
		if !rt.Snapshot().Status.Terminal() {
			g.mu.Unlock()
			return fmt.Errorf("cannot delete running task %s", taskID)
		}
		delete(g.tasks, taskID)
	}
	g.mu.Unlock()

	retained := g.retained.Remove(taskID)
	if !live && !retained {
		return fmt.Errorf("%w: %s", ports.ErrTaskNotFound, taskID)
	}

	g.broadcaster.DropTask(taskID)
	g.logger.Info("Deleted task %s", taskID)
	return nil
}

// retire moves a settled runtime into the retained-snapshot cache.
func (g *Registry) retire(rt *taskRuntime) {
	snapshot := rt.Snapshot()

	g.mu.Lock()
	// DeleteTask may have raced us; only retain if the task is still ours.
	if _, ok := g.tasks[rt.id]; ok {
		delete(g.tasks, rt.id)
		g.retained.Add(rt.id, snapshot)
	}
	g.mu.Unlock()

	g.logger.Info("Retired task %s (status %s)", rt.id, snapshot.Status)
}
