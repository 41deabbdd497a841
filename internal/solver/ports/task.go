package ports

import (
	"errors"
	"fmt"
	"time"
)

// TaskStatus represents the state of a solve task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
	TaskStatusTimedOut  TaskStatus = "timed_out"
)

// Terminal reports whether the status is final. Terminal statuses are never left.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCancelled, TaskStatusTimedOut:
		return true
	default:
		return false
	}
}

// AgentStatus represents the state of a single solver agent
type AgentStatus string

const (
	AgentStatusPending   AgentStatus = "pending"
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusVerifying AgentStatus = "verifying"
	AgentStatusSuccess   AgentStatus = "success"
	AgentStatusFailed    AgentStatus = "failed"
)

// Terminal reports whether the agent has finished.
func (s AgentStatus) Terminal() bool {
	return s == AgentStatusSuccess || s == AgentStatusFailed
}

// Configuration bounds for task creation.
const (
	MinAgents            = 1
	MaxAgents            = 50
	DefaultMaxIterations = 30
	MinTimeout           = 60 * time.Second
)

// Sentinel errors surfaced to callers.
var (
	ErrInvalidConfig = errors.New("invalid task config")
	ErrTaskNotFound  = errors.New("task not found")
)

// TaskConfig is the immutable configuration snapshot captured at creation.
type TaskConfig struct {
	AgentCount          int           `json:"agent_count"`
	Model               string        `json:"model"`
	InstructionVariants []string      `json:"instruction_variants,omitempty"`
	MaxIterations       int           `json:"max_iterations"`
	Timeout             time.Duration `json:"timeout,omitempty"` // 0 = unbounded
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *TaskConfig) ApplyDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
}

// Validate checks the config against the creation-time bounds. All violations
// wrap ErrInvalidConfig so callers can classify with errors.Is.
func (c TaskConfig) Validate() error {
	if c.AgentCount < MinAgents || c.AgentCount > MaxAgents {
		return fmt.Errorf("%w: agent count must be between %d and %d, got %d",
			ErrInvalidConfig, MinAgents, MaxAgents, c.AgentCount)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be >= 1, got %d",
			ErrInvalidConfig, c.MaxIterations)
	}
	if c.Timeout != 0 && c.Timeout < MinTimeout {
		return fmt.Errorf("%w: timeout must be unset or >= %s, got %s",
			ErrInvalidConfig, MinTimeout, c.Timeout)
	}
	return nil
}

// Task is an immutable snapshot of a solve task.
type Task struct {
	ID              string          `json:"task_id"`
	Problem         string          `json:"problem_statement"`
	Config          TaskConfig      `json:"config"`
	Status          TaskStatus      `json:"status"`
	Agents          []AgentSnapshot `json:"agents"`
	Solution        *string         `json:"solution,omitempty"`
	SolutionAgentID *int            `json:"solution_agent_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// SolutionFound reports whether any agent recorded a solution.
func (t *Task) SolutionFound() bool {
	return t.Solution != nil
}

// AgentSnapshot is an immutable view of one agent's state.
type AgentSnapshot struct {
	ID           int         `json:"agent_id"`
	Status       AgentStatus `json:"status"`
	CurrentStep  string      `json:"current_step"`
	Iteration    int         `json:"iteration"`
	CorrectCount int         `json:"correct_count"`
	ErrorCount   int         `json:"error_count"`
	Solution     *string     `json:"solution,omitempty"`
}
