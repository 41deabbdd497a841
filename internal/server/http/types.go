package http

import (
	"time"

	"hydra/internal/llm"
)

// APIResponse is the envelope for all JSON endpoints.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SolveRequest starts a new solve task.
type SolveRequest struct {
	ProblemStatement string   `json:"problem_statement"`
	NumAgents        int      `json:"num_agents"`
	Model            string   `json:"model"`
	OtherPrompts     []string `json:"other_prompts,omitempty"`
	MaxIterations    int      `json:"max_iterations,omitempty"`
	// Timeout is in seconds; 0 leaves the task unbounded.
	Timeout int `json:"timeout,omitempty"`
}

// SolveResponse acknowledges task creation.
type SolveResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// SolutionResponse reports the winning solution, if any.
type SolutionResponse struct {
	SolutionFound   bool     `json:"solution_found"`
	SolutionAgentID *int     `json:"solution_agent_id,omitempty"`
	Solution        *string  `json:"solution,omitempty"`
	ExecutionTime   *float64 `json:"execution_time,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// ModelListResponse wraps the selectable model catalog.
type ModelListResponse struct {
	Models []llm.ModelInfo `json:"models"`
}

// TaskListResponse wraps the task listing.
type TaskListResponse struct {
	Tasks any `json:"tasks"`
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}
