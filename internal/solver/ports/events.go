package ports

import "time"

// LogLevel classifies log events in the task stream.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// TaskEvent is an event in a task's ordered progress stream.
type TaskEvent interface {
	EventType() string
	GetTaskID() string
	Timestamp() time.Time
}

// EventListener consumes task events (used by the broadcaster and tests).
type EventListener interface {
	OnEvent(event TaskEvent)
}

// BaseEvent carries the fields shared by all task events.
type BaseEvent struct {
	TaskID    string    `json:"task_id"`
	EmittedAt time.Time `json:"timestamp"`
}

func (e BaseEvent) GetTaskID() string    { return e.TaskID }
func (e BaseEvent) Timestamp() time.Time { return e.EmittedAt }

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent(taskID string) BaseEvent {
	return BaseEvent{TaskID: taskID, EmittedAt: time.Now()}
}

// AgentUpdateEvent reports an agent state transition.
type AgentUpdateEvent struct {
	BaseEvent
	AgentID      int         `json:"agent_id"`
	Status       AgentStatus `json:"status"`
	CurrentStep  string      `json:"current_step"`
	Iteration    int         `json:"iteration"`
	CorrectCount int         `json:"correct_count"`
	ErrorCount   int         `json:"error_count"`
	Solution     *string     `json:"solution,omitempty"`
}

func (e *AgentUpdateEvent) EventType() string { return "agent_update" }

// LogEvent is an append-only log line in the task stream. AgentID is nil for
// task-level entries.
type LogEvent struct {
	BaseEvent
	AgentID *int     `json:"agent_id,omitempty"`
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

func (e *LogEvent) EventType() string { return "log" }

// SolutionFoundEvent announces the winning agent's solution.
type SolutionFoundEvent struct {
	BaseEvent
	AgentID  int    `json:"agent_id"`
	Solution string `json:"solution"`
}

func (e *SolutionFoundEvent) EventType() string { return "solution_found" }

// TaskCompleteEvent closes a task's event stream.
type TaskCompleteEvent struct {
	BaseEvent
	Status          TaskStatus `json:"status"`
	SolutionFound   bool       `json:"solution_found"`
	SolutionAgentID *int       `json:"solution_agent_id,omitempty"`
}

func (e *TaskCompleteEvent) EventType() string { return "task_complete" }
