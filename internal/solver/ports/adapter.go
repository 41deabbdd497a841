package ports

import "context"

// AttemptRequest carries everything an adapter needs to produce a candidate.
type AttemptRequest struct {
	// AgentID identifies the calling worker so adapters can attribute calls
	// and diversify sampling across agents.
	AgentID int `json:"agent_id"`
	// Model is the reasoning model requested at task creation.
	Model               string   `json:"model"`
	Problem             string   `json:"problem_statement"`
	InstructionVariants []string `json:"instruction_variants,omitempty"`
	// Feedback accumulates verifier diagnostics from prior iterations so the
	// adapter can correct earlier mistakes.
	Feedback []string `json:"feedback,omitempty"`
	// Previous is the candidate the feedback refers to, empty on the first
	// iteration.
	Previous  string `json:"previous_candidate,omitempty"`
	Iteration int    `json:"iteration"`
}

// Candidate is an adapter-produced solution attempt.
type Candidate struct {
	Text string `json:"text"`
}

// VerifyRequest asks the adapter to judge a candidate against the problem.
type VerifyRequest struct {
	AgentID   int    `json:"agent_id"`
	Model     string `json:"model"`
	Problem   string `json:"problem_statement"`
	Candidate string `json:"candidate"`
}

// Verdict is the outcome of a verification call. Pass means no critical
// error was found; Complete means the verdict certifies a complete solution
// and the agent can stop.
type Verdict struct {
	Pass     bool   `json:"pass"`
	Complete bool   `json:"complete"`
	Feedback string `json:"feedback,omitempty"`
}

// ReasoningAdapter is the boundary to the external reasoning service.
//
// Implementations must be safe for concurrent use by many agent workers.
// Attempt and Verify are opaque to the orchestration core: it only cares
// about their side effects on agent state.
type ReasoningAdapter interface {
	Attempt(ctx context.Context, req AttemptRequest) (*Candidate, error)
	Verify(ctx context.Context, req VerifyRequest) (*Verdict, error)
}
