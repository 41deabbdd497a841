package llm

import (
	"context"
	"fmt"
	"strings"

	"hydra/internal/logging"
	"hydra/internal/solver/ports"
)

const (
	detailedSolutionMarker    = "Detailed Solution"
	detailedVerificationMark  = "Detailed Verification"
	completenessProbeTemplate = `Is the following text claiming that the solution is complete?
==========================================================

%s

==========================================================

Response in exactly "yes" or "no". No other words.`
	correctnessProbeTemplate = `Response in "yes" or "no". Is the following statement saying the solution is correct, or does not contain critical error or a major justification gap?

%s`
)

// ChatCaller is the slice of Client the reasoning service needs.
type ChatCaller interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
	Model() string
}

// ReasoningService drives the generate/improve/verify prompt choreography on
// top of a chat completions client. It implements ports.ReasoningAdapter and
// is safe for concurrent use by many agent workers.
type ReasoningService struct {
	client ChatCaller
	logger logging.Logger
}

// NewReasoningService wraps a chat client in the adapter contract.
func NewReasoningService(client ChatCaller) *ReasoningService {
	return &ReasoningService{
		client: client,
		logger: logging.NewComponentLogger("ReasoningService"),
	}
}

// Attempt produces a candidate solution. The first iteration explores the
// problem and then self-improves the draft; later iterations revise the
// previous candidate against the verifier's bug report.
func (s *ReasoningService) Attempt(ctx context.Context, req ports.AttemptRequest) (*ports.Candidate, error) {
	if len(req.Feedback) == 0 || req.Previous == "" {
		return s.initialExploration(ctx, req)
	}
	return s.revise(ctx, req)
}

func (s *ReasoningService) initialExploration(ctx context.Context, req ports.AttemptRequest) (*ports.Candidate, error) {
	parts := append([]string{req.Problem}, req.InstructionVariants...)

	s.logger.Debug("Agent %d: initial exploration", req.AgentID)
	draft, err := s.client.Chat(ctx, ChatRequest{
		Model:    req.Model,
		System:   solverSystemPrompt,
		Messages: []Message{{Role: "user", Content: strings.Join(parts, "\n\n")}},
	})
	if err != nil {
		return nil, fmt.Errorf("initial exploration: %w", err)
	}

	s.logger.Debug("Agent %d: self-improvement pass", req.AgentID)
	improved, err := s.client.Chat(ctx, ChatRequest{
		Model:  req.Model,
		System: solverSystemPrompt,
		Messages: []Message{
			{Role: "assistant", Content: draft},
			{Role: "user", Content: selfImprovementPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("self-improvement: %w", err)
	}

	return &ports.Candidate{Text: improved}, nil
}

func (s *ReasoningService) revise(ctx context.Context, req ports.AttemptRequest) (*ports.Candidate, error) {
	bugReport := req.Feedback[len(req.Feedback)-1]

	s.logger.Debug("Agent %d: revising against bug report (iteration %d)", req.AgentID, req.Iteration)
	revised, err := s.client.Chat(ctx, ChatRequest{
		Model:  req.Model,
		System: solverSystemPrompt,
		Messages: []Message{
			{Role: "assistant", Content: req.Previous},
			{Role: "user", Content: correctionPrompt + "\n\n" + bugReport},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("revision: %w", err)
	}

	return &ports.Candidate{Text: revised}, nil
}

// Verify grades a candidate. It first probes whether the candidate claims
// completeness, then runs the grader over the detailed solution and distills
// its report into a yes/no verdict. A failed verdict carries the grader's bug
// report as feedback for the next attempt.
func (s *ReasoningService) Verify(ctx context.Context, req ports.VerifyRequest) (*ports.Verdict, error) {
	complete, err := s.checkCompleteness(ctx, req)
	if err != nil {
		return nil, err
	}
	if !complete {
		return &ports.Verdict{
			Pass:     false,
			Complete: false,
			Feedback: "The solution does not claim to be complete. Present a complete and rigorous solution.",
		}, nil
	}

	detailed := extractSection(req.Candidate, detailedSolutionMarker, true)
	if detailed == "" {
		detailed = req.Candidate
	}

	s.logger.Debug("Agent %d: grading candidate", req.AgentID)
	report, err := s.client.Chat(ctx, ChatRequest{
		Model:    req.Model,
		System:   verificationSystemPrompt,
		Messages: []Message{{Role: "user", Content: buildVerificationPrompt(req.Problem, detailed)}},
	})
	if err != nil {
		return nil, fmt.Errorf("verification: %w", err)
	}

	probe, err := s.client.Chat(ctx, ChatRequest{
		Model:    req.Model,
		Messages: []Message{{Role: "user", Content: fmt.Sprintf(correctnessProbeTemplate, report)}},
	})
	if err != nil {
		return nil, fmt.Errorf("verdict probe: %w", err)
	}

	if saysYes(probe) {
		return &ports.Verdict{Pass: true, Complete: true}, nil
	}

	feedback := extractSection(report, detailedVerificationMark, false)
	if feedback == "" {
		feedback = report
	}
	return &ports.Verdict{Pass: false, Complete: true, Feedback: feedback}, nil
}

func (s *ReasoningService) checkCompleteness(ctx context.Context, req ports.VerifyRequest) (bool, error) {
	answer, err := s.client.Chat(ctx, ChatRequest{
		Model:    req.Model,
		Messages: []Message{{Role: "user", Content: fmt.Sprintf(completenessProbeTemplate, req.Candidate)}},
	})
	if err != nil {
		return false, fmt.Errorf("completeness probe: %w", err)
	}
	return saysYes(answer), nil
}

func buildVerificationPrompt(problem, detailedSolution string) string {
	return fmt.Sprintf(`======================================================================
### Problem ###

%s

======================================================================
### Solution ###

%s

%s`, problem, detailedSolution, verificationReminder)
}

// extractSection returns the text after (or before) the first occurrence of
// the marker, trimmed. Empty when the marker is absent.
func extractSection(text, marker string, after bool) string {
	idx := strings.Index(text, marker)
	if idx == -1 {
		return ""
	}
	if after {
		return strings.TrimSpace(text[idx+len(marker):])
	}
	return strings.TrimSpace(text[:idx])
}

func saysYes(answer string) bool {
	return strings.Contains(strings.ToLower(answer), "yes")
}
