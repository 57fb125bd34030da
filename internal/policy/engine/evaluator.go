package engine

import "context"

// Next steps produced by the decision policy.
const (
	StepDirect   = "DIRECT"
	StepEscalate = "ESCALATE"
)

// DecisionInput is the evidence gathered after a challenge answer.
type DecisionInput struct {
	AnswerOnFile  bool
	AnswerCorrect bool
	// TrustScore is opaque caller input; TrustScoreKnown is false when it was not supplied.
	TrustScore      float64
	TrustScoreKnown bool
	RecentFailures  int
}

// DecisionResult is DIRECT or ESCALATE with the reason codes that led to it.
type DecisionResult struct {
	NextStep    string
	ReasonCodes []string
}

// ApprovalInput describes a validator attempting to resolve a ticket.
type ApprovalInput struct {
	ValidatorFound  bool
	ValidatorActive bool
	ValidatorKind   string
	TicketMethod    string
}

// ApprovalResult reports whether the validator may resolve the ticket.
type ApprovalResult struct {
	Allow  bool
	Reason string
}

// Evaluator evaluates the confirmation decision and approval eligibility policies.
type Evaluator interface {
	EvaluateDecision(ctx context.Context, in DecisionInput) (DecisionResult, error)
	EvaluateApproval(ctx context.Context, in ApprovalInput) (ApprovalResult, error)
}
