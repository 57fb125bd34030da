package engine

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"voicetrust/backend/internal/policy/domain"
	"voicetrust/backend/internal/policy/repository"
)

// mockPolicyRepo implements repository.Repository for tests.
type mockPolicyRepo struct {
	policies map[string][]*domain.Policy
	err      error
}

var _ repository.Repository = (*mockPolicyRepo)(nil)

func (m *mockPolicyRepo) GetByID(context.Context, string) (*domain.Policy, error) { return nil, nil }

func (m *mockPolicyRepo) ListEnabledByScope(_ context.Context, scope string) ([]*domain.Policy, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.policies[scope], nil
}

func (m *mockPolicyRepo) Create(context.Context, *domain.Policy) error { return nil }
func (m *mockPolicyRepo) Update(context.Context, *domain.Policy) error { return nil }

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	if err := NewOPAEvaluator(nil, nil).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_EvaluateDecision_Default(t *testing.T) {
	e := NewOPAEvaluator(&mockPolicyRepo{}, zaptest.NewLogger(t))
	testCases := []struct {
		name    string
		in      DecisionInput
		want    string
		reasons []string
	}{
		{"correct answer no score", DecisionInput{AnswerOnFile: true, AnswerCorrect: true}, StepDirect, []string{"ANSWER_OK"}},
		{"correct answer good score", DecisionInput{AnswerOnFile: true, AnswerCorrect: true, TrustScore: 0.8, TrustScoreKnown: true}, StepDirect, []string{"ANSWER_OK"}},
		{"low trust", DecisionInput{AnswerOnFile: true, AnswerCorrect: true, TrustScore: 0.2, TrustScoreKnown: true}, StepEscalate, []string{"ANSWER_OK", "LOW_TRUST_SCORE"}},
		{"wrong answer", DecisionInput{AnswerOnFile: true}, StepEscalate, []string{"ANSWER_WRONG"}},
		{"no answer on file", DecisionInput{}, StepEscalate, []string{"NO_ANSWER_ON_FILE"}},
		{"recent failures", DecisionInput{AnswerOnFile: true, AnswerCorrect: true, RecentFailures: 3}, StepEscalate, []string{"ANSWER_OK", "RECENT_FAILURES"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.EvaluateDecision(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("EvaluateDecision: %v", err)
			}
			if got.NextStep != tc.want {
				t.Errorf("NextStep = %q, want %q", got.NextStep, tc.want)
			}
			if len(got.ReasonCodes) != len(tc.reasons) {
				t.Fatalf("ReasonCodes = %v, want %v", got.ReasonCodes, tc.reasons)
			}
			for i := range tc.reasons {
				if got.ReasonCodes[i] != tc.reasons[i] {
					t.Errorf("ReasonCodes = %v, want %v", got.ReasonCodes, tc.reasons)
				}
			}
		})
	}
}

func TestOPAEvaluator_EvaluateDecision_StoredOverride(t *testing.T) {
	strict := `package voicetrust.decision

default next_step := "ESCALATE"

reasons contains "MANUAL_REVIEW_ONLY" if { true }
`
	repo := &mockPolicyRepo{policies: map[string][]*domain.Policy{
		domain.ScopeDecision: {{ID: "p1", Scope: domain.ScopeDecision, Rules: strict, Enabled: true}},
	}}
	e := NewOPAEvaluator(repo, zaptest.NewLogger(t))
	got, err := e.EvaluateDecision(context.Background(), DecisionInput{AnswerOnFile: true, AnswerCorrect: true})
	if err != nil {
		t.Fatalf("EvaluateDecision: %v", err)
	}
	if got.NextStep != StepEscalate || len(got.ReasonCodes) != 1 || got.ReasonCodes[0] != "MANUAL_REVIEW_ONLY" {
		t.Errorf("result = %+v, want ESCALATE [MANUAL_REVIEW_ONLY]", got)
	}
}

func TestOPAEvaluator_BrokenOverrideFallsBack(t *testing.T) {
	repo := &mockPolicyRepo{policies: map[string][]*domain.Policy{
		domain.ScopeDecision: {{ID: "p1", Scope: domain.ScopeDecision, Rules: "package voicetrust.decision\nthis is not rego", Enabled: true}},
	}}
	e := NewOPAEvaluator(repo, zaptest.NewLogger(t))
	got, err := e.EvaluateDecision(context.Background(), DecisionInput{AnswerOnFile: true, AnswerCorrect: true})
	if err != nil {
		t.Fatalf("EvaluateDecision: %v", err)
	}
	if got.NextStep != StepDirect {
		t.Errorf("NextStep = %q, want DIRECT from built-in policy", got.NextStep)
	}
}

func TestOPAEvaluator_RepoErrorUsesBuiltin(t *testing.T) {
	e := NewOPAEvaluator(&mockPolicyRepo{err: errors.New("db down")}, zaptest.NewLogger(t))
	got, err := e.EvaluateApproval(context.Background(), ApprovalInput{
		ValidatorFound: true, ValidatorActive: true, ValidatorKind: "agent", TicketMethod: "AGENT",
	})
	if err != nil {
		t.Fatalf("EvaluateApproval: %v", err)
	}
	if !got.Allow {
		t.Errorf("Allow = false, want true (reason %q)", got.Reason)
	}
}

func TestOPAEvaluator_EvaluateApproval(t *testing.T) {
	e := NewOPAEvaluator(nil, zaptest.NewLogger(t))
	testCases := []struct {
		name   string
		in     ApprovalInput
		allow  bool
		reason string
	}{
		{"agent resolves agent ticket", ApprovalInput{true, true, "agent", "AGENT"}, true, "OK"},
		{"officer resolves agent ticket", ApprovalInput{true, true, "coop_officer", "AGENT"}, true, "OK"},
		{"officer resolves coop ticket", ApprovalInput{true, true, "coop_officer", "COOPERATIVE"}, true, "OK"},
		{"agent cannot resolve coop ticket", ApprovalInput{true, true, "agent", "COOPERATIVE"}, false, "METHOD_NOT_ALLOWED"},
		{"unknown validator", ApprovalInput{false, false, "", "AGENT"}, false, "VALIDATOR_UNKNOWN"},
		{"inactive validator", ApprovalInput{true, false, "agent", "AGENT"}, false, "VALIDATOR_INACTIVE"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.EvaluateApproval(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("EvaluateApproval: %v", err)
			}
			if got.Allow != tc.allow || got.Reason != tc.reason {
				t.Errorf("result = %+v, want {Allow:%v Reason:%s}", got, tc.allow, tc.reason)
			}
		})
	}
}
