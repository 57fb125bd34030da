package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"voicetrust/backend/internal/policy/domain"
)

// storedPolicies is an in-memory policy table keyed by id.
type storedPolicies struct {
	mu   sync.Mutex
	byID map[string]domain.Policy
}

func newStoredPolicies() *storedPolicies {
	return &storedPolicies{byID: make(map[string]domain.Policy)}
}

func (s *storedPolicies) GetByID(_ context.Context, id string) (*domain.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *storedPolicies) ListEnabledByScope(_ context.Context, scope string) ([]*domain.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Policy
	for _, p := range s.byID {
		if p.Scope == scope && p.Enabled {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *storedPolicies) Create(_ context.Context, p *domain.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return errors.New("duplicate key")
	}
	s.byID[p.ID] = *p
	return nil
}

func (s *storedPolicies) Update(_ context.Context, p *domain.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.byID[p.ID]
	cur.Rules, cur.Enabled = p.Rules, p.Enabled
	s.byID[p.ID] = cur
	return nil
}

func TestInstall_CreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newStoredPolicies()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	for _, p := range DefaultPolicies(now) {
		created, err := Install(ctx, repo, p)
		if err != nil || !created {
			t.Fatalf("Install(%s) = %v, %v; want created", p.ID, created, err)
		}
	}
	// Second run is an update, which keeps seeding idempotent.
	for _, p := range DefaultPolicies(now) {
		p.Enabled = false
		created, err := Install(ctx, repo, p)
		if err != nil || created {
			t.Fatalf("Install(%s) again = %v, %v; want update", p.ID, created, err)
		}
	}
	got, _ := repo.GetByID(ctx, DefaultDecisionPolicyID)
	if got == nil || got.Enabled {
		t.Errorf("stored decision policy = %+v, want disabled", got)
	}
}

func TestInstall_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		p    *domain.Policy
	}{
		{"nil", nil},
		{"missing id", &domain.Policy{Scope: domain.ScopeDecision, Rules: defaultDecisionPolicy}},
		{"unknown scope", &domain.Policy{ID: "x", Scope: "session", Rules: defaultDecisionPolicy}},
		{"does not compile", &domain.Policy{ID: "x", Scope: domain.ScopeDecision, Rules: "package voicetrust.decision\nnext_step := "}},
	}
	repo := newStoredPolicies()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Install(context.Background(), repo, tc.p); !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("Install err = %v, want ErrInvalidPolicy", err)
			}
		})
	}
	if len(repo.byID) != 0 {
		t.Errorf("stored %d policies, want 0", len(repo.byID))
	}
}

func TestEvaluator_UsesInstalledPolicies(t *testing.T) {
	ctx := context.Background()
	repo := newStoredPolicies()
	for _, p := range DefaultPolicies(time.Now()) {
		if _, err := Install(ctx, repo, p); err != nil {
			t.Fatalf("Install: %v", err)
		}
	}
	strict := &domain.Policy{
		ID:      DefaultDecisionPolicyID,
		Scope:   domain.ScopeDecision,
		Rules:   "package voicetrust.decision\n\nnext_step := \"ESCALATE\"\n\nreasons contains \"MANUAL_REVIEW\"\n",
		Enabled: true,
	}
	if _, err := Install(ctx, repo, strict); err != nil {
		t.Fatalf("Install(strict): %v", err)
	}

	e := NewOPAEvaluator(repo, zaptest.NewLogger(t))
	got, err := e.EvaluateDecision(ctx, DecisionInput{AnswerOnFile: true, AnswerCorrect: true})
	if err != nil {
		t.Fatalf("EvaluateDecision: %v", err)
	}
	if got.NextStep != StepEscalate || len(got.ReasonCodes) != 1 || got.ReasonCodes[0] != "MANUAL_REVIEW" {
		t.Errorf("decision = %+v, want ESCALATE [MANUAL_REVIEW]", got)
	}
	approval, err := e.EvaluateApproval(ctx, ApprovalInput{ValidatorFound: true, ValidatorActive: true, ValidatorKind: "agent", TicketMethod: "AGENT"})
	if err != nil || !approval.Allow {
		t.Errorf("approval via stored default = %+v, %v; want allow", approval, err)
	}
}
