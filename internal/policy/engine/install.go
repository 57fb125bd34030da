package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"

	"voicetrust/backend/internal/policy/domain"
	"voicetrust/backend/internal/policy/repository"
)

// Stored ids of the built-in modules written by DefaultPolicies.
const (
	DefaultDecisionPolicyID = "builtin-decision"
	DefaultApprovalPolicyID = "builtin-approval"
)

// ErrInvalidPolicy is returned by Install for policies that cannot be stored.
var ErrInvalidPolicy = errors.New("invalid policy")

// DefaultPolicies returns the built-in modules as storable policies, one per scope.
// Operators edit the stored copies to override the defaults.
func DefaultPolicies(now time.Time) []*domain.Policy {
	return []*domain.Policy{
		{ID: DefaultDecisionPolicyID, Scope: domain.ScopeDecision, Rules: defaultDecisionPolicy, Enabled: true, CreatedAt: now},
		{ID: DefaultApprovalPolicyID, Scope: domain.ScopeApproval, Rules: defaultApprovalPolicy, Enabled: true, CreatedAt: now},
	}
}

// Install stores p after checking that its rules compile. An existing policy with the same id
// gets its rules and enabled flag replaced; its scope is left unchanged. created reports an insert.
func Install(ctx context.Context, repo repository.Repository, p *domain.Policy) (created bool, err error) {
	if p == nil || p.ID == "" {
		return false, fmt.Errorf("%w: id is required", ErrInvalidPolicy)
	}
	if p.Scope != domain.ScopeDecision && p.Scope != domain.ScopeApproval {
		return false, fmt.Errorf("%w: unknown scope %q", ErrInvalidPolicy, p.Scope)
	}
	if _, err := ast.CompileModules(map[string]string{p.ID + ".rego": p.Rules}); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, p.ID, err)
	}
	existing, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, repo.Create(ctx, p)
	}
	return false, repo.Update(ctx, p)
}
