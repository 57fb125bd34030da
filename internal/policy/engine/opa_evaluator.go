package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"voicetrust/backend/internal/policy/domain"
	"voicetrust/backend/internal/policy/repository"
)

const (
	decisionQuery = "data.voicetrust.decision"
	approvalQuery = "data.voicetrust.approval"
)

// Default decision policy: DIRECT only for a correct on-file answer, an acceptable trust score
// (or none supplied) and fewer than three recent failures.
const defaultDecisionPolicy = `package voicetrust.decision

default next_step := "ESCALATE"

trust_ok if {
	not input.trust_score_known
}

trust_ok if {
	input.trust_score_known
	input.trust_score >= 0.5
}

next_step := "DIRECT" if {
	input.answer_on_file
	input.answer_correct
	trust_ok
	input.recent_failures < 3
}

reasons contains "ANSWER_OK" if {
	input.answer_on_file
	input.answer_correct
}

reasons contains "NO_ANSWER_ON_FILE" if {
	not input.answer_on_file
}

reasons contains "ANSWER_WRONG" if {
	input.answer_on_file
	not input.answer_correct
}

reasons contains "LOW_TRUST_SCORE" if {
	not trust_ok
}

reasons contains "RECENT_FAILURES" if {
	input.recent_failures >= 3
}
`

// Default approval policy: active agents or officers resolve AGENT tickets; only officers resolve COOPERATIVE.
const defaultApprovalPolicy = `package voicetrust.approval

default allow := false

eligible if {
	input.validator.found
	input.validator.active
}

allow if {
	eligible
	input.ticket.method == "AGENT"
	input.validator.kind in {"agent", "coop_officer"}
}

allow if {
	eligible
	input.ticket.method == "COOPERATIVE"
	input.validator.kind == "coop_officer"
}

reason := "OK" if allow

reason := "VALIDATOR_UNKNOWN" if {
	not allow
	not input.validator.found
}

reason := "VALIDATOR_INACTIVE" if {
	not allow
	input.validator.found
	not input.validator.active
}

reason := "METHOD_NOT_ALLOWED" if {
	not allow
	eligible
}
`

// ErrNoResult is returned when a policy query produced no value.
var ErrNoResult = errors.New("policy query returned no result")

// OPAEvaluator evaluates the built-in Rego policies, or stored overrides for the same packages.
type OPAEvaluator struct {
	policyRepo repository.Repository
	log        *zap.Logger

	mu       sync.Mutex
	prepared map[string]rego.PreparedEvalQuery
}

// NewOPAEvaluator returns an OPA-based policy evaluator. policyRepo may be nil (built-in policies only).
func NewOPAEvaluator(policyRepo repository.Repository, log *zap.Logger) *OPAEvaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &OPAEvaluator{policyRepo: policyRepo, log: log, prepared: make(map[string]rego.PreparedEvalQuery)}
}

// HealthCheck verifies that the in-process engine can compile and evaluate the built-in policies.
// Does not call the policy repo.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := e.evalModules(ctx, decisionQuery, []string{defaultDecisionPolicy}, decisionInput(DecisionInput{})); err != nil {
		return fmt.Errorf("eval decision policy: %w", err)
	}
	if _, err := e.evalModules(ctx, approvalQuery, []string{defaultApprovalPolicy}, approvalInput(ApprovalInput{})); err != nil {
		return fmt.Errorf("eval approval policy: %w", err)
	}
	return nil
}

// EvaluateDecision returns DIRECT or ESCALATE. Policy failures degrade to ESCALATE and are logged.
func (e *OPAEvaluator) EvaluateDecision(ctx context.Context, in DecisionInput) (DecisionResult, error) {
	out, err := e.eval(ctx, domain.ScopeDecision, defaultDecisionPolicy, decisionQuery, decisionInput(in))
	if err != nil {
		e.log.Warn("policy: decision evaluation failed, escalating", zap.Error(err))
		return DecisionResult{NextStep: StepEscalate, ReasonCodes: []string{"POLICY_UNAVAILABLE"}}, nil
	}
	step, _ := out["next_step"].(string)
	if step != StepDirect && step != StepEscalate {
		e.log.Warn("policy: decision produced unknown next_step, escalating", zap.String("next_step", step))
		step = StepEscalate
	}
	return DecisionResult{NextStep: step, ReasonCodes: stringSet(out["reasons"])}, nil
}

// EvaluateApproval reports whether the validator may resolve the ticket. Policy failures deny and
// return the error so the caller can report the dependency as unavailable.
func (e *OPAEvaluator) EvaluateApproval(ctx context.Context, in ApprovalInput) (ApprovalResult, error) {
	out, err := e.eval(ctx, domain.ScopeApproval, defaultApprovalPolicy, approvalQuery, approvalInput(in))
	if err != nil {
		return ApprovalResult{Allow: false, Reason: "POLICY_UNAVAILABLE"}, err
	}
	allow, _ := out["allow"].(bool)
	reason, _ := out["reason"].(string)
	return ApprovalResult{Allow: allow, Reason: reason}, nil
}

// eval runs query against the stored overrides for scope, falling back to the built-in policy
// when there are none or they fail to compile or evaluate.
func (e *OPAEvaluator) eval(ctx context.Context, scope, builtin, query string, input map[string]any) (map[string]any, error) {
	if overrides := e.overrides(ctx, scope); len(overrides) > 0 {
		out, err := e.evalModules(ctx, query, overrides, input)
		if err == nil {
			return out, nil
		}
		e.log.Warn("policy: stored policy failed, using built-in", zap.String("scope", scope), zap.Error(err))
	}
	return e.evalModules(ctx, query, []string{builtin}, input)
}

func (e *OPAEvaluator) overrides(ctx context.Context, scope string) []string {
	if e.policyRepo == nil {
		return nil
	}
	policies, err := e.policyRepo.ListEnabledByScope(ctx, scope)
	if err != nil {
		e.log.Warn("policy: failed to load stored policies", zap.String("scope", scope), zap.Error(err))
		return nil
	}
	var out []string
	for _, p := range policies {
		if p != nil && p.Enabled && strings.TrimSpace(p.Rules) != "" {
			out = append(out, p.Rules)
		}
	}
	return out
}

func (e *OPAEvaluator) evalModules(ctx context.Context, query string, modules []string, input map[string]any) (map[string]any, error) {
	pq, err := e.prepare(ctx, query, modules)
	if err != nil {
		return nil, err
	}
	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, ErrNoResult
	}
	out, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return nil, ErrNoResult
	}
	return out, nil
}

// prepare compiles modules once per distinct (query, modules) pair.
func (e *OPAEvaluator) prepare(ctx context.Context, query string, modules []string) (rego.PreparedEvalQuery, error) {
	key := query + "\x00" + strings.Join(modules, "\x00")
	e.mu.Lock()
	defer e.mu.Unlock()
	if pq, ok := e.prepared[key]; ok {
		return pq, nil
	}
	files := make(map[string]string, len(modules))
	for i, m := range modules {
		files[fmt.Sprintf("policy_%d.rego", i)] = m
	}
	compiler, err := ast.CompileModules(files)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile policies: %w", err)
	}
	pq, err := rego.New(rego.Query(query), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare %s: %w", query, err)
	}
	e.prepared[key] = pq
	return pq, nil
}

func decisionInput(in DecisionInput) map[string]any {
	return map[string]any{
		"answer_on_file":    in.AnswerOnFile,
		"answer_correct":    in.AnswerCorrect,
		"trust_score":       in.TrustScore,
		"trust_score_known": in.TrustScoreKnown,
		"recent_failures":   in.RecentFailures,
	}
}

func approvalInput(in ApprovalInput) map[string]any {
	return map[string]any{
		"validator": map[string]any{
			"found":  in.ValidatorFound,
			"active": in.ValidatorActive,
			"kind":   in.ValidatorKind,
		},
		"ticket": map[string]any{
			"method": in.TicketMethod,
		},
	}
}

// stringSet converts a Rego set (decoded as []interface{}) into a sorted string slice.
func stringSet(v any) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
