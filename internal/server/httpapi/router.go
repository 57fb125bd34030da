// Package httpapi exposes the confirmation, escalation and approval operations over HTTP/JSON.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"voicetrust/backend/internal/approval"
	"voicetrust/backend/internal/confirmation"
	"voicetrust/backend/internal/escalation"
	"voicetrust/backend/internal/localization"
	"voicetrust/backend/internal/metrics"
	"voicetrust/backend/internal/ratelimit"
	"voicetrust/backend/internal/security"
)

// Confirmer runs the confirm-phone and verify-challenge steps.
type Confirmer interface {
	ConfirmPhone(ctx context.Context, req confirmation.ConfirmRequest) (*confirmation.ConfirmResult, error)
	VerifyChallenge(ctx context.Context, req confirmation.VerifyRequest) (*confirmation.VerifyResult, error)
}

// Escalator creates validation tickets.
type Escalator interface {
	Escalate(ctx context.Context, req escalation.Request) (*escalation.Result, error)
}

// Approver applies validator decisions.
type Approver interface {
	Approve(ctx context.Context, req approval.Request) (*approval.Result, error)
}

// ReadinessChecker backs /readyz.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// RateLimiter counts requests per scope and key.
type RateLimiter interface {
	Allow(ctx context.Context, scope, key string) ratelimit.Decision
}

// TokenValidator validates validator bearer tokens.
type TokenValidator interface {
	ValidateValidatorToken(token string) (*security.ValidatorClaims, error)
}

// Deps are the router's collaborators. Ready, Limiter, Tokens and Metrics may be nil;
// a nil Tokens disables bearer authentication on the approve endpoint.
type Deps struct {
	Confirmation Confirmer
	Escalation   Escalator
	Approval     Approver
	Ready        ReadinessChecker
	Limiter      RateLimiter
	Tokens       TokenValidator
	Messages     *localization.Engine
	Metrics      *metrics.Metrics
	Log          *zap.Logger
}

type api struct {
	d        Deps
	validate *validator.Validate
}

// NewRouter returns the HTTP handler for the public API.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	a := &api{d: d, validate: validator.New(validator.WithRequiredStructEnabled())}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(clientIP)
	r.Use(recoverer(d.Log))
	r.Use(observe(d.Log, d.Metrics))

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/confirm-phone", a.confirmPhone)
		r.Post("/verify-challenge", a.verifyChallenge)
		r.Post("/escalate", a.escalate)
		r.With(bearerAuth(d.Tokens, a.unauthorized)).Post("/validation-approve", a.validationApprove)
	})
	return r
}
