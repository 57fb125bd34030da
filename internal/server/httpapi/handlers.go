package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"voicetrust/backend/internal/approval"
	"voicetrust/backend/internal/confirmation"
	"voicetrust/backend/internal/escalation"
	"voicetrust/backend/internal/localization"
	"voicetrust/backend/internal/platform/logging"
	ticketdomain "voicetrust/backend/internal/ticket/domain"
)

// Rate limit scopes.
const (
	scopeConfirm  = "confirm"
	scopeVerify   = "verify"
	scopeEscalate = "escalate"
)

func (a *api) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) readyz(w http.ResponseWriter, r *http.Request) {
	if a.d.Ready != nil {
		if err := a.d.Ready.Check(r.Context()); err != nil {
			a.d.Log.Warn("http: readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// decode reads and validates a JSON body. It writes the 400 response itself and reports false on failure.
func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.badRequest(w, "invalid JSON body")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		a.badRequest(w, validationMessage(err))
		return false
	}
	return true
}

// validationMessage turns validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", jsonField(fe.StructField()), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

var jsonFields = map[string]string{
	"Phone":           "phone",
	"YesNo":           "yes_no",
	"MerchantID":      "merchant_id",
	"ChallengeKey":    "challenge_key",
	"TrustScore":      "trust_score",
	"MethodPreferred": "method_preferred",
	"TicketID":        "ticket_id",
	"AgentID":         "agent_id",
}

func jsonField(name string) string {
	if f, ok := jsonFields[name]; ok {
		return f
	}
	return strings.ToLower(name)
}

// limited applies the rate limit for scope/key and writes 429 when exceeded.
func (a *api) limited(w http.ResponseWriter, r *http.Request, route, scope, key, lang, persona string) bool {
	if a.d.Limiter == nil {
		return false
	}
	if key == "" {
		key = ClientIP(r.Context())
	}
	dec := a.d.Limiter.Allow(r.Context(), scope, key)
	if dec.Allowed {
		return false
	}
	a.d.Metrics.RateLimited(route)
	secs := int(dec.RetryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:   "RATE_LIMITED",
		Message: a.d.Messages.Render(localization.StepRateLimited, lang, persona, nil),
	})
	return true
}

func (a *api) confirmPhone(w http.ResponseWriter, r *http.Request) {
	var req confirmPhoneRequest
	if !a.decode(w, r, &req) {
		return
	}
	if a.limited(w, r, "/v1/confirm-phone", scopeConfirm, req.Phone, req.Lang, req.Persona) {
		return
	}
	res, err := a.d.Confirmation.ConfirmPhone(r.Context(), confirmation.ConfirmRequest{
		Phone:    req.Phone,
		Yes:      *req.YesNo,
		Language: req.Lang,
		Persona:  req.Persona,
	})
	if err != nil {
		a.d.Log.Warn("http: confirm-phone failed", zap.String("phone", logging.MaskPhone(req.Phone)), zap.Error(err))
		a.writeError(w, err, req.Lang, req.Persona, localization.StepMerchantNotFound)
		return
	}
	writeJSON(w, http.StatusOK, confirmPhoneResponse{
		NextStep:          string(res.NextStep),
		MessageTTS:        res.Message,
		MerchantID:        res.IdentityID,
		ChallengeKey:      string(res.ChallengeKey),
		ChallengeQuestion: res.ChallengeQuestion,
	})
}

func (a *api) verifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req verifyChallengeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if a.limited(w, r, "/v1/verify-challenge", scopeVerify, req.MerchantID, req.Lang, req.Persona) {
		return
	}
	res, err := a.d.Confirmation.VerifyChallenge(r.Context(), confirmation.VerifyRequest{
		IdentityID:   req.MerchantID,
		ChallengeKey: req.ChallengeKey,
		Answer:       req.Answer,
		TrustScore:   req.TrustScore,
		Language:     req.Lang,
		Persona:      req.Persona,
	})
	if err != nil {
		a.d.Log.Warn("http: verify-challenge failed", zap.String("merchant_id", req.MerchantID), zap.Error(err))
		a.writeError(w, err, req.Lang, req.Persona, localization.StepMerchantNotFound)
		return
	}
	reasons := res.ReasonCodes
	if reasons == nil {
		reasons = []string{}
	}
	writeJSON(w, http.StatusOK, verifyChallengeResponse{
		NextStep:    string(res.NextStep),
		MessageTTS:  res.Message,
		MerchantID:  res.IdentityID,
		ReasonCodes: reasons,
	})
}

func (a *api) escalate(w http.ResponseWriter, r *http.Request) {
	var req escalateRequest
	if !a.decode(w, r, &req) {
		return
	}
	method, err := ticketdomain.ParseMethod(req.MethodPreferred)
	if err != nil {
		a.badRequest(w, "method_preferred must be AGENT or COOP")
		return
	}
	key := req.MerchantID
	if key == "" {
		key = req.Phone
	}
	if a.limited(w, r, "/v1/escalate", scopeEscalate, key, req.Lang, "") {
		return
	}
	res, err := a.d.Escalation.Escalate(r.Context(), escalation.Request{
		IdentityID: req.MerchantID,
		Phone:      req.Phone,
		Method:     method,
		Reason:     req.Reason,
		Language:   req.Lang,
	})
	if err != nil {
		a.d.Log.Warn("http: escalate failed", zap.String("merchant_id", req.MerchantID),
			zap.String("phone", logging.MaskPhone(req.Phone)), zap.Error(err))
		a.writeError(w, err, req.Lang, "", localization.StepMerchantNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, escalateResponse{
		TicketID:       res.TicketID,
		ValidationCode: res.Code,
		MessageTTS:     res.Message,
		ExpiresAt:      res.ExpiresAt.UTC(),
	})
}

func (a *api) validationApprove(w http.ResponseWriter, r *http.Request) {
	var req validationApproveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, validationApproveResponse{Message: "invalid JSON body"})
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, validationApproveResponse{Message: validationMessage(err)})
		return
	}
	if claims, ok := ValidatorClaims(r.Context()); ok && claims.Subject != req.AgentID {
		a.d.Log.Warn("http: agent_id does not match token subject", zap.String("agent_id", req.AgentID))
		writeJSON(w, http.StatusForbidden, validationApproveResponse{
			Message: a.d.Messages.Render(localization.StepForbidden, req.Lang, "", nil),
		})
		return
	}

	res, err := a.d.Approval.Approve(r.Context(), approval.Request{
		TicketID:    req.TicketID,
		ValidatorID: req.AgentID,
		Decision:    req.Decision,
		Notes:       req.Notes,
		Language:    req.Lang,
	})
	body := validationApproveResponse{}
	if res != nil {
		body = validationApproveResponse{
			SessionCreated: res.SessionCreated,
			MerchantID:     res.IdentityID,
			Message:        res.Message,
			Status:         string(res.Status),
		}
	}
	if err != nil {
		status, _ := errorStatus(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		}
		body.SessionCreated = false
		if body.Message == "" {
			body.Message = a.d.Messages.Render(localization.StepTryAgainLater, req.Lang, "", nil)
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
