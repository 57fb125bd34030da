package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"voicetrust/backend/internal/localization"
	"voicetrust/backend/internal/platform/apperr"
)

// retryAfterSeconds is sent with 503 responses.
const retryAfterSeconds = 5

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps the error taxonomy to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apperr.ErrExpired):
		return http.StatusBadRequest, "EXPIRED"
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		return http.StatusBadRequest, "ALREADY_PROCESSED"
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, apperr.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, "TRY_AGAIN_LATER"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError writes the protocol error body. notFound selects the message spoken for ErrNotFound.
func (a *api) writeError(w http.ResponseWriter, err error, lang, persona string, notFound localization.Step) {
	status, code := errorStatus(err)
	var msg string
	switch status {
	case http.StatusNotFound:
		msg = a.d.Messages.Render(notFound, lang, persona, nil)
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		msg = a.d.Messages.Render(localization.StepTryAgainLater, lang, persona, nil)
	case http.StatusBadRequest, http.StatusForbidden:
		msg = err.Error()
	default:
		msg = a.d.Messages.Render(localization.StepTryAgainLater, lang, persona, nil)
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func (a *api) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_ARGUMENT", Message: msg})
}

func (a *api) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, validationApproveResponse{
		SessionCreated: false,
		Message:        a.d.Messages.Render(localization.StepForbidden, "", "", nil),
	})
}
