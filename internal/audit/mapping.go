package audit

import (
	"errors"

	"voicetrust/backend/internal/platform/apperr"
)

// Validator action names written to audit_logs.
const (
	ActionApproved         = "validation_approved"
	ActionRejected         = "validation_rejected"
	ActionExpired          = "validation_expired"
	ActionAlreadyProcessed = "validation_already_processed"
	ActionDenied           = "validation_denied"
	ActionFailed           = "validation_failed"
	ActionJanitorExpired   = "ticket_expired_by_janitor"
)

// ApprovalAction maps an approval decision and its outcome to an audit action.
// decision is APPROVED or REJECTED; err is the processor's result error.
func ApprovalAction(decision string, err error) string {
	switch {
	case err == nil && decision == "APPROVED":
		return ActionApproved
	case err == nil:
		return ActionRejected
	case errors.Is(err, apperr.ErrExpired):
		return ActionExpired
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		return ActionAlreadyProcessed
	case errors.Is(err, apperr.ErrForbidden):
		return ActionDenied
	default:
		return ActionFailed
	}
}
