// Package apperr holds the error taxonomy shared by the confirmation, escalation and approval flows.
// Handlers map these to HTTP statuses; services wrap store failures with Unavailable.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced identity or ticket does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExpired is returned when a ticket's TTL has elapsed. Terminal.
	ErrExpired = errors.New("expired")
	// ErrAlreadyProcessed is returned when a ticket was already resolved. Informational, not retried.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrDependencyUnavailable is returned when a required store could not be reached. Safe to retry.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrNotificationDelivery marks a failed notification publish. Never returned to protocol callers.
	ErrNotificationDelivery = errors.New("notification delivery failed")
	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrForbidden is returned when a validator may not resolve a ticket.
	ErrForbidden = errors.New("forbidden")
)

// Unavailable wraps a store failure so errors.Is(err, ErrDependencyUnavailable) holds
// while the underlying cause stays inspectable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
}

// Invalid returns an ErrInvalidArgument carrying a human-readable reason.
func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}

// Retryable reports whether the caller may retry the operation with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrDependencyUnavailable)
}
