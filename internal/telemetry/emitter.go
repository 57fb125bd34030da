// Package telemetry emits domain events (escalations, ticket resolutions) as OTel log records.
package telemetry

import (
	"context"

	"voicetrust/backend/internal/telemetry/domain"
)

// EventEmitter emits telemetry events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
