package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"voicetrust/backend/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down OTel providers,
// so in-flight async emits can complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine so the caller is not blocked. Errors are logged on log.
// emitter and event may be nil. Request cancellation does not abort the emit.
func EmitAsync(ctx context.Context, emitter EventEmitter, event *domain.Event, log *zap.Logger) {
	if emitter == nil || event == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		emitCtx, cancel := context.WithTimeout(bg, emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil && log != nil {
			log.Warn("telemetry: async emit failed", zap.Error(err), zap.String("event_type", string(event.Type)))
		}
	}()
}
