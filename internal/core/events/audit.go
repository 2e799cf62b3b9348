package events

import (
	"context"
	"log/slog"
)

// AuditLogger writes every published event to the structured log.
func AuditLogger(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		logger.InfoContext(ctx, "audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}
}
