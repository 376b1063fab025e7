// Package producer publishes domain events to Kafka.
package producer

import (
	"context"

	"alumni-tracker/internal/telemetry/domain"
)

// Producer emits domain events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call through
	// telemetry.EmitAsync from request paths.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}
