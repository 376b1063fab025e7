// Package telemetry carries domain events to their sinks (Kafka, OTel logs).
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"alumni-tracker/internal/telemetry/domain"
)

// EventEmitter emits domain events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// NewEvent builds an event with a fresh id and timestamp. metadata is JSON-encoded
// when non-nil; an encoding failure leaves Metadata empty.
func NewEvent(eventType domain.EventType, source string, metadata any) *domain.Event {
	e := &domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			e.Metadata = b
		}
	}
	return e
}

// Fanout returns an EventEmitter that sends each event to every non-nil emitter.
// All emitters are attempted; their errors are joined.
func Fanout(emitters ...EventEmitter) EventEmitter {
	var out fanout
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

type fanout []EventEmitter

func (f fanout) Emit(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
