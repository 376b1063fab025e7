package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"alumni-tracker/internal/telemetry"
	"alumni-tracker/internal/telemetry/domain"
)

const loggerName = "alumni.events"

// recordEmitter is the part of otellog.Logger the adapter uses.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that records domain events as OTel log records.
// A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return newEventEmitterWithLogger(provider.Logger(loggerName))
}

func newEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit maps the event onto a log record: metadata becomes the body, ids become attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityInfo)
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	attrs := []otellog.KeyValue{
		otellog.String("event_id", event.ID),
		otellog.String("event_type", string(event.Type)),
	}
	for _, kv := range []struct{ key, val string }{
		{"account_id", event.AccountID},
		{"activity_id", event.ActivityID},
		{"survey_id", event.SurveyID},
		{"actor_id", event.ActorID},
		{"source", event.Source},
	} {
		if kv.val != "" {
			attrs = append(attrs, otellog.String(kv.key, kv.val))
		}
	}
	rec.AddAttributes(attrs...)
	e.logger.Emit(ctx, rec)
	return nil
}
