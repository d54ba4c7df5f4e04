package queue

import (
	"context"
	"log/slog"

	"github.com/bean-lens/beanlens/internal/metrics"
)

// Emitter records events locally and, when configured, forwards them to a
// remote sink. Emit never reports an error to its caller.
type Emitter struct {
	local   Sink
	remote  Deliverer
	metrics *metrics.Recorder
}

// NewEmitter creates an emitter. local and remote may each be nil.
func NewEmitter(local Sink, remote Deliverer, rec *metrics.Recorder) *Emitter {
	return &Emitter{local: local, remote: remote, metrics: rec}
}

// Emit appends event to the local sink and then attempts one remote delivery.
// The local append always runs first. Remote failures are logged and dropped.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.Count == 0 {
		event.Count = 1
	}
	if event.Source == "" {
		event.Source = DefaultSource
	}
	e.metrics.Event(string(event.Domain), string(event.Reason))

	if e.local != nil {
		if err := e.local.Append(ctx, event); err != nil {
			e.metrics.Delivery("local", metrics.OutcomeAppendErr)
			slog.Error("Failed to append unknown queue event", "domain", event.Domain, "raw", event.Raw, "error", err)
		} else {
			e.metrics.Delivery("local", metrics.OutcomeAppended)
		}
	}

	if e.remote == nil {
		return
	}
	if err := e.remote.Deliver(ctx, event); err != nil {
		e.metrics.Delivery("remote", metrics.OutcomeFailed)
		slog.Warn("Unknown queue remote delivery failed", "domain", event.Domain, "raw", event.Raw, "error", err)
		return
	}
	e.metrics.Delivery("remote", metrics.OutcomeDelivered)
}
