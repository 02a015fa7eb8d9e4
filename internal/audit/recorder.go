package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"campusid/pkg/requestcontext"
)

// Recorder is the fail-open audit entry point used by services. The local
// store write is synchronous; the Kafka leg is queued for the worker so a
// slow broker never blocks an identity operation. A dropped event is logged,
// not fatal: the local store remains the complete trail.
type Recorder struct {
	store  Store
	logger *slog.Logger
	outbox chan Event
}

func NewRecorder(store Store, logger *slog.Logger, outboxSize int) *Recorder {
	if outboxSize <= 0 {
		outboxSize = 256
	}
	return &Recorder{
		store:  store,
		logger: logger,
		outbox: make(chan Event, outboxSize),
	}
}

// Outbox exposes the channel the publisher worker drains.
func (r *Recorder) Outbox() <-chan Event {
	return r.outbox
}

// Record persists the event and queues it for publishing.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := r.store.Append(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"did", event.DID,
			"error", err,
		)
		return
	}

	select {
	case r.outbox <- event:
	default:
		r.logger.WarnContext(ctx, "audit outbox full, event not streamed",
			"action", event.Action,
			"did", event.DID,
		)
	}
}

// List returns the trail for one DID.
func (r *Recorder) List(ctx context.Context, did string) ([]Event, error) {
	return r.store.ListByDID(ctx, did)
}
