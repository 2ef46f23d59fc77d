package events

import (
	"context"
	"log/slog"

	"patientflow/internal/verification/models"
	"patientflow/internal/verification/ports"
)

const DefaultBuffer = 64

// Dispatcher decouples the flow from the sink. Publish enqueues without
// blocking; Run drains the queue into the wrapped publisher.
type Dispatcher struct {
	next   ports.EventPublisher
	inbox  chan models.VerificationEvent
	logger *slog.Logger
}

func NewDispatcher(next ports.EventPublisher, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{next: next, inbox: make(chan models.VerificationEvent, buffer), logger: logger}
}

// Publish drops the event when the queue is full.
func (d *Dispatcher) Publish(ctx context.Context, e models.VerificationEvent) error {
	select {
	case d.inbox <- e:
	default:
		d.logger.WarnContext(ctx, "event queue full, dropping event",
			"event_id", e.EventID,
			"outcome", e.Outcome,
		)
	}
	return nil
}

// Run publishes queued events until ctx ends, then flushes what is queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return nil
		case e := <-d.inbox:
			d.publish(ctx, e)
		}
	}
}

func (d *Dispatcher) flush() {
	ctx := context.Background()
	for {
		select {
		case e := <-d.inbox:
			d.publish(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, e models.VerificationEvent) {
	if err := d.next.Publish(ctx, e); err != nil {
		d.logger.WarnContext(ctx, "event publish failed",
			"event_id", e.EventID,
			"outcome", e.Outcome,
			"error", err,
		)
	}
}
