// Package events publishes verification outcomes. Publishing is best effort:
// the flow never waits on, or fails because of, an event sink.
package events

import (
	"context"
	"log/slog"
	"time"

	"patientflow/internal/verification/models"
)

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e models.VerificationEvent) error {
	p.logger.InfoContext(ctx, "verification outcome",
		"event_id", e.EventID,
		"session_id", e.SessionID.String(),
		"outcome", e.Outcome,
		"method", e.Method,
		"reason", e.Reason,
		"patient_id", e.PatientID.String(),
		"attempts", e.Attempts,
		"elapsed_ms", time.Duration(e.Elapsed).Milliseconds(),
		"token_issued", e.TokenIssued,
	)
	return nil
}
