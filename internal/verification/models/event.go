package models

import (
	"strconv"
	"time"

	id "patientflow/pkg/domain"
)

// Outcome is how a verification session left the automatic flow.
type Outcome string

const (
	OutcomeVerified   Outcome = "verified"
	OutcomeEscalated  Outcome = "escalated"
	OutcomeRegister   Outcome = "register"
	OutcomeCameraFail Outcome = "camera_failed"
)

// VerificationEvent is published whenever a session reaches an outcome.
type VerificationEvent struct {
	EventID     string       `json:"eventId"`
	SessionID   id.SessionID `json:"sessionId"`
	Outcome     Outcome      `json:"outcome"`
	Method      Method       `json:"method,omitempty"`
	Reason      Reason       `json:"reason,omitempty"`
	PatientID   id.PatientID `json:"patientId,omitempty"`
	Attempts    int          `json:"attempts"`
	Elapsed     Duration     `json:"elapsedMs"`
	TokenIssued bool         `json:"tokenIssued"`
	OccurredAt  time.Time    `json:"occurredAt"`
}

// Duration marshals as whole milliseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Duration(d).Milliseconds(), 10)), nil
}
