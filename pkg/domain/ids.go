package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "patientflow/pkg/domain-errors"
)

// SessionID identifies one verification session on a kiosk.
type SessionID uuid.UUID

// NewSessionID returns a fresh random session ID.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID validates s as a non-nil UUID.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeBadRequest, "missing session id")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid session id")
	}
	if u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeBadRequest, "invalid session id")
	}
	return SessionID(u), nil
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	*id = parsed
	return nil
}

// PatientID is the directory's opaque patient reference (e.g. "P000001").
type PatientID string

func (id PatientID) String() string {
	return string(id)
}

func (id PatientID) IsNil() bool {
	return id == ""
}
