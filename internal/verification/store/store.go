// Package store keeps the authenticated patient and queue token that the
// downstream screening step reads. Each kiosk terminal gets its own scope.
package store

import (
	"patientflow/internal/verification/ports"
)

const (
	keyPatient = "authenticatedPatient"
	keyToken   = "token"
)

// Factory hands out a SessionStore bound to one scope.
type Factory interface {
	Scope(scope string) ports.SessionStore
}
