// Package ports declares what the verification flow needs from the outside
// world. Adapters live in directory, recognition, store and events.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"patientflow/internal/verification/capture"
	"patientflow/internal/verification/models"
	id "patientflow/pkg/domain"
)

// Recognizer submits one captured frame for face and ID-card recognition.
type Recognizer interface {
	Submit(ctx context.Context, blob *capture.ImageBlob) (*models.ScanResult, error)
}

// PatientDirectory resolves identities for the automatic scan path.
type PatientDirectory interface {
	// Get hydrates a face-matched identity from the directory.
	Get(ctx context.Context, pid id.PatientID) (*models.PatientIdentity, error)
	// CachedByNationalID consults only patients already known locally.
	CachedByNationalID(ctx context.Context, nid id.NationalID) (*models.PatientIdentity, bool)
}

// PatientLookup resolves a typed national ID. Unknown IDs return an error
// coded not_found.
type PatientLookup interface {
	FindByNationalID(ctx context.Context, nid id.NationalID) (*models.PatientIdentity, error)
}

// TokenIssuer obtains a queue session token for an accepted patient.
type TokenIssuer interface {
	RequestToken(ctx context.Context, pid id.PatientID) (models.SessionToken, error)
}

// SessionStore persists the authenticated patient and token for the
// downstream screening step.
type SessionStore interface {
	Save(ctx context.Context, identity models.PatientIdentity, token models.SessionToken) error
	Load(ctx context.Context) (*models.PatientIdentity, models.SessionToken, error)
	Clear(ctx context.Context) error
}

// EventPublisher emits verification outcomes.
type EventPublisher interface {
	Publish(ctx context.Context, event models.VerificationEvent) error
}
