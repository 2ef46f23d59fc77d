package models

import (
	"time"

	id "patientflow/pkg/domain"
)

// PatientIdentity is the resolved patient handed to downstream screening.
// It is treated as immutable once the flow enters the success step.
type PatientIdentity struct {
	ID              id.PatientID  `json:"id"`
	DisplayName     string        `json:"displayName"`
	NationalID      id.NationalID `json:"nationalId,omitempty"`
	ProfileImageRef string        `json:"profileImageRef,omitempty"`
	BirthDate       *time.Time    `json:"birthDate,omitempty"`
	DerivedAge      int           `json:"derivedAge"`
}

// WithDerivedAge returns a copy with DerivedAge computed at now.
func (p PatientIdentity) WithDerivedAge(now time.Time) PatientIdentity {
	if p.BirthDate != nil {
		p.DerivedAge = AgeAt(*p.BirthDate, now)
	}
	return p
}

// AgeAt returns completed years between birth and now, never negative.
func AgeAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// SessionToken is the opaque queue credential issued after acceptance.
type SessionToken string

func (t SessionToken) IsEmpty() bool {
	return t == ""
}
