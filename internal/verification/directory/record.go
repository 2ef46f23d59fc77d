package directory

import (
	"strings"
	"time"

	"patientflow/internal/verification/models"
	id "patientflow/pkg/domain"
)

const birthDateLayout = "2006-01-02"

// PatientRecord is the directory's JSON representation of a patient.
type PatientRecord struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	NationalID   string `json:"national_id,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	BirthDate    string `json:"birth_date,omitempty"`
}

// ToIdentity converts the record, deriving age at now. A malformed birth
// date or national ID is dropped rather than failing the whole record.
func (r PatientRecord) ToIdentity(now time.Time) models.PatientIdentity {
	name := strings.TrimSpace(r.DisplayName)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
	}

	identity := models.PatientIdentity{
		ID:              id.PatientID(strings.TrimSpace(r.ID)),
		DisplayName:     name,
		ProfileImageRef: r.ProfileImage,
	}
	if nid, err := id.ParseNationalID(r.NationalID); err == nil {
		identity.NationalID = nid
	}
	if r.BirthDate != "" {
		if bd, err := time.Parse(birthDateLayout, r.BirthDate); err == nil {
			identity.BirthDate = &bd
		}
	}
	return identity.WithDerivedAge(now)
}

// RecordFromIdentity is the inverse of ToIdentity, used for seeding.
func RecordFromIdentity(p models.PatientIdentity) PatientRecord {
	r := PatientRecord{
		ID:           p.ID.String(),
		DisplayName:  p.DisplayName,
		NationalID:   p.NationalID.String(),
		ProfileImage: p.ProfileImageRef,
	}
	if p.BirthDate != nil {
		r.BirthDate = p.BirthDate.Format(birthDateLayout)
	}
	return r
}
