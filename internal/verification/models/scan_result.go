package models

import (
	"strings"

	id "patientflow/pkg/domain"
)

// UnknownLabel is what the recognition service reports for an unmatched face.
const UnknownLabel = "unknown"

// BoundingBox is a pixel region within the submitted frame.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectedFace is one face found in a frame.
type DetectedFace struct {
	Box        BoundingBox `json:"box"`
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	// IdentityRef links the face to a directory record when the service knows it.
	IdentityRef id.PatientID `json:"identityRef,omitempty"`
}

// Recognized reports whether the service attached a real name to the face.
func (f DetectedFace) Recognized() bool {
	label := strings.TrimSpace(f.Label)
	return label != "" && !strings.EqualFold(label, UnknownLabel)
}

// OCRResult is what the printed-ID reader extracted from the frame.
type OCRResult struct {
	RawText         string          `json:"rawText"`
	IDCardNumbers   []id.NationalID `json:"idCardNumbers"`
	Names           []string        `json:"names"`
	CardDetected    bool            `json:"cardDetected"`
	EngineAvailable bool            `json:"ocrEngineAvailable"`
}

// ScanCounters summarises what the service found.
type ScanCounters struct {
	FacesFound      int `json:"facesFound"`
	FacesRecognized int `json:"facesRecognized"`
	IDCardsFound    int `json:"idCardsFound"`
}

// ScanResult is the normalized response for one scan cycle. OCR is nil when
// the service did not run the reader at all.
type ScanResult struct {
	Faces         []DetectedFace `json:"faces"`
	OCR           *OCRResult     `json:"ocr,omitempty"`
	IDCardRegions []BoundingBox  `json:"idCardRegions"`
	Counters      ScanCounters   `json:"counters"`
}

// BestRecognizedFace returns the recognized face with the highest confidence.
func (r *ScanResult) BestRecognizedFace() (DetectedFace, bool) {
	var (
		best  DetectedFace
		found bool
	)
	for _, f := range r.Faces {
		if !f.Recognized() {
			continue
		}
		if !found || f.Confidence > best.Confidence {
			best, found = f, true
		}
	}
	return best, found
}

// OCRNationalIDs returns extracted ID numbers, or nil when OCR did not run.
func (r *ScanResult) OCRNationalIDs() []id.NationalID {
	if r.OCR == nil {
		return nil
	}
	return r.OCR.IDCardNumbers
}
