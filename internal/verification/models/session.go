package models

import (
	"fmt"

	dErrors "patientflow/pkg/domain-errors"
)

// Step is an externally observable state of the verification flow.
type Step string

const (
	StepFaceScan Step = "face-scan"
	StepIDInput  Step = "id-input"
	StepRegister Step = "register"
	StepSuccess  Step = "success"
)

// ParseStep validates a step name received from a client.
func ParseStep(s string) (Step, error) {
	switch Step(s) {
	case StepFaceScan, StepIDInput, StepRegister, StepSuccess:
		return Step(s), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown step %q", s))
}

func (s Step) String() string {
	return string(s)
}

// ScanSessionState is owned by the state machine. AttemptCount and
// RemainingBudgetSeconds only move in one direction within a face-scan
// session and reset when face-scan is re-entered.
type ScanSessionState struct {
	CurrentStep            Step
	AttemptCount           int
	RemainingBudgetSeconds int
	LastError              dErrors.Code
	CameraLive             bool
}
