package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"patientflow/internal/platform/i18n"
	"patientflow/internal/verification/models"
	"patientflow/internal/verification/ports/mocks"
	id "patientflow/pkg/domain"
	dErrors "patientflow/pkg/domain-errors"
)

// =============================================================================
// Identity Resolution Policy Test Suite
// =============================================================================
// Justification: the decision order (face, OCR, exhaustion, retry) and the
// threshold boundary are pure logic that flow tests only observe indirectly.

type PolicySuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	directory *mocks.MockPatientDirectory
	policy    *Policy
	now       time.Time
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

func (s *PolicySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.directory = mocks.NewMockPatientDirectory(s.ctrl)
	s.now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	var err error
	s.policy, err = New(s.directory,
		WithMessages(i18n.New("en")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
}

func (s *PolicySuite) TearDownTest() {
	s.ctrl.Finish()
}

func scanState(attempts, remaining int) models.ScanSessionState {
	return models.ScanSessionState{
		CurrentStep:            models.StepFaceScan,
		AttemptCount:           attempts,
		RemainingBudgetSeconds: remaining,
	}
}

func faceResult(label string, confidence float64, ref id.PatientID) *models.ScanResult {
	return &models.ScanResult{
		Faces:    []models.DetectedFace{{Label: label, Confidence: confidence, IdentityRef: ref}},
		Counters: models.ScanCounters{FacesFound: 1, FacesRecognized: 1},
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *PolicySuite) TestNew() {
	s.Run("nil directory returns error", func() {
		_, err := New(nil)
		s.Require().Error(err)
		s.Contains(err.Error(), "patient directory is required")
	})

	s.Run("defaults", func() {
		p, err := New(s.directory)
		s.Require().NoError(err)
		s.Equal(DefaultConfidenceThreshold, p.Threshold())
		s.Equal(DefaultMaxAttempts, p.MaxAttempts())
	})

	s.Run("out of range threshold is ignored", func() {
		p, err := New(s.directory, WithConfidenceThreshold(1.5), WithMaxAttempts(0))
		s.Require().NoError(err)
		s.Equal(DefaultConfidenceThreshold, p.Threshold())
		s.Equal(DefaultMaxAttempts, p.MaxAttempts())
	})
}

// =============================================================================
// Face Path
// =============================================================================

func (s *PolicySuite) TestFaceMatch() {
	s.Run("confident match is hydrated from the directory", func() {
		birth := time.Date(1980, 11, 20, 0, 0, 0, 0, time.UTC)
		s.directory.EXPECT().Get(gomock.Any(), id.PatientID("P000001")).Return(&models.PatientIdentity{
			ID:          "P000001",
			DisplayName: "Somchai Jaidee",
			NationalID:  "1234567890123",
			BirthDate:   &birth,
		}, nil)

		t := s.policy.Evaluate(context.Background(), faceResult("Somchai Jaidee", 0.80, "P000001"), scanState(1, 57))

		s.Equal(models.TransitionAccept, t.Kind)
		s.Equal(models.StepSuccess, t.Target)
		s.Equal(models.MethodFace, t.Method)
		s.Require().NotNil(t.Identity)
		s.Equal(id.NationalID("1234567890123"), t.Identity.NationalID)
		s.Equal(45, t.Identity.DerivedAge)
	})

	s.Run("hydration failure falls back to label and OCR number", func() {
		s.directory.EXPECT().Get(gomock.Any(), id.PatientID("P000001")).
			Return(nil, dErrors.New(dErrors.CodeNetwork, "down"))

		result := faceResult("Somchai Jaidee", 0.9, "P000001")
		result.OCR = &models.OCRResult{IDCardNumbers: []id.NationalID{"1234567890123"}}

		t := s.policy.Evaluate(context.Background(), result, scanState(1, 57))

		s.Equal(models.TransitionAccept, t.Kind)
		s.Equal(models.PatientIdentity{
			ID:          "P000001",
			DisplayName: "Somchai Jaidee",
			NationalID:  "1234567890123",
		}, *t.Identity)
	})

	s.Run("match without a reference borrows the cached id", func() {
		s.directory.EXPECT().CachedByNationalID(gomock.Any(), id.NationalID("1234567890123")).
			Return(&models.PatientIdentity{ID: "P000001"}, true)

		result := faceResult("Somchai Jaidee", 0.9, "")
		result.OCR = &models.OCRResult{IDCardNumbers: []id.NationalID{"1234567890123"}}

		t := s.policy.Evaluate(context.Background(), result, scanState(1, 57))
		s.Equal(id.PatientID("P000001"), t.Identity.ID)
	})

	s.Run("threshold is inclusive", func() {
		s.directory.EXPECT().Get(gomock.Any(), gomock.Any()).Return(&models.PatientIdentity{ID: "P1"}, nil)
		t := s.policy.Evaluate(context.Background(), faceResult("A", DefaultConfidenceThreshold, "P1"), scanState(1, 50))
		s.Equal(models.TransitionAccept, t.Kind)
	})

	s.Run("one unit below threshold retries as unconfirmed", func() {
		t := s.policy.Evaluate(context.Background(), faceResult("Somchai Jaidee", 0.74, "P1"), scanState(1, 50))
		s.Equal(models.TransitionRetry, t.Kind)
		s.Equal(models.ReasonUnconfirmed, t.Reason)
		s.Equal("Recognized Somchai Jaidee, confirming identity (50 s left)", t.Message)
	})

	s.Run("unknown label never matches", func() {
		t := s.policy.Evaluate(context.Background(), faceResult("Unknown", 0.99, ""), scanState(1, 50))
		s.Equal(models.TransitionRetry, t.Kind)
		s.Equal(models.ReasonFaceUnrecognized, t.Reason)
	})

	s.Run("highest confidence recognized face wins", func() {
		s.directory.EXPECT().Get(gomock.Any(), id.PatientID("P2")).Return(&models.PatientIdentity{ID: "P2"}, nil)
		result := &models.ScanResult{Faces: []models.DetectedFace{
			{Label: "A", Confidence: 0.76, IdentityRef: "P1"},
			{Label: "B", Confidence: 0.91, IdentityRef: "P2"},
			{Label: "unknown", Confidence: 0.99},
		}}
		t := s.policy.Evaluate(context.Background(), result, scanState(1, 50))
		s.Equal(id.PatientID("P2"), t.Identity.ID)
	})

	s.Run("custom threshold", func() {
		p, err := New(s.directory, WithConfidenceThreshold(0.70))
		s.Require().NoError(err)
		s.directory.EXPECT().Get(gomock.Any(), gomock.Any()).Return(&models.PatientIdentity{ID: "P1"}, nil)
		t := p.Evaluate(context.Background(), faceResult("A", 0.72, "P1"), scanState(1, 50))
		s.Equal(models.TransitionAccept, t.Kind)
	})
}

// =============================================================================
// OCR Path
// =============================================================================

func (s *PolicySuite) TestOCRMatch() {
	s.Run("unknown face with cached national id accepts via OCR", func() {
		s.directory.EXPECT().CachedByNationalID(gomock.Any(), id.NationalID("1234567890123")).
			Return(&models.PatientIdentity{ID: "P000001", DisplayName: "Somchai Jaidee"}, true)

		result := faceResult("Unknown", 0.50, "")
		result.OCR = &models.OCRResult{IDCardNumbers: []id.NationalID{"1234567890123"}, CardDetected: true}

		t := s.policy.Evaluate(context.Background(), result, scanState(2, 40))

		s.Equal(models.TransitionAccept, t.Kind)
		s.Equal(models.MethodOCR, t.Method)
		s.Equal(id.PatientID("P000001"), t.Identity.ID)
	})

	s.Run("second extracted number may match", func() {
		gomock.InOrder(
			s.directory.EXPECT().CachedByNationalID(gomock.Any(), id.NationalID("1111111111111")).Return(nil, false),
			s.directory.EXPECT().CachedByNationalID(gomock.Any(), id.NationalID("2222222222222")).
				Return(&models.PatientIdentity{ID: "P2"}, true),
		)
		result := &models.ScanResult{OCR: &models.OCRResult{IDCardNumbers: []id.NationalID{"1111111111111", "2222222222222"}}}

		t := s.policy.Evaluate(context.Background(), result, scanState(1, 50))
		s.Equal(id.PatientID("P2"), t.Identity.ID)
	})

	s.Run("uncached number falls through to retry", func() {
		s.directory.EXPECT().CachedByNationalID(gomock.Any(), gomock.Any()).Return(nil, false)
		result := &models.ScanResult{OCR: &models.OCRResult{IDCardNumbers: []id.NationalID{"1111111111111"}}}

		t := s.policy.Evaluate(context.Background(), result, scanState(1, 50))
		s.Equal(models.TransitionRetry, t.Kind)
		s.Equal(models.ReasonNoFace, t.Reason)
	})
}

// =============================================================================
// Exhaustion and Retry
// =============================================================================

func (s *PolicySuite) TestExhaustion() {
	s.Run("five consecutive no-face results escalate on the fifth", func() {
		for attempt := 1; attempt < DefaultMaxAttempts; attempt++ {
			t := s.policy.Evaluate(context.Background(), &models.ScanResult{}, scanState(attempt, 60-3*attempt))
			s.Equal(models.TransitionRetry, t.Kind, "attempt %d", attempt)
		}

		t := s.policy.Evaluate(context.Background(), &models.ScanResult{}, scanState(DefaultMaxAttempts, 45))
		s.Equal(models.TransitionEscalate, t.Kind)
		s.Equal(models.StepIDInput, t.Target)
		s.Equal(models.ReasonAttemptsExhausted, t.Reason)
		s.Equal("Could not verify automatically after 5 attempts. Please enter your national ID", t.Message)
	})

	s.Run("zero budget escalates", func() {
		t := s.policy.Evaluate(context.Background(), &models.ScanResult{}, scanState(1, 0))
		s.Equal(models.TransitionEscalate, t.Kind)
		s.Equal(models.ReasonBudgetExhausted, t.Reason)
	})

	s.Run("a match on the last attempt still accepts", func() {
		s.directory.EXPECT().Get(gomock.Any(), gomock.Any()).Return(&models.PatientIdentity{ID: "P1"}, nil)
		t := s.policy.Evaluate(context.Background(), faceResult("A", 0.9, "P1"), scanState(DefaultMaxAttempts, 10))
		s.Equal(models.TransitionAccept, t.Kind)
	})

	s.Run("nil result is treated as empty", func() {
		t := s.policy.Evaluate(context.Background(), nil, scanState(1, 30))
		s.Equal(models.TransitionRetry, t.Kind)
		s.Equal("No face detected. Please look at the camera (30 s left)", t.Message)
	})
}

func (s *PolicySuite) TestEvaluateFailure() {
	netErr := dErrors.Wrap(errors.New("refused"), dErrors.CodeNetwork, "unreachable")

	s.Run("network error retries", func() {
		t := s.policy.EvaluateFailure(netErr, scanState(2, 30))
		s.Equal(models.TransitionRetry, t.Kind)
		s.Equal(models.ReasonNetwork, t.Reason)
		s.Contains(t.Message, "30 s left")
	})

	s.Run("network error on last attempt escalates", func() {
		t := s.policy.EvaluateFailure(netErr, scanState(DefaultMaxAttempts, 30))
		s.Equal(models.TransitionEscalate, t.Kind)
	})

	s.Run("other failures retry as no face", func() {
		t := s.policy.EvaluateFailure(errors.New("encode"), scanState(1, 30))
		s.Equal(models.ReasonNoFace, t.Reason)
	})
}
