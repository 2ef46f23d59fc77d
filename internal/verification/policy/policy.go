// Package policy decides, for one scan result, whether the flow accepts an
// identity, retries, or escalates to manual national-ID entry.
package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"patientflow/internal/platform/i18n"
	"patientflow/internal/verification/models"
	"patientflow/internal/verification/ports"
	dErrors "patientflow/pkg/domain-errors"
)

type PatientDirectory = ports.PatientDirectory

const (
	// DefaultConfidenceThreshold is the minimum face confidence accepted,
	// compared with >=.
	DefaultConfidenceThreshold = 0.75
	DefaultMaxAttempts         = 5
)

type Policy struct {
	directory   PatientDirectory
	threshold   float64
	maxAttempts int
	messages    i18n.Messages
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Policy)

func WithConfidenceThreshold(t float64) Option {
	return func(p *Policy) {
		if t > 0 && t <= 1 {
			p.threshold = t
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithMessages(m i18n.Messages) Option {
	return func(p *Policy) { p.messages = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

func New(directory PatientDirectory, opts ...Option) (*Policy, error) {
	if directory == nil {
		return nil, errors.New("patient directory is required")
	}
	p := &Policy{
		directory:   directory,
		threshold:   DefaultConfidenceThreshold,
		maxAttempts: DefaultMaxAttempts,
		messages:    i18n.New("th"),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Policy) Threshold() float64 { return p.threshold }
func (p *Policy) MaxAttempts() int   { return p.maxAttempts }

// Evaluate applies the decision order to result. state.AttemptCount already
// includes the cycle that produced result.
func (p *Policy) Evaluate(ctx context.Context, result *models.ScanResult, state models.ScanSessionState) models.Transition {
	if result == nil {
		result = &models.ScanResult{}
	}

	if face, ok := result.BestRecognizedFace(); ok && face.Confidence >= p.threshold {
		identity := p.resolveFace(ctx, face, result)
		p.logger.InfoContext(ctx, "face accepted",
			"patient_id", identity.ID.String(),
			"confidence", face.Confidence,
			"attempt", state.AttemptCount,
		)
		return models.Accept(identity, models.MethodFace)
	}

	for _, nid := range result.OCRNationalIDs() {
		if identity, ok := p.directory.CachedByNationalID(ctx, nid); ok {
			p.logger.InfoContext(ctx, "id card accepted",
				"patient_id", identity.ID.String(),
				"national_id", nid.Masked(),
				"attempt", state.AttemptCount,
			)
			return models.Accept(identity.WithDerivedAge(p.now()), models.MethodOCR)
		}
	}

	if t, ok := p.exhausted(state); ok {
		return t
	}
	return p.retry(result, state)
}

// EvaluateFailure decides what a failed cycle means. Recognition failures
// are retried until attempts or budget run out.
func (p *Policy) EvaluateFailure(err error, state models.ScanSessionState) models.Transition {
	if t, ok := p.exhausted(state); ok {
		return t
	}
	t := models.Retry(models.ReasonNetwork, p.messages.Text(i18n.KeyScanNetwork, state.RemainingBudgetSeconds))
	if dErrors.CodeOf(err) != dErrors.CodeNetwork {
		// no usable frame reached the service
		t.Message = p.messages.Text(i18n.KeyScanNoFace, state.RemainingBudgetSeconds)
		t.Reason = models.ReasonNoFace
	}
	return t
}

// Exhausted reports the escalation due for state, if any.
func (p *Policy) Exhausted(state models.ScanSessionState) (models.Transition, bool) {
	return p.exhausted(state)
}

func (p *Policy) exhausted(state models.ScanSessionState) (models.Transition, bool) {
	switch {
	case state.AttemptCount >= p.maxAttempts:
		return models.Escalate(models.StepIDInput, models.ReasonAttemptsExhausted,
			p.messages.Text(i18n.KeyEscalateAttempts, p.maxAttempts)), true
	case state.RemainingBudgetSeconds <= 0:
		return models.Escalate(models.StepIDInput, models.ReasonBudgetExhausted,
			p.messages.Text(i18n.KeyEscalateBudget)), true
	}
	return models.Transition{}, false
}

func (p *Policy) retry(result *models.ScanResult, state models.ScanSessionState) models.Transition {
	remaining := state.RemainingBudgetSeconds
	if face, ok := result.BestRecognizedFace(); ok {
		return models.Retry(models.ReasonUnconfirmed,
			p.messages.Text(i18n.KeyScanUnconfirmed, face.Label, remaining))
	}
	if len(result.Faces) > 0 || result.Counters.FacesFound > 0 {
		return models.Retry(models.ReasonFaceUnrecognized,
			p.messages.Text(i18n.KeyScanFaceUnrecognized, remaining))
	}
	return models.Retry(models.ReasonNoFace, p.messages.Text(i18n.KeyScanNoFace, remaining))
}

// resolveFace hydrates the matched identity from the directory, falling back
// to what the scan itself carries when the lookup is impossible or fails.
func (p *Policy) resolveFace(ctx context.Context, face models.DetectedFace, result *models.ScanResult) models.PatientIdentity {
	if !face.IdentityRef.IsNil() {
		identity, err := p.directory.Get(ctx, face.IdentityRef)
		if err == nil && identity != nil {
			return identity.WithDerivedAge(p.now())
		}
		p.logger.WarnContext(ctx, "face identity hydration failed, using scan data",
			"patient_id", face.IdentityRef.String(),
			"error", err,
		)
	}

	minimal := models.PatientIdentity{ID: face.IdentityRef, DisplayName: face.Label}
	if ids := result.OCRNationalIDs(); len(ids) > 0 {
		minimal.NationalID = ids[0]
		if minimal.ID.IsNil() {
			if cached, ok := p.directory.CachedByNationalID(ctx, ids[0]); ok {
				minimal.ID = cached.ID
			}
		}
	}
	return minimal
}
