// Package flow is the verification state machine. It owns one kiosk
// session: the camera, the scan scheduler and the step the patient sees
// (face-scan, id-input, register, success).
package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"patientflow/internal/platform/i18n"
	"patientflow/internal/verification/capture"
	"patientflow/internal/verification/media"
	vmetrics "patientflow/internal/verification/metrics"
	"patientflow/internal/verification/models"
	"patientflow/internal/verification/policy"
	"patientflow/internal/verification/ports"
	"patientflow/internal/verification/scheduler"
	id "patientflow/pkg/domain"
	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/platform/sentinel"
)

var tracer = otel.Tracer("patientflow/verification/flow")

// TokenPolicy decides what a failed queue-token request means on Accept.
type TokenPolicy string

const (
	// TokenFailOpen proceeds to success without a token.
	TokenFailOpen TokenPolicy = "fail_open"
	// TokenFailClosed keeps the flow in its current step with a network error.
	TokenFailClosed TokenPolicy = "fail_closed"
)

// Camera is the media session the machine drives. *media.Manager satisfies it.
type Camera interface {
	Acquire(ctx context.Context) (*media.Handle, error)
	Release()
	Ready() bool
	Sink() media.Sink
}

// Deps are the collaborators a Machine cannot run without.
type Deps struct {
	Camera     Camera
	Capturer   *capture.Capturer
	Recognizer ports.Recognizer
	Policy     *policy.Policy
	Scheduler  *scheduler.Scheduler
	Lookup     ports.PatientLookup
	Tokens     ports.TokenIssuer
	Store      ports.SessionStore
	Events     ports.EventPublisher
}

func (d Deps) validate() error {
	switch {
	case d.Camera == nil:
		return errors.New("camera is required")
	case d.Capturer == nil:
		return errors.New("capturer is required")
	case d.Recognizer == nil:
		return errors.New("recognizer is required")
	case d.Policy == nil:
		return errors.New("policy is required")
	case d.Scheduler == nil:
		return errors.New("scheduler is required")
	case d.Lookup == nil:
		return errors.New("patient lookup is required")
	case d.Tokens == nil:
		return errors.New("token issuer is required")
	case d.Store == nil:
		return errors.New("session store is required")
	case d.Events == nil:
		return errors.New("event publisher is required")
	}
	return nil
}

// Machine is one verification session. All methods are safe for concurrent
// use; transitions are serialized by an internal lock.
type Machine struct {
	deps        Deps
	sessionID   id.SessionID
	tokenPolicy TokenPolicy
	messages    i18n.Messages
	logger      *slog.Logger
	metrics     *vmetrics.Metrics
	now         func() time.Time

	// base outlives the request that started the session; cycles and camera
	// acquisition run under it and Close cancels it.
	base   context.Context
	cancel context.CancelFunc

	persistMu sync.Mutex

	mu         sync.Mutex
	state      models.ScanSessionState
	status     string
	identity   *models.PatientIdentity
	method     models.Method
	token      models.SessionToken
	generation uint64
	version    uint64
	startedAt  time.Time
	scanFrom   time.Time
	closed     bool

	observers observers
}

type Option func(*Machine)

func WithTokenPolicy(p TokenPolicy) Option {
	return func(m *Machine) {
		if p == TokenFailOpen || p == TokenFailClosed {
			m.tokenPolicy = p
		}
	}
}

func WithMessages(msgs i18n.Messages) Option {
	return func(m *Machine) { m.messages = msgs }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(metrics *vmetrics.Metrics) Option {
	return func(m *Machine) { m.metrics = metrics }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func New(deps Deps, opts ...Option) (*Machine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		deps:        deps,
		sessionID:   id.NewSessionID(),
		tokenPolicy: TokenFailOpen,
		messages:    i18n.New("th"),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("session_id", m.sessionID.String())
	m.base, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

func (m *Machine) SessionID() id.SessionID {
	return m.sessionID
}

// Start begins a new verification: any previously persisted patient and
// token are cleared, then the machine enters face-scan.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("start session: %w", sentinel.ErrClosed)
	}
	if m.state.CurrentStep != "" {
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, "session already started")
	}
	m.startedAt = m.now()
	m.mu.Unlock()

	m.persistMu.Lock()
	err := m.deps.Store.Clear(ctx)
	m.persistMu.Unlock()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear session store")
	}
	m.logger.InfoContext(ctx, "verification session started")
	m.enterFaceScan()
	return nil
}

// Choose moves to a manual path. From face-scan the patient may pick
// id-input or register; from id-input, register. Choosing face-scan is Back.
func (m *Machine) Choose(ctx context.Context, step models.Step) error {
	if step == models.StepFaceScan {
		return m.Back(ctx)
	}

	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	from := m.state.CurrentStep
	allowed := (from == models.StepFaceScan && (step == models.StepIDInput || step == models.StepRegister)) ||
		(from == models.StepIDInput && step == models.StepRegister)
	if !allowed {
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot choose %s from %s", step, from))
	}

	var event *models.VerificationEvent
	switch step {
	case models.StepIDInput:
		m.leaveFaceScanLocked(ctx)
		m.moveLocked(models.StepIDInput, m.messages.Text(i18n.KeyIDInputPrompt), "")
		m.metrics.IncVerification(string(models.OutcomeEscalated), "")
		e := m.eventLocked(models.OutcomeEscalated, "", models.ReasonManualChoice)
		event = &e
	case models.StepRegister:
		event = m.enterRegisterLocked(ctx, models.ReasonManualChoice)
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "manual step chosen", "from", from.String(), "step", step.String())
	m.publish(ctx, event)
	return nil
}

// Back returns from id-input or register to face-scan with fresh counters.
func (m *Machine) Back(ctx context.Context) error {
	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	from := m.state.CurrentStep
	if from != models.StepIDInput && from != models.StepRegister {
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot go back from %s", from))
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "returning to face scan", "from", from.String())
	m.enterFaceScan()
	return nil
}

// Retry re-enters face-scan from face-scan itself, typically after a camera
// error left the scheduler stopped.
func (m *Machine) Retry(ctx context.Context) error {
	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state.CurrentStep != models.StepFaceScan {
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot retry scan from %s", m.state.CurrentStep))
	}
	m.leaveFaceScanLocked(ctx)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "face scan restarted")
	m.enterFaceScan()
	return nil
}

// SubmitNationalID looks up a typed national ID. A match is accepted, an
// unknown ID leads to register, and a lookup failure keeps id-input with the
// error surfaced in the snapshot.
func (m *Machine) SubmitNationalID(ctx context.Context, raw string) error {
	nid, err := id.ParseNationalID(raw)
	if err != nil {
		m.mu.Lock()
		if m.state.CurrentStep == models.StepIDInput && !m.closed {
			m.state.LastError = dErrors.CodeValidation
			m.status = m.messages.Text(i18n.KeyIDInputInvalid)
			m.notifyLocked()
		}
		m.mu.Unlock()
		return dErrors.Wrap(err, dErrors.CodeValidation, m.messages.Text(i18n.KeyIDInputInvalid))
	}

	m.mu.Lock()
	if err := m.usableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state.CurrentStep != models.StepIDInput {
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("national id entry not allowed in %s", m.state.CurrentStep))
	}
	gen := m.generation
	m.mu.Unlock()

	ctx, span := tracer.Start(ctx, "flow.submit_national_id")
	defer span.End()

	identity, err := m.deps.Lookup.FindByNationalID(ctx, nid)
	switch {
	case err == nil && identity != nil:
		m.accept(ctx, gen, identity.WithDerivedAge(m.now()), models.MethodNationalID)
		return nil
	case err == nil || dErrors.HasCode(err, dErrors.CodeNotFound):
		m.logger.InfoContext(ctx, "national id not registered", "national_id", nid.Masked())
		m.mu.Lock()
		var event *models.VerificationEvent
		if m.currentLocked(gen) {
			event = m.enterRegisterLocked(ctx, models.ReasonNationalIDNotFound)
		}
		m.mu.Unlock()
		m.publish(ctx, event)
		return nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		m.logger.WarnContext(ctx, "national id lookup failed", "national_id", nid.Masked(), "error", err)
		m.mu.Lock()
		if m.currentLocked(gen) {
			m.state.LastError = dErrors.CodeNetwork
			m.status = m.messages.Text(i18n.KeyLookupFailed)
			m.notifyLocked()
		}
		m.mu.Unlock()
		return nil
	}
}

// Close tears the session down: scheduler stopped, camera released, pending
// cycles abandoned. It is safe to call more than once.
func (m *Machine) Close(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.leaveFaceScanLocked(ctx)
	m.closed = true
	m.generation++
	m.notifyLocked()
	m.mu.Unlock()

	m.cancel()
	m.deps.Scheduler.Wait()
	m.observers.closeAll()
	m.logger.InfoContext(ctx, "verification session closed")
}

// Snapshot returns the current view of the session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe delivers the current snapshot and every later change. The
// channel closes when the session closes or cancel is called.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observers.add(m.snapshotLocked())
}

// enterFaceScan resets the counters, acquires the camera and starts the
// scheduler. A camera error leaves the machine in face-scan with the
// scheduler stopped and LastError set.
func (m *Machine) enterFaceScan() {
	budget := m.deps.Scheduler.Config().BudgetSeconds

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.generation++
	gen := m.generation
	m.state = models.ScanSessionState{
		CurrentStep:            models.StepFaceScan,
		RemainingBudgetSeconds: budget,
	}
	m.identity = nil
	m.method = ""
	m.token = ""
	m.status = m.messages.Text(i18n.KeyScanStarting)
	m.notifyLocked()
	m.mu.Unlock()

	ctx, span := tracer.Start(m.base, "flow.enter_face_scan")
	defer span.End()

	_, err := m.deps.Camera.Acquire(ctx)

	m.mu.Lock()
	if !m.currentLocked(gen) {
		// a newer transition won the race; release unless face-scan is live again
		if err == nil && (m.closed || m.state.CurrentStep != models.StepFaceScan) {
			m.deps.Camera.Release()
		}
		m.mu.Unlock()
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "camera acquisition failed")
		m.state.LastError = dErrors.CodeOf(err)
		m.status = dErrors.MessageOf(err)
		m.notifyLocked()
		e := m.eventLocked(models.OutcomeCameraFail, "", models.Reason(m.state.LastError))
		m.mu.Unlock()

		m.metrics.IncVerification(string(models.OutcomeCameraFail), "")
		m.logger.WarnContext(ctx, "camera acquisition failed", "code", string(e.Reason), "error", err)
		m.publish(ctx, &e)
		return
	}
	defer m.mu.Unlock()

	m.state.CameraLive = true
	m.scanFrom = m.now()
	if err := m.deps.Scheduler.Start(m.base, cycle{m: m, gen: gen}); err != nil {
		// the previous loop is still registered; stop it and try once more
		m.deps.Scheduler.Stop()
		if err := m.deps.Scheduler.Start(m.base, cycle{m: m, gen: gen}); err != nil {
			m.logger.ErrorContext(ctx, "scheduler start failed", "error", err)
		}
	}
	m.logger.InfoContext(ctx, "face scan started", "budget_seconds", budget)
	m.notifyLocked()
}

// leaveFaceScanLocked stops the scheduler and releases the camera. Every
// exit from face-scan goes through here.
func (m *Machine) leaveFaceScanLocked(ctx context.Context) {
	if m.state.CurrentStep != models.StepFaceScan {
		return
	}
	m.deps.Scheduler.Stop()
	m.deps.Camera.Release()
	if m.state.CameraLive && !m.scanFrom.IsZero() {
		m.metrics.ObserveVerificationDuration(m.now().Sub(m.scanFrom))
	}
	m.state.CameraLive = false
	m.generation++
	m.logger.DebugContext(ctx, "left face scan", "attempts", m.state.AttemptCount)
}

func (m *Machine) enterRegisterLocked(ctx context.Context, reason models.Reason) *models.VerificationEvent {
	m.leaveFaceScanLocked(ctx)
	m.moveLocked(models.StepRegister, m.messages.Text(i18n.KeyRegisterPrompt), "")
	m.metrics.IncVerification(string(models.OutcomeRegister), "")
	e := m.eventLocked(models.OutcomeRegister, "", reason)
	return &e
}

// moveLocked sets the step and bumps the generation so results started in
// the previous step are discarded.
func (m *Machine) moveLocked(step models.Step, status string, lastErr dErrors.Code) {
	m.state.CurrentStep = step
	m.state.LastError = lastErr
	m.status = status
	m.generation++
	m.notifyLocked()
}

// accept finishes a verification with identity: queue token, persistence,
// then success. gen is the generation the decision was made in; if the
// machine has moved on meanwhile the acceptance is dropped.
func (m *Machine) accept(ctx context.Context, gen uint64, identity models.PatientIdentity, method models.Method) {
	ctx, span := tracer.Start(ctx, "flow.accept")
	defer span.End()
	span.SetAttributes(
		attribute.String("method", string(method)),
		attribute.String("patient_id", identity.ID.String()),
	)

	token, tokenErr := m.requestToken(ctx, identity)
	if tokenErr != nil && m.tokenPolicy == TokenFailClosed {
		m.logger.ErrorContext(ctx, "queue token request failed, staying in step", "patient_id", identity.ID.String(), "error", tokenErr)
		m.mu.Lock()
		if m.currentLocked(gen) {
			m.state.LastError = dErrors.CodeNetwork
			m.status = m.messages.Text(i18n.KeyTokenFailed)
			m.notifyLocked()
		}
		m.mu.Unlock()
		return
	}
	if tokenErr != nil {
		m.logger.WarnContext(ctx, "queue token request failed, continuing without token", "patient_id", identity.ID.String(), "error", tokenErr)
	}

	// persistMu keeps Save and the success transition of one acceptance
	// from interleaving with another's; m.mu is never held across the store.
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	current := m.currentLocked(gen)
	m.mu.Unlock()
	if !current {
		m.logger.InfoContext(ctx, "acceptance dropped, session moved on", "patient_id", identity.ID.String())
		return
	}

	if err := m.deps.Store.Save(ctx, identity, token); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		m.logger.ErrorContext(ctx, "persisting authenticated patient failed", "patient_id", identity.ID.String(), "error", err)
		m.mu.Lock()
		if m.currentLocked(gen) {
			m.state.LastError = dErrors.CodeInternal
			m.status = m.messages.Text(i18n.KeyTokenFailed)
			m.notifyLocked()
		}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		// the session moved on while the record was written; it must not
		// be handed to the screening step
		if err := m.deps.Store.Clear(ctx); err != nil {
			m.logger.ErrorContext(ctx, "clearing dropped acceptance failed", "patient_id", identity.ID.String(), "error", err)
		}
		m.logger.InfoContext(ctx, "acceptance dropped after persisting, session moved on", "patient_id", identity.ID.String())
		return
	}
	m.leaveFaceScanLocked(ctx)
	m.identity = &identity
	m.method = method
	m.token = token
	m.moveLocked(models.StepSuccess, m.messages.Text(i18n.KeyVerified, identity.DisplayName), "")
	event := m.eventLocked(models.OutcomeVerified, method, "")
	m.mu.Unlock()

	m.metrics.IncVerification(string(models.OutcomeVerified), string(method))
	m.logger.InfoContext(ctx, "patient verified",
		"patient_id", identity.ID.String(),
		"method", string(method),
		"attempts", event.Attempts,
		"token_issued", !token.IsEmpty(),
	)
	m.publish(ctx, &event)
}

func (m *Machine) requestToken(ctx context.Context, identity models.PatientIdentity) (models.SessionToken, error) {
	if identity.ID.IsNil() {
		m.metrics.IncTokenRequest("skipped")
		return "", dErrors.New(dErrors.CodeNoMatch, "identity has no directory reference")
	}
	token, err := m.deps.Tokens.RequestToken(ctx, identity.ID)
	if err != nil {
		m.metrics.IncTokenRequest("failed")
		return "", err
	}
	m.metrics.IncTokenRequest("ok")
	return token, nil
}

// escalateLocked leaves face-scan for id-input.
func (m *Machine) escalateLocked(ctx context.Context, t models.Transition) models.VerificationEvent {
	m.leaveFaceScanLocked(ctx)
	lastErr := dErrors.Code("")
	if t.Reason == models.ReasonBudgetExhausted {
		lastErr = dErrors.CodeBudgetExhausted
	}
	m.moveLocked(models.StepIDInput, t.Message, lastErr)
	m.metrics.IncVerification(string(models.OutcomeEscalated), "")
	m.logger.InfoContext(ctx, "escalated to national id entry",
		"reason", string(t.Reason),
		"attempts", m.state.AttemptCount,
		"remaining_seconds", m.state.RemainingBudgetSeconds,
	)
	return m.eventLocked(models.OutcomeEscalated, "", t.Reason)
}

func (m *Machine) usableLocked() error {
	if m.closed {
		return fmt.Errorf("session %s: %w", m.sessionID, sentinel.ErrClosed)
	}
	if m.state.CurrentStep == "" {
		return dErrors.New(dErrors.CodeInvalidState, "session not started")
	}
	return nil
}

// currentLocked reports whether gen is still the live generation.
func (m *Machine) currentLocked(gen uint64) bool {
	return !m.closed && m.generation == gen
}

func (m *Machine) eventLocked(outcome models.Outcome, method models.Method, reason models.Reason) models.VerificationEvent {
	e := models.VerificationEvent{
		EventID:     uuid.NewString(),
		SessionID:   m.sessionID,
		Outcome:     outcome,
		Method:      method,
		Reason:      reason,
		Attempts:    m.state.AttemptCount,
		Elapsed:     models.Duration(m.now().Sub(m.startedAt)),
		TokenIssued: !m.token.IsEmpty(),
		OccurredAt:  m.now(),
	}
	if m.identity != nil {
		e.PatientID = m.identity.ID
	}
	return e
}

func (m *Machine) publish(ctx context.Context, e *models.VerificationEvent) {
	if e == nil {
		return
	}
	if err := m.deps.Events.Publish(context.WithoutCancel(ctx), *e); err != nil {
		m.logger.WarnContext(ctx, "publishing verification event failed", "outcome", string(e.Outcome), "error", err)
	}
}

func (m *Machine) notifyLocked() {
	m.version++
	m.observers.publish(m.snapshotLocked())
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID:        m.sessionID,
		Step:             m.state.CurrentStep,
		Attempts:         m.state.AttemptCount,
		MaxAttempts:      m.deps.Policy.MaxAttempts(),
		RemainingSeconds: m.state.RemainingBudgetSeconds,
		Status:           m.status,
		LastError:        m.state.LastError,
		CameraLive:       m.state.CameraLive,
		Method:           m.method,
		TokenIssued:      !m.token.IsEmpty(),
		Closed:           m.closed,
		Version:          m.version,
	}
	if m.identity != nil {
		identity := *m.identity
		if identity.BirthDate != nil {
			birth := *identity.BirthDate
			identity.BirthDate = &birth
		}
		s.Identity = &identity
	}
	return s
}
