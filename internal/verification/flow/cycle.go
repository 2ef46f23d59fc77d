package flow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"patientflow/internal/verification/models"
	dErrors "patientflow/pkg/domain-errors"
)

// cycle binds one face-scan entry to the scheduler. Every callback carries
// the generation it was started for, so a loop or result that outlives its
// face-scan session cannot touch a newer one.
type cycle struct {
	m   *Machine
	gen uint64
}

func (c cycle) Ready() bool {
	c.m.mu.Lock()
	current := c.m.currentLocked(c.gen)
	c.m.mu.Unlock()
	return current && c.m.deps.Camera.Ready()
}

func (c cycle) RunCycle(ctx context.Context) {
	c.m.runCycle(ctx, c.gen)
}

func (c cycle) Countdown(remaining int) {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(c.gen) || remaining >= m.state.RemainingBudgetSeconds {
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	m.state.RemainingBudgetSeconds = remaining
	m.notifyLocked()
}

func (c cycle) Deadline() {
	m := c.m
	ctx := m.base

	m.mu.Lock()
	if !m.currentLocked(c.gen) {
		m.mu.Unlock()
		return
	}
	m.state.RemainingBudgetSeconds = 0
	t, ok := m.deps.Policy.Exhausted(m.state)
	if !ok {
		m.mu.Unlock()
		return
	}
	event := m.escalateLocked(ctx, t)
	m.mu.Unlock()

	m.publish(ctx, &event)
}

// runCycle is one capture, submit and evaluate round. The result is applied
// only if the machine is still in the face-scan entry gen belongs to.
func (m *Machine) runCycle(ctx context.Context, gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen) || m.state.CurrentStep != models.StepFaceScan {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	blob, err := m.deps.Capturer.Capture(m.deps.Camera.Sink())
	if err != nil || blob == nil {
		m.metrics.IncCycleSkipped("no_frame")
		m.logger.DebugContext(ctx, "scan cycle skipped, no frame", "error", err)
		return
	}

	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return
	}
	m.state.AttemptCount++
	attempt := m.state.AttemptCount
	m.notifyLocked()
	m.mu.Unlock()

	ctx, span := tracer.Start(ctx, "flow.scan_cycle")
	defer span.End()
	span.SetAttributes(attribute.Int("attempt", attempt))

	result, err := m.deps.Recognizer.Submit(ctx, blob)

	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		m.metrics.IncScanCycle("stale")
		m.logger.DebugContext(ctx, "discarding scan result for a finished face scan", "attempt", attempt)
		return
	}
	state := m.state
	m.mu.Unlock()

	var t models.Transition
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recognition failed")
		m.logger.WarnContext(ctx, "recognition request failed", "attempt", attempt, "error", err)
		t = m.deps.Policy.EvaluateFailure(err, state)
	} else {
		t = m.deps.Policy.Evaluate(ctx, result, state)
	}
	span.SetAttributes(attribute.String("transition", t.Kind.String()))
	m.metrics.IncScanCycle(t.Kind.String())

	switch t.Kind {
	case models.TransitionAccept:
		m.accept(ctx, gen, *t.Identity, t.Method)
	case models.TransitionEscalate:
		m.mu.Lock()
		if !m.currentLocked(gen) {
			m.mu.Unlock()
			return
		}
		event := m.escalateLocked(ctx, t)
		m.mu.Unlock()
		m.publish(ctx, &event)
	default:
		m.mu.Lock()
		if m.currentLocked(gen) {
			m.status = t.Message
			m.state.LastError = ""
			if t.Reason == models.ReasonNetwork {
				m.state.LastError = dErrors.CodeNetwork
			}
			m.notifyLocked()
		}
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "scan retry", "attempt", attempt, "reason", string(t.Reason))
	}
}
