package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"patientflow/internal/platform/i18n"
	vmetrics "patientflow/internal/verification/metrics"
	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/platform/sentinel"
)

const (
	// DefaultAcquireAttempts bounds retries of a transient start failure.
	DefaultAcquireAttempts = 3
	DefaultPlayTimeout     = 5 * time.Second
	DefaultRetryDelay      = 250 * time.Millisecond
)

// Handle is the single live camera session owned by a Manager.
type Handle struct {
	stream     Stream
	acquiredAt time.Time
}

func (h *Handle) StreamID() string {
	return h.stream.ID()
}

func (h *Handle) AcquiredAt() time.Time {
	return h.acquiredAt
}

// Manager acquires and releases the camera. At most one handle is live at a
// time; Acquire while live is a no-op and Release is always safe.
type Manager struct {
	device      Device
	sink        Sink
	constraints Constraints
	attempts    int
	playTimeout time.Duration
	retryDelay  time.Duration
	messages    i18n.Messages
	logger      *slog.Logger
	metrics     *vmetrics.Metrics

	mu     sync.Mutex
	handle *Handle
}

type Option func(*Manager)

func WithAcquireAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.attempts = n
		}
	}
}

func WithPlayTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.playTimeout = d
		}
	}
}

// WithRetryDelay sets the pause between start attempts. Zero disables it.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.retryDelay = d
		}
	}
}

func WithMessages(msgs i18n.Messages) Option {
	return func(m *Manager) { m.messages = msgs }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(metrics *vmetrics.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func NewManager(device Device, sink Sink, opts ...Option) *Manager {
	m := &Manager{
		device:      device,
		sink:        sink,
		constraints: UserFacing,
		attempts:    DefaultAcquireAttempts,
		playTimeout: DefaultPlayTimeout,
		retryDelay:  DefaultRetryDelay,
		messages:    i18n.New("th"),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sink exposes the video sink frames are captured from.
func (m *Manager) Sink() Sink {
	return m.sink
}

// Acquire opens the camera and starts playback on the sink. Transient start
// failures are retried with the failed stream torn down first; permission and
// missing-device failures are returned immediately.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil && streamLive(m.handle.stream) {
		return m.handle, nil
	}
	if m.handle != nil {
		m.releaseLocked()
	}

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if attempt > 1 && m.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, m.classify(ctx.Err())
			case <-time.After(m.retryDelay):
			}
		}

		stream, err := m.start(ctx)
		if err == nil {
			m.handle = &Handle{stream: stream, acquiredAt: time.Now()}
			m.metrics.IncCameraAcquire("ok")
			m.logger.InfoContext(ctx, "camera acquired", "stream_id", stream.ID(), "attempt", attempt)
			return m.handle, nil
		}

		lastErr = m.classify(err)
		m.logger.WarnContext(ctx, "camera start failed",
			"attempt", attempt,
			"max_attempts", m.attempts,
			"code", dErrors.CodeOf(lastErr),
			"error", err,
		)
		if !retryable(lastErr) || ctx.Err() != nil {
			break
		}
	}

	m.metrics.IncCameraAcquire(string(dErrors.CodeOf(lastErr)))
	return nil, lastErr
}

// start performs one open-bind-play attempt. On failure nothing is left
// running and the sink is cleared.
func (m *Manager) start(ctx context.Context) (Stream, error) {
	stream, err := m.device.Open(ctx, m.constraints)
	if err != nil {
		return nil, err
	}

	m.sink.Bind(stream)
	playCtx, cancel := context.WithTimeout(ctx, m.playTimeout)
	defer cancel()
	if err := m.sink.Play(playCtx); err != nil {
		StopStream(stream)
		m.sink.Clear()
		return nil, err
	}
	return stream, nil
}

// Release stops every track reachable from the handle or from the sink, then
// clears the sink.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	var tracked Stream
	if m.handle != nil {
		tracked = m.handle.stream
		StopStream(tracked)
	}
	if bound := m.sink.Bound(); bound != nil && bound != tracked {
		StopStream(bound)
	}
	m.sink.Clear()
	if m.handle != nil {
		m.logger.Info("camera released",
			"stream_id", tracked.ID(),
			"held_ms", time.Since(m.handle.AcquiredAt()).Milliseconds(),
		)
	}
	m.handle = nil
}

// Live reports whether a handle is held.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Ready reports whether a frame can be captured right now.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil && m.sink.Playable()
}

// classify maps any start failure onto the camera error family with a
// localized message.
func (m *Manager) classify(err error) error {
	code := dErrors.CodeOf(err)
	if !dErrors.IsCamera(code) {
		switch {
		case errors.Is(err, sentinel.ErrNotReady), errors.Is(err, context.DeadlineExceeded):
			code = dErrors.CodeCameraTimeout
		case errors.Is(err, sentinel.ErrNotFound):
			code = dErrors.CodeCameraUnavailable
		case errors.Is(err, sentinel.ErrUnavailable):
			code = dErrors.CodeCameraBusy
		default:
			code = dErrors.CodeCameraUnknown
		}
	}
	return dErrors.Wrap(err, code, m.messages.Text(messageKey(code)))
}

func messageKey(code dErrors.Code) string {
	switch code {
	case dErrors.CodeCameraPermission:
		return i18n.KeyCameraPermission
	case dErrors.CodeCameraUnavailable:
		return i18n.KeyCameraNotFound
	case dErrors.CodeCameraBusy:
		return i18n.KeyCameraBusy
	case dErrors.CodeCameraTimeout:
		return i18n.KeyCameraTimeout
	default:
		return i18n.KeyCameraUnknown
	}
}

func retryable(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeCameraPermission, dErrors.CodeCameraUnavailable:
		return false
	}
	return true
}
