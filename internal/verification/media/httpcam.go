package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "patientflow/pkg/domain-errors"
)

const (
	DefaultFrameInterval = 200 * time.Millisecond
	maxSnapshotBytes     = 8 << 20
)

// SnapshotCamera is a Device backed by an IP camera that serves the current
// frame as a JPEG on every GET.
type SnapshotCamera struct {
	url      string
	client   *http.Client
	interval time.Duration
	logger   *slog.Logger
}

type CameraOption func(*SnapshotCamera)

func WithHTTPClient(c *http.Client) CameraOption {
	return func(sc *SnapshotCamera) {
		if c != nil {
			sc.client = c
		}
	}
}

func WithFrameInterval(d time.Duration) CameraOption {
	return func(sc *SnapshotCamera) {
		if d > 0 {
			sc.interval = d
		}
	}
}

func WithCameraLogger(logger *slog.Logger) CameraOption {
	return func(sc *SnapshotCamera) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

func NewSnapshotCamera(url string, opts ...CameraOption) *SnapshotCamera {
	sc := &SnapshotCamera{
		url:      url,
		client:   &http.Client{Timeout: 3 * time.Second},
		interval: DefaultFrameInterval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Open probes the camera once and, if it answers with a frame, starts a
// polling stream with a single video track.
func (sc *SnapshotCamera) Open(ctx context.Context, _ Constraints) (Stream, error) {
	first, err := sc.fetch(ctx)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s := &pollStream{
		id:     uuid.NewString(),
		frames: make(chan []byte, 1),
		done:   make(chan struct{}),
	}
	s.track = &pollTrack{cancel: cancel, done: s.done}
	s.frames <- first

	go sc.poll(pollCtx, s)
	return s, nil
}

func (sc *SnapshotCamera) poll(ctx context.Context, s *pollStream) {
	defer close(s.frames)
	defer close(s.done)

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := sc.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sc.logger.Debug("snapshot fetch failed", "stream_id", s.id, "error", err)
			continue
		}
		s.push(frame)
	}
}

func (sc *SnapshotCamera) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.url, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCameraUnavailable, "invalid camera url")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if code, ok := statusCode(resp.StatusCode); ok {
		return nil, dErrors.New(code, fmt.Sprintf("camera responded %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, classifyTransport(err)
	}
	if len(body) == 0 {
		return nil, dErrors.New(dErrors.CodeCameraUnknown, "camera returned an empty frame")
	}
	return body, nil
}

// statusCode maps a non-2xx camera response onto the camera error family.
func statusCode(status int) (dErrors.Code, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return dErrors.CodeCameraPermission, true
	case status == http.StatusNotFound:
		return dErrors.CodeCameraUnavailable, true
	case status == http.StatusConflict, status == http.StatusLocked, status == http.StatusServiceUnavailable:
		return dErrors.CodeCameraBusy, true
	case status == http.StatusGatewayTimeout, status == http.StatusRequestTimeout:
		return dErrors.CodeCameraTimeout, true
	default:
		return dErrors.CodeCameraUnknown, true
	}
}

func classifyTransport(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return dErrors.Wrap(err, dErrors.CodeCameraTimeout, "camera did not answer in time")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeCameraUnknown, "camera request canceled")
	default:
		return dErrors.Wrap(err, dErrors.CodeCameraUnavailable, "camera unreachable")
	}
}

type pollStream struct {
	id     string
	track  *pollTrack
	frames chan []byte
	done   chan struct{}
}

func (s *pollStream) ID() string            { return s.id }
func (s *pollStream) Tracks() []Track       { return []Track{s.track} }
func (s *pollStream) Frames() <-chan []byte { return s.frames }

// push keeps only the newest frame in the buffer.
func (s *pollStream) push(frame []byte) {
	select {
	case <-s.frames:
	default:
	}
	select {
	case s.frames <- frame:
	default:
	}
}

type pollTrack struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *pollTrack) Kind() string { return "video" }

func (t *pollTrack) Live() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Stop cancels polling and waits for the poller to exit.
func (t *pollTrack) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}
