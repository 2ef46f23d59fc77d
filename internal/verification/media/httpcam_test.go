package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "patientflow/pkg/domain-errors"
)

func snapshotServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	frame := jpegFrame(16, 12)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(frame)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSnapshotCamera_Open(t *testing.T) {
	srv := snapshotServer(t, http.StatusOK)
	cam := NewSnapshotCamera(srv.URL, WithFrameInterval(10*time.Millisecond))

	stream, err := cam.Open(context.Background(), UserFacing)
	require.NoError(t, err)
	require.Len(t, stream.Tracks(), 1)
	assert.Equal(t, "video", stream.Tracks()[0].Kind())
	assert.NotEmpty(t, stream.ID())

	select {
	case frame := <-stream.Frames():
		assert.NotEmpty(t, frame)
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}

	StopStream(stream)
	assert.False(t, stream.Tracks()[0].Live())
	assert.NotPanics(t, func() { StopStream(stream) })

	for range stream.Frames() {
	}
}

func TestSnapshotCamera_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   dErrors.Code
	}{
		{http.StatusUnauthorized, dErrors.CodeCameraPermission},
		{http.StatusForbidden, dErrors.CodeCameraPermission},
		{http.StatusNotFound, dErrors.CodeCameraUnavailable},
		{http.StatusConflict, dErrors.CodeCameraBusy},
		{http.StatusLocked, dErrors.CodeCameraBusy},
		{http.StatusServiceUnavailable, dErrors.CodeCameraBusy},
		{http.StatusGatewayTimeout, dErrors.CodeCameraTimeout},
		{http.StatusInternalServerError, dErrors.CodeCameraUnknown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			cam := NewSnapshotCamera(snapshotServer(t, tt.status).URL)
			_, err := cam.Open(context.Background(), UserFacing)
			require.Error(t, err)
			assert.Equal(t, tt.want, dErrors.CodeOf(err))
		})
	}
}

func TestSnapshotCamera_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cam := NewSnapshotCamera(srv.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := cam.Open(context.Background(), UserFacing)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeCameraTimeout, dErrors.CodeOf(err))
}

func TestSnapshotCamera_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewSnapshotCamera(url).Open(context.Background(), UserFacing)
	assert.Equal(t, dErrors.CodeCameraUnavailable, dErrors.CodeOf(err))
}

func TestManagerWithSnapshotCamera(t *testing.T) {
	srv := snapshotServer(t, http.StatusOK)
	sink := NewFrameSink()
	m := NewManager(NewSnapshotCamera(srv.URL, WithFrameInterval(10*time.Millisecond)), sink)

	handle, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, handle.StreamID())
	assert.True(t, m.Ready())

	w, h := sink.VideoSize()
	assert.Equal(t, 16, w)
	assert.Equal(t, 12, h)

	bound := sink.Bound()
	m.Release()
	assert.False(t, bound.Tracks()[0].Live())
	assert.False(t, m.Ready())
}

func TestManagersShareSnapshotCamera(t *testing.T) {
	srv := snapshotServer(t, http.StatusOK)
	cam := NewSnapshotCamera(srv.URL, WithFrameInterval(10*time.Millisecond))
	first := NewManager(cam, NewFrameSink())
	second := NewManager(cam, NewFrameSink())

	_, err := first.Acquire(context.Background())
	require.NoError(t, err)
	_, err = second.Acquire(context.Background())
	require.NoError(t, err)

	firstStream := first.Sink().Bound()
	secondStream := second.Sink().Bound()
	require.NotEqual(t, firstStream.ID(), secondStream.ID(), "each manager opens its own stream")

	first.Release()

	assert.False(t, firstStream.Tracks()[0].Live())
	assert.False(t, first.Live())
	assert.True(t, secondStream.Tracks()[0].Live(), "releasing one manager must not stop another's stream")
	assert.True(t, second.Live())
	assert.True(t, second.Ready())

	assert.NotNil(t, second.Sink().CurrentFrame(), "second sink must still yield frames")
	second.Release()
}
