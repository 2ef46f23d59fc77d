package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"patientflow/pkg/platform/sentinel"
)

// Sink is the video element a stream is bound to.
type Sink interface {
	Bind(s Stream)
	Bound() Stream
	// Play blocks until the first frame decodes. A sink that cannot play
	// before ctx ends returns an error wrapping sentinel.ErrNotReady.
	Play(ctx context.Context) error
	Playable() bool
	VideoSize() (width, height int)
	CurrentFrame() image.Image
	Clear()
}

// FrameSink decodes the latest frame of a bound stream and keeps it for
// capture. Only the most recent frame is retained.
type FrameSink struct {
	mu      sync.RWMutex
	stream  Stream
	frame   image.Image
	ready   chan struct{}
	stopped chan struct{}
	stop    chan struct{}
}

func NewFrameSink() *FrameSink {
	return &FrameSink{}
}

// Bind replaces any bound stream and starts decoding frames from s. The
// previously bound stream is detached but not stopped; stopping tracks is
// the Manager's job.
func (fs *FrameSink) Bind(s Stream) {
	fs.Clear()
	if s == nil {
		return
	}

	ready := make(chan struct{})
	stop := make(chan struct{})
	stopped := make(chan struct{})

	fs.mu.Lock()
	fs.stream = s
	fs.ready = ready
	fs.stop = stop
	fs.stopped = stopped
	fs.mu.Unlock()

	go fs.pump(s, ready, stop, stopped)
}

func (fs *FrameSink) pump(s Stream, ready, stop, stopped chan struct{}) {
	defer close(stopped)
	var once sync.Once
	frames := s.Frames()
	for {
		select {
		case <-stop:
			return
		case data, ok := <-frames:
			if !ok {
				return
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				continue
			}
			fs.mu.Lock()
			if fs.stream == s {
				fs.frame = img
			}
			fs.mu.Unlock()
			once.Do(func() { close(ready) })
		}
	}
}

func (fs *FrameSink) Bound() Stream {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.stream
}

func (fs *FrameSink) Play(ctx context.Context) error {
	fs.mu.RLock()
	ready, stopped := fs.ready, fs.stopped
	fs.mu.RUnlock()
	if ready == nil {
		return fmt.Errorf("play: no stream bound: %w", sentinel.ErrNotReady)
	}

	select {
	case <-ready:
		return nil
	case <-stopped:
		select {
		case <-ready:
			return nil
		default:
		}
		return fmt.Errorf("play: stream ended before first frame: %w", sentinel.ErrNotReady)
	case <-ctx.Done():
		return fmt.Errorf("play: %w: %w", sentinel.ErrNotReady, ctx.Err())
	}
}

func (fs *FrameSink) Playable() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.frame != nil && streamLive(fs.stream)
}

func (fs *FrameSink) VideoSize() (int, int) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.frame == nil {
		return 0, 0
	}
	b := fs.frame.Bounds()
	return b.Dx(), b.Dy()
}

func (fs *FrameSink) CurrentFrame() image.Image {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.frame
}

// Clear detaches the bound stream and drops the last frame.
func (fs *FrameSink) Clear() {
	fs.mu.Lock()
	stop, stopped := fs.stop, fs.stopped
	fs.stream = nil
	fs.frame = nil
	fs.ready = nil
	fs.stop = nil
	fs.stopped = nil
	fs.mu.Unlock()

	if stop != nil {
		close(stop)
		<-stopped
	}
}
