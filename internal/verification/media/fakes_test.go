package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"sync/atomic"
)

type fakeTrack struct {
	stopped atomic.Bool
	stops   atomic.Int32
}

func (t *fakeTrack) Kind() string { return "video" }
func (t *fakeTrack) Live() bool   { return !t.stopped.Load() }
func (t *fakeTrack) Stop() {
	t.stops.Add(1)
	t.stopped.Store(true)
}

type fakeStream struct {
	id     string
	track  *fakeTrack
	frames chan []byte
}

func newFakeStream(id string) *fakeStream {
	return &fakeStream{id: id, track: &fakeTrack{}, frames: make(chan []byte, 4)}
}

func (s *fakeStream) ID() string            { return s.id }
func (s *fakeStream) Tracks() []Track       { return []Track{s.track} }
func (s *fakeStream) Frames() <-chan []byte { return s.frames }

// fakeDevice hands out streams in order and records every open.
type fakeDevice struct {
	mu      sync.Mutex
	err     error
	opened  []*fakeStream
	nextIDs []string
}

func (d *fakeDevice) Open(_ context.Context, _ Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	id := "stream"
	if len(d.nextIDs) > 0 {
		id, d.nextIDs = d.nextIDs[0], d.nextIDs[1:]
	}
	s := newFakeStream(id)
	d.opened = append(d.opened, s)
	return s, nil
}

func (d *fakeDevice) opens() []*fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeStream(nil), d.opened...)
}

// fakeSink fails Play with the queued errors before succeeding.
type fakeSink struct {
	mu       sync.Mutex
	bound    Stream
	playErrs []error
	clears   int
	frame    image.Image
}

func (s *fakeSink) Bind(st Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = st
}

func (s *fakeSink) Bound() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *fakeSink) Play(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.playErrs) > 0 {
		err := s.playErrs[0]
		s.playErrs = s.playErrs[1:]
		return err
	}
	s.frame = image.NewRGBA(image.Rect(0, 0, 4, 4))
	return nil
}

func (s *fakeSink) Playable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame != nil && streamLive(s.bound)
}

func (s *fakeSink) VideoSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return 0, 0
	}
	return s.frame.Bounds().Dx(), s.frame.Bounds().Dy()
}

func (s *fakeSink) CurrentFrame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = nil
	s.frame = nil
	s.clears++
}

func jpegFrame(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}
