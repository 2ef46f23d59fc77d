// Package media owns the kiosk camera: opening a user-facing stream, binding
// it to a video sink, and guaranteeing it is torn down on every exit path.
package media

import "context"

// Constraints describe the stream requested from a Device.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
}

// UserFacing is the default request for a patient-facing kiosk camera.
var UserFacing = Constraints{FacingMode: "user", Width: 1280, Height: 720}

// Track is one live media track of a stream.
type Track interface {
	Kind() string
	Live() bool
	// Stop ends the track. It must be safe to call more than once.
	Stop()
}

// Stream is a live camera stream. Frames delivers encoded images and is
// closed once every track has stopped.
type Stream interface {
	ID() string
	Tracks() []Track
	Frames() <-chan []byte
}

// Device opens camera streams. Implementations return errors coded with the
// camera family of domainerrors, or sentinel errors the Manager classifies.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// StopStream stops every track of s.
func StopStream(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

func streamLive(s Stream) bool {
	if s == nil {
		return false
	}
	for _, t := range s.Tracks() {
		if t.Live() {
			return true
		}
	}
	return false
}
