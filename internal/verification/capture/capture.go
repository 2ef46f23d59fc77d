// Package capture turns the current video frame into an uploadable JPEG.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"
)

const (
	DefaultQuality = 80
	ContentType    = "image/jpeg"
)

// ImageBlob is one encoded still frame.
type ImageBlob struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	CapturedAt  time.Time
}

// Source is the subset of a video sink the capturer reads from.
type Source interface {
	VideoSize() (width, height int)
	CurrentFrame() image.Image
}

// Capturer draws frames onto a reused raster surface and encodes them.
type Capturer struct {
	quality int
	now     func() time.Time

	mu      sync.Mutex
	surface *image.RGBA
}

type Option func(*Capturer)

func WithQuality(q int) Option {
	return func(c *Capturer) {
		if q >= 1 && q <= 100 {
			c.quality = q
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Capturer) {
		if now != nil {
			c.now = now
		}
	}
}

func New(opts ...Option) *Capturer {
	c := &Capturer{quality: DefaultQuality, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture returns nil, nil when the source has not decoded a frame yet.
func (c *Capturer) Capture(src Source) (*ImageBlob, error) {
	w, h := src.VideoSize()
	if w <= 0 || h <= 0 {
		return nil, nil
	}
	frame := src.CurrentFrame()
	if frame == nil {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bounds := image.Rect(0, 0, w, h)
	if c.surface == nil || c.surface.Bounds() != bounds {
		c.surface = image.NewRGBA(bounds)
	}
	draw.Draw(c.surface, bounds, frame, frame.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, c.surface, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return &ImageBlob{
		Data:        buf.Bytes(),
		ContentType: ContentType,
		Width:       w,
		Height:      h,
		CapturedAt:  c.now(),
	}, nil
}
