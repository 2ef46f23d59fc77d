// Package ratelimit throttles requests per key with an in-memory sliding
// window. The kiosk runs one process per host, so nothing is shared.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// SlidingWindow admits at most limit requests per key within window.
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
}

type Option func(*SlidingWindow)

func WithClock(now func() time.Time) Option {
	return func(s *SlidingWindow) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSlidingWindow(limit int, window time.Duration, opts ...Option) *SlidingWindow {
	s := &SlidingWindow{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records a request for key if it fits in the window.
func (s *SlidingWindow) Allow(key string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stamps := s.prune(key, now)
	if len(stamps) >= s.limit {
		resetAt := stamps[0].Add(s.window)
		return Result{
			Allowed:    false,
			Limit:      s.limit,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	stamps = append(stamps, now)
	s.buckets[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - len(stamps),
		ResetAt:   stamps[0].Add(s.window),
	}
}

// Reset forgets every request recorded for key.
func (s *SlidingWindow) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
}

// prune drops timestamps older than the window. Must hold s.mu.
func (s *SlidingWindow) prune(key string, now time.Time) []time.Time {
	stamps := s.buckets[key]
	cutoff := now.Add(-s.window)
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	stamps = stamps[i:]
	if len(stamps) == 0 {
		delete(s.buckets, key)
		return nil
	}
	s.buckets[key] = stamps
	return stamps
}
