// Package clock supplies the batch timestamp used for datetime milestoning
// and batch metadata.
//
// Generation is a pure function of its inputs, so the wall clock is never
// read implicitly: callers inject a Clock. Tests use Fixed or Step clocks to
// get byte-identical SQL across runs.
package clock

import (
	"sync"
	"time"
)

// Layout is the textual form of batch timestamps in generated SQL.
const Layout = "2006-01-02 15:04:05"

// MetadataLayout is the batch start timestamp layout in batch metadata rows.
const MetadataLayout = "2006-01-02 15:04:05.000000"

// Clock returns the current batch time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Step is a deterministic clock that starts at a fixed instant and advances by
// a fixed step on every call after the first. Safe for concurrent use.
type Step struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewStep creates a Step clock. A zero step yields a fixed clock.
func NewStep(start time.Time, step time.Duration) *Step {
	return &Step{start: start.UTC(), step: step}
}

// Now returns start + step*n, where n counts previous calls.
func (s *Step) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.start.Add(time.Duration(s.calls) * s.step)
	s.calls++
	return t
}

// Reset rewinds the clock so the next call returns the start time again.
func (s *Step) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = 0
}

// Format renders t in Layout after converting to UTC.
func Format(t time.Time) string { return t.UTC().Format(Layout) }
