package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/milestone/internal/clock"
)

// Epoch is the first batch time of StepClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock returns a clock starting at Epoch that advances one hour per
// read, so consecutive batches get distinct, predictable times.
func StepClock() *clock.Step {
	return clock.NewStep(Epoch, time.Hour)
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
