package mocks

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
)

// Ensure the fake clock implements Clock
var _ clock.Clock = (*clockwork.FakeClock)(nil)

// Epoch is the fixed start time used by fake clocks in tests
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// NewFakeClock creates a fake clock set to Epoch
func NewFakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(Epoch)
}
