package store

import (
	"sync"
	"time"
)

// Timer supports a single pending deadline with a single registered
// callback: arm(deadline), rearm(deadline), one callback. Arm with Never
// disarms.
type Timer interface {
	Arm(deadlineNanos int64)
}

// SystemTimer is the production Timer: it translates a deadline on the
// Clock's timeline into a real time.Timer duration, and fires by submitting
// the registered callback to a Loop — so the fire-handler always runs on
// the store's single execution context, never on the time.AfterFunc
// goroutine directly.
type SystemTimer struct {
	clock  Clock
	loop   *Loop
	onFire func()

	mu        sync.Mutex
	wallTimer *time.Timer
}

var _ Timer = (*SystemTimer)(nil)

// NewSystemTimer constructs a disarmed SystemTimer that submits onFire to
// loop whenever an armed deadline elapses.
func NewSystemTimer(clock Clock, loop *Loop, onFire func()) *SystemTimer {
	return &SystemTimer{clock: clock, loop: loop, onFire: onFire}
}

func (t *SystemTimer) Arm(deadlineNanos int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.wallTimer != nil {
		t.wallTimer.Stop()
		t.wallTimer = nil
	}
	if deadlineNanos == Never {
		return
	}
	delay := time.Duration(deadlineNanos - t.clock.NowNanos())
	if delay < 0 {
		delay = 0
	}
	t.wallTimer = time.AfterFunc(delay, func() { t.loop.Submit(t.onFire) })
}

// ManualTimer is a Timer double for tests: it records the last armed
// deadline instead of scheduling anything, so a test can advance a FakeClock
// and invoke the store's sweep directly without waiting on real time.
type ManualTimer struct {
	deadline int64
	armed    bool
}

var _ Timer = (*ManualTimer)(nil)

// NewManualTimer constructs a disarmed ManualTimer.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{deadline: Never}
}

func (t *ManualTimer) Arm(deadlineNanos int64) {
	t.deadline = deadlineNanos
	t.armed = deadlineNanos != Never
}

// Deadline returns the last armed deadline (meaningful only if Armed()).
func (t *ManualTimer) Deadline() int64 { return t.deadline }

// Armed reports whether the timer currently has a pending deadline.
func (t *ManualTimer) Armed() bool { return t.armed }
