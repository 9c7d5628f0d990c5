package task

import (
	"sync"
	"time"
)

// DefaultThrottleWindow bounds how often document updates reach the UI.
const DefaultThrottleWindow = 100 * time.Millisecond

type timerHandle interface {
	Stop() bool
}

func afterFunc(d time.Duration, fn func()) timerHandle {
	return time.AfterFunc(d, fn)
}

// Throttle coalesces bursts of notifications into at most one publish per
// window. The first Notify in an idle window arms a single timer; further
// calls only update the value. When the timer fires, the latest value is
// published (read-at-fire: rapid calls "a", "b", "c" inside one window
// publish "c" once) and the throttle returns to idle. There is never more
// than one pending timer.
type Throttle struct {
	mu      sync.Mutex
	window  time.Duration
	publish func(string)
	after   func(time.Duration, func()) timerHandle

	pending timerHandle
	latest  string
	stopped bool
}

func NewThrottle(window time.Duration, publish func(string)) *Throttle {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	return &Throttle{window: window, publish: publish, after: afterFunc}
}

// Notify records a new value for the next publish, arming the window timer
// if none is pending.
func (t *Throttle) Notify(value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.latest = value
	if t.pending != nil {
		return
	}
	t.pending = t.after(t.window, t.fire)
}

func (t *Throttle) fire() {
	t.mu.Lock()
	if t.stopped || t.pending == nil {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	value := t.latest
	pub := t.publish
	t.mu.Unlock()
	if pub != nil {
		pub(value)
	}
}

// Flush publishes the pending value immediately, cancelling the timer. A
// no-op when no publish is pending.
func (t *Throttle) Flush() {
	t.mu.Lock()
	if t.stopped || t.pending == nil {
		t.mu.Unlock()
		return
	}
	t.pending.Stop()
	t.pending = nil
	value := t.latest
	pub := t.publish
	t.mu.Unlock()
	if pub != nil {
		pub(value)
	}
}

// Stop cancels any pending publish and disables the throttle for good.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
