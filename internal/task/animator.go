package task

import (
	"sync"
	"time"
)

// Animator defaults. Speed is in characters per second.
const (
	DefaultTypingSpeed   = 320
	DefaultSkipThreshold = 200

	frameInterval = 33 * time.Millisecond
)

// FrameScheduler requests one future frame callback and returns a function
// that releases it. Injectable so the animator runs without a real clock in
// tests; the default schedules at roughly 30 fps.
type FrameScheduler func(fn func(now time.Time)) (cancel func())

func defaultFrameScheduler(fn func(time.Time)) func() {
	t := time.AfterFunc(frameInterval, func() { fn(time.Now()) })
	return func() { t.Stop() }
}

// Animator makes a displayed string chase a growing target at a bounded
// character rate. Snap cases, checked on every target change: the first
// non-empty content, a target shorter than what is displayed, a replaced
// (non-prefix) target, a jump larger than the skip threshold, or a disabled
// animator. Otherwise a frame loop advances at least one character per
// frame until it catches up. A target that grows mid-flight does not
// restart the loop; the in-flight frames keep chasing.
type Animator struct {
	mu       sync.Mutex
	schedule FrameScheduler
	onFrame  func(string)
	speed    float64
	skip     int
	enabled  bool

	target    []rune
	shown     int
	debt      float64
	lastFrame time.Time
	cancel    func()
}

// NewAnimator creates an animator delivering every displayed-text change to
// onFrame. Frames fire on the scheduler's goroutine.
func NewAnimator(onFrame func(string)) *Animator {
	return &Animator{
		schedule: defaultFrameScheduler,
		onFrame:  onFrame,
		speed:    DefaultTypingSpeed,
		skip:     DefaultSkipThreshold,
		enabled:  true,
	}
}

// SetSpeed adjusts the chase rate in characters per second. Values <= 0
// restore the default.
func (a *Animator) SetSpeed(charsPerSec int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if charsPerSec <= 0 {
		a.speed = DefaultTypingSpeed
		return
	}
	a.speed = float64(charsPerSec)
}

// SetEnabled toggles animation. While disabled every target change snaps.
func (a *Animator) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// SetTarget points the animator at new content.
func (a *Animator) SetTarget(s string) {
	target := []rune(s)
	a.mu.Lock()
	prev := a.target
	prevShown := a.shown
	a.target = target

	snap := false
	switch {
	case !a.enabled:
		snap = true
	case prevShown == 0 && len(target) > 0:
		// First content: show it whole, no animation.
		snap = true
	case len(target) < prevShown:
		// Shrink: never animate backwards.
		snap = true
	case !runesHavePrefix(target, prev[:prevShown]):
		// Replaced text: chasing would interleave old and new.
		snap = true
	case len(target)-prevShown > a.skip:
		// Too far behind to be worth animating.
		snap = true
	}

	var out string
	emit := false
	if snap {
		a.releaseLocked()
		a.debt = 0
		a.lastFrame = time.Time{}
		changed := prevShown != len(target) || !runesHavePrefix(target, prev[:prevShown])
		a.shown = len(target)
		if changed {
			out = string(target)
			emit = true
		}
	} else if a.shown < len(a.target) && a.cancel == nil {
		a.cancel = a.schedule(a.frame)
	}
	cb := a.onFrame
	a.mu.Unlock()

	if emit && cb != nil {
		cb(out)
	}
}

func (a *Animator) frame(now time.Time) {
	a.mu.Lock()
	a.cancel = nil
	if a.shown >= len(a.target) {
		a.lastFrame = time.Time{}
		a.mu.Unlock()
		return
	}

	var elapsed time.Duration
	if !a.lastFrame.IsZero() {
		elapsed = now.Sub(a.lastFrame)
	}
	a.lastFrame = now

	a.debt += a.speed * elapsed.Seconds()
	adv := int(a.debt)
	if adv < 1 {
		// Always at least one character per frame so the chase terminates.
		adv = 1
		a.debt = 0
	} else {
		a.debt -= float64(adv)
	}

	a.shown += adv
	if a.shown >= len(a.target) {
		a.shown = len(a.target)
		a.debt = 0
		a.lastFrame = time.Time{}
	} else {
		a.cancel = a.schedule(a.frame)
	}

	out := string(a.target[:a.shown])
	cb := a.onFrame
	a.mu.Unlock()

	if cb != nil {
		cb(out)
	}
}

// Flush cancels any in-flight frame and snaps to the target.
func (a *Animator) Flush() {
	a.mu.Lock()
	a.releaseLocked()
	a.debt = 0
	a.lastFrame = time.Time{}
	changed := a.shown != len(a.target)
	a.shown = len(a.target)
	out := string(a.target)
	cb := a.onFrame
	a.mu.Unlock()

	if changed && cb != nil {
		cb(out)
	}
}

// Stop releases the scheduled frame, leaving the displayed text as is.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked()
	a.lastFrame = time.Time{}
}

// Reset stops the animator and clears all content.
func (a *Animator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked()
	a.target = nil
	a.shown = 0
	a.debt = 0
	a.lastFrame = time.Time{}
}

// Displayed returns the currently revealed text.
func (a *Animator) Displayed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return string(a.target[:a.shown])
}

// Animating reports whether a frame is scheduled.
func (a *Animator) Animating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

func (a *Animator) releaseLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func runesHavePrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}
