package task

// DefaultFollowThreshold is tuned for pixel-scale views; line-based views
// pass something smaller.
const DefaultFollowThreshold = 200

// ScrollView is the minimal surface the follower needs from a scrollable
// container. Distances are in whatever unit the view reports.
type ScrollView interface {
	ScrollTop() int
	ViewHeight() int
	ContentHeight() int
	SetScrollTop(top int)
}

// Follower decides, per content change, whether a scroll container should
// chase its bottom. While the user stays within threshold of the bottom the
// view is pinned there; once they scroll away it is left alone. Not
// goroutine-safe: drive it from the UI loop that owns the view.
type Follower struct {
	threshold int
	following bool
}

func NewFollower(threshold int) *Follower {
	if threshold <= 0 {
		threshold = DefaultFollowThreshold
	}
	return &Follower{threshold: threshold, following: true}
}

// OnContentChanged re-evaluates the follow decision after the view's content
// was updated. A nil view is a silent no-op.
func (f *Follower) OnContentChanged(v ScrollView) {
	if v == nil {
		return
	}
	distance := v.ContentHeight() - v.ScrollTop() - v.ViewHeight()
	f.following = distance < f.threshold
	if f.following {
		f.toBottom(v)
	}
}

// ScrollToBottom scrolls regardless of the current position and resumes
// following.
func (f *Follower) ScrollToBottom(v ScrollView) {
	if v == nil {
		return
	}
	f.following = true
	f.toBottom(v)
}

// Following reports whether the view is currently pinned to the bottom.
func (f *Follower) Following() bool {
	return f.following
}

func (f *Follower) toBottom(v ScrollView) {
	// Bottom is computed at scroll time; content may have grown since the
	// follow decision.
	top := v.ContentHeight() - v.ViewHeight()
	if top < 0 {
		top = 0
	}
	v.SetScrollTop(top)
}
