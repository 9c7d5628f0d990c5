// Package task implements the client-side state machine for one generation
// run: consuming the ordered event stream, assembling the document, keeping
// the activity log, and exposing lifecycle transitions to the presentation
// layer. It has no UI dependency; the TUI and the plain renderer are both
// thin sinks over a Controller.
package task

import (
	"time"

	"vibeblog-cli/internal/api"
)

// State is the lifecycle of a generation task.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateRunning
	StateOutlinePending
	StateComplete
	StateError
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateOutlinePending:
		return "outline_pending"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further lifecycle transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateCancelled
}

// ErrorInfo is the user-facing description of an application error. Transport
// failures terminate a task without one.
type ErrorInfo struct {
	Message string
	Details string
}

// Task is the client-side record of one generation run.
type Task struct {
	ID          string
	Topic       string
	State       State
	StatusLabel string // pipeline stage, e.g. "research", "writing"
	Message     string // latest human-readable status line
	Err         *ErrorInfo
	CreatedAt   time.Time
	FinishedAt  time.Time
}

// Outline is the document skeleton proposed at the checkpoint. Immutable
// once accepted.
type Outline struct {
	Title         string
	SectionTitles []string
	Sections      []api.OutlineSection
}

// TokenUsage mirrors the server's cumulative counters for the task.
type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

// Result is the terminal outcome handed to the presentation layer.
type Result struct {
	TaskID    string
	Topic     string
	State     State
	Document  string
	Citations []api.Citation
	Usage     TokenUsage
	Err       *ErrorInfo
	Elapsed   time.Duration
}
