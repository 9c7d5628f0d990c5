package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vibeblog-cli/internal/api"
	"vibeblog-cli/internal/logger"
)

// Backend is the slice of the server API the controller drives directly.
// *api.Client satisfies it.
type Backend interface {
	ConfirmOutline(taskID, action, note string) error
	CancelTask(taskID string) (*api.CancelTaskResponse, error)
}

// EventSource is one open event stream. *api.Subscription satisfies it.
type EventSource interface {
	Events() <-chan api.Event
	Close() error
}

// Subscriber opens the event stream for a task.
type Subscriber func(ctx context.Context, taskID string) (EventSource, error)

// Hooks receive controller notifications. All callbacks fire outside the
// controller's lock, on whichever goroutine produced the change (the stream
// consumer, a timer, or the caller of a controller method), so they may call
// back into the controller's getters.
type Hooks struct {
	OnStateChange func(State)
	OnLogChanged  func()
	OnDocument    func(string) // throttled full-document publishes
	OnOutline     func(Outline)
	OnUsage       func(TokenUsage)
	OnDone        func(Result)
}

// Controller owns one task at a time: its lifecycle state, its subscription,
// the document buffer and the activity log. All stream events for a task are
// applied strictly in arrival order by a single consumer goroutine; a new
// Start closes the previous subscription and bumps an epoch so a stale
// stream can never touch the new task's state.
type Controller struct {
	mu        sync.Mutex
	backend   Backend
	subscribe Subscriber
	hooks     Hooks
	window    time.Duration

	epoch      int
	task       Task
	outline    *Outline
	usage      TokenUsage
	citations  []api.Citation
	doc        *Assembler
	log        *Log
	throttle   *Throttle
	source     EventSource
	autoAccept bool
}

func NewController(backend Backend, subscribe Subscriber, hooks Hooks) *Controller {
	return &Controller{
		backend:   backend,
		subscribe: subscribe,
		hooks:     hooks,
		window:    DefaultThrottleWindow,
		doc:       NewAssembler(),
		log:       NewLog(),
	}
}

// SetAutoAccept makes the controller accept the outline checkpoint without
// waiting for a caller decision. Used by the non-interactive mode.
func (c *Controller) SetAutoAccept(auto bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoAccept = auto
}

// Start resets all task-owned state and opens the event stream for taskID.
// Valid from idle or any terminal state; a task in flight must be cancelled
// first.
func (c *Controller) Start(ctx context.Context, taskID, topic string) error {
	c.mu.Lock()
	if c.task.State != StateIdle && !c.task.State.Terminal() {
		state := c.task.State
		id := c.task.ID
		c.mu.Unlock()
		return fmt.Errorf("task %s is still %s", id, state)
	}

	c.epoch++
	epoch := c.epoch
	old := c.source
	c.source = nil
	c.doc.Reset()
	c.log.Reset()
	c.outline = nil
	c.usage = TokenUsage{}
	c.citations = nil
	if c.throttle != nil {
		c.throttle.Stop()
	}
	c.throttle = NewThrottle(c.window, c.publishDocument)
	c.task = Task{ID: taskID, Topic: topic, State: StateConnecting, CreatedAt: time.Now()}
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	c.fireState(StateConnecting)

	source, err := c.subscribe(ctx, taskID)
	if err != nil {
		c.mu.Lock()
		if c.epoch != epoch || c.task.State.Terminal() {
			c.mu.Unlock()
			return err
		}
		c.task.Err = &ErrorInfo{Message: "Could not open the event stream", Details: err.Error()}
		c.task.Message = "Could not open the event stream"
		c.log.Append(KindError, "Could not open the event stream", err.Error())
		after := c.finishLocked(StateError)
		c.mu.Unlock()
		run(after)
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch || c.task.State.Terminal() {
		// Superseded or cancelled while connecting.
		c.mu.Unlock()
		source.Close()
		return nil
	}
	c.source = source
	c.mu.Unlock()

	go c.consume(epoch, source)
	return nil
}

func (c *Controller) consume(epoch int, source EventSource) {
	for ev := range source.Events() {
		if !c.handleEvent(epoch, ev) {
			return
		}
	}
	c.streamEnded(epoch)
}

func (c *Controller) handleEvent(epoch int, ev api.Event) bool {
	c.mu.Lock()
	if c.epoch != epoch || c.task.State.Terminal() {
		c.mu.Unlock()
		return false
	}
	after := c.dispatchLocked(ev)
	c.mu.Unlock()
	run(after)
	return true
}

// streamEnded handles the event channel closing without a terminal event:
// the transport dropped. The log gets a generic entry; Task.Err stays nil
// because there is no application-level message to show.
func (c *Controller) streamEnded(epoch int) {
	c.mu.Lock()
	if c.epoch != epoch || c.task.State.Terminal() {
		c.mu.Unlock()
		return
	}
	c.log.SealStream()
	c.log.Append(KindWarning, "Connection closed unexpectedly", "")
	c.task.Message = "Connection closed unexpectedly"
	after := c.finishLocked(StateError)
	c.mu.Unlock()
	run(after)
}

// ConfirmOutline resolves the outline checkpoint. Only valid while the task
// is outlinePending; the backend resumes writing over the same stream.
func (c *Controller) ConfirmOutline(action, note string) error {
	c.mu.Lock()
	if c.task.State != StateOutlinePending {
		state := c.task.State
		c.mu.Unlock()
		return fmt.Errorf("no outline awaiting confirmation (task is %s)", state)
	}
	id := c.task.ID
	c.mu.Unlock()

	if err := c.backend.ConfirmOutline(id, action, note); err != nil {
		c.mu.Lock()
		c.log.Append(KindError, "Outline confirmation failed", err.Error())
		c.mu.Unlock()
		c.fireLog()
		return err
	}

	c.mu.Lock()
	var after []func()
	// A stream event may have already moved the state while the request was
	// in flight; only transition if the checkpoint is still open.
	if c.task.State == StateOutlinePending {
		c.task.State = StateRunning
		if action == api.OutlineEdit {
			c.task.Message = "Outline edits requested"
			c.log.Append(KindInfo, "Outline edits requested", note)
		} else {
			c.task.Message = "Outline accepted"
			c.log.Append(KindSuccess, "Outline accepted", "")
		}
		after = append(after, func() {
			c.fireState(StateRunning)
			c.fireLog()
		})
	}
	c.mu.Unlock()
	run(after)
	return nil
}

// Cancel ends the task from any non-terminal state. Safe to call twice; the
// second call is a no-op. The backend is told best-effort, the local state
// terminates regardless.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.task.State == StateIdle || c.task.State.Terminal() {
		c.mu.Unlock()
		return
	}
	id := c.task.ID
	c.log.SealStream()
	c.log.Append(KindWarning, "Generation cancelled", "")
	c.task.Message = "Cancelled"
	after := c.finishLocked(StateCancelled)
	backend := c.backend
	c.mu.Unlock()

	if backend != nil {
		go func() {
			resp, err := backend.CancelTask(id)
			if err != nil {
				logger.Debugf("cancel task %s: %v", id, err)
				return
			}
			if resp != nil && !resp.Success && resp.Error != "" {
				logger.Debugf("cancel task %s refused: %s", id, resp.Error)
			}
		}()
	}
	run(after)
}

// finishLocked enters a terminal state: stamps the task, detaches the
// subscription and builds the teardown and notification closures. Caller
// holds c.mu.
func (c *Controller) finishLocked(state State) []func() {
	c.task.State = state
	c.task.FinishedAt = time.Now()
	source := c.source
	c.source = nil
	throttle := c.throttle
	res := c.resultLocked()

	return []func(){
		func() {
			if source != nil {
				source.Close()
			}
			if throttle != nil {
				// Publish whatever document text is still pending before the
				// done notification.
				throttle.Flush()
				throttle.Stop()
			}
		},
		func() {
			c.fireState(state)
			c.fireLog()
			c.fireDone(res)
		},
	}
}

func (c *Controller) resultLocked() Result {
	res := Result{
		TaskID:   c.task.ID,
		Topic:    c.task.Topic,
		State:    c.task.State,
		Document: c.doc.Document(),
		Usage:    c.usage,
	}
	if !c.task.FinishedAt.IsZero() {
		res.Elapsed = c.task.FinishedAt.Sub(c.task.CreatedAt)
	}
	if len(c.citations) > 0 {
		res.Citations = append([]api.Citation(nil), c.citations...)
	}
	if c.task.Err != nil {
		e := *c.task.Err
		res.Err = &e
	}
	return res
}

func (c *Controller) publishDocument(doc string) {
	if c.hooks.OnDocument != nil {
		c.hooks.OnDocument(doc)
	}
}

// --- Snapshots for the presentation layer ---

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task.State
}

// TaskView returns a copy of the task record.
func (c *Controller) TaskView() Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.task
	if c.task.Err != nil {
		e := *c.task.Err
		t.Err = &e
	}
	return t
}

// Document returns the current full document text.
func (c *Controller) Document() string {
	return c.doc.Document()
}

// LogItems returns a snapshot of the activity log.
func (c *Controller) LogItems() []Item {
	return c.log.Items()
}

// OutlineView returns the proposed outline, if one has arrived.
func (c *Controller) OutlineView() (Outline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outline == nil {
		return Outline{}, false
	}
	o := Outline{Title: c.outline.Title}
	o.SectionTitles = append(o.SectionTitles, c.outline.SectionTitles...)
	o.Sections = append(o.Sections, c.outline.Sections...)
	return o, true
}

func (c *Controller) Usage() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// --- Hook firing (never under c.mu) ---

func (c *Controller) fireState(s State) {
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(s)
	}
}

func (c *Controller) fireLog() {
	if c.hooks.OnLogChanged != nil {
		c.hooks.OnLogChanged()
	}
}

func (c *Controller) fireOutline(o Outline) {
	if c.hooks.OnOutline != nil {
		c.hooks.OnOutline(o)
	}
}

func (c *Controller) fireUsage(u TokenUsage) {
	if c.hooks.OnUsage != nil {
		c.hooks.OnUsage(u)
	}
}

func (c *Controller) fireDone(r Result) {
	if c.hooks.OnDone != nil {
		c.hooks.OnDone(r)
	}
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
