package tui

import (
	"context"

	"vibeblog-cli/internal/api"
	"vibeblog-cli/internal/history"
	"vibeblog-cli/internal/task"

	tea "github.com/charmbracelet/bubbletea"
)

// ─── Messages sent from controller hooks to Bubble Tea ──────────────────────

type ctrlStateMsg struct {
	state task.State
}

type ctrlLogMsg struct{}

type ctrlOutlineMsg struct {
	outline task.Outline
}

type ctrlUsageMsg struct {
	usage task.TokenUsage
}

type ctrlDoneMsg struct {
	result task.Result
}

// frameMsg carries one animation frame of the live draft.
type frameMsg struct {
	text string
}

type taskCreatedMsg struct {
	taskID string
	topic  string
	err    error
}

type taskStartedMsg struct {
	err error
}

type confirmSentMsg struct {
	err error
}

type historySavedMsg struct {
	err error
}

// ─── Event bridge ───────────────────────────────────────────────────────────
//
// Controller hooks fire on stream and timer goroutines; the bridge carries
// them into the Bubble Tea loop through one channel that waitForEvent keeps
// draining. Update re-arms waitForEvent after every bridged message.

type eventBridge struct {
	ch   chan tea.Msg
	quit chan struct{}
}

func newEventBridge() *eventBridge {
	return &eventBridge{
		ch:   make(chan tea.Msg, 64),
		quit: make(chan struct{}),
	}
}

// send delivers a message the model must see. After shutdown it returns
// immediately so late hooks cannot hang teardown.
func (b *eventBridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	case <-b.quit:
	}
}

// post delivers a disposable message. Animation frames are superseded by the
// next frame anyway, so a full channel just drops them.
func (b *eventBridge) post(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

func (b *eventBridge) shutdown() {
	close(b.quit)
}

// hooks adapts the bridge to the controller. The document feed bypasses the
// channel: it drives the animator, whose frames come back through post.
func (b *eventBridge) hooks(anim *task.Animator) task.Hooks {
	return task.Hooks{
		OnStateChange: func(s task.State) { b.send(ctrlStateMsg{state: s}) },
		OnLogChanged:  func() { b.send(ctrlLogMsg{}) },
		OnDocument:    func(doc string) { anim.SetTarget(doc) },
		OnOutline:     func(o task.Outline) { b.send(ctrlOutlineMsg{outline: o}) },
		OnUsage:       func(u task.TokenUsage) { b.send(ctrlUsageMsg{usage: u}) },
		OnDone:        func(r task.Result) { b.send(ctrlDoneMsg{result: r}) },
	}
}

// waitForEvent reads the next bridged message.
func waitForEvent(b *eventBridge) tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}

// ─── Async commands ─────────────────────────────────────────────────────────

func createTask(client *api.Client, topic, style, language string) tea.Cmd {
	return func() tea.Msg {
		id, err := client.CreateTask(api.CreateTaskRequest{
			Topic:    topic,
			Style:    style,
			Language: language,
		})
		if err != nil {
			return taskCreatedMsg{topic: topic, err: err}
		}
		return taskCreatedMsg{taskID: id, topic: topic}
	}
}

func startRun(ctrl *task.Controller, taskID, topic string) tea.Cmd {
	return func() tea.Msg {
		return taskStartedMsg{err: ctrl.Start(context.Background(), taskID, topic)}
	}
}

func confirmOutline(ctrl *task.Controller, action, note string) tea.Cmd {
	return func() tea.Msg {
		return confirmSentMsg{err: ctrl.ConfirmOutline(action, note)}
	}
}

func cancelRun(ctrl *task.Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.Cancel()
		return nil
	}
}

func saveRecord(store *history.Store, rec history.Record) tea.Cmd {
	return func() tea.Msg {
		return historySavedMsg{err: store.Save(rec)}
	}
}
