package tui

import (
	"testing"
	"time"

	"vibeblog-cli/internal/task"
)

func TestBridgeSendAfterShutdown(t *testing.T) {
	b := newEventBridge()

	// Fill the channel so a plain send would block
	for i := 0; i < cap(b.ch); i++ {
		b.ch <- ctrlLogMsg{}
	}
	b.shutdown()

	done := make(chan struct{})
	go func() {
		b.send(ctrlLogMsg{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked after shutdown")
	}
}

func TestBridgePostDropsWhenFull(t *testing.T) {
	b := newEventBridge()
	for i := 0; i < cap(b.ch); i++ {
		b.ch <- frameMsg{}
	}

	// post never blocks; a full channel just drops the frame
	b.post(frameMsg{text: "dropped"})

	if len(b.ch) != cap(b.ch) {
		t.Errorf("channel length = %d, want %d", len(b.ch), cap(b.ch))
	}
}

func TestWaitForEventDeliversInOrder(t *testing.T) {
	b := newEventBridge()
	b.send(ctrlStateMsg{state: task.StateRunning})
	b.send(ctrlLogMsg{})

	first := waitForEvent(b)()
	sm, ok := first.(ctrlStateMsg)
	if !ok {
		t.Fatalf("first message = %T, want ctrlStateMsg", first)
	}
	if sm.state != task.StateRunning {
		t.Errorf("state = %v, want running", sm.state)
	}

	second := waitForEvent(b)()
	if _, ok := second.(ctrlLogMsg); !ok {
		t.Fatalf("second message = %T, want ctrlLogMsg", second)
	}
}

func TestHooksForwardToBridge(t *testing.T) {
	b := newEventBridge()
	anim := task.NewAnimator(func(frame string) {
		b.post(frameMsg{text: frame})
	})
	anim.SetEnabled(false) // snap instantly so the frame arrives synchronously
	h := b.hooks(anim)

	h.OnStateChange(task.StateRunning)
	if msg, ok := waitForEvent(b)().(ctrlStateMsg); !ok || msg.state != task.StateRunning {
		t.Errorf("OnStateChange forwarded %v", msg)
	}

	h.OnLogChanged()
	if _, ok := waitForEvent(b)().(ctrlLogMsg); !ok {
		t.Error("OnLogChanged should forward a log message")
	}

	h.OnOutline(task.Outline{Title: "T"})
	if msg, ok := waitForEvent(b)().(ctrlOutlineMsg); !ok || msg.outline.Title != "T" {
		t.Errorf("OnOutline forwarded %v", msg)
	}

	h.OnUsage(task.TokenUsage{Total: 7})
	if msg, ok := waitForEvent(b)().(ctrlUsageMsg); !ok || msg.usage.Total != 7 {
		t.Errorf("OnUsage forwarded %v", msg)
	}

	h.OnDone(task.Result{TaskID: "task-1"})
	if msg, ok := waitForEvent(b)().(ctrlDoneMsg); !ok || msg.result.TaskID != "task-1" {
		t.Errorf("OnDone forwarded %v", msg)
	}

	// The document hook feeds the animator, whose frames come back as
	// frame messages rather than bridge sends.
	h.OnDocument("full text")
	if msg, ok := waitForEvent(b)().(frameMsg); !ok || msg.text != "full text" {
		t.Errorf("OnDocument frame = %v", msg)
	}
}
