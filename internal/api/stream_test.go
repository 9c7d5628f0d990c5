package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// sseServer streams the given raw SSE body and then closes the response.
func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer is not a flusher")
		}
		fmt.Fprint(w, body)
		flusher.Flush()
	}))
}

func collectEvents(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for stream end; got %d events", len(events))
		}
	}
}

func TestSubscribeDeliversTypedEvents(t *testing.T) {
	body := "event: connected\n" +
		"data: {\"task_id\":\"t-1\"}\n" +
		"\n" +
		": keepalive comment\n" +
		"id: 17\n" +
		"retry: 3000\n" +
		"event: progress\n" +
		"data: {\"stage\":\"research\",\"message\":\"Searching\"}\n" +
		"\n" +
		"event: writing_chunk\n" +
		"data: {\"section_title\":\"Intro\",\"delta\":\"Hello\"}\n" +
		"\n" +
		"event: complete\n" +
		"data: {\"markdown\":\"# Done\"}\n" +
		"\n"

	srv := sseServer(t, body)
	defer srv.Close()

	sub, err := testClient(srv.URL).Subscribe(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	events := collectEvents(t, sub)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %#v", len(events), events)
	}
	if ev, ok := events[0].(ConnectedEvent); !ok || ev.TaskID != "t-1" {
		t.Errorf("events[0] = %#v", events[0])
	}
	if ev, ok := events[1].(ProgressEvent); !ok || ev.Stage != "research" {
		t.Errorf("events[1] = %#v", events[1])
	}
	if ev, ok := events[2].(WritingChunkEvent); !ok || ev.Delta != "Hello" {
		t.Errorf("events[2] = %#v", events[2])
	}
	if ev, ok := events[3].(CompleteEvent); !ok || ev.Markdown != "# Done" {
		t.Errorf("events[3] = %#v", events[3])
	}
}

func TestSubscribeMultiLineData(t *testing.T) {
	// Multi-line data fields join with newlines before parsing.
	body := "event: stream\n" +
		"data: {\"stage\":\"planning\",\n" +
		"data: \"accumulated\":\"draft\"}\n" +
		"\n"

	srv := sseServer(t, body)
	defer srv.Close()

	sub, err := testClient(srv.URL).Subscribe(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	events := collectEvents(t, sub)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if ev, ok := events[0].(StreamEvent); !ok || ev.Accumulated != "draft" {
		t.Errorf("events[0] = %#v", events[0])
	}
}

func TestSubscribeSkipsGarbage(t *testing.T) {
	// Unknown event names and malformed payloads are dropped; valid events
	// before and after still arrive.
	body := "event: connected\n" +
		"data: {}\n" +
		"\n" +
		"event: heartbeat\n" +
		"data: {\"n\":1}\n" +
		"\n" +
		"event: progress\n" +
		"data: {\"stage\":\n" +
		"\n" +
		"event: progress\n" +
		"data: {\"stage\":\"write\",\"message\":\"ok\"}\n" +
		"\n"

	srv := sseServer(t, body)
	defer srv.Close()

	sub, err := testClient(srv.URL).Subscribe(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	events := collectEvents(t, sub)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %#v", len(events), events)
	}
	if _, ok := events[0].(ConnectedEvent); !ok {
		t.Errorf("events[0] = %#v", events[0])
	}
	if ev, ok := events[1].(ProgressEvent); !ok || ev.Stage != "write" {
		t.Errorf("events[1] = %#v", events[1])
	}
}

func TestSubscribeTrailingEventWithoutBlankLine(t *testing.T) {
	body := "event: connected\n" +
		"data: {\"task_id\":\"t-2\"}\n"

	srv := sseServer(t, body)
	defer srv.Close()

	sub, err := testClient(srv.URL).Subscribe(context.Background(), "t-2")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	events := collectEvents(t, sub)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
}

func TestSubscribeCloseIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		// Hold the stream open until the client goes away.
		<-r.Context().Done()
	}))
	defer srv.Close()

	sub, err := testClient(srv.URL).Subscribe(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := sub.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// The events channel must drain and close after Close.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("events channel never closed after Close")
		}
	}
}

func TestSubscribeBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such task", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Subscribe(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSubscribeContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := testClient(srv.URL).Subscribe(ctx, "t-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("events channel never closed after context cancel")
		}
	}
}
