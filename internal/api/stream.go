package api

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"vibeblog-cli/internal/logger"
)

// Subscription is one live event stream for one task. Events arrive on
// Events() in server order; the channel closes when the stream ends or the
// subscription is closed. Close is idempotent and safe to call from any
// goroutine.
type Subscription struct {
	events chan Event
	resp   *http.Response
	ctx    context.Context
	cancel context.CancelFunc

	closeMu sync.Mutex
	closed  bool
}

// Subscribe opens the SSE channel for a task. The returned subscription must
// be closed by the caller; cancelling ctx also tears it down.
func (c *Client) Subscribe(ctx context.Context, taskID string) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tasks/"+taskID+"/events", nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	s := &Subscription{
		events: make(chan Event, 64),
		resp:   resp,
		ctx:    ctx,
		cancel: cancel,
	}
	go s.readLoop()
	return s, nil
}

// Events returns the channel of parsed events. It is closed exactly once,
// after the last event.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close tears down the stream. Calling it twice, or after the stream already
// ended, is a no-op.
func (s *Subscription) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return s.resp.Body.Close()
}

func (s *Subscription) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

// readLoop parses SSE framing: "event:" and "data:" fields accumulate until
// a blank line dispatches them; "id:" and "retry:" are accepted and ignored;
// lines starting with ":" are keepalive comments. Multi-line data joins with
// newlines. Events that fail to parse are dropped here and never reach the
// consumer.
func (s *Subscription) readLoop() {
	defer close(s.events)
	defer s.resp.Body.Close()

	scanner := bufio.NewScanner(s.resp.Body)
	// Writing chunks can carry whole accumulated sections.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var eventName string
	var dataLines []string

	dispatch := func() {
		name := eventName
		data := strings.Join(dataLines, "\n")
		eventName = ""
		dataLines = nil
		if name == "" && data == "" {
			return
		}
		ev, ok := ParseEvent(name, []byte(data))
		if !ok {
			logger.Debugf("stream: dropping event %q (%d data bytes)", name, len(data))
			return
		}
		s.send(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
			// accepted, unused
		}
	}
	dispatch()

	if err := scanner.Err(); err != nil && !s.isClosed() {
		logger.Warnf("stream: transport error: %v", err)
		s.send(DisconnectEvent{Err: err})
	}
}

func (s *Subscription) send(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}
