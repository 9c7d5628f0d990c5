package api

import (
	"bytes"
	"encoding/json"
)

// Event names pushed by the server. One SSE channel exists per task and
// carries these in pipeline order.
const (
	eventConnected    = "connected"
	eventProgress     = "progress"
	eventLog          = "log"
	eventStream       = "stream"
	eventOutlineReady = "outline_ready"
	eventWritingChunk = "writing_chunk"
	eventResult       = "result"
	eventComplete     = "complete"
	eventError        = "error"
)

// Result sub-types carried inside a "result" event. Unknown sub-types are
// still delivered; consumers fall back to a generic rendering.
const (
	ResultSearchStarted      = "search_started"
	ResultSearchResults      = "search_results"
	ResultCrawlCompleted     = "crawl_completed"
	ResultResearcherComplete = "researcher_complete"
	ResultOutlineComplete    = "outline_complete"
	ResultSectionComplete    = "section_complete"
	ResultReviewerComplete   = "reviewer_complete"
	ResultAssemblerComplete  = "assembler_complete"
	ResultTokenUsage         = "token_usage"
)

// Event is the closed set of notifications a task subscription can deliver.
// Consumers dispatch with a type switch. DisconnectEvent is synthesized
// locally when the transport fails; everything else comes off the wire.
type Event interface{ event() }

type ConnectedEvent struct {
	TaskID string `json:"task_id"`
}

type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type LogEvent struct {
	Logger  string `json:"logger"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// StreamEvent carries the planner's accumulated draft text while the outline
// is being written (the "stream" wire event, not to be confused with the
// subscription itself).
type StreamEvent struct {
	Stage       string `json:"stage"`
	Accumulated string `json:"accumulated"`
}

type OutlineSection struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

type OutlineReadyEvent struct {
	Title         string           `json:"title"`
	SectionTitles []string         `json:"sections_titles"`
	Sections      []OutlineSection `json:"sections"`
}

// WritingChunkEvent carries new text for one section. When Absolute is set,
// Accumulated replaces the section's text wholesale; otherwise Delta is
// appended. The two are never combined.
type WritingChunkEvent struct {
	SectionTitle string
	Delta        string
	Accumulated  string
	Absolute     bool
}

// Text returns the payload to apply: the full snapshot when Absolute, the
// increment otherwise.
func (ev WritingChunkEvent) Text() string {
	if ev.Absolute {
		return ev.Accumulated
	}
	return ev.Delta
}

type ResultEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type CompleteEvent struct {
	Markdown  string     `json:"markdown"`
	Citations []Citation `json:"citations"`
	TaskID    string     `json:"id"`
}

type ErrorEvent struct {
	Message string `json:"message"`
	Details string `json:"details"`
}

// DisconnectEvent reports that the stream's transport failed while the
// subscription was still open. A cleanly finished stream does not produce
// one; its channel just closes.
type DisconnectEvent struct {
	Err error
}

func (ConnectedEvent) event()    {}
func (ProgressEvent) event()     {}
func (LogEvent) event()          {}
func (StreamEvent) event()       {}
func (OutlineReadyEvent) event() {}
func (WritingChunkEvent) event() {}
func (ResultEvent) event()       {}
func (CompleteEvent) event()     {}
func (ErrorEvent) event()        {}
func (DisconnectEvent) event()   {}

// Payloads of "result" sub-types. Data shapes the server does not populate
// simply decode to zero values.

type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type SearchStartedData struct {
	Query string `json:"query"`
}

type SearchResultsData struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

type CrawlCompletedData struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type SectionCompleteData struct {
	Title string `json:"title"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

// TokenUsageData reports cumulative counters for the whole task, not a
// per-event increment.
type TokenUsageData struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StageMessageData is the loose payload of the *_complete stage markers and
// of unrecognized sub-types.
type StageMessageData struct {
	Message string `json:"message"`
}

// ParseEvent turns a raw wire event into a typed one. Unknown event names
// and malformed payloads return ok=false; the caller drops them without
// surfacing anything, so backend schema drift never corrupts client state.
func ParseEvent(name string, data []byte) (Event, bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	switch name {
	case eventConnected:
		var ev ConnectedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false
		}
		return ev, true
	case eventProgress:
		var ev ProgressEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false
		}
		return ev, true
	case eventLog:
		var ev LogEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false
		}
		return ev, true
	case eventStream:
		var ev StreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false
		}
		return ev, true
	case eventOutlineReady:
		var ev OutlineReadyEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false
		}
		return ev, true
	case eventWritingChunk:
		var raw struct {
			SectionTitle string  `json:"section_title"`
			Delta        string  `json:"delta"`
			Accumulated  *string `json:"accumulated"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, false
		}
		ev := WritingChunkEvent{SectionTitle: raw.SectionTitle, Delta: raw.Delta}
		if raw.Accumulated != nil {
			ev.Accumulated = *raw.Accumulated
			ev.Absolute = true
		}
		return ev, true
	case eventResult:
		var ev ResultEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false
		}
		return ev, true
	case eventComplete:
		var ev CompleteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false
		}
		return ev, true
	case eventError:
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, false
		}
		return ev, true
	}
	return nil, false
}
