package task

import (
	"encoding/json"
	"fmt"

	"vibeblog-cli/internal/api"
	"vibeblog-cli/internal/logger"
)

// dispatchLocked applies one stream event to the task and returns the hook
// notifications to run after the lock is released. Caller holds c.mu and has
// already rejected stale and post-terminal events.
func (c *Controller) dispatchLocked(ev api.Event) []func() {
	switch ev := ev.(type) {
	case api.ConnectedEvent:
		return c.connectedLocked(ev)
	case api.ProgressEvent:
		return c.progressLocked(ev)
	case api.LogEvent:
		return c.logEventLocked(ev)
	case api.StreamEvent:
		c.log.UpdateStream(ev.Stage, ev.Accumulated)
		return []func(){c.fireLog}
	case api.OutlineReadyEvent:
		return c.outlineReadyLocked(ev)
	case api.WritingChunkEvent:
		return c.writingChunkLocked(ev)
	case api.ResultEvent:
		return c.applyResultLocked(ev)
	case api.CompleteEvent:
		return c.completeLocked(ev)
	case api.ErrorEvent:
		return c.errorLocked(ev)
	case api.DisconnectEvent:
		return c.disconnectLocked(ev)
	default:
		logger.Debugf("unhandled event type %T", ev)
		return nil
	}
}

func (c *Controller) connectedLocked(ev api.ConnectedEvent) []func() {
	if ev.TaskID != "" && ev.TaskID != c.task.ID {
		logger.Debugf("connected event for task %s, expected %s", ev.TaskID, c.task.ID)
	}
	stateChanged := false
	if c.task.State == StateConnecting {
		c.task.State = StateRunning
		stateChanged = true
	}
	c.task.Message = "Connected, pipeline starting"
	c.log.Append(KindInfo, "Connected", "")
	return []func(){func() {
		if stateChanged {
			c.fireState(StateRunning)
		}
		c.fireLog()
	}}
}

func (c *Controller) progressLocked(ev api.ProgressEvent) []func() {
	if ev.Stage != "" {
		c.task.StatusLabel = ev.Stage
	}
	if ev.Message != "" {
		c.task.Message = ev.Message
		c.log.Append(KindInfo, ev.Message, ev.Stage)
	}
	return []func(){c.fireLog}
}

func (c *Controller) logEventLocked(ev api.LogEvent) []func() {
	switch ev.Level {
	case "debug":
		logger.Debugf("server %s: %s", ev.Logger, ev.Message)
		return nil
	case "error":
		c.log.Append(KindError, ev.Message, ev.Logger)
	case "warning", "warn":
		c.log.Append(KindWarning, ev.Message, ev.Logger)
	default:
		c.log.Append(KindInfo, ev.Message, ev.Logger)
	}
	return []func(){c.fireLog}
}

func (c *Controller) outlineReadyLocked(ev api.OutlineReadyEvent) []func() {
	c.log.SealStream()

	o := &Outline{Title: ev.Title}
	o.SectionTitles = append(o.SectionTitles, ev.SectionTitles...)
	o.Sections = append(o.Sections, ev.Sections...)
	if len(o.SectionTitles) == 0 {
		for _, s := range ev.Sections {
			o.SectionTitles = append(o.SectionTitles, s.Title)
		}
	}
	c.outline = o

	stateChanged := c.task.State != StateOutlinePending
	c.task.State = StateOutlinePending
	c.task.StatusLabel = "outline"
	c.task.Message = "Outline ready, awaiting review"
	title := ev.Title
	if title == "" {
		title = c.task.Topic
	}
	c.log.Append(KindSuccess, "Outline ready: "+title, fmt.Sprintf("%d sections", len(o.SectionTitles)))

	snapshot := *o
	auto := c.autoAccept
	return []func(){func() {
		if stateChanged {
			c.fireState(StateOutlinePending)
		}
		c.fireLog()
		c.fireOutline(snapshot)
		if auto {
			if err := c.ConfirmOutline(api.OutlineAccept, ""); err != nil {
				logger.Debugf("auto-accept outline: %v", err)
			}
		}
	}}
}

func (c *Controller) writingChunkLocked(ev api.WritingChunkEvent) []func() {
	// The backend moves straight into writing once the outline is settled
	// server-side; a chunk arriving while the checkpoint is open means the
	// confirmation raced the stream.
	stateChanged := false
	if c.task.State == StateOutlinePending {
		c.task.State = StateRunning
		stateChanged = true
	}
	c.task.StatusLabel = "writing"
	if ev.SectionTitle != "" {
		c.task.Message = "Writing: " + ev.SectionTitle
	}
	c.doc.Apply(ev.SectionTitle, ev.Text(), ev.Absolute)
	c.throttle.Notify(c.doc.Document())
	if !stateChanged {
		return nil
	}
	return []func(){func() {
		c.fireState(StateRunning)
	}}
}

func (c *Controller) completeLocked(ev api.CompleteEvent) []func() {
	c.log.SealStream()
	c.log.ForceResolveSearches()
	if ev.Markdown != "" {
		c.doc.SetFinal(ev.Markdown)
	}
	if len(ev.Citations) > 0 {
		c.citations = append([]api.Citation(nil), ev.Citations...)
	}
	c.task.StatusLabel = "done"
	c.task.Message = "Generation complete"
	detail := ""
	if n := len(c.citations); n > 0 {
		detail = fmt.Sprintf("%d citations", n)
	}
	c.log.Append(KindSuccess, "Generation complete", detail)
	c.throttle.Notify(c.doc.Document())
	return c.finishLocked(StateComplete)
}

func (c *Controller) errorLocked(ev api.ErrorEvent) []func() {
	c.log.SealStream()
	msg := ev.Message
	if msg == "" {
		msg = "Generation failed"
	}
	c.task.Err = &ErrorInfo{Message: msg, Details: ev.Details}
	c.task.Message = msg
	c.log.Append(KindError, msg, ev.Details)
	return c.finishLocked(StateError)
}

func (c *Controller) disconnectLocked(ev api.DisconnectEvent) []func() {
	c.log.SealStream()
	detail := ""
	if ev.Err != nil {
		detail = ev.Err.Error()
	}
	c.log.Append(KindWarning, "Connection lost", detail)
	c.task.Message = "Connection lost"
	return c.finishLocked(StateError)
}

// applyResultLocked folds a pipeline result event into the log. Unknown
// sub-types with a message payload still surface as plain progress; anything
// else is dropped with a debug trace.
func (c *Controller) applyResultLocked(ev api.ResultEvent) []func() {
	switch ev.Type {
	case api.ResultSearchStarted:
		var d api.SearchStartedData
		if err := json.Unmarshal(ev.Data, &d); err != nil || d.Query == "" {
			logger.Debugf("bad search_started payload: %s", ev.Data)
			return nil
		}
		c.log.StartSearch(d.Query)
		return []func(){c.fireLog}

	case api.ResultSearchResults:
		var d api.SearchResultsData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			logger.Debugf("bad search_results payload: %s", ev.Data)
			return nil
		}
		detail := fmt.Sprintf("%d results", len(d.Results))
		c.log.ResolveSearch(d.Query, detail, d.Results)
		return []func(){c.fireLog}

	case api.ResultCrawlCompleted:
		var d api.CrawlCompletedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			logger.Debugf("bad crawl_completed payload: %s", ev.Data)
			return nil
		}
		title := d.Title
		if title == "" {
			title = d.URL
		}
		c.log.Append(KindCrawl, title, d.URL)
		return []func(){c.fireLog}

	case api.ResultResearcherComplete:
		c.log.ForceResolveSearches()
		c.log.Append(KindSuccess, stageMessage(ev.Data, "Research complete"), "")
		return []func(){c.fireLog}

	case api.ResultOutlineComplete:
		c.log.Append(KindSuccess, stageMessage(ev.Data, "Outline complete"), "")
		return []func(){c.fireLog}

	case api.ResultSectionComplete:
		var d api.SectionCompleteData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			logger.Debugf("bad section_complete payload: %s", ev.Data)
			return nil
		}
		msg := "Section complete"
		if d.Title != "" {
			msg = "Section complete: " + d.Title
		}
		detail := ""
		if d.Total > 0 {
			detail = fmt.Sprintf("%d/%d", d.Index, d.Total)
		}
		c.log.Append(KindSuccess, msg, detail)
		return []func(){c.fireLog}

	case api.ResultReviewerComplete:
		c.log.Append(KindSuccess, stageMessage(ev.Data, "Review complete"), "")
		return []func(){c.fireLog}

	case api.ResultAssemblerComplete:
		c.log.Append(KindSuccess, stageMessage(ev.Data, "Draft assembled"), "")
		return []func(){c.fireLog}

	case api.ResultTokenUsage:
		var d api.TokenUsageData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			logger.Debugf("bad token_usage payload: %s", ev.Data)
			return nil
		}
		// Counters are cumulative; never move them backwards.
		if d.TotalTokens < c.usage.Total {
			logger.Debugf("token_usage went backwards: %d < %d", d.TotalTokens, c.usage.Total)
			return nil
		}
		c.usage = TokenUsage{Prompt: d.PromptTokens, Completion: d.CompletionTokens, Total: d.TotalTokens}
		u := c.usage
		return []func(){func() { c.fireUsage(u) }}

	default:
		var d api.StageMessageData
		if err := json.Unmarshal(ev.Data, &d); err == nil && d.Message != "" {
			c.log.Append(KindInfo, d.Message, ev.Type)
			return []func(){c.fireLog}
		}
		logger.Debugf("ignoring result event %q", ev.Type)
		return nil
	}
}

func stageMessage(data json.RawMessage, fallback string) string {
	var d api.StageMessageData
	if err := json.Unmarshal(data, &d); err == nil && d.Message != "" {
		return d.Message
	}
	return fallback
}
