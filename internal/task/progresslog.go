package task

import (
	"sync"
	"time"

	"vibeblog-cli/internal/api"
)

// Kind classifies a progress log item for presentation.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindError
	KindWarning
	KindStream
	KindSearch
	KindCrawl
	KindDivider
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindWarning:
		return "warning"
	case KindStream:
		return "stream"
	case KindSearch:
		return "search"
	case KindCrawl:
		return "crawl"
	case KindDivider:
		return "divider"
	default:
		return "unknown"
	}
}

// Item is one activity log entry. Search items carry their query and, once
// resolved, the result list; the live stream item carries the planner's
// accumulated draft.
type Item struct {
	Time    time.Time
	Kind    Kind
	Message string
	Detail  string

	// Search state. Searching marks a query still in flight; resolution
	// rewrites the item in place.
	Query     string
	Searching bool
	Results   []api.SearchResult

	// Stream state. Live marks the single in-place-updated preview item.
	Stage string
	Live  bool
}

// Log is the append-mostly activity feed for one task. Two exceptions to
// append-only: a search item is replaced in place when its results arrive,
// and the live stream item is updated in place as draft text accumulates.
type Log struct {
	mu        sync.Mutex
	now       func() time.Time
	items     []Item
	streamIdx int // index of the live stream item, -1 when none
}

func NewLog() *Log {
	return &Log{now: time.Now, streamIdx: -1}
}

// Append adds a plain item.
func (l *Log) Append(kind Kind, message, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, Item{Time: l.now(), Kind: kind, Message: message, Detail: detail})
}

// Divider adds a visual separator item.
func (l *Log) Divider() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, Item{Time: l.now(), Kind: KindDivider})
}

// StartSearch records a query going out. The item stays transient until
// ResolveSearch or ForceResolveSearches rewrites it.
func (l *Log) StartSearch(query string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, Item{
		Time:      l.now(),
		Kind:      KindSearch,
		Message:   query,
		Query:     query,
		Searching: true,
	})
}

// ResolveSearch replaces the in-flight item for query in place, preserving
// its list position. Preference order: exact query match, then the most
// recent still-searching item, then append as a fresh item.
func (l *Log) ResolveSearch(query, detail string, results []api.SearchResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i := len(l.items) - 1; i >= 0; i-- {
		it := &l.items[i]
		if it.Kind != KindSearch || !it.Searching {
			continue
		}
		if it.Query == query {
			idx = i
			break
		}
		if idx == -1 {
			idx = i
		}
	}
	if idx == -1 {
		l.items = append(l.items, Item{
			Time:    l.now(),
			Kind:    KindSearch,
			Message: query,
			Query:   query,
			Detail:  detail,
			Results: results,
		})
		return
	}
	it := &l.items[idx]
	it.Message = query
	it.Query = query
	it.Detail = detail
	it.Results = results
	it.Searching = false
}

// ForceResolveSearches marks every still-searching item resolved. Called
// when the research phase ends so stale transient items never outlive it.
func (l *Log) ForceResolveSearches() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].Kind == KindSearch {
			l.items[i].Searching = false
		}
	}
}

// UpdateStream updates the live draft-preview item in place, appending one
// first if none is live. At most one stream item is live at a time.
func (l *Log) UpdateStream(stage, accumulated string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.streamIdx >= 0 {
		it := &l.items[l.streamIdx]
		it.Stage = stage
		it.Message = accumulated
		return
	}
	l.items = append(l.items, Item{
		Time:    l.now(),
		Kind:    KindStream,
		Stage:   stage,
		Message: accumulated,
		Live:    true,
	})
	l.streamIdx = len(l.items) - 1
}

// SealStream finalizes the live stream item, if any. The item stays in the
// log; subsequent UpdateStream calls start a fresh one.
func (l *Log) SealStream() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.streamIdx >= 0 {
		l.items[l.streamIdx].Live = false
		l.streamIdx = -1
	}
}

// Items returns a snapshot copy.
func (l *Log) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// SearchingCount returns how many search items are still in flight.
func (l *Log) SearchingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := range l.items {
		if l.items[i].Kind == KindSearch && l.items[i].Searching {
			n++
		}
	}
	return n
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
	l.streamIdx = -1
}
