package task

import (
	"testing"
	"time"

	"vibeblog-cli/internal/api"
)

// testLog returns a log with a stepping clock so item times are
// distinguishable and deterministic.
func testLog() *Log {
	l := NewLog()
	tick := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return l
}

func TestLogResolveSearchKeepsPosition(t *testing.T) {
	l := testLog()
	l.Append(KindInfo, "before", "")
	l.StartSearch("go generics")
	l.Append(KindInfo, "after", "")

	started := l.Items()[1]
	if !started.Searching || started.Query != "go generics" {
		t.Fatalf("StartSearch item = %+v", started)
	}

	l.ResolveSearch("go generics", "2 results", []api.SearchResult{
		{Title: "Go Blog", URL: "https://go.dev/blog"},
		{Title: "Effective Go", URL: "https://go.dev/doc/effective_go"},
	})

	items := l.Items()
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3 (resolve must replace in place)", len(items))
	}
	got := items[1]
	if got.Searching {
		t.Fatal("item still marked searching after resolve")
	}
	if got.Detail != "2 results" || len(got.Results) != 2 {
		t.Fatalf("resolved item = %+v", got)
	}
	if !got.Time.Equal(started.Time) {
		t.Fatalf("resolve changed item time: %v -> %v", started.Time, got.Time)
	}
}

func TestLogResolveSearchPrefersExactQuery(t *testing.T) {
	l := testLog()
	l.StartSearch("first query")
	l.StartSearch("second query")

	l.ResolveSearch("first query", "1 results", nil)

	items := l.Items()
	if items[0].Searching {
		t.Fatal("exact-match item not resolved")
	}
	if !items[1].Searching {
		t.Fatal("unrelated item resolved")
	}
}

func TestLogResolveSearchFallsBackToMostRecent(t *testing.T) {
	l := testLog()
	l.StartSearch("first query")
	l.StartSearch("second query")

	// No item carries this query; the most recent in-flight one absorbs it.
	l.ResolveSearch("rewritten query", "3 results", nil)

	items := l.Items()
	if !items[0].Searching {
		t.Fatal("older search should stay in flight")
	}
	if items[1].Searching {
		t.Fatal("most recent search should be resolved")
	}
	if items[1].Query != "rewritten query" || items[1].Detail != "3 results" {
		t.Fatalf("resolved item = %+v", items[1])
	}
}

func TestLogResolveSearchAppendsWhenNoneInFlight(t *testing.T) {
	l := testLog()
	l.ResolveSearch("orphan", "0 results", nil)

	items := l.Items()
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].Searching || items[0].Query != "orphan" {
		t.Fatalf("appended item = %+v", items[0])
	}
}

func TestLogForceResolveSearches(t *testing.T) {
	l := testLog()
	l.StartSearch("a")
	l.StartSearch("b")
	l.Append(KindInfo, "noise", "")

	if n := l.SearchingCount(); n != 2 {
		t.Fatalf("SearchingCount() = %d, want 2", n)
	}
	l.ForceResolveSearches()
	if n := l.SearchingCount(); n != 0 {
		t.Fatalf("SearchingCount() after force = %d, want 0", n)
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
}

func TestLogStreamSingleLiveItem(t *testing.T) {
	l := testLog()
	l.Append(KindInfo, "before", "")
	l.UpdateStream("planning", "- intro")
	l.UpdateStream("planning", "- intro\n- body")
	l.UpdateStream("planning", "- intro\n- body\n- close")

	items := l.Items()
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (stream updates in place)", len(items))
	}
	live := items[1]
	if live.Kind != KindStream || !live.Live {
		t.Fatalf("stream item = %+v", live)
	}
	if live.Message != "- intro\n- body\n- close" {
		t.Fatalf("stream message = %q", live.Message)
	}
}

func TestLogSealStreamStartsFresh(t *testing.T) {
	l := testLog()
	l.UpdateStream("planning", "draft one")
	l.SealStream()
	l.UpdateStream("revising", "draft two")

	items := l.Items()
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Live {
		t.Fatal("sealed item still live")
	}
	if !items[1].Live || items[1].Stage != "revising" {
		t.Fatalf("second stream item = %+v", items[1])
	}

	// Sealing with nothing live is harmless.
	l.SealStream()
	l.SealStream()
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
}

func TestLogItemsIsSnapshot(t *testing.T) {
	l := testLog()
	l.Append(KindInfo, "original", "")

	items := l.Items()
	items[0].Message = "mutated"

	if got := l.Items()[0].Message; got != "original" {
		t.Fatalf("log item changed through snapshot: %q", got)
	}
}

func TestLogReset(t *testing.T) {
	l := testLog()
	l.Append(KindInfo, "x", "")
	l.UpdateStream("planning", "draft")
	l.Reset()

	if l.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", l.Len())
	}
	// The stream index must not point into the cleared slice.
	l.UpdateStream("planning", "new draft")
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInfo, "info"},
		{KindSuccess, "success"},
		{KindError, "error"},
		{KindWarning, "warning"},
		{KindStream, "stream"},
		{KindSearch, "search"},
		{KindCrawl, "crawl"},
		{KindDivider, "divider"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
