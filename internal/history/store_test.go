package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vibeblog-cli/internal/task"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string, finished time.Time) Record {
	return Record{
		ID:         id,
		Topic:      "topic for " + id,
		Title:      "Title " + id,
		State:      "complete",
		CreatedAt:  finished.Add(-2 * time.Minute),
		FinishedAt: finished,
		Sections:   4,
		Words:      1200,
		Document:   "# Title " + id + "\n\nbody",
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := testStore(t)

	want := sampleRecord("task-1", time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Get("task-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Topic != want.Topic || got.Title != want.Title || got.State != want.State {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if got.Sections != want.Sections || got.Words != want.Words {
		t.Errorf("counts = %d/%d, want %d/%d", got.Sections, got.Words, want.Sections, want.Words)
	}
	if got.Document != want.Document {
		t.Errorf("Document = %q, want %q", got.Document, want.Document)
	}
	if got.CreatedAt.Unix() != want.CreatedAt.Unix() || got.FinishedAt.Unix() != want.FinishedAt.Unix() {
		t.Errorf("timestamps = %v/%v, want %v/%v", got.CreatedAt, got.FinishedAt, want.CreatedAt, want.FinishedAt)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	s := testStore(t)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.Save(sampleRecord(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	recs, err := s.List(2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("List(2) returned %d records, want 2", len(recs))
	}
	if recs[0].ID != "new" || recs[1].ID != "mid" {
		t.Errorf("List order = [%s %s], want [new mid]", recs[0].ID, recs[1].ID)
	}
	if recs[0].Document != "" {
		t.Errorf("List should omit documents, got %q", recs[0].Document)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := testStore(t)

	_, err := s.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStoreSaveReplacesSameID(t *testing.T) {
	s := testStore(t)

	rec := sampleRecord("task-1", time.Now())
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rec.State = "error"
	rec.Error = "pipeline exploded"
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save() replace error = %v", err)
	}

	got, err := s.Get("task-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != "error" || got.Error != "pipeline exploded" {
		t.Errorf("replaced record = %+v", got)
	}

	recs, err := s.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("List() returned %d records after replace, want 1", len(recs))
	}
}

func TestStoreSaveRequiresID(t *testing.T) {
	s := testStore(t)

	if err := s.Save(Record{Topic: "no id"}); err == nil {
		t.Error("Save() with empty id should fail")
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Save(sampleRecord("task-1", time.Now())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	if _, err := s2.Get("task-1"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}

func TestNewRecord(t *testing.T) {
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tk := task.Task{
		ID:         "task-9",
		Topic:      "zero downtime deploys",
		CreatedAt:  created,
		FinishedAt: created.Add(90 * time.Second),
	}
	outline := task.Outline{
		Title:         "Zero Downtime Deploys",
		SectionTitles: []string{"Intro", "Strategies", "Rollbacks"},
	}
	res := task.Result{
		TaskID:   "task-9",
		Topic:    "zero downtime deploys",
		State:    task.StateComplete,
		Document: "# Zero Downtime Deploys\n\nfour words right here",
	}

	rec := NewRecord(tk, outline, res)
	if rec.ID != "task-9" || rec.Title != "Zero Downtime Deploys" {
		t.Errorf("NewRecord id/title = %q/%q", rec.ID, rec.Title)
	}
	if rec.State != "complete" {
		t.Errorf("State = %q, want complete", rec.State)
	}
	if rec.Sections != 3 {
		t.Errorf("Sections = %d, want 3", rec.Sections)
	}
	if rec.Words != 8 {
		t.Errorf("Words = %d, want 8", rec.Words)
	}
	if rec.Error != "" {
		t.Errorf("Error = %q, want empty", rec.Error)
	}
}

func TestNewRecordCarriesError(t *testing.T) {
	res := task.Result{
		TaskID: "task-2",
		Topic:  "broken run",
		State:  task.StateError,
		Err:    &task.ErrorInfo{Message: "model unavailable"},
	}

	rec := NewRecord(task.Task{ID: "task-2"}, task.Outline{}, res)
	if rec.State != "error" || rec.Error != "model unavailable" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Sections != 0 || rec.Words != 0 {
		t.Errorf("counts = %d/%d, want 0/0", rec.Sections, rec.Words)
	}
}
