// Package history archives finished generation runs in a local SQLite
// database so past documents can be listed and re-read without the server.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vibeblog-cli/internal/task"
)

// ErrNotFound is returned by Get when no task with the given id is archived.
var ErrNotFound = errors.New("task not found in history")

// Record is one archived generation run.
type Record struct {
	ID         string
	Topic      string
	Title      string
	State      string
	CreatedAt  time.Time
	FinishedAt time.Time
	Sections   int
	Words      int
	Document   string
	Error      string
}

// NewRecord builds the archive entry for a finished run from the pieces the
// controller exposes. The outline may be zero when the run failed before the
// checkpoint.
func NewRecord(tk task.Task, outline task.Outline, res task.Result) Record {
	rec := Record{
		ID:         res.TaskID,
		Topic:      res.Topic,
		Title:      outline.Title,
		State:      res.State.String(),
		CreatedAt:  tk.CreatedAt,
		FinishedAt: tk.FinishedAt,
		Sections:   len(outline.SectionTitles),
		Words:      len(strings.Fields(res.Document)),
		Document:   res.Document,
	}
	if res.Err != nil {
		rec.Error = res.Err.Message
	}
	return rec
}

// Store wraps the archive database. A busy timeout covers the occasional
// overlap between an interactive session and a one-shot command.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	topic       TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	sections    INTEGER NOT NULL DEFAULT 0,
	words       INTEGER NOT NULL DEFAULT 0,
	document    TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tasks_finished ON tasks(finished_at);
`

// Open opens the archive at path, creating the file and schema if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts the record, replacing any previous entry for the same task id.
func (s *Store) Save(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no task id")
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO tasks
		(id, topic, title, state, created_at, finished_at, sections, words, document, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Topic, rec.Title, rec.State, rec.CreatedAt, rec.FinishedAt,
		rec.Sections, rec.Words, rec.Document, rec.Error)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", rec.ID, err)
	}
	return nil
}

// List returns up to limit records, newest first. The stored documents are
// omitted; use Get to load one in full.
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, topic, title, state, created_at, finished_at, sections, words, error
		FROM tasks
		ORDER BY finished_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Title, &rec.State,
			&rec.CreatedAt, &rec.FinishedAt, &rec.Sections, &rec.Words, &rec.Error); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Get returns the full record for id, including the document.
func (s *Store) Get(id string) (*Record, error) {
	var rec Record
	err := s.db.QueryRow(`
		SELECT id, topic, title, state, created_at, finished_at, sections, words, document, error
		FROM tasks WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Topic, &rec.Title, &rec.State, &rec.CreatedAt,
		&rec.FinishedAt, &rec.Sections, &rec.Words, &rec.Document, &rec.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", id, err)
	}
	return &rec, nil
}
