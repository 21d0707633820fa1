package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/storysync/internal/apperr"
)

// Directions recorded for a run.
const (
	DirectionPush = "push"
	DirectionPull = "pull"
)

// Summary holds the counts of a finished run.
type Summary struct {
	Total    int
	Changed  int
	Archived int
}

// Run is one row of the runs table.
type Run struct {
	ID         string     `json:"id"`
	Direction  string     `json:"direction"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Total      int        `json:"total"`
	Changed    int        `json:"changed"`
	Archived   int        `json:"archived"`
	Error      string     `json:"error,omitempty"`
}

// Event is one mutation recorded during a run.
type Event struct {
	Seq     int       `json:"seq"`
	Kind    string    `json:"kind"`
	StoryID string    `json:"story_id"`
	At      time.Time `json:"at"`
}

// BeginRun inserts a new run and returns its id.
func (db *DB) BeginRun(direction string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(`INSERT INTO runs (id, direction, started_at) VALUES (?, ?, ?)`,
		id, direction, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("journal: begin run: %w", err)
	}
	return id, nil
}

// RecordEvent appends an event to a run.
func (db *DB) RecordEvent(runID, kind, storyID string) error {
	_, err := db.conn.Exec(`
		INSERT INTO run_events (run_id, seq, kind, story_id, at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM run_events WHERE run_id = ?), ?, ?, ?)
	`, runID, runID, kind, storyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("journal: record event: %w", err)
	}
	return nil
}

// FinishRun stores the counts and the error message, if any.
func (db *DB) FinishRun(runID string, summary Summary, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := db.conn.Exec(`
		UPDATE runs SET finished_at = ?, total = ?, changed = ?, archived = ?, error = ?
		WHERE id = ?
	`, time.Now().UTC(), summary.Total, summary.Changed, summary.Archived, msg, runID)
	if err != nil {
		return fmt.Errorf("journal: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal: finish run %s: %w", runID, apperr.ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, direction, started_at, finished_at, total, changed, archived, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Direction, &r.StartedAt, &finished, &r.Total, &r.Changed, &r.Archived, &r.Error); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunEvents returns the events of a run in order. Unknown run ids yield
// apperr.ErrNotFound.
func (db *DB) RunEvents(runID string) ([]Event, error) {
	var exists int
	err := db.conn.QueryRow(`SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journal: lookup run: %w", err)
	}

	rows, err := db.conn.Query(`SELECT seq, kind, story_id, at FROM run_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: run events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Kind, &e.StoryID, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
