package wall_nav

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS rotation_goals (
	goal_id           TEXT PRIMARY KEY,
	angle             REAL NOT NULL,
	status            TEXT NOT NULL,
	success           INTEGER NOT NULL DEFAULT 0,
	remaining_degrees REAL NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS goal_transitions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	goal_id     TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (goal_id) REFERENCES rotation_goals(goal_id)
);
`

// historyTimeFormat is fixed-width so TEXT ordering matches time ordering.
const historyTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// GoalRecord is the persisted view of one rotation goal.
type GoalRecord struct {
	GoalID           string
	Angle            float64
	Status           GoalStatus
	Success          bool
	RemainingDegrees float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// GoalTransition is one persisted lifecycle edge.
type GoalTransition struct {
	GoalID string
	From   GoalStatus
	To     GoalStatus
	At     time.Time
}

// History stores goal lifecycles in SQLite. A nil *History records nothing.
type History struct {
	db *sql.DB
}

// OpenHistory opens a SQLite database and runs migrations.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// One writer; the executor records from a single goroutine per goal.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	if h == nil {
		return nil
	}
	return h.db.Close()
}

// RecordTransition upserts the goal row and appends the from -> rec.Status edge atomically.
func (h *History) RecordTransition(ctx context.Context, rec GoalRecord, from GoalStatus) error {
	if h == nil {
		return nil
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	created := rec.CreatedAt.UTC().Format(historyTimeFormat)
	updated := rec.UpdatedAt.UTC().Format(historyTimeFormat)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rotation_goals (goal_id, angle, status, success, remaining_degrees, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(goal_id) DO UPDATE SET
		   status = excluded.status,
		   success = excluded.success,
		   remaining_degrees = excluded.remaining_degrees,
		   updated_at = excluded.updated_at`,
		rec.GoalID, rec.Angle, string(rec.Status), boolToInt(rec.Success), rec.RemainingDegrees, created, updated,
	)
	if err != nil {
		return fmt.Errorf("upsert goal %s: %w", rec.GoalID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO goal_transitions (goal_id, from_status, to_status, created_at) VALUES (?, ?, ?, ?)`,
		rec.GoalID, string(from), string(rec.Status), updated,
	)
	if err != nil {
		return fmt.Errorf("insert transition %s: %w", rec.GoalID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit goals, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]GoalRecord, error) {
	if h == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT goal_id, angle, status, success, remaining_degrees, created_at, updated_at
		 FROM rotation_goals ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []GoalRecord
	for rows.Next() {
		var rec GoalRecord
		var status, createdStr, updatedStr string
		var success int
		if err := rows.Scan(&rec.GoalID, &rec.Angle, &status, &success, &rec.RemainingDegrees, &createdStr, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		rec.Status = GoalStatus(status)
		rec.Success = success != 0
		rec.CreatedAt, _ = time.Parse(historyTimeFormat, createdStr)
		rec.UpdatedAt, _ = time.Parse(historyTimeFormat, updatedStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Transitions returns the recorded lifecycle of a goal in insertion order.
func (h *History) Transitions(ctx context.Context, goalID string) ([]GoalTransition, error) {
	if h == nil {
		return nil, nil
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT goal_id, from_status, to_status, created_at
		 FROM goal_transitions WHERE goal_id = ? ORDER BY id`, goalID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []GoalTransition
	for rows.Next() {
		var tr GoalTransition
		var from, to, at string
		if err := rows.Scan(&tr.GoalID, &from, &to, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = GoalStatus(from)
		tr.To = GoalStatus(to)
		tr.At, _ = time.Parse(historyTimeFormat, at)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
