// Package audit records the outcome of every submitted command in the
// command_log table. It stores commands only, never device state.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bluewidget/bluewidget/internal/coordinator"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one row of the command trail.
type Entry struct {
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	DeviceID   string    `json:"device_id,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which entries List returns. Empty fields match everything.
type Filter struct {
	Op       string
	DeviceID string
	Outcome  string
	Limit    int // default 50, max 200
	Offset   int
}

// ListResult is a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines command trail storage.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository stores entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ Repository            = (*SQLiteRepository)(nil)
	_ coordinator.AuditSink = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are generated when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, op, device_id, outcome, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Op, e.DeviceID, e.Outcome, e.Error, e.DurationMS,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}
	return nil
}

// RecordCommand implements coordinator.AuditSink.
func (r *SQLiteRepository) RecordCommand(ctx context.Context, res coordinator.CommandResult) error {
	e := Entry{
		Op:         string(res.Op),
		DeviceID:   res.DeviceID,
		Outcome:    string(res.Outcome),
		DurationMS: res.Duration.Milliseconds(),
		CreatedAt:  res.At,
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return r.Create(ctx, &e)
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	filter.Limit = min(filter.Limit, maxLimit)
	filter.Offset = max(filter.Offset, 0)

	var conditions []string
	var args []any
	for _, c := range []struct{ col, val string }{
		{"op", filter.Op},
		{"device_id", filter.DeviceID},
		{"outcome", filter.Outcome},
	} {
		if c.val != "" {
			conditions = append(conditions, c.col+" = ?")
			args = append(args, c.val)
		}
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_log " + where //nolint:gosec // WHERE built from fixed column names
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	query := "SELECT id, op, device_id, outcome, error, duration_ms, created_at FROM command_log " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Op, &e.DeviceID, &e.Outcome, &e.Error, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Prune deletes entries older than olderThan and returns how many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	res, err := r.db.ExecContext(ctx, "DELETE FROM command_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning command log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning command log: %w", err)
	}
	return n, nil
}
