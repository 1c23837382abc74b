package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/foundry/internal/model"

	_ "modernc.org/sqlite"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    handler     TEXT NOT NULL,
    status      TEXT NOT NULL,
    result      BLOB,
    error       TEXT,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    started_at  DATETIME,
    finished_at DATETIME
)`

// Compile-time interface satisfaction check.
var _ Ledger = (*SQLiteLedger)(nil)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens the SQLite database at dbPath and runs migrations.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps the pragmas in effect everywhere and makes
	// :memory: databases behave; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createTasksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tasks table: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// CreateRecord inserts a new task record.
func (l *SQLiteLedger) CreateRecord(ctx context.Context, rec *model.TaskRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO tasks (
			id, handler, status, result, error,
			duration_ms, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Handler, rec.Status, rec.Result, rec.Error,
		rec.DurationMS, rec.CreatedAt, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task record: %w", err)
	}
	return nil
}

// GetRecord retrieves a task record by ID.
func (l *SQLiteLedger) GetRecord(ctx context.Context, id string) (*model.TaskRecord, error) {
	rec := &model.TaskRecord{}
	err := l.db.QueryRowContext(ctx,
		`SELECT id, handler, status, result, error,
			duration_ms, created_at, started_at, finished_at
		FROM tasks WHERE id = ?`, id,
	).Scan(
		&rec.ID, &rec.Handler, &rec.Status, &rec.Result, &rec.Error,
		&rec.DurationMS, &rec.CreatedAt, &rec.StartedAt, &rec.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task record: %w", err)
	}
	return rec, nil
}

// ListRecords returns a paginated list of task records ordered by created_at
// DESC, along with the total count.
func (l *SQLiteLedger) ListRecords(ctx context.Context, limit, offset int) ([]*model.TaskRecord, int, error) {
	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count task records: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, handler, status, result, error,
			duration_ms, created_at, started_at, finished_at
		FROM tasks ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list task records: %w", err)
	}
	defer rows.Close()

	var records []*model.TaskRecord
	for rows.Next() {
		rec := &model.TaskRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Handler, &rec.Status, &rec.Result, &rec.Error,
			&rec.DurationMS, &rec.CreatedAt, &rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan task record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate task records: %w", err)
	}

	return records, total, nil
}

// UpdateStatus updates the status of a task record after validating the
// transition. Terminal statuses also set finished_at; the running status
// sets started_at.
func (l *SQLiteLedger) UpdateStatus(ctx context.Context, id, status string) error {
	current, err := l.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if !model.ValidTransition(current.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	now := time.Now().UTC()
	var result sql.Result

	switch status {
	case model.StatusRunning:
		result, err = l.db.ExecContext(ctx,
			"UPDATE tasks SET status = ?, started_at = ? WHERE id = ?",
			status, now, id,
		)
	case model.StatusCompleted, model.StatusFailed, model.StatusKilled:
		result, err = l.db.ExecContext(ctx,
			"UPDATE tasks SET status = ?, finished_at = ? WHERE id = ?",
			status, now, id,
		)
	default:
		result, err = l.db.ExecContext(ctx,
			"UPDATE tasks SET status = ? WHERE id = ?",
			status, id,
		)
	}

	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateRecord writes the terminal fields of a finished task record.
func (l *SQLiteLedger) UpdateRecord(ctx context.Context, rec *model.TaskRecord) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, result = ?, error = ?,
			duration_ms = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		rec.Status, rec.Result, rec.Error,
		rec.DurationMS, rec.StartedAt, rec.FinishedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update task record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetStats returns aggregate statistics across all task records.
func (l *SQLiteLedger) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{CountByStatus: make(map[string]int)}

	rows, err := l.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM tasks GROUP BY status",
	)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := l.db.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM tasks WHERE duration_ms IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}
