// Package ledger persists the history of submitted tasks. The ledger records
// bookkeeping only — identifiers, statuses, results, timings; live shared
// state is never written to disk and does not survive a restart.
package ledger

import (
	"context"
	"errors"

	"github.com/seantiz/foundry/internal/model"
)

// ErrNotFound is returned when a task record does not exist.
var ErrNotFound = errors.New("task record not found")

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// Stats holds aggregate execution statistics.
type Stats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Ledger defines the persistence operations for task records.
type Ledger interface {
	CreateRecord(ctx context.Context, rec *model.TaskRecord) error
	GetRecord(ctx context.Context, id string) (*model.TaskRecord, error)
	ListRecords(ctx context.Context, limit, offset int) ([]*model.TaskRecord, int, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateRecord(ctx context.Context, rec *model.TaskRecord) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}
