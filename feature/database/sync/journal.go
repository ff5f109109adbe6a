package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"profile-store/core/docstore"
	"profile-store/core/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Directions recorded in the sync log.
const (
	DirectionAll                = "tri-sync"
	DirectionRelationalDocument = "relational->document"
	DirectionDocumentRelational = "document->relational"
	DirectionTablePrefix        = "table:relational->"
	DirectionReconcile          = "reconcile"
)

// allUsers is the user id of jobs that span every profile.
const allUsers = "*"

// Statuses recorded in the sync log.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// LogEntry is one immutable row of the sync log.
type LogEntry struct {
	SyncID    string    `gorm:"column:sync_id;primaryKey;size:64" json:"sync_id"`
	UserID    string    `gorm:"column:user_id;size:191;index:idx_sync_logs_user,priority:1" json:"user_id"`
	Direction string    `gorm:"column:sync_direction;size:64" json:"sync_direction"`
	Status    string    `gorm:"column:status;size:16" json:"status"`
	Error     string    `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_sync_logs_user,priority:2" json:"created_at"`
}

// Journal appends sync log entries to the relational store and, when a
// document client is set, to the document store as well.
type Journal struct {
	db       *gorm.DB
	table    string
	docs     docstore.Client
	docTable string
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	migrated atomic.Bool
}

// NewJournal creates a Journal. db and docs may be nil when the matching
// store is not connected.
func NewJournal(db *gorm.DB, table string, docs docstore.Client, docTable string, logger *zap.Logger, m *metrics.Metrics) *Journal {
	if table == "" {
		table = "sync_logs"
	}
	if docTable == "" {
		docTable = "sync_logs"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		db:       db,
		table:    table,
		docs:     docs,
		docTable: docTable,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Migrate creates the relational sync log table.
func (j *Journal) Migrate(ctx context.Context) error {
	if j.db == nil {
		return nil
	}
	if err := j.db.WithContext(ctx).Table(j.table).AutoMigrate(&LogEntry{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", j.table, err)
	}
	j.migrated.Store(true)
	return nil
}

// ensureTable migrates the sync log table if that has not happened yet,
// such as when the relational store was down at startup.
func (j *Journal) ensureTable(ctx context.Context) error {
	if j.migrated.Load() {
		return nil
	}
	return j.Migrate(ctx)
}

// Record appends an entry for one sync attempt. A nil cause with an empty
// status records success; a non-nil cause records an error. Write failures
// are logged and otherwise ignored.
func (j *Journal) Record(ctx context.Context, userID, direction, status string, cause error) LogEntry {
	if status == "" {
		status = StatusSuccess
		if cause != nil {
			status = StatusError
		}
	}
	entry := LogEntry{
		SyncID:    uuid.NewString(),
		UserID:    userID,
		Direction: direction,
		Status:    status,
		CreatedAt: j.now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	j.metrics.ObserveSync(direction, status)

	if j.db != nil {
		err := j.ensureTable(ctx)
		if err == nil {
			err = j.db.WithContext(ctx).Table(j.table).Create(&entry).Error
		}
		if err != nil {
			j.logger.Warn("Failed to write sync log", zap.String("sync_id", entry.SyncID), zap.Error(err))
		}
	}
	if j.docs != nil {
		if _, err := j.docs.Query(ctx, createEntry, map[string]any{
			"tb":   j.docTable,
			"id":   entry.SyncID,
			"data": entryContent(entry),
		}); err != nil {
			j.logger.Warn("Failed to mirror sync log", zap.String("sync_id", entry.SyncID), zap.Error(err))
		}
	}
	return entry
}

const createEntry = "CREATE type::thing($tb, $id) CONTENT $data"

func entryContent(e LogEntry) map[string]any {
	out := map[string]any{
		"sync_id":        e.SyncID,
		"user_id":        e.UserID,
		"sync_direction": e.Direction,
		"status":         e.Status,
		"created_at":     e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.Error != "" {
		out["error_message"] = e.Error
	}
	return out
}

// Recent returns the latest entries, newest first. An empty userID matches
// every user.
func (j *Journal) Recent(ctx context.Context, userID string, limit int) ([]LogEntry, error) {
	if j.db == nil {
		return []LogEntry{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if err := j.ensureTable(ctx); err != nil {
		return nil, err
	}
	q := j.db.WithContext(ctx).Table(j.table).Order("created_at desc").Limit(limit)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var out []LogEntry
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", j.table, err)
	}
	return out, nil
}
