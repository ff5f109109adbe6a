package relational

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"profile-store/core/database"
	"profile-store/core/profile"
	"profile-store/core/store"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CoreFields is the projection written when the table has drifted.
var CoreFields = []string{"user_id", "name", "email", "city", "is_active", "updated_at"}

// Adapter is the relational store.Adapter.
type Adapter struct {
	db     *gorm.DB
	table  string
	logger *zap.Logger
	now    func() time.Time

	// pendingMigration is set while the table still has to be migrated by
	// the next successful Ping.
	pendingMigration atomic.Bool
}

// New creates a relational adapter over table.
func New(db *gorm.DB, table string, logger *zap.Logger) *Adapter {
	if table == "" {
		table = "users"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{db: db, table: table, logger: logger, now: time.Now}
}

// Name returns store.Relational.
func (a *Adapter) Name() store.Name { return store.Relational }

// Table returns the profile table name.
func (a *Adapter) Table() string { return a.table }

// Migrate creates or extends the profile table.
func (a *Adapter) Migrate(ctx context.Context) error {
	if err := a.db.WithContext(ctx).Table(a.table).AutoMigrate(&Row{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", a.table, err)
	}
	return nil
}

// MigrateOnPing defers Migrate to the next successful Ping. It is used when
// the server was unreachable at startup.
func (a *Adapter) MigrateOnPing() {
	a.pendingMigration.Store(true)
}

// Ping checks the underlying connection.
func (a *Adapter) Ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return store.Unavailable(store.Relational, "ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return store.Unavailable(store.Relational, "ping", err)
	}
	if a.pendingMigration.Load() {
		if err := a.Migrate(ctx); err != nil {
			a.logger.Warn("Deferred migration failed", zap.Error(err))
			return nil
		}
		a.pendingMigration.Store(false)
		a.logger.Info("Profile table migrated", zap.String("table", a.table))
	}
	return nil
}

// Close closes the connection pool.
func (a *Adapter) Close(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Columns lists the live columns of the profile table.
func (a *Adapter) Columns(ctx context.Context) ([]database.ColumnInfo, error) {
	return database.GetTableColumns(a.db.WithContext(ctx), a.table)
}

// MissingColumns lists known profile columns the live table lacks.
func (a *Adapter) MissingColumns(ctx context.Context) ([]string, error) {
	return database.MissingColumns(a.db.WithContext(ctx), a.table, profile.Keys())
}

// GetProfile reads one row; an absent row yields (nil, nil).
func (a *Adapter) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	var rows []map[string]any
	err := a.db.WithContext(ctx).Table(a.table).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, store.Unavailable(store.Relational, "get", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := decodeRow(rows[0])
	return &p, nil
}

// PutProfile upserts the profile keyed by user_id.
func (a *Adapter) PutProfile(ctx context.Context, userID string, p profile.Profile) (*profile.Profile, error) {
	p.UserID = userID
	row := a.encodeRow(p)

	err := a.upsert(ctx, []map[string]any{row})
	if err == nil {
		return &p, nil
	}
	if !isMissingColumn(err) {
		return nil, store.Unavailable(store.Relational, "put", err)
	}

	a.logger.Warn("Relational table is missing columns, writing core fields only",
		zap.String("table", a.table),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	core := make(map[string]any, len(CoreFields))
	for _, key := range CoreFields {
		if v, ok := row[key]; ok {
			core[key] = v
		}
	}
	if err := a.upsert(ctx, []map[string]any{core}); err != nil {
		return nil, store.Unavailable(store.Relational, "put", err)
	}
	return &p, fmt.Errorf("%s: %w", a.table, store.ErrSchemaDriftDegraded)
}

// PutProfiles upserts profiles in one statement, falling back to row by row
// writes when the table has drifted.
func (a *Adapter) PutProfiles(ctx context.Context, profiles []profile.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, a.encodeRow(p))
	}
	err := a.upsert(ctx, rows)
	if err == nil {
		return nil
	}
	if !isMissingColumn(err) {
		return store.Unavailable(store.Relational, "batch", err)
	}
	for _, p := range profiles {
		if _, err := a.PutProfile(ctx, p.UserID, p); err != nil && !store.IsDegraded(err) {
			return err
		}
	}
	return nil
}

// ListFeedCandidates returns active, non-suspended profiles other than
// excludeUserID.
func (a *Adapter) ListFeedCandidates(ctx context.Context, excludeUserID string, limit int) ([]profile.Profile, error) {
	var rows []map[string]any
	q := a.db.WithContext(ctx).Table(a.table).
		Where("user_id <> ?", excludeUserID).
		Where("is_active = ?", true).
		Where("(is_suspended = ? OR is_suspended IS NULL)", false).
		Order("user_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, store.Unavailable(store.Relational, "feed", err)
	}
	return decodeRows(rows), nil
}

// ListUserIDs returns every user_id in the table.
func (a *Adapter) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := a.db.WithContext(ctx).Table(a.table).Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, store.Unavailable(store.Relational, "list", err)
	}
	return ids, nil
}

// ListProfiles pages through the table in user_id order.
func (a *Adapter) ListProfiles(ctx context.Context, offset, limit int) ([]profile.Profile, error) {
	var rows []map[string]any
	err := a.db.WithContext(ctx).Table(a.table).
		Order("user_id").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, store.Unavailable(store.Relational, "list", err)
	}
	return decodeRows(rows), nil
}

func (a *Adapter) upsert(ctx context.Context, rows []map[string]any) error {
	cols := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			cols[k] = struct{}{}
		}
	}
	var updates []string
	for _, key := range profile.Keys() {
		if key == profile.KeyUserID || key == "created_at" {
			continue
		}
		if _, ok := cols[key]; ok {
			updates = append(updates, key)
		}
	}

	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: profile.KeyUserID}}}
	if len(updates) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(updates)
	}

	tx := a.db.WithContext(ctx).Table(a.table).Clauses(onConflict)
	if len(rows) == 1 {
		return tx.Create(rows[0]).Error
	}
	return tx.Create(rows).Error
}

// encodeRow keeps only known columns and stamps the timestamps.
func (a *Adapter) encodeRow(p profile.Profile) map[string]any {
	now := a.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	row := make(map[string]any, len(profile.Fields))
	for k, v := range p.Record() {
		if !profile.IsKnown(k) {
			continue
		}
		if list, ok := v.([]string); ok {
			b, _ := json.Marshal(list)
			v = string(b)
		}
		row[k] = v
	}
	return row
}

func decodeRows(rows []map[string]any) []profile.Profile {
	out := make([]profile.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodeRow(row))
	}
	return out
}

func decodeRow(row map[string]any) profile.Profile {
	rec := make(profile.Record, len(row))
	for k, v := range row {
		if v == nil || !profile.IsKnown(k) {
			continue
		}
		rec[k] = v
	}
	return profile.FromRecord(rec)
}

// isMissingColumn recognises "unknown column" errors across drivers.
func isMissingColumn(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1054
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42703"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "has no column named") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "unknown column")
}
