// Package document implements the document profile store on SurrealDB.
//
// Each profile is one record with id <table>:<user_id>. Writes replace the
// whole record (UPSERT ... CONTENT), so a repeated put is idempotent.
// Attributes outside the profile field table are kept as-is.
package document

import (
	"context"
	"time"

	"profile-store/core/docstore"
	"profile-store/core/profile"
	"profile-store/core/store"

	"go.uber.org/zap"
)

const (
	selectOne   = "SELECT * FROM type::thing($tb, $id)"
	upsertOne   = "UPSERT type::thing($tb, $id) CONTENT $data"
	upsertBatch = "FOR $p IN $rows { UPSERT type::thing($tb, $p.user_id) CONTENT $p; }"
	selectFeed  = "SELECT * FROM type::table($tb) WHERE user_id != $uid AND is_active = true AND is_suspended != true ORDER BY user_id LIMIT $limit"
	selectIDs   = "SELECT user_id FROM type::table($tb) ORDER BY user_id"
)

// Adapter is the document store.Adapter.
type Adapter struct {
	client docstore.Client
	table  string
	logger *zap.Logger
}

// New creates a document adapter over table.
func New(client docstore.Client, table string, logger *zap.Logger) *Adapter {
	if table == "" {
		table = "users"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, table: table, logger: logger}
}

// Name returns store.Document.
func (a *Adapter) Name() store.Name { return store.Document }

// Ping runs a trivial statement.
func (a *Adapter) Ping(ctx context.Context) error {
	return store.Unavailable(store.Document, "ping", a.client.Ping(ctx))
}

// Close closes the SurrealDB connection.
func (a *Adapter) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}

// GetProfile reads one record; an absent record yields (nil, nil).
func (a *Adapter) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	rows, err := a.client.Query(ctx, selectOne, map[string]any{"tb": a.table, "id": userID})
	if err != nil {
		return nil, store.Unavailable(store.Document, "get", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := decode(rows[0], userID)
	return &p, nil
}

// PutProfile replaces the record of userID with p.
func (a *Adapter) PutProfile(ctx context.Context, userID string, p profile.Profile) (*profile.Profile, error) {
	p.UserID = userID
	_, err := a.client.Query(ctx, upsertOne, map[string]any{
		"tb":   a.table,
		"id":   userID,
		"data": Encode(p),
	})
	if err != nil {
		return nil, store.Unavailable(store.Document, "put", err)
	}
	return &p, nil
}

// PutProfiles upserts every profile in a single statement.
func (a *Adapter) PutProfiles(ctx context.Context, profiles []profile.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, Encode(p))
	}
	_, err := a.client.Query(ctx, upsertBatch, map[string]any{"tb": a.table, "rows": rows})
	return store.Unavailable(store.Document, "batch", err)
}

// ListFeedCandidates returns active, non-suspended profiles other than
// excludeUserID.
func (a *Adapter) ListFeedCandidates(ctx context.Context, excludeUserID string, limit int) ([]profile.Profile, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.client.Query(ctx, selectFeed, map[string]any{
		"tb":    a.table,
		"uid":   excludeUserID,
		"limit": limit,
	})
	if err != nil {
		return nil, store.Unavailable(store.Document, "feed", err)
	}
	out := make([]profile.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, decode(row, ""))
	}
	return out, nil
}

// ListUserIDs returns every user_id in the table.
func (a *Adapter) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := a.client.Query(ctx, selectIDs, map[string]any{"tb": a.table})
	if err != nil {
		return nil, store.Unavailable(store.Document, "list", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row[profile.KeyUserID].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Encode turns p into record content. Timestamps are RFC 3339 strings.
func Encode(p profile.Profile) map[string]any {
	rec := p.Record()
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		out[k] = v
	}
	return out
}

// decode builds a profile from a record, dropping the record id and filling
// user_id from fallbackID when the record lacks it.
func decode(row map[string]any, fallbackID string) profile.Profile {
	rec := make(profile.Record, len(row))
	for k, v := range row {
		if k == "id" || v == nil {
			continue
		}
		rec[k] = v
	}
	if id, _ := rec[profile.KeyUserID].(string); id == "" && fallbackID != "" {
		rec[profile.KeyUserID] = fallbackID
	}
	return profile.FromRecord(rec)
}
