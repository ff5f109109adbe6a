package database

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"profile-store/core/database"
	"profile-store/core/health"
	"profile-store/core/profile"
	"profile-store/core/replication"
	"profile-store/core/store"
	"profile-store/core/store/mocks"
	"profile-store/core/store/relational"
	profilesync "profile-store/feature/database/sync"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	app        *fiber.App
	relMock    *mocks.Adapter
	doc, hier  *mocks.Adapter
	mon        *health.Monitor
	replicated *replication.Store
}

func setupTestApp(t *testing.T, rel store.Adapter) *testEnv {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	env := &testEnv{
		doc:  mocks.NewAdapter(store.Document),
		hier: mocks.NewAdapter(store.Hierarchical),
	}
	if rel == nil {
		env.relMock = mocks.NewAdapter(store.Relational)
		rel = env.relMock
	}
	env.mon = health.NewMonitor([]store.Adapter{rel, env.doc, env.hier}, health.Config{}, nil, nil)
	env.replicated = replication.New(env.mon, replication.Config{
		ReadRetries:    1,
		ReadRetryDelay: time.Millisecond,
		RepairDelays:   []time.Duration{time.Hour},
	}, nil, nil)
	t.Cleanup(env.replicated.Close)

	logger := zap.NewNop()
	journal := profilesync.NewJournal(db, "sync_logs", nil, "", logger, nil)
	require.NoError(t, journal.Migrate(t.Context()))
	syncer := profilesync.NewService(env.replicated, journal, profilesync.Config{}, logger)

	env.app = fiber.New()
	feature := NewFeature(env.replicated, syncer, logger)
	require.NoError(t, feature.Load(env.app))
	return env
}

func decode(t *testing.T, env *testEnv, method, path string, wantStatus int) map[string]any {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func seed(a *mocks.Adapter, id, name string) {
	a.Seed(profile.Profile{UserID: id, Name: name, Email: id + "@example.com", City: "Paris", IsActive: true})
}

func TestLoader(t *testing.T) {
	feature := NewFeature(nil, nil, zap.NewNop())
	assert.Equal(t, "database", feature.Name())
	assert.False(t, feature.IsEnabled(), "no replicated store, nothing to serve")

	env := setupTestApp(t, nil)
	enabled := NewFeature(env.replicated, nil, nil)
	assert.True(t, enabled.IsEnabled())
}

func TestHandleHealth(t *testing.T) {
	env := setupTestApp(t, nil)
	env.relMock.SetDown(true)
	env.mon.ProbeAll(t.Context())

	body := decode(t, env, "GET", "/database/health", 200)
	assert.Equal(t, true, body["success"])

	status := body["status"].(map[string]any)
	assert.Equal(t, "document", status["primary_store"])
	assert.Equal(t, true, status["primary_available"])
	assert.Len(t, status["stores"], 3)
}

func TestHandleSyncUser(t *testing.T) {
	env := setupTestApp(t, nil)
	seed(env.relMock, "u1", "Ada")

	body := decode(t, env, "POST", "/database/sync-user/u1", 200)
	assert.Equal(t, true, body["success"])
	_, ok := env.doc.Stored("u1")
	assert.True(t, ok)
	_, ok = env.hier.Stored("u1")
	assert.True(t, ok)

	body = decode(t, env, "POST", "/database/sync-user/ghost", 404)
	assert.Equal(t, "User not found", body["error"])
}

func TestHandleSyncAll(t *testing.T) {
	env := setupTestApp(t, nil)
	seed(env.relMock, "u1", "Ada")
	seed(env.relMock, "u2", "Grace")

	body := decode(t, env, "POST", "/database/sync-all", 200)
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(2), result["synced_count"])
	assert.Equal(t, float64(0), result["failed_count"])
	assert.Equal(t, float64(2), result["total_count"])

	env.relMock.SetDown(true)
	body = decode(t, env, "POST", "/database/sync-all", 500)
	assert.Equal(t, false, body["success"])
}

func TestHandleSyncTable(t *testing.T) {
	env := setupTestApp(t, nil)
	seed(env.relMock, "u1", "Ada")

	body := decode(t, env, "POST", "/database/sync-table/hierarchical", 200)
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(1), result["synced"])
	_, ok := env.hier.Stored("u1")
	assert.True(t, ok)

	decode(t, env, "POST", "/database/sync-table/relational", 400)
	decode(t, env, "POST", "/database/sync-table/cassandra", 400)
}

func TestHandleReconcile(t *testing.T) {
	env := setupTestApp(t, nil)
	seed(env.relMock, "u1", "Ada")

	body := decode(t, env, "GET", "/database/reconcile?sync=true", 200)
	plan := body["plan"].(map[string]any)
	assert.Len(t, plan["actions"], 2)
	assert.Equal(t, float64(0), body["executed"])
	_, ok := env.doc.Stored("u1")
	assert.False(t, ok, "planning never writes")

	body = decode(t, env, "GET", "/database/reconcile?apply=true", 200)
	assert.Equal(t, float64(2), body["executed"])
	_, ok = env.doc.Stored("u1")
	assert.True(t, ok)

	env.relMock.SetDown(true)
	env.doc.SetDown(true)
	env.hier.SetDown(true)
	env.mon.ProbeAll(t.Context())
	decode(t, env, "GET", "/database/reconcile", 503)
}

func TestHandleReconcileUser(t *testing.T) {
	env := setupTestApp(t, nil)
	seed(env.relMock, "u1", "Ada")

	body := decode(t, env, "GET", "/database/reconcile?user_id=u1", 200)
	result := body["result"].(map[string]any)
	assert.Equal(t, "u1", result["id"])
	assert.Equal(t, map[string]any{"relational": true, "document": false, "hierarchical": false}, result["present"])
	_, ok := env.doc.Stored("u1")
	assert.False(t, ok)

	env.doc.SetDown(true)
	decode(t, env, "GET", "/database/reconcile?user_id=u1", 500)
}

func TestHandleRepairsAndSyncLogs(t *testing.T) {
	env := setupTestApp(t, nil)
	env.hier.SetDown(true)
	_, err := env.replicated.CreateOrUpdateProfile(t.Context(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	body := decode(t, env, "GET", "/database/repairs", 200)
	repairs := body["repairs"].(map[string]any)
	assert.Equal(t, []any{"hierarchical"}, repairs["u1"])

	env.hier.SetDown(false)
	decode(t, env, "POST", "/database/sync-user/u1", 200)
	body = decode(t, env, "GET", "/database/repairs", 200)
	assert.Empty(t, body["repairs"])

	body = decode(t, env, "GET", "/database/sync-logs?user_id=u1&limit=5", 200)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "tri-sync", entries[0].(map[string]any)["sync_direction"])
}

func TestHandleFailoverTest(t *testing.T) {
	env := setupTestApp(t, nil)
	seed(env.doc, "test-user-0", "Probe")

	body := decode(t, env, "POST", "/database/failover-test", 200)
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(3), result["users_requested"])
	assert.Equal(t, float64(1), result["users_retrieved"])
	assert.Len(t, result["errors"], 2)
}

func TestHandleSchema(t *testing.T) {
	t.Run("drifted table", func(t *testing.T) {
		db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
		require.NoError(t, err)
		require.NoError(t, db.Exec("CREATE TABLE users (user_id TEXT PRIMARY KEY, name TEXT, email TEXT)").Error)

		env := setupTestApp(t, relational.New(db, "users", nil))
		body := decode(t, env, "GET", "/database/schema", 200)
		assert.Equal(t, "users", body["table"])
		assert.Equal(t, true, body["degraded"])
		assert.Contains(t, body["missing"], "city")
		assert.NotContains(t, body["missing"], "email")
	})

	t.Run("adapter without inspection", func(t *testing.T) {
		env := setupTestApp(t, nil)
		body := decode(t, env, "GET", "/database/schema", 200)
		assert.Equal(t, false, body["degraded"])
		assert.Empty(t, body["missing"])
	})
}
