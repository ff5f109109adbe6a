package replication

import (
	"context"
	"fmt"
	"testing"
	"time"

	"profile-store/core/health"
	"profile-store/core/metrics"
	"profile-store/core/profile"
	"profile-store/core/store"
	"profile-store/core/store/mocks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	rel, doc, hier *mocks.Adapter
	mon            *health.Monitor
	store          *Store
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.ReadRetryDelay == 0 {
		cfg.ReadRetryDelay = time.Millisecond
	}
	if len(cfg.RepairDelays) == 0 {
		cfg.RepairDelays = []time.Duration{time.Hour}
	}
	f := &fixture{
		rel:  mocks.NewAdapter(store.Relational),
		doc:  mocks.NewAdapter(store.Document),
		hier: mocks.NewAdapter(store.Hierarchical),
	}
	f.mon = health.NewMonitor([]store.Adapter{f.rel, f.doc, f.hier}, health.Config{}, nil, nil)
	f.store = New(f.mon, cfg, nil, nil)
	t.Cleanup(f.store.Close)
	return f
}

func (f *fixture) probe(t *testing.T) {
	t.Helper()
	f.mon.ProbeAll(context.Background())
}

func seeded(userID, name string) profile.Profile {
	return profile.Profile{UserID: userID, Name: name, Email: userID + "@example.com", City: "Paris", IsActive: true}
}

func TestCreateOrUpdateProfileWritesEveryStore(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{
		"name":       "Ada",
		"email":      "ada@example.com",
		"budgetMin":  500,
		"budgetMax":  900,
		"favoriteOS": "plan9",
	})
	require.NoError(t, err)

	assert.Equal(t, []store.Name{store.Relational, store.Document, store.Hierarchical}, res.WrittenStores)
	assert.Empty(t, res.FailedStores)
	assert.False(t, res.Degraded)
	assert.Equal(t, "u1", res.Profile.UserID)
	assert.Empty(t, f.store.PendingRepairs())

	for _, a := range []*mocks.Adapter{f.rel, f.doc, f.hier} {
		p, ok := a.Stored("u1")
		require.True(t, ok, a.Name())
		assert.Equal(t, "Ada", p.Name)
		assert.Equal(t, 500, p.BudgetMin)
		assert.Equal(t, 900, p.BudgetMax)
		assert.Equal(t, "plan9", p.Extra["favorite_o_s"])
		assert.False(t, p.CreatedAt.IsZero())
		assert.False(t, p.UpdatedAt.IsZero())
	}
}

func TestWriteDegradedWhenHierarchicalDown(t *testing.T) {
	f := newFixture(t, Config{})
	f.hier.SetDown(true)

	res, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, []store.Name{store.Relational, store.Document}, res.WrittenStores)
	require.Len(t, res.FailedStores, 1)
	failed := res.FailedStores[0]
	assert.Equal(t, store.Hierarchical, failed.Store)
	assert.Equal(t, 1, failed.Attempts, "hierarchical writes are not retried synchronously")
	assert.False(t, failed.Skipped)
	assert.ErrorIs(t, failed.Err, store.ErrStoreUnavailable)
	assert.NotEmpty(t, failed.Error)

	assert.Equal(t, map[string][]store.Name{"u1": {store.Hierarchical}}, f.store.PendingRepairs())
}

func TestWriteRetriesCriticalStoresOnce(t *testing.T) {
	f := newFixture(t, Config{})
	f.doc.FailPuts(1)

	res, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Len(t, res.WrittenStores, 3)
	assert.Equal(t, 2, f.doc.PutCalls())
	assert.Equal(t, 1, f.rel.PutCalls())
}

func TestWriteCriticalStoreFailsAfterRetry(t *testing.T) {
	f := newFixture(t, Config{})
	f.doc.FailPuts(2)

	res, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	require.Len(t, res.FailedStores, 1)
	assert.Equal(t, store.Document, res.FailedStores[0].Store)
	assert.Equal(t, 2, res.FailedStores[0].Attempts)
	assert.Equal(t, []store.Name{store.Relational, store.Hierarchical}, res.WrittenStores)
}

func TestWriteFailsWhenAllStoresDown(t *testing.T) {
	t.Run("attempted", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.SetDown(true)
		f.doc.SetDown(true)
		f.hier.SetDown(true)

		res, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
		assert.ErrorIs(t, err, store.ErrAllStoresUnavailable)
		assert.Nil(t, res)
		assert.Empty(t, f.store.PendingRepairs())
		assert.Equal(t, 2, f.rel.PutCalls())
		assert.Equal(t, 1, f.hier.PutCalls())
	})

	t.Run("marked unavailable", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.SetDown(true)
		f.doc.SetDown(true)
		f.hier.SetDown(true)
		f.probe(t)

		_, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
		assert.ErrorIs(t, err, store.ErrAllStoresUnavailable)
		assert.Empty(t, f.store.PendingRepairs())
		assert.Zero(t, f.rel.PutCalls())
	})
}

func TestWriteSkipsStoresMarkedUnavailable(t *testing.T) {
	f := newFixture(t, Config{})
	f.hier.SetDown(true)
	f.probe(t)

	res, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	assert.Zero(t, f.hier.PutCalls())
	require.Len(t, res.FailedStores, 1)
	assert.Equal(t, store.Hierarchical, res.FailedStores[0].Store)
	assert.Zero(t, res.FailedStores[0].Attempts)
	assert.True(t, res.FailedStores[0].Skipped)
	assert.Contains(t, f.store.PendingRepairs()["u1"], store.Hierarchical)
}

func TestWriteSchemaDriftIsAWarning(t *testing.T) {
	f := newFixture(t, Config{})
	f.rel.SetPutResult(fmt.Errorf("users: %w", store.ErrSchemaDriftDegraded))

	res, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Len(t, res.WrittenStores, 3)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "schema drift")
}

func TestRepairConvergesAfterOutage(t *testing.T) {
	f := newFixture(t, Config{RepairDelays: []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 450 * time.Millisecond}})
	f.doc.FailPuts(2)

	res, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)
	require.True(t, res.Degraded)

	_, ok := f.doc.Stored("u1")
	require.False(t, ok)

	require.Eventually(t, func() bool {
		p, ok := f.doc.Stored("u1")
		return ok && p.Name == "Ada"
	}, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.store.PendingRepairs()) == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, f.doc.PutCalls())
}

func TestRepairConvergesWithinDefaultBackoff(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the first default repair")
	}
	f := newFixture(t, Config{RepairDelays: DefaultRepairDelays})
	f.doc.FailPuts(2)

	_, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := f.doc.Stored("u1")
		return ok
	}, 6*time.Second, 50*time.Millisecond)
}

func TestRepairGivesUpAfterLastDelay(t *testing.T) {
	f := newFixture(t, Config{RepairDelays: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}})
	f.hier.SetDown(true)

	_, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(f.store.PendingRepairs()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, f.hier.PutCalls())
	_, ok := f.hier.Stored("u1")
	assert.False(t, ok)
}

func TestRepairLastPayloadWins(t *testing.T) {
	f := newFixture(t, Config{RepairDelays: []time.Duration{100 * time.Millisecond}})
	f.hier.SetDown(true)

	_, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "First"})
	require.NoError(t, err)
	_, err = f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Second"})
	require.NoError(t, err)
	assert.Len(t, f.store.PendingRepairs()["u1"], 1)

	f.hier.SetDown(false)
	require.Eventually(t, func() bool { return len(f.hier.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.store.PendingRepairs()) == 0 }, time.Second, 5*time.Millisecond)

	writes := f.hier.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "Second", writes[0].Profile.Name)
}

func TestCancelRepairs(t *testing.T) {
	f := newFixture(t, Config{})
	f.hier.SetDown(true)
	f.doc.FailPuts(2)

	_, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, []store.Name{store.Document, store.Hierarchical}, f.store.PendingRepairs()["u1"])

	assert.Equal(t, 2, f.store.CancelRepairs("u1"))
	assert.Empty(t, f.store.PendingRepairs())
	assert.Zero(t, f.store.CancelRepairs("u1"))
}

func TestCancelRepairsOfOneStore(t *testing.T) {
	f := newFixture(t, Config{})
	f.hier.SetDown(true)
	f.doc.FailPuts(2)

	_, err := f.store.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.CancelRepairs("u1", store.Hierarchical))
	assert.Equal(t, []store.Name{store.Document}, f.store.PendingRepairs()["u1"])
}

func TestGetProfileFromPrimaryRepairsOthers(t *testing.T) {
	f := newFixture(t, Config{})
	f.rel.Seed(seeded("u1", "Ada"))

	p, err := f.store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, 0, f.doc.GetCalls(), "a primary hit does not read other stores")

	require.Eventually(t, func() bool {
		_, inDoc := f.doc.Stored("u1")
		_, inHier := f.hier.Stored("u1")
		return inDoc && inHier
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.rel.Writes())
}

func TestGetProfileFallbackWritesBackToPrimary(t *testing.T) {
	f := newFixture(t, Config{})
	f.rel.FailGets(1)
	f.doc.Seed(seeded("u1", "Ada"))

	p, err := f.store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)

	writes := f.rel.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "u1", writes[0].UserID)
	assert.Equal(t, "Ada", writes[0].Profile.Name)
	assert.Zero(t, f.hier.GetCalls())
}

func TestGetProfileUsesRankedPrimary(t *testing.T) {
	f := newFixture(t, Config{})
	f.rel.SetDown(true)
	f.probe(t)
	f.hier.Seed(seeded("u1", "Ada"))

	p, err := f.store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Zero(t, f.rel.GetCalls(), "unavailable stores are not read")

	// The document store is primary now and receives the write-back.
	writes := f.doc.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "u1", writes[0].UserID)
}

func TestGetProfileNotFoundVersusOutage(t *testing.T) {
	t.Run("all absent", func(t *testing.T) {
		f := newFixture(t, Config{})

		_, err := f.store.GetProfile(context.Background(), "ghost")
		assert.ErrorIs(t, err, store.ErrProfileNotFound)
		assert.NotErrorIs(t, err, store.ErrAllStoresUnavailable)
		assert.Equal(t, 1, f.rel.GetCalls(), "a clean miss is not retried")
		assert.Equal(t, 1, f.hier.GetCalls())
	})

	t.Run("all failing", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.SetDown(true)
		f.doc.SetDown(true)
		f.hier.SetDown(true)

		_, err := f.store.GetProfile(context.Background(), "u1")
		assert.ErrorIs(t, err, store.ErrAllStoresUnavailable)
		assert.NotErrorIs(t, err, store.ErrProfileNotFound)
		assert.Equal(t, 3, f.rel.GetCalls())
	})

	t.Run("none marked available", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.SetDown(true)
		f.doc.SetDown(true)
		f.hier.SetDown(true)
		f.probe(t)

		_, err := f.store.GetProfile(context.Background(), "u1")
		assert.ErrorIs(t, err, store.ErrAllStoresUnavailable)
		assert.Zero(t, f.rel.GetCalls())
	})

	t.Run("absent and failing", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.Seed(seeded("u1", "Ada"))
		f.rel.SetDown(true)

		_, err := f.store.GetProfile(context.Background(), "u1")
		assert.ErrorIs(t, err, store.ErrAllStoresUnavailable)
		assert.NotErrorIs(t, err, store.ErrProfileNotFound)
		assert.Equal(t, 3, f.doc.GetCalls())
	})

	t.Run("absent with a store marked unavailable", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.Seed(seeded("u1", "Ada"))
		f.rel.SetDown(true)
		f.probe(t)
		f.rel.SetDown(false)

		_, err := f.store.GetProfile(context.Background(), "u1")
		assert.ErrorIs(t, err, store.ErrAllStoresUnavailable)
		assert.NotErrorIs(t, err, store.ErrProfileNotFound)
		assert.Zero(t, f.rel.GetCalls(), "a store marked unavailable is not read")
		assert.Equal(t, 3, f.doc.GetCalls())
	})
}

func TestGetProfileRetriesPasses(t *testing.T) {
	f := newFixture(t, Config{})
	f.rel.Seed(seeded("u1", "Ada"))
	f.rel.FailGets(1)
	f.doc.FailGets(1)
	f.hier.FailGets(1)

	p, err := f.store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, 2, f.rel.GetCalls())
}

func TestUpdateProfileMergesAndRewrites(t *testing.T) {
	f := newFixture(t, Config{})
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	base := seeded("u1", "Ada")
	base.CreatedAt = created
	base.TrustScore = 50
	for _, a := range []*mocks.Adapter{f.rel, f.doc, f.hier} {
		a.Seed(base)
	}

	res, err := f.store.UpdateProfile(context.Background(), "u1", profile.Record{"city": "Lyon", "trustScore": 80})
	require.NoError(t, err)
	assert.Len(t, res.WrittenStores, 3)

	for _, a := range []*mocks.Adapter{f.rel, f.doc, f.hier} {
		p, ok := a.Stored("u1")
		require.True(t, ok)
		assert.Equal(t, "Lyon", p.City)
		assert.Equal(t, 80, p.TrustScore)
		assert.Equal(t, "Ada", p.Name)
		assert.True(t, p.CreatedAt.Equal(created))
		assert.True(t, p.UpdatedAt.After(created))
	}
}

func TestUpdateProfileMissing(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.store.UpdateProfile(context.Background(), "ghost", profile.Record{"city": "Lyon"})
	assert.ErrorIs(t, err, store.ErrProfileNotFound)
	assert.Zero(t, f.rel.PutCalls())
}

func TestCreateProfileAppliesDefaults(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.store.CreateProfile(context.Background(), "u1", profile.Record{"name": "Ada", "cleanliness": 9})
	require.NoError(t, err)

	p := res.Profile
	assert.Equal(t, 9, p.Cleanliness)
	assert.Equal(t, profile.DefaultPreference, p.NoiseTolerance)
	assert.Equal(t, profile.DefaultTrustScore, p.TrustScore)
	assert.Equal(t, profile.DefaultSleepSchedule, p.SleepSchedule)
	assert.True(t, p.IsActive)
}

func TestMissingUserID(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.store.CreateOrUpdateProfile(ctx, "", profile.Record{"name": "Ada"})
	assert.ErrorIs(t, err, ErrMissingUserID)
	_, err = f.store.GetProfile(ctx, "")
	assert.ErrorIs(t, err, ErrMissingUserID)
	_, err = f.store.WriteToStore(ctx, store.Relational, profile.Profile{})
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestGetFeedCandidates(t *testing.T) {
	t.Run("primary", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.Seed(seeded("u1", "Ada"))
		f.rel.Seed(seeded("u2", "Bob"))
		f.doc.Seed(seeded("u3", "Cy"))

		out, err := f.store.GetFeedCandidates(context.Background(), "u1", 10)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "u2", out[0].UserID)
	})

	t.Run("fallback is not merged", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.SetDown(true)
		f.rel.Seed(seeded("u2", "Bob"))
		f.doc.Seed(seeded("u3", "Cy"))
		f.doc.Seed(seeded("u4", "Di"))
		f.hier.Seed(seeded("u5", "Ed"))

		out, err := f.store.GetFeedCandidates(context.Background(), "u1", 10)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "u3", out[0].UserID)
		assert.Equal(t, "u4", out[1].UserID)
	})

	t.Run("empty is not an error", func(t *testing.T) {
		f := newFixture(t, Config{})

		out, err := f.store.GetFeedCandidates(context.Background(), "u1", 10)
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})

	t.Run("all down", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.rel.SetDown(true)
		f.doc.SetDown(true)
		f.hier.SetDown(true)

		_, err := f.store.GetFeedCandidates(context.Background(), "u1", 10)
		assert.ErrorIs(t, err, store.ErrAllStoresUnavailable)
	})
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t, Config{})
	f.rel.SetDown(true)
	f.probe(t)

	st := f.store.GetStatus()
	assert.Equal(t, store.Document, st.PrimaryStore)
	assert.True(t, st.PrimaryAvailable)
	require.Len(t, st.Stores, 3)
	assert.Equal(t, store.Relational, st.Stores[2].Store)
	assert.False(t, st.Stores[2].Available)
	assert.False(t, st.Timestamp.IsZero())
}

func TestWriteToStoreUnknown(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.store.WriteToStore(context.Background(), "cache", seeded("u1", "Ada"))
	assert.Error(t, err)
}

func TestWriteMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	rel, doc, hier := mocks.NewAdapter(store.Relational), mocks.NewAdapter(store.Document), mocks.NewAdapter(store.Hierarchical)
	hier.SetDown(true)
	mon := health.NewMonitor([]store.Adapter{rel, doc, hier}, health.Config{}, nil, m)
	s := New(mon, Config{RepairDelays: []time.Duration{time.Hour}}, nil, m)
	t.Cleanup(s.Close)

	_, err := s.CreateOrUpdateProfile(context.Background(), "u1", profile.Record{"name": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("relational", metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("hierarchical", metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedWrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingRepairs))

	s.CancelRepairs("u1")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingRepairs))
}
