package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"profile-store/core/health"
	"profile-store/core/metrics"
	"profile-store/core/profile"
	"profile-store/core/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMissingUserID is returned for writes and reads without a user id.
var ErrMissingUserID = errors.New("user id is required")

// AttemptResult describes what happened to one store during a write.
type AttemptResult struct {
	Store   store.Name `json:"name"`
	Success bool       `json:"success"`
	// Attempts is 1 or 2 for a store that was written to, and 0 when the
	// store was skipped.
	Attempts int `json:"attempts"`
	// Skipped is set when the health monitor marked the store unavailable
	// and no write was attempted.
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
	Err     error  `json:"-"`
}

// WriteResult is returned by every successful write.
type WriteResult struct {
	Profile       profile.Profile `json:"profile"`
	WrittenStores []store.Name    `json:"written_stores"`
	FailedStores  []AttemptResult `json:"failed_stores"`
	// Degraded is set when at least one store did not take the write.
	Degraded bool     `json:"degraded"`
	Warnings []string `json:"warnings,omitempty"`
}

// Status is the operator view of store health.
type Status struct {
	PrimaryStore     store.Name      `json:"primary_store"`
	PrimaryAvailable bool            `json:"primary_available"`
	Stores           []health.Status `json:"stores"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Store orchestrates writes, reads and repairs over the monitored adapters.
type Store struct {
	monitor   *health.Monitor
	adapters  map[store.Name]store.Adapter
	cfg       Config
	scheduler *Scheduler
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	reads singleflight.Group

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New creates a Store over the adapters known to monitor.
func New(monitor *health.Monitor, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Store {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	adapters := make(map[store.Name]store.Adapter)
	for _, a := range monitor.Adapters() {
		adapters[a.Name()] = a
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Store{
		monitor:  monitor,
		adapters: adapters,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
	s.scheduler = NewScheduler(cfg.RepairDelays, s.repair, logger.Named("repair"), m)
	return s
}

// CreateProfile writes a brand new profile with defaults applied.
func (s *Store) CreateProfile(ctx context.Context, userID string, rec profile.Record) (*WriteResult, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	p := profile.FromRecord(profile.Normalize(rec))
	p.UserID = userID
	return s.write(ctx, profile.WithDefaults(p, s.now()))
}

// CreateOrUpdateProfile rewrites the full profile in every available store.
// It fails only with store.ErrAllStoresUnavailable.
func (s *Store) CreateOrUpdateProfile(ctx context.Context, userID string, rec profile.Record) (*WriteResult, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	p := profile.FromRecord(profile.Normalize(rec))
	p.UserID = userID
	return s.write(ctx, p)
}

// UpdateProfile reads the current profile, applies patch and rewrites it.
// The read skips read-repair so no stale copy races the rewrite.
func (s *Store) UpdateProfile(ctx context.Context, userID string, patch profile.Record) (*WriteResult, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	current, err := s.read(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	return s.write(ctx, profile.Merge(current, patch))
}

func (s *Store) write(ctx context.Context, p profile.Profile) (*WriteResult, error) {
	started := s.now()
	p.UpdatedAt = started.UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = started.UTC()
	}

	snap := s.monitor.Snapshot()
	var targets []store.Adapter
	var skipped []store.Name
	for _, name := range snap.Ranked() {
		a, ok := s.adapters[name]
		if !ok {
			continue
		}
		if snap.IsAvailable(name) {
			targets = append(targets, a)
		} else {
			skipped = append(skipped, name)
		}
	}
	log := s.logger.With(zap.String("user_id", p.UserID))

	if len(targets) == 0 {
		log.Error("No store available for write")
		return nil, store.ErrAllStoresUnavailable
	}

	results := make([]AttemptResult, len(targets))
	stored := make([]*profile.Profile, len(targets))
	s.dispatch(ctx, targets, p, results, stored, func(int) bool { return true })

	// One more synchronous round for critical stores that failed.
	s.dispatch(ctx, targets, p, results, stored, func(i int) bool {
		return !results[i].Success && targets[i].Name().IsCritical()
	})

	res := &WriteResult{Profile: p}
	for i, r := range results {
		if r.Success {
			res.WrittenStores = append(res.WrittenStores, r.Store)
			if r.Warning != "" {
				res.Warnings = append(res.Warnings, r.Warning)
			}
			if len(res.WrittenStores) == 1 && stored[i] != nil {
				res.Profile = *stored[i]
			}
			continue
		}
		res.FailedStores = append(res.FailedStores, r)
	}
	for _, name := range skipped {
		res.FailedStores = append(res.FailedStores, AttemptResult{
			Store:   name,
			Skipped: true,
			Error:   store.Unavailable(name, "put", errors.New("marked unavailable by health monitor")).Error(),
			Err:     store.ErrStoreUnavailable,
		})
	}

	if len(res.WrittenStores) == 0 {
		log.Error("Write failed on every store", zap.Int("attempted", len(targets)))
		return nil, store.ErrAllStoresUnavailable
	}

	if len(res.FailedStores) > 0 {
		res.Degraded = true
		s.metrics.IncDegraded()
		for _, f := range res.FailedStores {
			s.scheduler.Schedule(f.Store, p, started)
		}
		log.Warn("Degraded write, repairs scheduled",
			zap.Any("written", res.WrittenStores),
			zap.Int("failed", len(res.FailedStores)),
		)
	} else {
		log.Debug("Profile written to every store")
	}
	return res, nil
}

// dispatch writes p to every selected target in parallel and waits for all
// of them.
func (s *Store) dispatch(ctx context.Context, targets []store.Adapter, p profile.Profile, results []AttemptResult, stored []*profile.Profile, selected func(int) bool) {
	var wg sync.WaitGroup
	for i, a := range targets {
		if !selected(i) {
			continue
		}
		wg.Add(1)
		go func(i int, a store.Adapter) {
			defer wg.Done()
			out, err := s.put(ctx, a, p)

			r := results[i]
			r.Store = a.Name()
			r.Attempts++
			switch {
			case err == nil:
				r.Success, r.Err, r.Error = true, nil, ""
			case store.IsDegraded(err):
				r.Success, r.Err, r.Error = true, nil, ""
				r.Warning = err.Error()
			default:
				r.Success, r.Err, r.Error = false, err, err.Error()
			}
			results[i] = r
			if r.Success {
				stored[i] = out
			}
		}(i, a)
	}
	wg.Wait()
}

// put is one timed, instrumented write to a single adapter.
func (s *Store) put(ctx context.Context, a store.Adapter, p profile.Profile) (*profile.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	began := time.Now()
	out, err := a.PutProfile(ctx, p.UserID, p.Clone())
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case store.IsDegraded(err):
		outcome = metrics.OutcomeDegraded
		s.logger.Warn("Write stored core fields only",
			zap.String("user_id", p.UserID),
			zap.String("store", string(a.Name())),
			zap.Error(err),
		)
	default:
		outcome = metrics.OutcomeFailure
		err = store.Unavailable(a.Name(), "put", err)
	}
	s.metrics.ObserveWrite(string(a.Name()), outcome, time.Since(began))
	return out, err
}

// WriteToStore writes p to a single store regardless of its health. A
// degraded write returns the stored profile along with an error matching
// store.ErrSchemaDriftDegraded.
func (s *Store) WriteToStore(ctx context.Context, name store.Name, p profile.Profile) (*profile.Profile, error) {
	if p.UserID == "" {
		return nil, ErrMissingUserID
	}
	a, ok := s.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown store %q", name)
	}
	return s.put(ctx, a, p)
}

func (s *Store) repair(ctx context.Context, name store.Name, p profile.Profile) error {
	_, err := s.WriteToStore(ctx, name, p)
	return err
}

// CancelRepairs drops the pending repairs of userID into names, or into
// every store when names is empty, and returns how many were cancelled.
func (s *Store) CancelRepairs(userID string, names ...store.Name) int {
	return s.scheduler.Cancel(userID, names...)
}

// PendingRepairs returns the stores still awaiting repair, per user.
func (s *Store) PendingRepairs() map[string][]store.Name {
	return s.scheduler.Pending()
}

// GetStatus reports the current health snapshot.
func (s *Store) GetStatus() Status {
	snap := s.monitor.Snapshot()
	primary, up := snap.Primary()
	return Status{
		PrimaryStore:     primary,
		PrimaryAvailable: up,
		Stores:           snap.Statuses(),
		Timestamp:        s.now().UTC(),
	}
}

// Adapter returns the adapter serving name.
func (s *Store) Adapter(name store.Name) (store.Adapter, bool) {
	a, ok := s.adapters[name]
	return a, ok
}

// Monitor returns the health monitor driving this store.
func (s *Store) Monitor() *health.Monitor {
	return s.monitor
}

// Close stops pending repairs and waits for background work to finish.
func (s *Store) Close() {
	s.scheduler.Close()
	s.bgCancel()
	s.bg.Wait()
}
