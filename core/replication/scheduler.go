package replication

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"profile-store/core/metrics"
	"profile-store/core/profile"
	"profile-store/core/store"

	"go.uber.org/zap"
)

// RepairFunc writes p to a single store.
type RepairFunc func(ctx context.Context, name store.Name, p profile.Profile) error

type repairKey struct {
	userID string
	store  store.Name
}

type repairJob struct {
	cancel context.CancelFunc
}

// Scheduler runs delayed single-store repairs keyed by (user, store).
// Scheduling a key that already has a pending job replaces that job, so the
// most recent payload always wins.
type Scheduler struct {
	delays  []time.Duration
	repair  RepairFunc
	logger  *zap.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[repairKey]*repairJob
	closed bool
}

// NewScheduler creates a scheduler that calls repair at each delay.
func NewScheduler(delays []time.Duration, repair RepairFunc, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if len(delays) == 0 {
		delays = DefaultRepairDelays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		delays:  append([]time.Duration(nil), delays...),
		repair:  repair,
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[repairKey]*repairJob),
	}
}

// Schedule queues repairs of p into name. Delays count from start.
func (s *Scheduler) Schedule(name store.Name, p profile.Profile, start time.Time) {
	key := repairKey{userID: p.UserID, store: name}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.jobs[key]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	job := &repairJob{cancel: cancel}
	s.jobs[key] = job
	s.metrics.SetPendingRepairs(len(s.jobs))

	s.wg.Add(1)
	go s.run(ctx, key, job, p.Clone(), start)
}

func (s *Scheduler) run(ctx context.Context, key repairKey, job *repairJob, p profile.Profile, start time.Time) {
	defer s.wg.Done()
	defer s.finish(key, job)

	log := s.logger.With(zap.String("user_id", key.userID), zap.String("store", string(key.store)))

	for i, delay := range s.delays {
		timer := time.NewTimer(time.Until(start.Add(delay)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := s.repair(ctx, key.store, p)
		if err == nil || store.IsDegraded(err) {
			s.metrics.ObserveRepair(string(key.store), metrics.OutcomeSuccess)
			log.Info("Repaired store", zap.Int("attempt", i+1))
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.metrics.ObserveRepair(string(key.store), metrics.OutcomeFailure)
		log.Warn("Repair attempt failed", zap.Int("attempt", i+1), zap.Error(err))
	}

	log.Error("Giving up repair, store stays out of sync until the next sync",
		zap.Int("attempts", len(s.delays)))
}

// finish drops the job unless a newer one already took its key.
func (s *Scheduler) finish(key repairKey, job *repairJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.cancel()
	if s.jobs[key] == job {
		delete(s.jobs, key)
		s.metrics.SetPendingRepairs(len(s.jobs))
	}
}

// Cancel stops the pending repairs of userID. With no names every store is
// cancelled.
func (s *Scheduler) Cancel(userID string, names ...store.Name) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, job := range s.jobs {
		if key.userID == userID && (len(names) == 0 || slices.Contains(names, key.store)) {
			job.cancel()
			delete(s.jobs, key)
			n++
		}
	}
	s.metrics.SetPendingRepairs(len(s.jobs))
	return n
}

// Pending returns the stores with a pending repair, per user.
func (s *Scheduler) Pending() map[string][]store.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]store.Name)
	for key := range s.jobs {
		out[key.userID] = append(out[key.userID], key.store)
	}
	for _, names := range out {
		sortNames(names)
	}
	return out
}

// Len returns the number of pending repairs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Close cancels every pending repair and waits for running ones to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.jobs = make(map[repairKey]*repairJob)
	s.metrics.SetPendingRepairs(0)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func sortNames(names []store.Name) {
	sort.Slice(names, func(i, j int) bool { return names[i].Rank() < names[j].Rank() })
}
