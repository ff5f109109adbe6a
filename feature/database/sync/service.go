package sync

import (
	"context"
	"errors"
	"fmt"

	"profile-store/core/profile"
	"profile-store/core/replication"
	"profile-store/core/store"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNoTargetSynced is returned when a profile was read but no target store
// accepted it.
var ErrNoTargetSynced = errors.New("no target store accepted the profile")

// UserResult reports a single-user sync.
type UserResult struct {
	UserID string `json:"user_id"`
	// Stores maps every configured store to whether it now holds the
	// relational copy.
	Stores           map[store.Name]bool `json:"stores"`
	Profile          profile.Profile     `json:"profile"`
	CancelledRepairs int                 `json:"cancelled_repairs"`
}

// Summary reports a sync over every user.
type Summary struct {
	SyncedCount int `json:"synced_count"`
	FailedCount int `json:"failed_count"`
	TotalCount  int `json:"total_count"`
}

// TableResult reports a table sync into one store.
type TableResult struct {
	Target  store.Name `json:"target"`
	Synced  int        `json:"synced"`
	Batches int        `json:"batches"`
}

// Service runs sync jobs over a replication.Store.
type Service struct {
	store   *replication.Store
	journal *Journal
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewService creates a sync service.
func NewService(rs *replication.Store, journal *Journal, cfg Config, logger *zap.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = NewJournal(nil, "", nil, "", logger, nil)
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Service{
		store:   rs,
		journal: journal,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Journal returns the sync log.
func (s *Service) Journal() *Journal {
	return s.journal
}

// SyncUserToAllStores rewrites the relational copy of userID into every
// other store. Pending repairs into the stores that took the copy are
// cancelled. Target failures are reported in the result; the call fails
// when the relational read fails or no target accepted the copy.
func (s *Service) SyncUserToAllStores(ctx context.Context, userID string) (*UserResult, error) {
	log := s.logger.With(zap.String("user_id", userID))

	src, err := s.readFrom(ctx, store.Relational, userID)
	if err != nil {
		s.journal.Record(ctx, userID, DirectionAll, "", err)
		log.Error("Tri-sync failed", zap.Error(err))
		return nil, err
	}

	res := &UserResult{
		UserID:  userID,
		Stores:  map[store.Name]bool{store.Relational: true},
		Profile: *src,
	}
	var written []store.Name
	var errs []error
	for _, name := range store.Preference {
		if name == store.Relational {
			continue
		}
		if _, ok := s.store.Adapter(name); !ok {
			continue
		}
		_, err := s.store.WriteToStore(ctx, name, *src)
		if err != nil && !store.IsDegraded(err) {
			res.Stores[name] = false
			errs = append(errs, err)
			log.Warn("Sync to store failed", zap.String("store", string(name)), zap.Error(err))
			continue
		}
		res.Stores[name] = true
		written = append(written, name)
	}

	if len(written) > 0 {
		res.CancelledRepairs = s.store.CancelRepairs(userID, written...)
	}

	switch {
	case len(errs) == 0:
		s.journal.Record(ctx, userID, DirectionAll, StatusSuccess, nil)
		log.Info("User synced to all stores", zap.Int("cancelled_repairs", res.CancelledRepairs))
		return res, nil
	case len(written) == 0:
		err := fmt.Errorf("sync %s: %w: %w", userID, ErrNoTargetSynced, errors.Join(errs...))
		s.journal.Record(ctx, userID, DirectionAll, StatusError, err)
		return res, err
	default:
		s.journal.Record(ctx, userID, DirectionAll, StatusPartial, errors.Join(errs...))
		return res, nil
	}
}

// SyncAllUsers syncs every relational user id to the other stores. A failed
// user is counted and skipped. Cancelling ctx stops the run and returns the
// counts so far with the context error.
func (s *Service) SyncAllUsers(ctx context.Context) (*Summary, error) {
	a, ok := s.store.Adapter(store.Relational)
	if !ok {
		return nil, fmt.Errorf("store %s is not configured", store.Relational)
	}
	lister, ok := a.(store.IDLister)
	if !ok {
		return nil, fmt.Errorf("store %s cannot list user ids", store.Relational)
	}
	ids, err := lister.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error("Full sync failed", zap.Error(err))
		return nil, store.Unavailable(store.Relational, "list", err)
	}

	s.logger.Info("Starting full sync", zap.Int("users", len(ids)))
	sum := &Summary{TotalCount: len(ids)}
	for _, id := range ids {
		if err := s.limiter.Wait(ctx); err != nil {
			return sum, err
		}
		if _, err := s.SyncUserToAllStores(ctx, id); err != nil {
			sum.FailedCount++
			continue
		}
		sum.SyncedCount++
	}
	s.logger.Info("Full sync complete",
		zap.Int("synced", sum.SyncedCount),
		zap.Int("failed", sum.FailedCount),
	)
	return sum, nil
}

// SyncTableToStore pages through the relational table and upserts every
// page into target, keyed by user id.
func (s *Service) SyncTableToStore(ctx context.Context, target store.Name) (*TableResult, error) {
	direction := DirectionTablePrefix + string(target)
	res, err := s.syncTable(ctx, target)
	if err != nil {
		s.journal.Record(ctx, allUsers, direction, "", err)
		s.logger.Error("Table sync failed", zap.String("target", string(target)), zap.Error(err))
		return res, err
	}
	s.journal.Record(ctx, allUsers, direction, StatusSuccess, nil)
	s.logger.Info("Table synced",
		zap.String("target", string(target)),
		zap.Int("profiles", res.Synced),
		zap.Int("batches", res.Batches),
	)
	return res, nil
}

func (s *Service) syncTable(ctx context.Context, target store.Name) (*TableResult, error) {
	if target == store.Relational {
		return nil, fmt.Errorf("cannot sync %s into itself", target)
	}
	src, ok := s.store.Adapter(store.Relational)
	if !ok {
		return nil, fmt.Errorf("store %s is not configured", store.Relational)
	}
	pager, ok := src.(store.Pager)
	if !ok {
		return nil, fmt.Errorf("store %s cannot page profiles", store.Relational)
	}
	dst, ok := s.store.Adapter(target)
	if !ok {
		return nil, fmt.Errorf("store %s is not configured", target)
	}

	res := &TableResult{Target: target}
	for offset := 0; ; {
		page, err := pager.ListProfiles(ctx, offset, s.cfg.BatchSize)
		if err != nil {
			return res, store.Unavailable(store.Relational, "list", err)
		}
		if len(page) == 0 {
			return res, nil
		}
		if err := s.upsertPage(ctx, dst, page); err != nil {
			return res, fmt.Errorf("batch at offset %d: %w", offset, err)
		}
		res.Synced += len(page)
		res.Batches++
		offset += len(page)
		if len(page) < s.cfg.BatchSize {
			return res, nil
		}
	}
}

func (s *Service) upsertPage(ctx context.Context, dst store.Adapter, page []profile.Profile) error {
	if batcher, ok := dst.(store.BatchUpserter); ok {
		if err := batcher.PutProfiles(ctx, page); err != nil && !store.IsDegraded(err) {
			return store.Unavailable(dst.Name(), "batch", err)
		}
		return nil
	}
	for _, p := range page {
		if _, err := s.store.WriteToStore(ctx, dst.Name(), p); err != nil && !store.IsDegraded(err) {
			return err
		}
	}
	return nil
}

// readFrom reads userID from one store with the configured timeout.
func (s *Service) readFrom(ctx context.Context, name store.Name, userID string) (*profile.Profile, error) {
	if userID == "" {
		return nil, replication.ErrMissingUserID
	}
	a, ok := s.store.Adapter(name)
	if !ok {
		return nil, fmt.Errorf("store %s is not configured", name)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	p, err := a.GetProfile(ctx, userID)
	if err != nil {
		return nil, store.Unavailable(name, "get", err)
	}
	if p == nil {
		return nil, fmt.Errorf("user %s not found in %s: %w", userID, name, store.ErrProfileNotFound)
	}
	return p, nil
}
