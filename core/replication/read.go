package replication

import (
	"context"
	"time"

	"profile-store/core/metrics"
	"profile-store/core/profile"
	"profile-store/core/store"

	"go.uber.org/zap"
)

// passOutcome summarizes one read pass over the available stores.
type passOutcome int

const (
	passFound passOutcome = iota
	// passAbsent means every configured store was queried and cleanly had
	// no record.
	passAbsent
	// passIncomplete means at least one store failed or was skipped as
	// unavailable, so a miss proves nothing.
	passIncomplete
)

// GetProfile returns the profile of userID. Concurrent calls for the same id
// share one lookup. It fails with store.ErrProfileNotFound only when every
// configured store answered and none holds the record; otherwise it fails
// with store.ErrAllStoresUnavailable.
func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	v, err, _ := s.reads.Do(userID, func() (any, error) {
		return s.read(ctx, userID, true)
	})
	if err != nil {
		return nil, err
	}
	out := v.(profile.Profile).Clone()
	return &out, nil
}

// read runs up to ReadRetries passes. With readRepair unset a primary hit is
// not copied to the other stores.
func (s *Store) read(ctx context.Context, userID string, readRepair bool) (profile.Profile, error) {
	for pass := 0; pass < s.cfg.ReadRetries; pass++ {
		if pass > 0 {
			select {
			case <-ctx.Done():
				return profile.Profile{}, store.ErrAllStoresUnavailable
			case <-time.After(s.cfg.ReadRetryDelay):
			}
		}

		p, outcome := s.readPass(ctx, userID, readRepair)
		switch outcome {
		case passFound:
			return p, nil
		case passAbsent:
			return profile.Profile{}, store.ErrProfileNotFound
		}
		s.logger.Debug("Read pass found nothing",
			zap.String("user_id", userID),
			zap.Int("pass", pass+1),
		)
	}
	return profile.Profile{}, store.ErrAllStoresUnavailable
}

// readPass tries the available stores in ranked order and stops at the
// first hit.
func (s *Store) readPass(ctx context.Context, userID string, readRepair bool) (profile.Profile, passOutcome) {
	names := s.monitor.Snapshot().Available()
	if len(names) == 0 {
		return profile.Profile{}, passIncomplete
	}
	primary := names[0]
	absent := 0

	for i, name := range names {
		a, ok := s.adapters[name]
		if !ok {
			continue
		}
		p, err := s.get(ctx, a, userID)
		if err != nil {
			s.logger.Warn("Read failed",
				zap.String("user_id", userID),
				zap.String("store", string(name)),
				zap.Error(err),
			)
			continue
		}
		if p == nil {
			absent++
			continue
		}

		if i == 0 {
			if readRepair {
				s.readRepair(*p, names[1:])
			}
		} else if _, err := s.WriteToStore(ctx, primary, *p); err != nil && !store.IsDegraded(err) {
			s.logger.Warn("Write-back to primary failed",
				zap.String("user_id", userID),
				zap.String("primary", string(primary)),
				zap.String("source", string(name)),
				zap.Error(err),
			)
		}
		return *p, passFound
	}

	if absent == len(s.adapters) {
		return profile.Profile{}, passAbsent
	}
	return profile.Profile{}, passIncomplete
}

// get is one timed, instrumented read from a single adapter.
func (s *Store) get(ctx context.Context, a store.Adapter, userID string) (*profile.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	p, err := a.GetProfile(ctx, userID)
	switch {
	case err != nil:
		s.metrics.ObserveRead(string(a.Name()), metrics.OutcomeFailure)
		return nil, store.Unavailable(a.Name(), "get", err)
	case p == nil:
		s.metrics.ObserveRead(string(a.Name()), metrics.OutcomeNotFound)
	default:
		s.metrics.ObserveRead(string(a.Name()), metrics.OutcomeSuccess)
	}
	return p, nil
}

// readRepair copies p into the other stores in the background.
func (s *Store) readRepair(p profile.Profile, others []store.Name) {
	if len(others) == 0 {
		return
	}
	p = p.Clone()
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		for _, name := range others {
			if s.bgCtx.Err() != nil {
				return
			}
			if _, err := s.WriteToStore(s.bgCtx, name, p); err != nil && !store.IsDegraded(err) {
				s.logger.Debug("Read-repair failed",
					zap.String("user_id", p.UserID),
					zap.String("store", string(name)),
					zap.Error(err),
				)
			}
		}
	}()
}

// GetFeedCandidates returns up to limit feed candidates for userID from the
// first store that answers. Results are never merged across stores.
func (s *Store) GetFeedCandidates(ctx context.Context, userID string, limit int) ([]profile.Profile, error) {
	for _, name := range s.monitor.Snapshot().Available() {
		a, ok := s.adapters[name]
		if !ok {
			continue
		}
		out, err := s.feed(ctx, a, userID, limit)
		if err != nil {
			s.logger.Warn("Feed read failed",
				zap.String("user_id", userID),
				zap.String("store", string(name)),
				zap.Error(err),
			)
			continue
		}
		if out == nil {
			out = []profile.Profile{}
		}
		return out, nil
	}
	return nil, store.ErrAllStoresUnavailable
}

func (s *Store) feed(ctx context.Context, a store.Adapter, userID string, limit int) ([]profile.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	out, err := a.ListFeedCandidates(ctx, userID, limit)
	if err != nil {
		return nil, store.Unavailable(a.Name(), "feed", err)
	}
	return out, nil
}
