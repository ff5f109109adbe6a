package sync

import (
	"context"
	"fmt"
	"time"

	"profile-store/core/reconcile"
	"profile-store/core/replication"
	"profile-store/core/store"

	"go.uber.org/zap"
)

// ReconcileReport is a drift plan plus what was done with it.
type ReconcileReport struct {
	Plan *reconcile.ReconcilePlan `json:"plan"`
	// Executed counts applied actions.
	Executed int `json:"executed"`
	// Skipped lists stores left out because the health monitor marks them
	// unavailable.
	Skipped []store.Name `json:"skipped,omitempty"`
}

// Reconcile compares every available store against the relational copy and
// plans sync_store actions. Actions run only when opts is confirmed and not
// a dry run.
func (s *Service) Reconcile(ctx context.Context, opts reconcile.ReconcileOptions) (*ReconcileReport, error) {
	spec, skipped := s.availableSpec()
	if len(spec.Sources) == 0 {
		return nil, store.ErrAllStoresUnavailable
	}
	report := &ReconcileReport{Skipped: skipped}

	began := time.Now()
	plan, executed, err := reconcile.ReconcileAndApply(ctx, spec, opts)
	report.Plan, report.Executed = plan, executed

	applying := opts.Confirmed && !opts.DryRun && plan != nil && len(plan.Actions) > 0
	if applying || err != nil {
		status := StatusSuccess
		if err != nil {
			status = StatusError
			if executed > 0 {
				status = StatusPartial
			}
		}
		s.journal.Record(ctx, allUsers, DirectionReconcile, status, err)
	}
	if err != nil {
		s.logger.Error("Reconcile failed", zap.Int("executed", executed), zap.Error(err))
		return report, fmt.Errorf("reconcile: %w", err)
	}

	s.logger.Info("Reconcile complete",
		zap.Int("profiles", plan.Summary.TotalItems),
		zap.Int("mismatches", plan.Summary.Mismatches),
		zap.Int("actions", len(plan.Actions)),
		zap.Int("executed", executed),
		zap.Duration("took", time.Since(began)),
	)
	return report, nil
}

// UserDrift reports the drift of one profile.
type UserDrift struct {
	Result  *reconcile.ReconcileResult `json:"result"`
	Skipped []store.Name               `json:"skipped,omitempty"`
}

// ReconcileUser compares the copies of userID held by every available store
// against the relational copy. It never writes.
func (s *Service) ReconcileUser(ctx context.Context, userID string) (*UserDrift, error) {
	if userID == "" {
		return nil, replication.ErrMissingUserID
	}
	spec, skipped := s.availableSpec()
	if len(spec.Sources) == 0 {
		return nil, store.ErrAllStoresUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	result, err := reconcile.ReconcileOne(ctx, spec, userID)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", userID, err)
	}
	return &UserDrift{Result: result, Skipped: skipped}, nil
}

// availableSpec builds a reconcile spec over the stores the monitor marks
// available and lists the others.
func (s *Service) availableSpec() (*reconcile.Spec, []store.Name) {
	snap := s.store.Monitor().Snapshot()
	spec := &reconcile.Spec{
		Reference: store.Relational,
		PageSize:  s.cfg.BatchSize,
	}
	var skipped []store.Name
	for _, a := range s.store.Monitor().Adapters() {
		if !snap.IsAvailable(a.Name()) {
			skipped = append(skipped, a.Name())
			continue
		}
		spec.Sources = append(spec.Sources, a)
	}
	return spec, skipped
}
