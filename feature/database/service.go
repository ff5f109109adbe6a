package database

import (
	"context"
	"fmt"

	"profile-store/core/replication"
	"profile-store/core/store"
	profilesync "profile-store/feature/database/sync"

	"go.uber.org/zap"
)

// SchemaInspector reports relational columns the profile table lacks.
type SchemaInspector interface {
	MissingColumns(ctx context.Context) ([]string, error)
}

// SchemaReport is the result of a schema drift check.
type SchemaReport struct {
	Table   string   `json:"table,omitempty"`
	Missing []string `json:"missing"`
	// Degraded is set when writes fall back to the core columns.
	Degraded bool `json:"degraded"`
}

// FailoverReport is the result of a failover test.
type FailoverReport struct {
	Status         replication.Status `json:"database_status"`
	UsersRequested int                `json:"users_requested"`
	UsersRetrieved int                `json:"users_retrieved"`
	Errors         []string           `json:"errors,omitempty"`
}

// failoverProbeUsers are read by the failover test.
var failoverProbeUsers = []string{"test-user-0", "test-user-1", "test-user-2"}

// Service ties the replicated store and the sync jobs together.
type Service struct {
	store  *replication.Store
	sync   *profilesync.Service
	logger *zap.Logger
}

// NewService creates a new database service.
func NewService(rs *replication.Store, syncer *profilesync.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: rs, sync: syncer, logger: logger}
}

// Status returns the current health snapshot.
func (s *Service) Status() replication.Status {
	return s.store.GetStatus()
}

// Sync returns the sync job runner.
func (s *Service) Sync() *profilesync.Service {
	return s.sync
}

// PendingRepairs returns the stores awaiting repair, per user.
func (s *Service) PendingRepairs() map[string][]store.Name {
	return s.store.PendingRepairs()
}

// CheckSchema reports relational columns missing from the profile table.
func (s *Service) CheckSchema(ctx context.Context) (*SchemaReport, error) {
	a, ok := s.store.Adapter(store.Relational)
	if !ok {
		return nil, fmt.Errorf("store %s is not configured", store.Relational)
	}
	inspector, ok := a.(SchemaInspector)
	if !ok {
		return &SchemaReport{Missing: []string{}}, nil
	}
	missing, err := inspector.MissingColumns(ctx)
	if err != nil {
		return nil, err
	}
	report := &SchemaReport{Missing: missing, Degraded: len(missing) > 0}
	if t, ok := a.(interface{ Table() string }); ok {
		report.Table = t.Table()
	}
	if report.Missing == nil {
		report.Missing = []string{}
	}
	return report, nil
}

// FailoverTest reads a fixed set of users through the failover read path and
// reports how many came back.
func (s *Service) FailoverTest(ctx context.Context) *FailoverReport {
	report := &FailoverReport{UsersRequested: len(failoverProbeUsers)}
	for _, id := range failoverProbeUsers {
		if _, err := s.store.GetProfile(ctx, id); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		report.UsersRetrieved++
	}
	report.Status = s.store.GetStatus()
	return report
}
