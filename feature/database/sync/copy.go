package sync

import (
	"context"

	"profile-store/core/profile"
	"profile-store/core/store"

	"go.uber.org/zap"
)

// SyncRelationalToDocument copies the relational profile of userID into the
// document store.
func (s *Service) SyncRelationalToDocument(ctx context.Context, userID string) (*profile.Profile, error) {
	return s.copyProfile(ctx, store.Relational, store.Document, DirectionRelationalDocument, userID)
}

// SyncDocumentToRelational copies the document profile of userID into the
// relational store. A schema-drifted relational table keeps only the core
// columns; the entry is still logged as a success.
func (s *Service) SyncDocumentToRelational(ctx context.Context, userID string) (*profile.Profile, error) {
	return s.copyProfile(ctx, store.Document, store.Relational, DirectionDocumentRelational, userID)
}

func (s *Service) copyProfile(ctx context.Context, from, to store.Name, direction, userID string) (*profile.Profile, error) {
	log := s.logger.With(zap.String("user_id", userID), zap.String("direction", direction))

	p, err := s.readFrom(ctx, from, userID)
	if err == nil {
		p, err = s.store.WriteToStore(ctx, to, *p)
		if store.IsDegraded(err) {
			log.Warn("Copied core fields only", zap.Error(err))
			err = nil
		}
	}
	if err != nil {
		s.journal.Record(ctx, userID, direction, "", err)
		log.Error("Sync failed", zap.Error(err))
		return nil, err
	}
	s.journal.Record(ctx, userID, direction, StatusSuccess, nil)
	log.Info("Profile synced")
	return p, nil
}
