package usecases

import (
	"context"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// List returns catalog records most-recent-first, optionally filtered by
// tenant (which admits global documents) and owner.
func (s *RetrievalService) List(ctx context.Context, tenantID, ownerID string) ([]entities.DocumentRecord, error) {
	return s.catalog.List(ctx, tenantID, ownerID)
}

// Delete removes the document's catalog row, which is what makes its vectors
// invisible to search. The vectors themselves stay in the index until an
// offline compaction reclaims them.
func (s *RetrievalService) Delete(ctx context.Context, docID, ownerID string) error {
	if err := s.catalog.Delete(ctx, docID, ownerID); err != nil {
		return err
	}
	s.logger.Info("document deleted", "doc_id", docID, "owner_id", ownerID)
	return nil
}

// Stats aggregates per-visibility document, chunk, and byte counts.
func (s *RetrievalService) Stats(ctx context.Context, tenantID string) (*entities.UsageStats, error) {
	return s.catalog.Stats(ctx, tenantID)
}
