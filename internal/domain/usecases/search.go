package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// SearchRequest carries one similarity query.
type SearchRequest struct {
	Query    string
	TenantID string // empty for an untenanted caller: only global hits qualify

	// TopK defaults to DefaultTopK when <= 0.
	TopK int
	// ScoreThreshold defaults to DefaultScoreThreshold when <= 0.
	// Recommended range [0, 1].
	ScoreThreshold float64
}

// Search embeds the query, over-fetches candidates from the vector index,
// filters them by tenant visibility and catalog liveness, and truncates to
// top k. An absent index or no matches yields an empty result, never an
// error; an empty query is the only input rejected.
func (s *RetrievalService) Search(ctx context.Context, req SearchRequest) ([]entities.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", entities.ErrValidation)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	threshold := req.ScoreThreshold
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := s.index.Search(ctx, embedding, topK*candidateMultiplier, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	if len(candidates) == 0 {
		s.logger.Debug("search produced no candidates", "threshold", threshold)
		return []entities.SearchResult{}, nil
	}

	visible := candidates[:0]
	for _, c := range candidates {
		if s.isVisible(c.Metadata, req.TenantID) {
			visible = append(visible, c)
		}
	}

	// Logical deletion enforcement: a candidate whose document no longer has
	// a catalog row is a tombstone, even though its vector still exists.
	docIDs := make([]string, 0, len(visible))
	seen := map[string]bool{}
	for _, c := range visible {
		if !seen[c.Metadata.DocID] {
			seen[c.Metadata.DocID] = true
			docIDs = append(docIDs, c.Metadata.DocID)
		}
	}
	live, err := s.catalog.LiveDocs(ctx, docIDs)
	if err != nil {
		return nil, fmt.Errorf("checking document liveness: %w", err)
	}

	results := make([]entities.SearchResult, 0, topK)
	for _, c := range visible {
		if !live[c.Metadata.DocID] {
			continue
		}
		results = append(results, entities.SearchResult{
			Score:     c.Score,
			VectorID:  c.VectorID,
			Reference: fmt.Sprintf("%s#chunk-%d", c.Metadata.DocID, c.Metadata.ChunkIndex),
			Metadata:  c.Metadata,
		})
		if len(results) == topK {
			break
		}
	}

	s.logger.Debug("search completed", "candidates", len(candidates), "results", len(results))
	return results, nil
}

// isVisible applies the tenant isolation rule: global chunks are visible to
// everyone; tenant-scoped chunks only to their own tenant.
func (s *RetrievalService) isVisible(meta entities.ChunkMetadata, tenantID string) bool {
	if meta.Visibility == entities.VisibilityGlobal {
		return true
	}
	return tenantID != "" && meta.TenantID == tenantID
}
