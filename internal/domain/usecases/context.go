package usecases

import (
	"context"
	"fmt"
	"strings"
)

// Context augmentation settings: a slightly relaxed threshold recovers
// near-miss chunks that are still useful as model context.
const (
	contextScoreThreshold = 0.6
	defaultContextChunks  = 3
)

// BuildContext retrieves the chunks most relevant to question and formats
// them into a context block for a downstream language model. Returns an empty
// string when nothing relevant is indexed.
func (s *RetrievalService) BuildContext(ctx context.Context, question, tenantID string, maxChunks int) (string, error) {
	if maxChunks <= 0 {
		maxChunks = defaultContextChunks
	}

	results, err := s.Search(ctx, SearchRequest{
		Query:          question,
		TenantID:       tenantID,
		TopK:           maxChunks,
		ScoreThreshold: contextScoreThreshold,
	})
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("Relevant document context:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s (relevance %.2f)\n", i+1, r.Reference, r.Score)
	}
	return sb.String(), nil
}
