// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
package usecases

import (
	"log/slog"

	"github.com/harborview/docretrieval/internal/domain/ports"
)

// Defaults applied when a request leaves the corresponding field unset.
const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.7
	DefaultMaxFileBytes   = 50 << 20

	// Search over-fetches from the index to leave headroom for visibility
	// and liveness filtering without re-querying.
	candidateMultiplier = 3
)

// RetrievalService orchestrates document ingestion and similarity search.
type RetrievalService struct {
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.EmbeddingService
	index     ports.VectorIndex
	catalog   ports.MetadataCatalog

	maxFileBytes int64
	logger       *slog.Logger
}

// Option customizes a RetrievalService.
type Option func(*RetrievalService)

// WithMaxFileBytes overrides the upload size limit.
func WithMaxFileBytes(n int64) Option {
	return func(s *RetrievalService) {
		if n > 0 {
			s.maxFileBytes = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *RetrievalService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRetrievalService creates a RetrievalService with injected dependencies.
func NewRetrievalService(
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.EmbeddingService,
	index ports.VectorIndex,
	catalog ports.MetadataCatalog,
	opts ...Option,
) *RetrievalService {
	s := &RetrievalService{
		extractor:    extractor,
		chunker:      chunker,
		embedder:     embedder,
		index:        index,
		catalog:      catalog,
		maxFileBytes: DefaultMaxFileBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
