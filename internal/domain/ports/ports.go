// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// Tokenizer is the fixed deterministic tokenizer used for chunking.
// Decode(Encode(text)) must reproduce text.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TextExtractor converts raw uploaded bytes of a recognized format into plain text.
type TextExtractor interface {
	// Extract returns the plain text of data, dispatching on the declared
	// filename's extension. Pure: no side effects.
	Extract(data []byte, filename string) (string, error)

	// SupportedExtensions returns the extensions Extract accepts (with dot).
	SupportedExtensions() []string
}

// Chunker splits extracted text into overlapping, token-bounded chunks.
type Chunker interface {
	// Chunk emits chunks for docID in order, assigning 0-based contiguous indexes.
	Chunk(docID, text string) ([]entities.Chunk, error)
}

// EmbeddingService generates vector embeddings for text.
// Implementations batch internally and retry transient failures; exhausting
// retries surfaces entities.ErrEmbeddingUnavailable.
type EmbeddingService interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector per
	// input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the durable nearest-neighbor store over normalized embeddings.
type VectorIndex interface {
	// Append stores entries as one atomic, durable update and returns the
	// consecutively assigned vector ids, in entry order.
	Append(ctx context.Context, entries []entities.IndexEntry) ([]int64, error)

	// Search returns up to k candidates with cosine similarity >= threshold,
	// ordered score-descending with ties broken by ascending vector id.
	// An empty index yields an empty result, not an error.
	Search(ctx context.Context, query []float32, k int, threshold float64) ([]entities.Candidate, error)
}

// MetadataCatalog is the relational source of truth for which documents exist.
type MetadataCatalog interface {
	// Insert stores a new document record.
	Insert(ctx context.Context, rec *entities.DocumentRecord) error

	// GetOwner returns the owner of docID, or entities.ErrNotFound.
	GetOwner(ctx context.Context, docID string) (string, error)

	// List returns records most-recent-first. A tenant filter admits global
	// documents as well; an owner filter is exact.
	List(ctx context.Context, tenantID, ownerID string) ([]entities.DocumentRecord, error)

	// Delete removes docID's row. The caller must be the owner
	// (entities.ErrForbidden otherwise); a missing row is entities.ErrNotFound.
	Delete(ctx context.Context, docID, ownerID string) error

	// LiveDocs reports which of the given doc ids still have a catalog row.
	LiveDocs(ctx context.Context, docIDs []string) (map[string]bool, error)

	// Stats aggregates document/chunk/byte counts by visibility.
	Stats(ctx context.Context, tenantID string) (*entities.UsageStats, error)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
