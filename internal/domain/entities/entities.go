// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "time"

// Visibility controls which tenants may see a document's chunks at query time.
type Visibility string

const (
	// VisibilityTenantScoped restricts a document to a single tenant.
	VisibilityTenantScoped Visibility = "tenant_scoped"
	// VisibilityGlobal makes a document visible to every tenant.
	VisibilityGlobal Visibility = "global"
)

// Valid reports whether v is one of the known visibility values.
func (v Visibility) Valid() bool {
	return v == VisibilityTenantScoped || v == VisibilityGlobal
}

// DocumentRecord is the catalog row for one ingested document.
// A record exists iff ingestion completed fully; it is the sole authority
// for whether a document's vectors are live.
type DocumentRecord struct {
	DocID      string
	Filename   string
	Visibility Visibility
	TenantID   string // set iff Visibility == VisibilityTenantScoped
	OwnerID    string
	ChunkCount int
	ByteSize   int64
	VectorIDs  []int64 // index identifiers assigned to this document, in chunk order
	CreatedAt  time.Time
}

// Chunk is a token-bounded contiguous slice of a document's extracted text.
// Chunks are transient: only the resulting vector and metadata are persisted.
type Chunk struct {
	DocID      string
	Index      int // 0-based position within the document
	TokenCount int
	Text       string
}

// ChunkMetadata is the per-vector metadata stored alongside each embedding.
type ChunkMetadata struct {
	DocID      string     `json:"doc_id"`
	ChunkIndex int        `json:"chunk_index"`
	Visibility Visibility `json:"visibility"`
	TenantID   string     `json:"tenant_id,omitempty"`
}

// IndexEntry pairs an embedding with its metadata for an index append.
type IndexEntry struct {
	Embedding []float32
	Metadata  ChunkMetadata
}

// Candidate is a raw nearest-neighbor hit returned by the vector index,
// before visibility and liveness filtering.
type Candidate struct {
	VectorID int64
	Score    float64 // cosine similarity in [-1, 1]
	Metadata ChunkMetadata
}

// SearchResult is one retrieval hit after filtering and truncation.
type SearchResult struct {
	Score     float64
	VectorID  int64
	Reference string // human-readable pointer to the chunk (doc + index)
	Metadata  ChunkMetadata
}

// StatsBucket aggregates document counts and sizes.
type StatsBucket struct {
	Documents int64
	Chunks    int64
	Bytes     int64
}

// UsageStats summarizes the catalog by visibility, plus grand totals.
type UsageStats struct {
	ByVisibility map[Visibility]StatsBucket
	Totals       StatsBucket
}
