// Package vectorindex provides the durable nearest-neighbor store.
// Vectors and their metadata are two co-indexed artifacts persisted together:
// a snapshot generation is only published once both files are durable, so a
// crash can never leave one updated without the other.
package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// FlatIndex implements ports.VectorIndex with an exhaustive inner-product
// scan over unit-normalized vectors kept resident in memory. Appends are
// serialized through a single writer lock and become visible only after the
// snapshot pair is durably committed; searches read the committed state.
type FlatIndex struct {
	mu     sync.RWMutex
	dir    string
	logger *slog.Logger

	dim        int
	generation uint64
	vectors    [][]float32 // unit L2 norm, position == vector id
	metadata   []entities.ChunkMetadata
}

// Open loads the index from dir, creating an empty index when no snapshot
// exists yet. Unreadable or mutually inconsistent artifacts fail with
// entities.ErrIndexIO.
func Open(dir string, logger *slog.Logger) (*FlatIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &FlatIndex{dir: dir, logger: logger}

	snap, err := loadSnapshot(dir)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		idx.dim = snap.dim
		idx.generation = snap.generation
		idx.vectors = snap.vectors
		idx.metadata = snap.metadata
		logger.Info("vector index loaded",
			"dir", dir, "vectors", len(snap.vectors), "dimension", snap.dim, "generation", snap.generation)
	}
	return idx, nil
}

// Len returns the number of stored vectors.
func (x *FlatIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Dimension returns the fixed embedding dimension, or 0 before the first append.
func (x *FlatIndex) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Append normalizes each embedding to unit L2 norm, assigns the next
// consecutive vector ids, persists both artifacts as one atomic snapshot
// update, and only then publishes the entries to searches. On failure the
// previously committed state is untouched.
func (x *FlatIndex) Append(ctx context.Context, entries []entities.IndexEntry) ([]int64, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty append", entities.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dim
	if dim == 0 {
		dim = len(entries[0].Embedding)
		if dim == 0 {
			return nil, fmt.Errorf("%w: zero-dimension embedding", entities.ErrValidation)
		}
	}

	normalized := make([][]float32, len(entries))
	meta := make([]entities.ChunkMetadata, len(entries))
	for i, e := range entries {
		if len(e.Embedding) != dim {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, index has %d",
				entities.ErrIndexIO, i, len(e.Embedding), dim)
		}
		normalized[i] = normalize(e.Embedding)
		meta[i] = e.Metadata
	}

	// Build the candidate state without touching the committed slices.
	newVectors := make([][]float32, 0, len(x.vectors)+len(entries))
	newVectors = append(newVectors, x.vectors...)
	newVectors = append(newVectors, normalized...)
	newMetadata := make([]entities.ChunkMetadata, 0, len(x.metadata)+len(entries))
	newMetadata = append(newMetadata, x.metadata...)
	newMetadata = append(newMetadata, meta...)

	gen := x.generation + 1
	if err := writeSnapshot(x.dir, gen, dim, newVectors, newMetadata); err != nil {
		return nil, err
	}

	startID := int64(len(x.vectors))
	x.dim = dim
	x.generation = gen
	x.vectors = newVectors
	x.metadata = newMetadata

	ids := make([]int64, len(entries))
	for i := range ids {
		ids[i] = startID + int64(i)
	}

	x.logger.Info("vector index append committed",
		"appended", len(entries), "total", len(newVectors), "generation", gen)
	return ids, nil
}

// Search returns up to k candidates with cosine similarity >= threshold,
// ordered score-descending with ties broken by ascending vector id. An empty
// index yields an empty result.
func (x *FlatIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]entities.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", entities.ErrValidation, k)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.vectors) == 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			entities.ErrIndexIO, len(query), x.dim)
	}

	q := normalize(query)
	candidates := make([]entities.Candidate, 0, k)
	for id, vec := range x.vectors {
		score := dot(q, vec)
		if score < threshold {
			continue
		}
		candidates = append(candidates, entities.Candidate{
			VectorID: int64(id),
			Score:    score,
			Metadata: x.metadata[id],
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].VectorID < candidates[j].VectorID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// normalize returns a unit-L2-norm copy of v, so that inner product equals
// cosine similarity. A zero vector is returned unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
