package usecases

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// fakeExtractor decodes bytes directly, failing for anything but .txt.
type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Extract(data []byte, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if !strings.HasSuffix(filename, ".txt") {
		return "", fmt.Errorf("%w: %s", entities.ErrUnsupportedFormat, filename)
	}
	return string(data), nil
}

func (f *fakeExtractor) SupportedExtensions() []string { return []string{".txt"} }

// fakeChunker emits one chunk per non-empty line.
type fakeChunker struct{}

func (fakeChunker) Chunk(docID, text string) ([]entities.Chunk, error) {
	var chunks []entities.Chunk
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		chunks = append(chunks, entities.Chunk{
			DocID:      docID,
			Index:      len(chunks),
			TokenCount: len(strings.Fields(line)),
			Text:       line,
		})
	}
	return chunks, nil
}

// fakeEmbedder maps known texts to fixed vectors, so tests control similarity
// exactly. Unknown texts get an orthogonal fallback vector.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fakeIndex is an in-memory cosine index with the real ordering contract.
type fakeIndex struct {
	entries   []entities.IndexEntry
	appendErr error
}

func (f *fakeIndex) Append(ctx context.Context, entries []entities.IndexEntry) ([]int64, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	start := int64(len(f.entries))
	f.entries = append(f.entries, entries...)
	ids := make([]int64, len(entries))
	for i := range ids {
		ids[i] = start + int64(i)
	}
	return ids, nil
}

func (f *fakeIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]entities.Candidate, error) {
	var out []entities.Candidate
	for id, e := range f.entries {
		score := cosine(query, e.Embedding)
		if score < threshold {
			continue
		}
		out = append(out, entities.Candidate{VectorID: int64(id), Score: score, Metadata: e.Metadata})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].VectorID < out[j].VectorID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// fakeCatalog is a map-backed catalog.
type fakeCatalog struct {
	records   map[string]*entities.DocumentRecord
	order     []string
	insertErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{records: map[string]*entities.DocumentRecord{}}
}

func (f *fakeCatalog) Insert(ctx context.Context, rec *entities.DocumentRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records[rec.DocID] = rec
	f.order = append(f.order, rec.DocID)
	return nil
}

func (f *fakeCatalog) GetOwner(ctx context.Context, docID string) (string, error) {
	rec, ok := f.records[docID]
	if !ok {
		return "", entities.ErrNotFound
	}
	return rec.OwnerID, nil
}

func (f *fakeCatalog) List(ctx context.Context, tenantID, ownerID string) ([]entities.DocumentRecord, error) {
	var out []entities.DocumentRecord
	for i := len(f.order) - 1; i >= 0; i-- {
		rec, ok := f.records[f.order[i]]
		if !ok {
			continue
		}
		if tenantID != "" && rec.TenantID != tenantID && rec.Visibility != entities.VisibilityGlobal {
			continue
		}
		if ownerID != "" && rec.OwnerID != ownerID {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeCatalog) Delete(ctx context.Context, docID, ownerID string) error {
	rec, ok := f.records[docID]
	if !ok {
		return entities.ErrNotFound
	}
	if rec.OwnerID != ownerID {
		return entities.ErrForbidden
	}
	delete(f.records, docID)
	return nil
}

func (f *fakeCatalog) LiveDocs(ctx context.Context, docIDs []string) (map[string]bool, error) {
	live := map[string]bool{}
	for _, id := range docIDs {
		if _, ok := f.records[id]; ok {
			live[id] = true
		}
	}
	return live, nil
}

func (f *fakeCatalog) Stats(ctx context.Context, tenantID string) (*entities.UsageStats, error) {
	stats := &entities.UsageStats{ByVisibility: map[entities.Visibility]entities.StatsBucket{}}
	for _, rec := range f.records {
		if tenantID != "" && rec.TenantID != tenantID && rec.Visibility != entities.VisibilityGlobal {
			continue
		}
		b := stats.ByVisibility[rec.Visibility]
		b.Documents++
		b.Chunks += int64(rec.ChunkCount)
		b.Bytes += rec.ByteSize
		stats.ByVisibility[rec.Visibility] = b
		stats.Totals.Documents++
		stats.Totals.Chunks += int64(rec.ChunkCount)
		stats.Totals.Bytes += rec.ByteSize
	}
	return stats, nil
}
