package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// ingestFixture indexes one single-line document and returns its record.
func ingestFixture(t *testing.T, svc *RetrievalService, line string, vis entities.Visibility, tenantID, ownerID string) *entities.DocumentRecord {
	t.Helper()
	rec, err := svc.Ingest(context.Background(), IngestRequest{
		Data:       []byte(line),
		Filename:   "doc.txt",
		Visibility: vis,
		TenantID:   tenantID,
		OwnerID:    ownerID,
	})
	require.NoError(t, err)
	return rec
}

func TestSearch_TenantIsolation(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"tenant a policy":  {1, 0, 0},
			"global handbook":  {0.9, 0.1, 0},
			"renewal question": {1, 0, 0},
		},
		fallback: []float32{0, 0, 1},
	}
	svc := newTestService(embedder, &fakeIndex{}, newFakeCatalog())
	ctx := context.Background()

	scoped := ingestFixture(t, svc, "tenant a policy", entities.VisibilityTenantScoped, "tenant-a", "op")
	global := ingestFixture(t, svc, "global handbook", entities.VisibilityGlobal, "", "op")

	// Tenant A sees its own document plus the global one.
	results, err := svc.Search(ctx, SearchRequest{Query: "renewal question", TenantID: "tenant-a", ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, scoped.DocID, results[0].Metadata.DocID)
	assert.Equal(t, global.DocID, results[1].Metadata.DocID)

	// Tenant B only sees the global document.
	results, err = svc.Search(ctx, SearchRequest{Query: "renewal question", TenantID: "tenant-b", ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, global.DocID, results[0].Metadata.DocID)

	// An untenanted caller also only sees global content.
	results, err = svc.Search(ctx, SearchRequest{Query: "renewal question", ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, global.DocID, results[0].Metadata.DocID)
}

func TestSearch_LogicalDeletion(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"claims procedure": {1, 0, 0},
		},
		fallback: []float32{0, 0, 1},
	}
	svc := newTestService(embedder, &fakeIndex{}, newFakeCatalog())
	ctx := context.Background()

	rec := ingestFixture(t, svc, "claims procedure", entities.VisibilityGlobal, "", "alice")

	results, err := svc.Search(ctx, SearchRequest{Query: "claims procedure", ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, svc.Delete(ctx, rec.DocID, "alice"))

	// The vector still physically exists, but deletion must hide it.
	results, err = svc.Search(ctx, SearchRequest{Query: "claims procedure", ScoreThreshold: 0.5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_RoundTripTopResult(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"exact chunk text": {0.3, 0.4, 0},
			"unrelated text":   {0, 0, 1},
		},
		fallback: []float32{0, 1, 0},
	}
	svc := newTestService(embedder, &fakeIndex{}, newFakeCatalog())
	ctx := context.Background()

	ingestFixture(t, svc, "exact chunk text\nunrelated text", entities.VisibilityGlobal, "", "op")

	results, err := svc.Search(ctx, SearchRequest{Query: "exact chunk text", ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0, results[0].Metadata.ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSearch_EmptyIndex(t *testing.T) {
	svc := newTestService(simpleEmbedder(), &fakeIndex{}, newFakeCatalog())

	results, err := svc.Search(context.Background(), SearchRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	svc := newTestService(simpleEmbedder(), &fakeIndex{}, newFakeCatalog())

	_, err := svc.Search(context.Background(), SearchRequest{Query: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestSearch_ThresholdExcludesUnrelatedContent(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"cooking recipes": {0, 1, 0},
			"premium audit":   {1, 0, 0},
		},
		fallback: []float32{0, 0, 1},
	}
	svc := newTestService(embedder, &fakeIndex{}, newFakeCatalog())

	ingestFixture(t, svc, "cooking recipes", entities.VisibilityGlobal, "", "op")

	results, err := svc.Search(context.Background(), SearchRequest{Query: "premium audit", ScoreThreshold: 0.9})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TruncatesToTopK(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors:  map[string][]float32{},
		fallback: []float32{1, 0, 0}, // every chunk and query embeds identically
	}
	svc := newTestService(embedder, &fakeIndex{}, newFakeCatalog())

	ingestFixture(t, svc, "a\nb\nc\nd\ne\nf", entities.VisibilityGlobal, "", "op")

	results, err := svc.Search(context.Background(), SearchRequest{Query: "q", TopK: 2, ScoreThreshold: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestList_MostRecentFirstAndFiltered(t *testing.T) {
	svc := newTestService(simpleEmbedder(), &fakeIndex{}, newFakeCatalog())
	ctx := context.Background()

	first := ingestFixture(t, svc, "one", entities.VisibilityGlobal, "", "alice")
	second := ingestFixture(t, svc, "two", entities.VisibilityTenantScoped, "t1", "bob")

	all, err := svc.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.DocID, all[0].DocID)
	assert.Equal(t, first.DocID, all[1].DocID)

	bobs, err := svc.List(ctx, "", "bob")
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, second.DocID, bobs[0].DocID)
}

func TestStats_Aggregates(t *testing.T) {
	svc := newTestService(simpleEmbedder(), &fakeIndex{}, newFakeCatalog())

	ingestFixture(t, svc, "one line", entities.VisibilityGlobal, "", "op")
	ingestFixture(t, svc, "a\nb", entities.VisibilityTenantScoped, "t1", "op")

	stats, err := svc.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Totals.Documents)
	assert.Equal(t, int64(3), stats.Totals.Chunks)
}

func TestBuildContext(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"coverage limits apply": {1, 0, 0},
			"what are the limits":   {0.95, 0.05, 0},
		},
		fallback: []float32{0, 0, 1},
	}
	svc := newTestService(embedder, &fakeIndex{}, newFakeCatalog())
	ctx := context.Background()

	rec := ingestFixture(t, svc, "coverage limits apply", entities.VisibilityGlobal, "", "op")

	block, err := svc.BuildContext(ctx, "what are the limits", "", 3)
	require.NoError(t, err)
	assert.Contains(t, block, rec.DocID)
	assert.Contains(t, block, "#chunk-0")

	empty, err := svc.BuildContext(ctx, "completely unrelated", "", 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
