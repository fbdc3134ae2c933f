package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// IngestRequest carries one uploaded document.
type IngestRequest struct {
	Data       []byte
	Filename   string
	Visibility entities.Visibility
	TenantID   string // required iff Visibility is tenant_scoped
	OwnerID    string
}

// Ingest processes an upload end to end: validate, extract, chunk, embed,
// append to the vector index, then record the document in the catalog.
//
// The index append is the point of no return: every failure before it leaves
// no state behind, and the catalog row is written only after the append
// committed. A catalog failure after a successful append strands the appended
// vectors; they are invisible to search (the catalog gates visibility) but
// occupy index space, so the ids are logged for operator cleanup.
func (s *RetrievalService) Ingest(ctx context.Context, req IngestRequest) (*entities.DocumentRecord, error) {
	if err := s.validateIngest(req); err != nil {
		return nil, err
	}

	text, err := s.extractor.Extract(req.Data, req.Filename)
	if err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	chunks, err := s.chunker.Chunk(docID, text)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced from %s", entities.ErrExtraction, req.Filename)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	entries := make([]entities.IndexEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = entities.IndexEntry{
			Embedding: embeddings[i],
			Metadata: entities.ChunkMetadata{
				DocID:      docID,
				ChunkIndex: chunk.Index,
				Visibility: req.Visibility,
				TenantID:   req.TenantID,
			},
		}
	}

	vectorIDs, err := s.index.Append(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("appending %d vectors: %w", len(entries), err)
	}

	rec := &entities.DocumentRecord{
		DocID:      docID,
		Filename:   req.Filename,
		Visibility: req.Visibility,
		TenantID:   req.TenantID,
		OwnerID:    req.OwnerID,
		ChunkCount: len(chunks),
		ByteSize:   int64(len(req.Data)),
		VectorIDs:  vectorIDs,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.catalog.Insert(ctx, rec); err != nil {
		s.logger.Error("catalog insert failed after index append; vectors orphaned until compaction",
			"doc_id", docID, "vector_ids", vectorIDs, "error", err)
		return nil, fmt.Errorf("recording document %s: %w", docID, err)
	}

	s.logger.Info("document ingested",
		"doc_id", docID, "filename", req.Filename, "chunks", len(chunks), "visibility", req.Visibility)
	return rec, nil
}

func (s *RetrievalService) validateIngest(req IngestRequest) error {
	if !req.Visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", entities.ErrValidation, req.Visibility)
	}
	if req.Visibility == entities.VisibilityTenantScoped && req.TenantID == "" {
		return fmt.Errorf("%w: tenant_scoped documents require a tenant id", entities.ErrValidation)
	}
	if req.Visibility == entities.VisibilityGlobal && req.TenantID != "" {
		return fmt.Errorf("%w: global documents must not carry a tenant id", entities.ErrValidation)
	}
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: empty file", entities.ErrValidation)
	}
	if int64(len(req.Data)) > s.maxFileBytes {
		return fmt.Errorf("%w: file size %d exceeds limit %d", entities.ErrValidation, len(req.Data), s.maxFileBytes)
	}
	return nil
}
