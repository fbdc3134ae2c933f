// Package dropfolder ingests documents placed into a watched directory.
// Files created in the drop folder become global documents owned by the
// configured operator, without going through the HTTP surface.
package dropfolder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/harborview/docretrieval/internal/domain/entities"
	"github.com/harborview/docretrieval/internal/domain/ports"
	"github.com/harborview/docretrieval/internal/domain/usecases"
)

// Ingestor feeds watcher events into the retrieval service.
type Ingestor struct {
	watcher ports.FileWatcher
	service *usecases.RetrievalService
	ownerID string
	logger  *slog.Logger
}

// NewIngestor creates a drop-folder ingestor.
func NewIngestor(watcher ports.FileWatcher, service *usecases.RetrievalService, ownerID string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		watcher: watcher,
		service: service,
		ownerID: ownerID,
		logger:  logger,
	}
}

// Run watches dir and ingests each created file until ctx ends. A failed
// ingest is logged and skipped; it never stops the loop.
func (i *Ingestor) Run(ctx context.Context, dir string) error {
	events, err := i.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}

	i.logger.Info("watching drop folder", "dir", dir)
	for event := range events {
		if event.Operation != ports.FileCreated {
			continue
		}
		i.ingestFile(ctx, event.Path)
	}
	return nil
}

func (i *Ingestor) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		i.logger.Warn("reading dropped file failed", "path", path, "error", err)
		return
	}

	rec, err := i.service.Ingest(ctx, usecases.IngestRequest{
		Data:       data,
		Filename:   filepath.Base(path),
		Visibility: entities.VisibilityGlobal,
		OwnerID:    i.ownerID,
	})
	if err != nil {
		i.logger.Warn("ingesting dropped file failed", "path", path, "error", err)
		return
	}
	i.logger.Info("dropped file ingested", "path", path, "doc_id", rec.DocID, "chunks", rec.ChunkCount)
}
