// Command docretrieval runs the document retrieval service: upload, index,
// and search documents over HTTP, with an optional drop-folder for bulk
// ingestion.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harborview/docretrieval/internal/adapters/catalog"
	"github.com/harborview/docretrieval/internal/adapters/embedding"
	"github.com/harborview/docretrieval/internal/adapters/extractor"
	"github.com/harborview/docretrieval/internal/adapters/filewatcher"
	"github.com/harborview/docretrieval/internal/adapters/tokenizer"
	"github.com/harborview/docretrieval/internal/adapters/vectorindex"
	"github.com/harborview/docretrieval/internal/chunker"
	"github.com/harborview/docretrieval/internal/config"
	"github.com/harborview/docretrieval/internal/domain/usecases"
	"github.com/harborview/docretrieval/internal/infrastructure/dropfolder"
	httpinfra "github.com/harborview/docretrieval/internal/infrastructure/http"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Optional .env for local development; environment wins over file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	tok, err := tokenizer.NewCL100KBase()
	if err != nil {
		return err
	}
	chk, err := chunker.NewTokenChunker(tok, cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return err
	}

	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey(),
		Model:      cfg.Embedding.Model,
		BatchSize:  cfg.Embedding.BatchSize,
		MaxRetries: cfg.Embedding.MaxRetries,
		Timeout:    cfg.Embedding.Timeout(),
	}, logger)
	if err != nil {
		return err
	}

	index, err := vectorindex.Open(filepath.Join(cfg.DataDir, "vector_store"), logger)
	if err != nil {
		return err
	}

	cat, err := catalog.Open(filepath.Join(cfg.DataDir, "documents.db"))
	if err != nil {
		return err
	}
	defer cat.Close()

	service := usecases.NewRetrievalService(
		extractor.NewFileExtractor(),
		chk,
		embedder,
		index,
		cat,
		usecases.WithMaxFileBytes(cfg.MaxUploadBytes),
		usecases.WithLogger(logger),
	)

	if cfg.WatchDir != "" {
		watcher, err := filewatcher.NewFSNotifyWatcher(nil, logger)
		if err != nil {
			return err
		}
		defer watcher.Stop()

		ingestor := dropfolder.NewIngestor(watcher, service, cfg.WatchOwnerID, logger)
		go func() {
			if err := ingestor.Run(ctx, cfg.WatchDir); err != nil {
				logger.Error("drop folder watcher stopped", "error", err)
			}
		}()
	}

	server := httpinfra.NewServer(service, cfg.ListenAddr, logger)
	return server.Start(ctx)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
