// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle. Routing is
// deliberately thin: it decodes requests, calls the retrieval service, and
// maps the error taxonomy to status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harborview/docretrieval/internal/domain/entities"
	"github.com/harborview/docretrieval/internal/domain/usecases"
)

// Server is the HTTP server for the document retrieval API.
type Server struct {
	service *usecases.RetrievalService
	addr    string
	logger  *slog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(service *usecases.RetrievalService, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: service,
		addr:    addr,
		logger:  logger,
	}
}

// Handler returns the full route handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/documents", s.handleDocuments)
	mux.HandleFunc("/api/documents/", s.handleDocumentByID)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/health", s.handleHealth)
	return corsMiddleware(loggingMiddleware(s.logger, mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	s.logger.Info("retrieval server starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handleDocuments serves POST (upload) and GET (list).
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}

	rec, err := s.service.Ingest(r.Context(), usecases.IngestRequest{
		Data:       data,
		Filename:   header.Filename,
		Visibility: entities.Visibility(r.FormValue("visibility")),
		TenantID:   r.FormValue("tenant_id"),
		OwnerID:    r.FormValue("owner_id"),
	})
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":      rec.DocID,
		"filename":    rec.Filename,
		"chunk_count": rec.ChunkCount,
		"visibility":  rec.Visibility,
		"status":      "success",
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.List(r.Context(), r.URL.Query().Get("tenant_id"), r.URL.Query().Get("owner_id"))
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}

	type docView struct {
		DocID      string              `json:"doc_id"`
		Filename   string              `json:"filename"`
		Visibility entities.Visibility `json:"visibility"`
		TenantID   string              `json:"tenant_id,omitempty"`
		OwnerID    string              `json:"owner_id"`
		ChunkCount int                 `json:"chunk_count"`
		ByteSize   int64               `json:"byte_size"`
		CreatedAt  time.Time           `json:"created_at"`
	}
	views := make([]docView, len(records))
	for i, rec := range records {
		views[i] = docView{
			DocID:      rec.DocID,
			Filename:   rec.Filename,
			Visibility: rec.Visibility,
			TenantID:   rec.TenantID,
			OwnerID:    rec.OwnerID,
			ChunkCount: rec.ChunkCount,
			ByteSize:   rec.ByteSize,
			CreatedAt:  rec.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": views, "count": len(views)})
}

// handleDocumentByID serves DELETE /api/documents/{doc_id}.
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	docID := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if docID == "" || strings.Contains(docID, "/") {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := s.service.Delete(r.Context(), docID, r.URL.Query().Get("owner_id")); err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "status": "deleted"})
}

type searchRequest struct {
	Query          string  `json:"query"`
	TenantID       string  `json:"tenant_id"`
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	results, err := s.service.Search(r.Context(), usecases.SearchRequest{
		Query:          req.Query,
		TenantID:       req.TenantID,
		TopK:           req.TopK,
		ScoreThreshold: req.ScoreThreshold,
	})
	if err != nil {
		if errors.Is(err, entities.ErrValidation) {
			s.writeTaxonomyError(w, err)
			return
		}
		// Backend outages degrade to an empty result for callers; the
		// diagnostic stays server-side.
		s.logger.Error("search failed", "error", err)
		results = []entities.SearchResult{}
	}

	type hitView struct {
		Score    float64                `json:"score"`
		Chunk    string                 `json:"chunk"`
		Metadata entities.ChunkMetadata `json:"metadata"`
	}
	hits := make([]hitView, len(results))
	for i, res := range results {
		hits[i] = hitView{Score: res.Score, Chunk: res.Reference, Metadata: res.Metadata}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"count":   len(hits),
		"results": hits,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.service.Stats(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}

	type bucketView struct {
		Documents int64 `json:"documents"`
		Chunks    int64 `json:"chunks"`
		Bytes     int64 `json:"bytes"`
	}
	byVisibility := map[string]bucketView{}
	for vis, b := range stats.ByVisibility {
		byVisibility[string(vis)] = bucketView{Documents: b.Documents, Chunks: b.Chunks, Bytes: b.Bytes}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"by_visibility": byVisibility,
		"totals": bucketView{
			Documents: stats.Totals.Documents,
			Chunks:    stats.Totals.Chunks,
			Bytes:     stats.Totals.Bytes,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeTaxonomyError maps domain error kinds to HTTP statuses.
func (s *Server) writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entities.ErrValidation),
		errors.Is(err, entities.ErrUnsupportedFormat),
		errors.Is(err, entities.ErrExtraction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message, "status": strconv.Itoa(status)})
}

// corsMiddleware allows browser clients from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with its duration.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
