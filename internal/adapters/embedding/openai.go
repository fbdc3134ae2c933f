// Package embedding provides the OpenAI-compatible embedding adapter.
// Clean Architecture: Adapter implementing ports.EmbeddingService.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// Config configures the embedding client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	BatchSize   int           // texts per provider request
	MaxRetries  int           // retries per batch on 429/5xx/transport errors
	Timeout     time.Duration // per-request timeout
	Parallelism int           // concurrent in-flight batches
}

// Client calls an OpenAI-compatible /embeddings endpoint, batching inputs and
// retrying transient failures with exponential backoff. Exhausting retries
// surfaces entities.ErrEmbeddingUnavailable.
type Client struct {
	cfg       Config
	client    *http.Client
	logger    *slog.Logger
	dimension atomic.Int64
}

// NewClient creates a new embedding client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding: base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-ada-002"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Dimension returns the vector dimensionality observed on the first
// successful call, or 0 before any call.
func (c *Client) Dimension() int {
	return int(c.dimension.Load())
}

// Embed generates an embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one vector per input text, in input order. Inputs are
// split into provider batches which may run concurrently; results are
// assembled back into input positions.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		g.Go(func() error {
			batch, err := c.embedOnce(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// embedOnce embeds a single provider batch, retrying transient failures.
func (c *Client) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt, lastErr)):
			}
		}

		vectors, retryable, err := c.doRequest(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("embedding batch failed, retrying",
			"attempt", attempt+1, "max_retries", c.cfg.MaxRetries, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", entities.ErrEmbeddingUnavailable, lastErr)
}

// retryAfterError carries a server-provided Retry-After hint.
type retryAfterError struct {
	status string
	after  time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("provider returned %s", e.status)
}

func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	if ra, ok := lastErr.(*retryAfterError); ok && ra.after > 0 {
		return ra.after
	}
	// 500ms, 1s, 2s, 4s, ...
	return 500 * time.Millisecond << (attempt - 1)
}

// doRequest performs one HTTP call. The second return value reports whether
// the failure is transient and worth retrying.
func (c *Client) doRequest(ctx context.Context, batch []string) ([][]float32, bool, error) {
	body, err := json.Marshal(embeddingRequest{Input: batch, Model: c.cfg.Model})
	if err != nil {
		return nil, false, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		after := time.Duration(0)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				after = time.Duration(secs) * time.Second
			}
		}
		io.Copy(io.Discard, resp.Body)
		return nil, true, &retryAfterError{status: resp.Status, after: after}
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("provider returned %s", resp.Status)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, true, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Data) != len(batch) {
		return nil, false, fmt.Errorf("provider returned %d embeddings for %d inputs", len(parsed.Data), len(batch))
	}

	// The API is allowed to reorder; the index field restores input order.
	vectors := make([][]float32, len(batch))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(batch) {
			return nil, false, fmt.Errorf("provider returned out-of-range index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, false, fmt.Errorf("provider returned no embedding for input %d", i)
		}
	}

	c.dimension.CompareAndSwap(0, int64(len(vectors[0])))
	return vectors, false, nil
}
