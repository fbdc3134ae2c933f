// Package chunker splits extracted text into overlapping token windows.
package chunker

import (
	"fmt"

	"github.com/harborview/docretrieval/internal/domain/entities"
	"github.com/harborview/docretrieval/internal/domain/ports"
)

// TokenChunker implements ports.Chunker over an injected tokenizer.
// Windows of chunkSize tokens advance by chunkSize-overlap tokens per step,
// so consecutive chunks share exactly overlap tokens at the boundary and the
// union of all windows covers the full token range of the input.
type TokenChunker struct {
	tokenizer ports.Tokenizer
	chunkSize int
	overlap   int
}

// NewTokenChunker validates the window configuration and returns a chunker.
// overlap >= chunkSize would produce a non-advancing window and is rejected.
func NewTokenChunker(tokenizer ports.Tokenizer, chunkSize, overlap int) (*TokenChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", entities.ErrValidation, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", entities.ErrValidation, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", entities.ErrValidation, overlap, chunkSize)
	}
	return &TokenChunker{
		tokenizer: tokenizer,
		chunkSize: chunkSize,
		overlap:   overlap,
	}, nil
}

// Chunk emits token windows for docID's text in order, assigning 0-based
// contiguous chunk indexes. Input shorter than one window yields exactly one
// chunk; empty input yields none.
func (c *TokenChunker) Chunk(docID, text string) ([]entities.Chunk, error) {
	tokens := c.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	step := c.chunkSize - c.overlap
	var chunks []entities.Chunk
	for start := 0; start < len(tokens); start += step {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		chunks = append(chunks, entities.Chunk{
			DocID:      docID,
			Index:      len(chunks),
			TokenCount: len(window),
			Text:       c.tokenizer.Decode(window),
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}
