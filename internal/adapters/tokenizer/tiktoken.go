// Package tokenizer provides the tiktoken tokenizer adapter.
// Clean Architecture: Adapter implementing ports.Tokenizer.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken implements ports.Tokenizer using the cl100k_base BPE encoding,
// matching the tokenization the embedding model was trained with.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewCL100KBase loads the cl100k_base encoding.
func NewCL100KBase() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading cl100k_base encoding: %w", err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode converts text into BPE token ids.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode converts token ids back into text.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
