// Package extractor provides document text extraction adapters.
// Clean Architecture: Adapter implementing ports.TextExtractor.
package extractor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// FileExtractor extracts plain text from uploaded document bytes, dispatching
// on the declared filename's extension. PDF pages are parsed with a native
// reader; text and markdown files are decoded directly.
type FileExtractor struct{}

// NewFileExtractor creates a new extractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// SupportedExtensions returns the extensions Extract accepts.
func (e *FileExtractor) SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md", ".markdown"}
}

// Extract converts data into plain text. Unknown extensions fail with
// entities.ErrUnsupportedFormat; unparseable or empty documents fail with
// entities.ErrExtraction.
func (e *FileExtractor) Extract(data []byte, filename string) (string, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", entities.ErrExtraction, filename, err)
		}
	case ".txt", ".md", ".markdown":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", entities.ErrExtraction, filename)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", entities.ErrUnsupportedFormat, filename)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text content in %s", entities.ErrExtraction, filename)
	}
	return text, nil
}

// extractPDF concatenates the plain text of every page, newline-separated.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
