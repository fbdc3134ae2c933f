package entities

import "errors"

// Error taxonomy for the retrieval core. Callers classify failures with
// errors.Is so adapters can add context while the boundary layer maps kinds
// to transport status codes.
var (
	// ErrUnsupportedFormat indicates an upload with an unrecognized file extension.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtraction indicates a document that could not be parsed, or that
	// yielded no text content.
	ErrExtraction = errors.New("text extraction failed")

	// ErrValidation indicates malformed input: bad visibility/tenant pairing,
	// an oversized file, an empty query, or an invalid chunk configuration.
	ErrValidation = errors.New("validation failed")

	// ErrEmbeddingUnavailable indicates the embedding provider exhausted its retries.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrIndexIO indicates the persisted index artifacts are unreadable or
	// mutually inconsistent. Fatal for the operation; never silently truncated.
	ErrIndexIO = errors.New("vector index I/O failure")

	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrForbidden indicates the caller does not own the referenced document.
	ErrForbidden = errors.New("operation not permitted")
)
