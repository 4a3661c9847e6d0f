package semgraph

import "errors"

var (
	// ErrInvalidInput is returned for empty text; it is the caller's fault.
	ErrInvalidInput = errors.New("text is empty")
	// ErrInputTooLarge is returned when more lines qualify than the
	// configured MaxChunks.
	ErrInputTooLarge = errors.New("text has too many lines")
	// ErrModelUnavailable wraps any failure to bring up the embedding model.
	ErrModelUnavailable = errors.New("embedding model unavailable")
)
