package domain

import "errors"

// Error kinds. Callers wrap them with fmt.Errorf("%w: ...") and inspect them with errors.Is.
var (
	ErrParseFailure      = errors.New("parse failure")
	ErrEmptyContent      = errors.New("empty content")
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrVectorStore       = errors.New("vector store error")
	ErrChatCompletion    = errors.New("chat completion error")
	ErrMissingCredential = errors.New("missing credential")
	ErrBusy              = errors.New("a question is already being answered")
	ErrInvalidConfig     = errors.New("invalid config")
)
