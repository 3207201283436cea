package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrModelUnavailable indicates the language model call failed;
	// the turn is aborted and nothing is persisted
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrEmbeddingDisabled indicates the embedding provider has no API
	// key configured; callers degrade to context-free operation
	ErrEmbeddingDisabled = errors.New("embedding provider not configured")
)
