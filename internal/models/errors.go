package models

import "errors"

var (
	// ErrValidation indicates a request failed precondition checks (missing tender, empty query).
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedInput indicates a file type the parser cannot handle.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrRetrievalUnavailable indicates an embedding, store, keyword or graph backend failure.
	// It is distinct from an empty result.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrNotFound indicates an entity looked up by ID does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch indicates an embedding whose length differs from the corpus dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
