// Package embedding provides text embedders (mock, OpenAI-compatible HTTP, ONNX), caching and
// transient/permanent error classification.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Kind classifies an embedding failure.
type Kind int

const (
	// KindPermanent failures will not succeed on retry (bad request, auth, malformed response).
	KindPermanent Kind = iota
	// KindTransient failures may succeed on retry (network, 429, 5xx, timeouts).
	KindTransient
)

func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "permanent"
}

// Error is returned by embedders for backend failures.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is an embedding failure worth retrying.
// Context deadline expiry counts as transient; cancellation does not.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func transient(op string, err error) error { return &Error{Kind: KindTransient, Op: op, Err: err} }

func permanent(op string, err error) error { return &Error{Kind: KindPermanent, Op: op, Err: err} }

// embedEach implements EmbedBatch by calling Embed sequentially.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
