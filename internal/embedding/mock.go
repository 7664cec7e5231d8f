package embedding

import (
	"context"
	"math"
	"sync"

	"github.com/hyperjump/tenderwise/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline use. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic unit-length embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

// FaultyEmbedder wraps an embedder and fails the next FailNext calls with Err.
// It is used to exercise failure paths.
type FaultyEmbedder struct {
	Embedder
	Err error

	mu       sync.Mutex
	failNext int
	calls    int
}

// NewFaultyEmbedder returns an embedder that fails the first failNext calls with err.
// failNext < 0 fails every call.
func NewFaultyEmbedder(inner Embedder, err error, failNext int) *FaultyEmbedder {
	return &FaultyEmbedder{Embedder: inner, Err: err, failNext: failNext}
}

// Embed fails while the failure budget lasts, then delegates.
func (f *FaultyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failNext != 0
	if f.failNext > 0 {
		f.failNext--
	}
	f.mu.Unlock()
	if fail {
		return nil, f.Err
	}
	return f.Embedder.Embed(ctx, text)
}

// EmbedBatch calls Embed for each text.
func (f *FaultyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, f, texts)
}

// Calls returns the number of Embed calls seen.
func (f *FaultyEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
