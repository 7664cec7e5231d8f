package embedding

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/config"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

// NewFromConfig builds the configured embedder, wrapped with an LRU cache.
// Supported providers: mock (default), openai, onnx.
func NewFromConfig(cfg config.EmbeddingConfig, timeout time.Duration, logger *zap.Logger) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "mock", "":
		e = NewMockEmbedder(cfg.Dimensions)
	case "openai":
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey(),
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			Timeout:           timeout,
			MaxRetries:        cfg.MaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, WithLogger(utils.OrNop(logger)))
	case "onnx":
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, openai, onnx)", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}
	return WithCache(e, cfg.CacheSize), nil
}
