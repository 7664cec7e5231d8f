// Package agent produces answers from retrieved tender clauses. Agents reach the corpus only
// through the Toolbox, which keeps every lookup inside the requesting tender.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/config"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/query"
)

// Request is one question for an agent.
type Request struct {
	TenderID string
	Query    string
	Strategy models.Strategy
}

// Agent answers a question about one tender.
type Agent interface {
	Answer(ctx context.Context, req Request) (string, error)
}

// ExtractiveAgent answers with the output of the tool the strategy selects, without a
// generation model: EXACT_LOOKUP calls lookup_clause, everything else search_tender.
type ExtractiveAgent struct {
	tools *Toolbox
}

// NewExtractiveAgent returns an offline agent over tools.
func NewExtractiveAgent(tools *Toolbox) *ExtractiveAgent {
	return &ExtractiveAgent{tools: tools}
}

// Answer implements Agent.
func (a *ExtractiveAgent) Answer(ctx context.Context, req Request) (string, error) {
	switch req.Strategy {
	case models.StrategyExactLookup:
		number := strings.TrimSpace(req.Query)
		if ref, ok := query.FindReference(req.Query); ok {
			number = ref.Number
		}
		return a.tools.LookupClause(ctx, req.TenderID, number)
	case models.StrategyVector, models.StrategyHybrid:
		return a.tools.SearchTender(ctx, req.TenderID, req.Query, req.Strategy)
	default:
		return "", fmt.Errorf("%w: no retrieval strategy for agent", models.ErrValidation)
	}
}

// NewFromConfig builds the configured agent.
func NewFromConfig(cfg config.AgentConfig, tools *Toolbox, logger *zap.Logger) (Agent, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "extractive":
		return NewExtractiveAgent(tools), nil
	case "openai":
		return NewOpenAIAgent(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey(),
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, tools, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown agent provider %q (supported: extractive, openai)", cfg.Provider)
	}
}
