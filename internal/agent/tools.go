package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/retrieval"
)

const (
	ToolLookupClause = "lookup_clause"
	ToolSearchTender = "search_tender"

	resultSeparator = "\n---\n"
	noResults       = "No relevant information found in the tender documents."
)

// Retriever is the retrieval surface the tools use.
type Retriever interface {
	ExactLookup(ctx context.Context, clauseNumber, tenderID string) ([]*models.Clause, error)
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// Toolbox executes agent tools against one retriever. Every tool call is scoped to the
// tender of the request it serves.
type Toolbox struct {
	retriever Retriever
	topK      int
}

// NewToolbox returns tools backed by r. topK <= 0 uses the retriever's default.
func NewToolbox(r Retriever, topK int) *Toolbox {
	return &Toolbox{retriever: r, topK: topK}
}

// LookupClause returns every clause of the tender numbered clauseNumber as
// "Clause N: content" entries separated by "\n---\n".
func (t *Toolbox) LookupClause(ctx context.Context, tenderID, clauseNumber string) (string, error) {
	clauses, err := t.retriever.ExactLookup(ctx, clauseNumber, tenderID)
	if err != nil {
		return "", err
	}
	if len(clauses) == 0 {
		return fmt.Sprintf("No clause found with number '%s'.", clauseNumber), nil
	}
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = fmt.Sprintf("Clause %s: %s", c.ClauseNumber, c.Content)
	}
	return strings.Join(parts, resultSeparator), nil
}

// SearchTender runs hybrid retrieval when strategy is HYBRID and vector retrieval otherwise.
func (t *Toolbox) SearchTender(ctx context.Context, tenderID, query string, strategy models.Strategy) (string, error) {
	if strategy != models.StrategyHybrid {
		strategy = models.StrategyVector
	}
	res, err := t.retriever.Retrieve(ctx, retrieval.Request{
		TenderID: tenderID,
		Query:    query,
		Strategy: strategy,
		TopK:     t.topK,
	})
	if err != nil {
		return "", err
	}
	if res.Empty() {
		return noResults, nil
	}
	parts := make([]string, len(res.Chunks))
	for i, c := range res.Chunks {
		parts[i] = fmt.Sprintf("Clause %s: %s", c.ClauseNumber, c.Chunk.Content)
	}
	return strings.Join(parts, resultSeparator), nil
}
