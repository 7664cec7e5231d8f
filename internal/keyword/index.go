// Package keyword provides BM25 keyword search over clauses, partitioned by tender.
package keyword

import (
	"context"

	"github.com/hyperjump/tenderwise/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// ClauseIndex defines keyword search operations over clauses.
type ClauseIndex interface {
	IndexClause(ctx context.Context, node *models.GraphNode) error
	// Search returns clause hits of the tender ordered by descending BM25 score.
	Search(ctx context.Context, tenderID, query string, limit int, opts *SearchOptions) ([]*Hit, error)
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single keyword search hit.
type Hit struct {
	ClauseID string
	Score    float64
}
