// Package storage defines the relational persistence interface for tenders, documents, clauses and chunks.
package storage

import (
	"context"

	"github.com/hyperjump/tenderwise/internal/models"
)

// Store is the relational store. Every read that serves retrieval is scoped to a tender.
type Store interface {
	// Tender operations
	FindOrCreateTender(ctx context.Context, name string) (tender *models.Tender, created bool, err error)
	ResolveTender(ctx context.Context, ref string) (*models.Tender, error)
	ListTenders(ctx context.Context) ([]*models.Tender, error)

	// WithTx runs fn in one transaction. fn's error rolls everything back;
	// the session is released on every path.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Retrieval reads
	ClausesByNumber(ctx context.Context, tenderID, clauseNumber string) ([]*models.Clause, error)
	ClausesByTender(ctx context.Context, tenderID string) ([]*models.Clause, error)
	NearestChunks(ctx context.Context, tenderID string, query []float32, k int) ([]models.ScoredChunk, error)
	ChunksByClauseIDs(ctx context.Context, tenderID string, clauseIDs []string) ([]models.ScoredChunk, error)

	// Stats
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// Tx is the write side of a transaction opened by Store.WithTx.
type Tx interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	CreateClause(ctx context.Context, clause *models.Clause) error
	// CreateChunk persists a chunk and its embedding. It fails with
	// models.ErrDimensionMismatch when the embedding length differs from the corpus.
	CreateChunk(ctx context.Context, chunk *models.Chunk) error
}

// Stats holds row counts and the corpus embedding dimension (0 when empty).
type Stats struct {
	Tenders   int64 `json:"tenders" db:"tenders"`
	Documents int64 `json:"documents" db:"documents"`
	Clauses   int64 `json:"clauses" db:"clauses"`
	Chunks    int64 `json:"chunks" db:"chunks"`
	Dimension int   `json:"dimension" db:"dimension"`
}
