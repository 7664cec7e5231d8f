// Package models defines core data structures for tenders, documents, clauses, chunks and queries.
package models

import "time"

// Tender is a procurement case; the partition key for documents.
type Tender struct {
	ID        string            `json:"id" db:"id"`
	Name      string            `json:"name" db:"name"`
	Client    *string           `json:"client,omitempty" db:"client"`
	Metadata  map[string]string `json:"metadata,omitempty" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// Document is one ingested file owned by exactly one tender.
type Document struct {
	ID        string            `json:"id" db:"id"`
	TenderID  string            `json:"tender_id" db:"tender_id"`
	Filename  string            `json:"filename" db:"filename"`
	Metadata  map[string]string `json:"metadata,omitempty" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// Clause is a structurally meaningful unit of a document and the unit of exact lookup.
// ClauseNumber is only unique within its document.
type Clause struct {
	ID           string            `json:"id" db:"id"`
	DocumentID   string            `json:"document_id" db:"document_id"`
	ClauseNumber string            `json:"clause_number" db:"clause_number"`
	Title        *string           `json:"title,omitempty" db:"title"`
	Content      string            `json:"content" db:"content"`
	PageNumber   *int              `json:"page_number,omitempty" db:"page_number"`
	Metadata     map[string]string `json:"metadata,omitempty" db:"-"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// Chunk is the embedding-indexed unit used for similarity search; 1:1 with Clause.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	ClauseID   string    `json:"clause_id" db:"clause_id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Content    string    `json:"content" db:"content"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ScoredChunk is a chunk returned by vector or hybrid retrieval.
// Distance is the cosine distance to the query (vector); Score is the fused score (hybrid).
type ScoredChunk struct {
	Chunk        *Chunk  `json:"chunk"`
	ClauseNumber string  `json:"clause_number,omitempty"`
	Distance     float64 `json:"distance"`
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
}

// GraphNode mirrors a clause in the graph store, keyed by clause ID.
type GraphNode struct {
	ClauseID   string    `json:"clause_id"`
	DocumentID string    `json:"document_id"`
	TenderID   string    `json:"tender_id"`
	Number     string    `json:"number"`
	Content    string    `json:"content"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ClauseUnit is one output unit of the chunker, before persistence.
type ClauseUnit struct {
	Content      string
	Index        int
	ClauseNumber string
	Title        *string
	PageNumber   *int
	Metadata     map[string]string
	TokenCount   int
}
