package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/vector"
)

// SQLiteStore implements Store using SQLite through sqlx.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		client TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		tender_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (tender_id) REFERENCES tenders(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_tender_id ON documents(tender_id);

	CREATE TABLE IF NOT EXISTS clauses (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		clause_number TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		page_number INTEGER,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_clauses_document_id ON clauses(document_id);
	CREATE INDEX IF NOT EXISTS idx_clauses_number ON clauses(clause_number);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		clause_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		dim INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (clause_id) REFERENCES clauses(id) ON DELETE CASCADE,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_chunk ON chunks(document_id, chunk_index);
	CREATE INDEX IF NOT EXISTS idx_chunks_clause_id ON chunks(clause_id);
	`
	_, err := db.Exec(schema)
	return err
}

type tenderRow struct {
	models.Tender
	MetadataJSON sql.NullString `db:"metadata"`
}

type clauseRow struct {
	models.Clause
	MetadataJSON sql.NullString `db:"metadata"`
}

type chunkRow struct {
	models.Chunk
	Blob         []byte `db:"embedding"`
	ClauseNumber string `db:"clause_number"`
}

func decodeMetadata(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return m, nil
}

func encodeMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// FindOrCreateTender returns the tender with the exact name, creating it when absent.
// The insert is committed on its own; created reports whether this call created it.
func (s *SQLiteStore) FindOrCreateTender(ctx context.Context, name string) (*models.Tender, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("%w: tender name is required", models.ErrValidation)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tenders (id, name, created_at) VALUES (?, ?, ?)`,
		uuid.New().String(), name, time.Now(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create tender: %w", err)
	}
	n, _ := res.RowsAffected()

	var row tenderRow
	if err := s.db.GetContext(ctx, &row,
		`SELECT id, name, client, metadata, created_at FROM tenders WHERE name = ?`, name); err != nil {
		return nil, false, fmt.Errorf("failed to load tender: %w", err)
	}
	t, err := row.toModel()
	if err != nil {
		return nil, false, err
	}
	return t, n == 1, nil
}

// ResolveTender looks a tender up by ID, then by exact name.
func (s *SQLiteStore) ResolveTender(ctx context.Context, ref string) (*models.Tender, error) {
	var row tenderRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, client, metadata, created_at FROM tenders WHERE id = ? OR name = ?
		 ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END LIMIT 1`, ref, ref, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tender %q: %w", ref, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

// ListTenders returns all tenders ordered by name.
func (s *SQLiteStore) ListTenders(ctx context.Context) ([]*models.Tender, error) {
	var rows []tenderRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, client, metadata, created_at FROM tenders ORDER BY name`); err != nil {
		return nil, err
	}
	out := make([]*models.Tender, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *tenderRow) toModel() (*models.Tender, error) {
	t := r.Tender
	md, err := decodeMetadata(r.MetadataJSON)
	if err != nil {
		return nil, err
	}
	t.Metadata = md
	return &t, nil
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sqlx.Tx
	// dim caches the corpus dimension once known within this transaction.
	dim int
}

// CreateDocument inserts a document.
func (t *sqliteTx) CreateDocument(ctx context.Context, doc *models.Document) error {
	md, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now()
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO documents (id, tender_id, filename, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.TenderID, doc.Filename, md, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// CreateClause inserts a clause.
func (t *sqliteTx) CreateClause(ctx context.Context, clause *models.Clause) error {
	md, err := encodeMetadata(clause.Metadata)
	if err != nil {
		return err
	}
	if clause.ID == "" {
		clause.ID = uuid.New().String()
	}
	clause.CreatedAt = time.Now()
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO clauses (id, document_id, clause_number, title, content, page_number, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		clause.ID, clause.DocumentID, clause.ClauseNumber, clause.Title, clause.Content,
		clause.PageNumber, md, clause.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert clause: %w", err)
	}
	return nil
}

// CreateChunk inserts a chunk with its embedding.
func (t *sqliteTx) CreateChunk(ctx context.Context, chunk *models.Chunk) error {
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("%w: chunk %d has no embedding", models.ErrDimensionMismatch, chunk.ChunkIndex)
	}
	if t.dim == 0 {
		var dim int
		err := t.tx.GetContext(ctx, &dim, `SELECT dim FROM chunks LIMIT 1`)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read corpus dimension: %w", err)
		}
		t.dim = dim
	}
	if t.dim != 0 && t.dim != len(chunk.Embedding) {
		return fmt.Errorf("%w: got %d, corpus has %d", models.ErrDimensionMismatch, len(chunk.Embedding), t.dim)
	}
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	chunk.CreatedAt = time.Now()
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO chunks (id, clause_id, document_id, content, chunk_index, embedding, dim, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.ClauseID, chunk.DocumentID, chunk.Content, chunk.ChunkIndex,
		vector.Encode(chunk.Embedding), len(chunk.Embedding), chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	t.dim = len(chunk.Embedding)
	return nil
}

const clauseColumns = `cl.id, cl.document_id, cl.clause_number, cl.title, cl.content, cl.page_number, cl.metadata, cl.created_at`

// ClausesByNumber returns clauses whose number equals clauseNumber exactly, restricted to
// documents of the tender, in ingestion order. No match is an empty slice.
func (s *SQLiteStore) ClausesByNumber(ctx context.Context, tenderID, clauseNumber string) ([]*models.Clause, error) {
	return s.selectClauses(ctx,
		`SELECT `+clauseColumns+` FROM clauses cl
		 JOIN documents d ON d.id = cl.document_id
		 WHERE cl.clause_number = ? AND d.tender_id = ?
		 ORDER BY d.created_at, cl.rowid`,
		clauseNumber, tenderID)
}

// ClausesByTender returns every clause of the tender in ingestion order.
func (s *SQLiteStore) ClausesByTender(ctx context.Context, tenderID string) ([]*models.Clause, error) {
	return s.selectClauses(ctx,
		`SELECT `+clauseColumns+` FROM clauses cl
		 JOIN documents d ON d.id = cl.document_id
		 WHERE d.tender_id = ?
		 ORDER BY d.created_at, cl.rowid`,
		tenderID)
}

func (s *SQLiteStore) selectClauses(ctx context.Context, query string, args ...interface{}) ([]*models.Clause, error) {
	var rows []clauseRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query clauses: %w", err)
	}
	out := make([]*models.Clause, 0, len(rows))
	for i := range rows {
		c := rows[i].Clause
		md, err := decodeMetadata(rows[i].MetadataJSON)
		if err != nil {
			return nil, err
		}
		c.Metadata = md
		out = append(out, &c)
	}
	return out, nil
}

const chunkColumns = `c.id, c.clause_id, c.document_id, c.content, c.chunk_index, c.embedding, c.created_at, cl.clause_number`

// NearestChunks ranks the tender's chunks by ascending cosine distance to query and returns the
// top k. Ties are broken by chunk ID. An empty tenderID searches the whole corpus.
func (s *SQLiteStore) NearestChunks(ctx context.Context, tenderID string, query []float32, k int) ([]models.ScoredChunk, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks c
		 JOIN clauses cl ON cl.id = c.clause_id
		 JOIN documents d ON d.id = c.document_id
		 WHERE ? = '' OR d.tender_id = ?`,
		tenderID, tenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*chunkRow)
	var cands []vector.Candidate
	for rows.Next() {
		var row chunkRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		emb, err := vector.Decode(row.Blob)
		if err != nil {
			return nil, err
		}
		if len(emb) != len(query) {
			return nil, fmt.Errorf("%w: query has %d, chunk %s has %d", models.ErrDimensionMismatch, len(query), row.ID, len(emb))
		}
		r := row
		byID[row.ID] = &r
		cands = append(cands, vector.Candidate{ID: row.ID, Distance: vector.CosineDistance(query, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := vector.TopK(cands, k)
	out := make([]models.ScoredChunk, 0, len(top))
	for i, c := range top {
		row := byID[c.ID]
		chunk := row.Chunk
		out = append(out, models.ScoredChunk{
			Chunk:        &chunk,
			ClauseNumber: row.ClauseNumber,
			Distance:     c.Distance,
			Rank:         i + 1,
		})
	}
	return out, nil
}

// ChunksByClauseIDs returns the chunks belonging to the given clauses, limited to the tender,
// in the order of clauseIDs. Unknown IDs are skipped.
func (s *SQLiteStore) ChunksByClauseIDs(ctx context.Context, tenderID string, clauseIDs []string) ([]models.ScoredChunk, error) {
	if len(clauseIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT `+chunkColumns+` FROM chunks c
		 JOIN clauses cl ON cl.id = c.clause_id
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.tender_id = ? AND c.clause_id IN (?)`,
		tenderID, clauseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build chunk query: %w", err)
	}
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	byClause := make(map[string]*chunkRow, len(rows))
	for i := range rows {
		byClause[rows[i].ClauseID] = &rows[i]
	}
	out := make([]models.ScoredChunk, 0, len(rows))
	for _, id := range clauseIDs {
		row, ok := byClause[id]
		if !ok {
			continue
		}
		chunk := row.Chunk
		out = append(out, models.ScoredChunk{Chunk: &chunk, ClauseNumber: row.ClauseNumber, Rank: len(out) + 1})
	}
	return out, nil
}

// Stats returns row counts and the corpus dimension.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `SELECT
		(SELECT COUNT(*) FROM tenders) AS tenders,
		(SELECT COUNT(*) FROM documents) AS documents,
		(SELECT COUNT(*) FROM clauses) AS clauses,
		(SELECT COUNT(*) FROM chunks) AS chunks,
		COALESCE((SELECT dim FROM chunks LIMIT 1), 0) AS dimension`)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return &st, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
