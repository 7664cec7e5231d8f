// Package indexer ingests tender documents: parse, segment into clauses, embed and persist,
// then project the committed clauses into the graph store and keyword index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/embedding"
	"github.com/hyperjump/tenderwise/internal/extract"
	"github.com/hyperjump/tenderwise/internal/fileid"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/storage"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

const (
	metaKeySourcePath = "source_path"
	metaKeyChecksum   = "checksum"
	metaKeyClauses    = "clause_count"
)

// GraphStore receives one node per committed clause.
type GraphStore interface {
	UpsertClause(ctx context.Context, node *models.GraphNode) error
}

// KeywordIndex receives one entry per committed clause.
type KeywordIndex interface {
	IndexClause(ctx context.Context, node *models.GraphNode) error
}

// IngestResult describes one ingested file.
type IngestResult struct {
	Tender        *models.Tender   `json:"tender"`
	TenderCreated bool             `json:"tender_created"`
	Document      *models.Document `json:"document"`
	Clauses       int              `json:"clauses"`
	// ProjectionFailures counts clauses that were committed but could not be written to the
	// graph store or keyword index. Reproject repairs them.
	ProjectionFailures int `json:"projection_failures,omitempty"`
}

// Indexer runs the ingestion pipeline.
type Indexer struct {
	store        storage.Store
	parser       extract.Parser
	embedder     embedding.Embedder
	segmenter    Segmenter
	graph        GraphStore
	keyword      KeywordIndex
	embedTimeout time.Duration
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = utils.OrNop(l) }
}

// WithSegmenter replaces the default paragraph segmenter.
func WithSegmenter(s Segmenter) IndexerOption {
	return func(idx *Indexer) { idx.segmenter = s }
}

// WithGraph enables projection of committed clauses into g.
func WithGraph(g GraphStore) IndexerOption {
	return func(idx *Indexer) { idx.graph = g }
}

// WithKeywordIndex enables projection of committed clauses into k.
func WithKeywordIndex(k KeywordIndex) IndexerOption {
	return func(idx *Indexer) { idx.keyword = k }
}

// WithEmbedTimeout bounds every embedding call.
func WithEmbedTimeout(d time.Duration) IndexerOption {
	return func(idx *Indexer) { idx.embedTimeout = d }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(store storage.Store, parser extract.Parser, embedder embedding.Embedder, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:     store,
		parser:    parser,
		embedder:  embedder,
		segmenter: NewParagraphChunker(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IngestFile ingests the file at path into the tender named tenderName, creating the tender
// when it does not exist. The tender is committed on its own. Every clause is embedded first;
// the document, its clauses and their chunks are then written in a single transaction, so a
// failure at any point leaves no document behind. Re-ingesting the same file creates a new
// document.
func (idx *Indexer) IngestFile(ctx context.Context, path, tenderName string) (*IngestResult, error) {
	tenderName = strings.TrimSpace(tenderName)
	if tenderName == "" {
		return nil, fmt.Errorf("%w: tender name is required", models.ErrValidation)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !extract.Supported(ext) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(absPath), extract.ErrUnsupportedType)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	tender, created, err := idx.store.FindOrCreateTender(ctx, tenderName)
	if err != nil {
		return nil, fmt.Errorf("find or create tender: %w", err)
	}
	if created {
		idx.logger.Info("tender created", zap.String("tender_id", tender.ID), zap.String("name", tender.Name))
	}

	parsed, err := idx.parser.Parse(absPath)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(absPath), err)
	}
	checksum, err := fileid.FileChecksum(absPath)
	if err != nil {
		return nil, err
	}

	base := make(map[string]string, len(parsed.Metadata))
	for k, v := range parsed.Metadata {
		base[k] = v
	}
	units := idx.segmenter.Segment(Preprocess(parsed.Content), base)

	docMeta := make(map[string]string, len(base)+3)
	for k, v := range base {
		docMeta[k] = v
	}
	docMeta[metaKeySourcePath] = absPath
	docMeta[metaKeyChecksum] = checksum
	docMeta[metaKeyClauses] = strconv.Itoa(len(units))

	doc := &models.Document{
		TenderID: tender.ID,
		Filename: filepath.Base(absPath),
		Metadata: docMeta,
	}
	// Embeddings are computed before the transaction so the write lock is held only for inserts.
	vectors := make([][]float32, len(units))
	for i, u := range units {
		vec, err := idx.embed(ctx, u.Content)
		if err != nil {
			err = fmt.Errorf("embed clause %s: %w", u.ClauseNumber, err)
			idx.logger.Warn("ingest aborted",
				zap.String("path", absPath), zap.String("tender_id", tender.ID), zap.Error(err))
			return nil, err
		}
		vectors[i] = vec
	}

	var nodes []*models.GraphNode
	err = idx.store.WithTx(ctx, func(tx storage.Tx) error {
		nodes = nodes[:0]
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return fmt.Errorf("store document: %w", err)
		}
		for i, u := range units {
			clause := &models.Clause{
				DocumentID:   doc.ID,
				ClauseNumber: u.ClauseNumber,
				Title:        u.Title,
				Content:      u.Content,
				PageNumber:   u.PageNumber,
				Metadata:     u.Metadata,
			}
			if err := tx.CreateClause(ctx, clause); err != nil {
				return fmt.Errorf("store clause %s: %w", u.ClauseNumber, err)
			}
			chunk := &models.Chunk{
				ClauseID:   clause.ID,
				DocumentID: doc.ID,
				Content:    u.Content,
				ChunkIndex: u.Index,
				Embedding:  vectors[i],
			}
			if err := tx.CreateChunk(ctx, chunk); err != nil {
				return fmt.Errorf("store chunk %d: %w", u.Index, err)
			}
			nodes = append(nodes, clauseNode(clause, tender.ID))
		}
		return nil
	})
	if err != nil {
		idx.logger.Warn("ingest rolled back",
			zap.String("path", absPath), zap.String("tender_id", tender.ID), zap.Error(err))
		return nil, err
	}

	res := &IngestResult{
		Tender:        tender,
		TenderCreated: created,
		Document:      doc,
		Clauses:       len(units),
	}
	res.ProjectionFailures = idx.project(ctx, nodes)
	idx.logger.Info("document ingested",
		zap.String("path", absPath),
		zap.String("tender_id", tender.ID),
		zap.String("document_id", doc.ID),
		zap.Int("clauses", res.Clauses),
		zap.Int("projection_failures", res.ProjectionFailures),
	)
	return res, nil
}

// IngestDirectory ingests every supported file under root into the tender. Unsupported files
// are skipped; the first ingest error stops the walk.
func (idx *Indexer) IngestDirectory(ctx context.Context, root, tenderName string) ([]*IngestResult, error) {
	var results []*IngestResult
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !extract.Supported(filepath.Ext(path)) {
			idx.logger.Debug("skipping unsupported file", zap.String("path", path))
			return nil
		}
		res, err := idx.IngestFile(ctx, path, tenderName)
		if err != nil {
			return err
		}
		results = append(results, res)
		return nil
	})
	return results, err
}

// Reproject rewrites every clause of the tender into the graph store and keyword index.
// It returns the number of clauses projected.
func (idx *Indexer) Reproject(ctx context.Context, tenderID string) (int, error) {
	clauses, err := idx.store.ClausesByTender(ctx, tenderID)
	if err != nil {
		return 0, fmt.Errorf("load clauses: %w", err)
	}
	nodes := make([]*models.GraphNode, len(clauses))
	for i, c := range clauses {
		nodes[i] = clauseNode(c, tenderID)
	}
	if failed := idx.project(ctx, nodes); failed > 0 {
		return len(nodes) - failed, fmt.Errorf("reproject tender %s: %d of %d clauses failed", tenderID, failed, len(nodes))
	}
	return len(nodes), nil
}

func (idx *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	if idx.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, idx.embedTimeout)
		defer cancel()
	}
	return idx.embedder.Embed(ctx, text)
}

// project writes nodes to the graph store and keyword index, returning the number of nodes
// for which at least one write failed.
func (idx *Indexer) project(ctx context.Context, nodes []*models.GraphNode) int {
	if idx.graph == nil && idx.keyword == nil {
		return 0
	}
	failed := 0
	for _, n := range nodes {
		var errs []error
		if idx.graph != nil {
			if err := idx.graph.UpsertClause(ctx, n); err != nil {
				errs = append(errs, fmt.Errorf("graph: %w", err))
			}
		}
		if idx.keyword != nil {
			if err := idx.keyword.IndexClause(ctx, n); err != nil {
				errs = append(errs, fmt.Errorf("keyword: %w", err))
			}
		}
		if len(errs) > 0 {
			failed++
			idx.logger.Warn("clause projection failed",
				zap.String("clause_id", n.ClauseID), zap.String("tender_id", n.TenderID), zap.Error(errors.Join(errs...)))
		}
	}
	return failed
}

func clauseNode(c *models.Clause, tenderID string) *models.GraphNode {
	return &models.GraphNode{
		ClauseID:   c.ID,
		DocumentID: c.DocumentID,
		TenderID:   tenderID,
		Number:     c.ClauseNumber,
		Content:    c.Content,
		UpdatedAt:  time.Now().UTC(),
	}
}
