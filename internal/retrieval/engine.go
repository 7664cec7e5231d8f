// Package retrieval runs the three retrieval strategies over a tender's clauses:
// exact clause lookup, vector similarity and hybrid rank fusion.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/embedding"
	"github.com/hyperjump/tenderwise/internal/keyword"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/query"
	"github.com/hyperjump/tenderwise/internal/storage"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

const (
	// DefaultTopK is used when a caller passes topK <= 0.
	DefaultTopK              = 5
	defaultKeywordCandidates = 50
)

// Engine executes retrieval strategies. It holds no per-request state.
type Engine struct {
	store             storage.Store
	embedder          embedding.Embedder
	keyword           keyword.ClauseIndex
	topK              int
	rrfK              float64
	keywordCandidates int
	keywordOpts       *keyword.SearchOptions
	embedTimeout      time.Duration
	storeTimeout      time.Duration
	logger            *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeywordIndex adds the BM25 ranking to hybrid retrieval.
func WithKeywordIndex(k keyword.ClauseIndex) Option {
	return func(e *Engine) { e.keyword = k }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// WithTopK sets the default result count.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithRRFK sets the Reciprocal Rank Fusion constant.
func WithRRFK(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.rrfK = k
		}
	}
}

// WithKeywordCandidates sets how many candidates each hybrid ranking contributes.
func WithKeywordCandidates(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.keywordCandidates = n
		}
	}
}

// WithFuzzyKeywords enables typo-tolerant keyword matching.
func WithFuzzyKeywords(enabled bool) Option {
	return func(e *Engine) {
		if enabled {
			e.keywordOpts = &keyword.SearchOptions{FuzzyEnabled: true, Fuzziness: 1}
		} else {
			e.keywordOpts = nil
		}
	}
}

// WithTimeouts bounds embedder and store calls.
func WithTimeouts(embed, store time.Duration) Option {
	return func(e *Engine) {
		e.embedTimeout = embed
		e.storeTimeout = store
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(store storage.Store, embedder embedding.Embedder, opts ...Option) *Engine {
	e := &Engine{
		store:             store,
		embedder:          embedder,
		topK:              DefaultTopK,
		rrfK:              DefaultRRFK,
		keywordCandidates: defaultKeywordCandidates,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request is one retrieval request.
type Request struct {
	TenderID string
	Query    string
	Strategy models.Strategy
	TopK     int
}

// Result holds the clauses (EXACT_LOOKUP) or ranked chunks (VECTOR, HYBRID) found.
type Result struct {
	Strategy models.Strategy
	Clauses  []*models.Clause
	Chunks   []models.ScoredChunk
}

// Empty reports whether nothing was retrieved.
func (r *Result) Empty() bool {
	return r == nil || (len(r.Clauses) == 0 && len(r.Chunks) == 0)
}

// Retrieve dispatches on req.Strategy.
func (e *Engine) Retrieve(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Strategy: req.Strategy}
	var err error
	switch req.Strategy {
	case models.StrategyExactLookup:
		res.Clauses, err = e.ExactLookup(ctx, clauseNumberFor(req.Query), req.TenderID)
	case models.StrategyVector:
		res.Chunks, err = e.Vector(ctx, req.Query, req.TenderID, req.TopK)
	case models.StrategyHybrid:
		res.Chunks, err = e.Hybrid(ctx, req.Query, req.TenderID, req.TopK)
	case models.StrategyNone:
		return nil, fmt.Errorf("%w: no retrieval strategy selected", models.ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %d", models.ErrValidation, int(req.Strategy))
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// clauseNumberFor extracts the referenced number from a query, or uses the whole query as
// a bare clause number ("5.1").
func clauseNumberFor(q string) string {
	if ref, ok := query.FindReference(q); ok {
		return ref.Number
	}
	return strings.TrimSpace(q)
}

// ExactLookup returns the tender's clauses whose number equals clauseNumber. No match is an
// empty slice, not an error.
func (e *Engine) ExactLookup(ctx context.Context, clauseNumber, tenderID string) ([]*models.Clause, error) {
	if tenderID == "" {
		return nil, fmt.Errorf("%w: exact lookup requires a tender id", models.ErrValidation)
	}
	clauseNumber = strings.TrimSpace(clauseNumber)
	if clauseNumber == "" {
		return []*models.Clause{}, nil
	}
	sctx, cancel := e.withTimeout(ctx, e.storeTimeout)
	defer cancel()
	clauses, err := e.store.ClausesByNumber(sctx, tenderID, clauseNumber)
	if err != nil {
		return nil, unavailable("exact lookup", err)
	}
	if clauses == nil {
		clauses = []*models.Clause{}
	}
	e.logger.Debug("exact lookup",
		zap.String("tender_id", tenderID), zap.String("clause_number", clauseNumber), zap.Int("hits", len(clauses)))
	return clauses, nil
}

// Vector embeds q and returns the topK nearest chunks by ascending cosine distance,
// ties broken by chunk ID. An empty tenderID searches every tender.
func (e *Engine) Vector(ctx context.Context, q, tenderID string, topK int) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		topK = e.topK
	}
	vec, err := e.embedQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	return e.nearest(ctx, tenderID, vec, topK)
}

// Hybrid fuses up to three rankings with Reciprocal Rank Fusion: chunks of clauses the query
// references explicitly, BM25 keyword hits over clause content and vector similarity.
func (e *Engine) Hybrid(ctx context.Context, q, tenderID string, topK int) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		topK = e.topK
	}
	candidates := e.keywordCandidates
	if candidates < topK {
		candidates = topK
	}

	var lists [][]models.ScoredChunk
	if tenderID != "" {
		exact, err := e.referencedChunks(ctx, q, tenderID)
		if err != nil {
			return nil, err
		}
		if len(exact) > 0 {
			lists = append(lists, exact)
		}
		kw, err := e.keywordChunks(ctx, q, tenderID, candidates)
		if err != nil {
			return nil, err
		}
		if len(kw) > 0 {
			lists = append(lists, kw)
		}
	}

	vec, err := e.embedQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	nearest, err := e.nearest(ctx, tenderID, vec, candidates)
	if err != nil {
		return nil, err
	}
	lists = append(lists, nearest)

	fused := FuseRRF(e.rrfK, lists...)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	e.logger.Debug("hybrid retrieval",
		zap.String("tender_id", tenderID), zap.Int("rankings", len(lists)), zap.Int("results", len(fused)))
	return fused, nil
}

func (e *Engine) referencedChunks(ctx context.Context, q, tenderID string) ([]models.ScoredChunk, error) {
	refs := query.FindReferences(q)
	if len(refs) == 0 {
		return nil, nil
	}
	var ids []string
	for _, ref := range refs {
		clauses, err := e.ExactLookup(ctx, ref.Number, tenderID)
		if err != nil {
			return nil, err
		}
		for _, c := range clauses {
			ids = append(ids, c.ID)
		}
	}
	return e.chunksFor(ctx, tenderID, ids)
}

func (e *Engine) keywordChunks(ctx context.Context, q, tenderID string, limit int) ([]models.ScoredChunk, error) {
	if e.keyword == nil {
		return nil, nil
	}
	sctx, cancel := e.withTimeout(ctx, e.storeTimeout)
	defer cancel()
	hits, err := e.keyword.Search(sctx, tenderID, q, limit, e.keywordOpts)
	if err != nil {
		return nil, unavailable("keyword search", err)
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ClauseID
	}
	return e.chunksFor(ctx, tenderID, ids)
}

func (e *Engine) chunksFor(ctx context.Context, tenderID string, clauseIDs []string) ([]models.ScoredChunk, error) {
	if len(clauseIDs) == 0 {
		return nil, nil
	}
	sctx, cancel := e.withTimeout(ctx, e.storeTimeout)
	defer cancel()
	chunks, err := e.store.ChunksByClauseIDs(sctx, tenderID, clauseIDs)
	if err != nil {
		return nil, unavailable("load chunks", err)
	}
	return chunks, nil
}

func (e *Engine) embedQuery(ctx context.Context, q string) ([]float32, error) {
	ectx, cancel := e.withTimeout(ctx, e.embedTimeout)
	defer cancel()
	vec, err := e.embedder.Embed(ectx, q)
	if err != nil {
		return nil, unavailable("embed query", err)
	}
	return vec, nil
}

func (e *Engine) nearest(ctx context.Context, tenderID string, vec []float32, k int) ([]models.ScoredChunk, error) {
	sctx, cancel := e.withTimeout(ctx, e.storeTimeout)
	defer cancel()
	chunks, err := e.store.NearestChunks(sctx, tenderID, vec, k)
	if err != nil {
		return nil, unavailable("vector search", err)
	}
	if chunks == nil {
		chunks = []models.ScoredChunk{}
	}
	return chunks, nil
}

func (e *Engine) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrRetrievalUnavailable, op, err)
}
