package controller

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/tenderwise/internal/agent"
	"github.com/hyperjump/tenderwise/internal/audit"
	"github.com/hyperjump/tenderwise/internal/embedding"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/retrieval"
	"github.com/hyperjump/tenderwise/internal/storage"
)

type stubAgent struct {
	mu     sync.Mutex
	answer string
	err    error
	panics bool
	reqs   []agent.Request
}

func (s *stubAgent) Answer(ctx context.Context, req agent.Request) (string, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func auditSink() (*audit.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return audit.New(zap.New(core)), logs
}

// corpus seeds one tender in a fresh SQLite store and returns the store, tender and embedder.
func corpus(t *testing.T, clauses [][2]string) (*storage.SQLiteStore, *models.Tender, *embedding.MockEmbedder) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	emb := embedding.NewMockEmbedder(16)

	tender, _, err := store.FindOrCreateTender(ctx, "Hospital Extension")
	require.NoError(t, err)
	err = store.WithTx(ctx, func(tx storage.Tx) error {
		doc := &models.Document{TenderID: tender.ID, Filename: "spec.md"}
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return err
		}
		for i, c := range clauses {
			cl := &models.Clause{DocumentID: doc.ID, ClauseNumber: c[0], Content: c[1]}
			if err := tx.CreateClause(ctx, cl); err != nil {
				return err
			}
			vec, err := emb.Embed(ctx, c[1])
			if err != nil {
				return err
			}
			if err := tx.CreateChunk(ctx, &models.Chunk{ClauseID: cl.ID, DocumentID: doc.ID, Content: c[1], ChunkIndex: i, Embedding: vec}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return store, tender, emb
}

var hospitalClauses = [][2]string{
	{"5.1", "The contractor shall provide all temporary works."},
	{"5.2", "Surface water drainage shall discharge to the existing sewer."},
	{"7.1", "Fire doors shall be rated for 60 minutes."},
}

func TestHandle_exactClauseQuery(t *testing.T) {
	store, tender, emb := corpus(t, hospitalClauses)
	engine := retrieval.NewEngine(store, emb)
	sink, logs := auditSink()
	c := New(agent.NewExtractiveAgent(agent.NewToolbox(engine, 5)), WithAudit(sink))

	resp := c.Submit(context.Background(), tender.ID, "What does Clause 5.1 say?", "API")

	assert.Equal(t, models.StatusAnswered, resp.Status)
	assert.Equal(t, "EXACT", resp.Classification)
	assert.Equal(t, "EXACT_LOOKUP", resp.Strategy)
	assert.Contains(t, resp.Answer, "The contractor shall provide all temporary works.")
	assert.NotEqual(t, models.RefusedQueryID, resp.QueryID)
	assert.Empty(t, resp.RefusalReason)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, resp.QueryID, fields["query_id"])
	assert.Equal(t, tender.ID, fields["tender_id"])
	assert.Equal(t, "API", fields["interface_source"])
}

func TestHandle_resolvesTenderName(t *testing.T) {
	store, _, emb := corpus(t, hospitalClauses)
	engine := retrieval.NewEngine(store, emb)
	c := New(agent.NewExtractiveAgent(agent.NewToolbox(engine, 5)), WithTenderResolver(store))

	resp := c.Submit(context.Background(), "Hospital Extension", "What does Clause 7.1 say?", "CLI")
	assert.Equal(t, models.StatusAnswered, resp.Status)
	assert.Contains(t, resp.Answer, "Fire doors shall be rated for 60 minutes.")

	resp = c.Submit(context.Background(), "Unknown Tender", "What does Clause 7.1 say?", "CLI")
	assert.Equal(t, models.StatusAnswered, resp.Status)
	assert.Equal(t, "No clause found with number '7.1'.", resp.Answer)
}

func TestHandle_refused(t *testing.T) {
	tests := []struct {
		name     string
		tenderID string
		query    string
	}{
		{name: "empty query", tenderID: "T1", query: ""},
		{name: "blank query", tenderID: "T1", query: "  \n\t"},
		{name: "missing tender", tenderID: "", query: "What does Clause 5.1 say?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAgent{answer: "unused"}
			sink, logs := auditSink()
			c := New(a, WithAudit(sink))

			resp := c.Submit(context.Background(), tt.tenderID, tt.query, "API")

			assert.Equal(t, models.QueryResponse{
				QueryID:        "N/A",
				Answer:         "Invalid Request: Missing tender_id or empty query.",
				Classification: "REJECTED",
				Strategy:       "NONE",
				Status:         models.StatusRefused,
			}, resp)
			assert.Empty(t, a.reqs)
			assert.Zero(t, logs.Len())
		})
	}
}

func TestHandle_transientEmbedderFailure(t *testing.T) {
	store, tender, emb := corpus(t, hospitalClauses)
	down := &embedding.Error{Kind: embedding.KindTransient, Op: "request", Err: errors.New("connection reset by peer")}
	engine := retrieval.NewEngine(store, embedding.NewFaultyEmbedder(emb, down, -1))
	sink, logs := auditSink()
	c := New(agent.NewExtractiveAgent(agent.NewToolbox(engine, 5)), WithAudit(sink))

	resp := c.Submit(context.Background(), tender.ID, "How is surface water handled?", "API")

	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, "I encountered an error processing your request.", resp.Answer)
	assert.Equal(t, "SEMANTIC", resp.Classification)
	assert.Equal(t, "VECTOR", resp.Strategy)
	assert.Contains(t, resp.RefusalReason, "connection reset by peer")
	assert.Contains(t, resp.RefusalReason, models.ErrRetrievalUnavailable.Error())
	assert.NotContains(t, resp.Answer, "connection reset")
	assert.Equal(t, 1, logs.Len())
}

func TestHandle_auditOncePerRequest(t *testing.T) {
	sink, logs := auditSink()
	a := &stubAgent{answer: "ok"}
	c := New(a, WithAudit(sink))
	ctx := context.Background()

	queries := []string{"What does Clause 5.1 say?", "fire rating of doors", "", "Section 2 scope"}
	var ids []string
	for _, q := range queries {
		resp := c.Submit(ctx, "T1", q, "API")
		if resp.Status != models.StatusRefused {
			ids = append(ids, resp.QueryID)
		}
	}

	require.Equal(t, 3, logs.Len())
	for i, e := range logs.All() {
		assert.Equal(t, ids[i], e.ContextMap()["query_id"])
	}
	assert.Len(t, a.reqs, 3)
}

func TestHandle_agentFailure(t *testing.T) {
	a := &stubAgent{err: errors.New("model overloaded")}
	c := New(a)

	resp := c.Submit(context.Background(), "T1", "fire rating", "API")
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, ErrorAnswer, resp.Answer)
	assert.Equal(t, "model overloaded", resp.RefusalReason)
}

func TestHandle_agentPanic(t *testing.T) {
	c := New(&stubAgent{panics: true})
	resp := c.Submit(context.Background(), "T1", "fire rating", "API")
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Contains(t, resp.RefusalReason, "boom")
}

func TestHandle_cancelledContext(t *testing.T) {
	sink, logs := auditSink()
	a := &stubAgent{answer: "ok"}
	c := New(a, WithAudit(sink))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := c.Submit(ctx, "T1", "fire rating", "API")

	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, ErrorAnswer, resp.Answer)
	assert.Contains(t, resp.RefusalReason, context.Canceled.Error())
	assert.Empty(t, a.reqs)
	assert.Equal(t, 1, logs.Len())
}

func TestHandle_strategyOverride(t *testing.T) {
	a := &stubAgent{answer: "ok"}
	c := New(a)

	resp := c.Handle(context.Background(), models.QueryRequest{
		TenderID: "T1",
		Query:    "What does Clause 5.1 say?",
		Strategy: models.StrategyHybrid,
	})
	assert.Equal(t, "EXACT", resp.Classification)
	assert.Equal(t, "HYBRID", resp.Strategy)
	require.Len(t, a.reqs, 1)
	assert.Equal(t, models.StrategyHybrid, a.reqs[0].Strategy)
	assert.Equal(t, "T1", a.reqs[0].TenderID)
}

func TestHandle_concurrentRequests(t *testing.T) {
	sink, logs := auditSink()
	c := New(&stubAgent{answer: "ok"}, WithAudit(sink))

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = c.Submit(context.Background(), "T1", "fire rating", "API").QueryID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate query id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 20, logs.Len())
}
