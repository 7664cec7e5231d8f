package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/tenderwise/internal/embedding"
	"github.com/hyperjump/tenderwise/internal/extract"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/storage"
)

type recordingProjection struct {
	mu    sync.Mutex
	nodes []*models.GraphNode
	err   error
}

func (r *recordingProjection) UpsertClause(_ context.Context, n *models.GraphNode) error {
	return r.record(n)
}

func (r *recordingProjection) IndexClause(_ context.Context, n *models.GraphNode) error {
	return r.record(n)
}

func (r *recordingProjection) record(n *models.GraphNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nodes = append(r.nodes, n)
	return nil
}

func (r *recordingProjection) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

func testIndexer(t *testing.T, embedder embedding.Embedder, opts ...IndexerOption) (*Indexer, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if embedder == nil {
		embedder = embedding.NewMockEmbedder(8)
	}
	return NewIndexer(store, extract.NewExtractor(), embedder, opts...), store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestFile_twoParagraphMarkdown(t *testing.T) {
	graph := &recordingProjection{}
	kw := &recordingProjection{}
	idx, store := testIndexer(t, nil, WithGraph(graph), WithKeywordIndex(kw))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "spec.md", "Alpha section content.\n\nBeta section content here.")

	res, err := idx.IngestFile(ctx, path, "Hospital Wing")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if !res.TenderCreated || res.Tender.Name != "Hospital Wing" {
		t.Errorf("tender: %+v created=%v", res.Tender, res.TenderCreated)
	}
	if res.Clauses != 2 {
		t.Errorf("Clauses=%d, want 2", res.Clauses)
	}
	if res.Document.Filename != "spec.md" {
		t.Errorf("Filename=%s", res.Document.Filename)
	}
	if !strings.HasPrefix(res.Document.Metadata["checksum"], "sha256:") {
		t.Errorf("document checksum missing: %v", res.Document.Metadata)
	}

	clauses, err := store.ClausesByTender(ctx, res.Tender.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(clauses))
	}
	if clauses[0].ClauseNumber != "GEN-1" || clauses[0].Content != "Alpha section content." {
		t.Errorf("clause 0: %+v", clauses[0])
	}
	if clauses[1].ClauseNumber != "GEN-2" || clauses[1].Content != "Beta section content here." {
		t.Errorf("clause 1: %+v", clauses[1])
	}
	if clauses[0].Metadata["chunk_method"] != "clause_heuristic" {
		t.Errorf("clause metadata: %v", clauses[0].Metadata)
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Chunks != 2 || st.Dimension != 8 {
		t.Errorf("stats: %+v", st)
	}
	if graph.count() != 2 || kw.count() != 2 {
		t.Errorf("projections: graph=%d keyword=%d", graph.count(), kw.count())
	}
	if graph.nodes[0].TenderID != res.Tender.ID || graph.nodes[0].Number != "GEN-1" {
		t.Errorf("graph node: %+v", graph.nodes[0])
	}
}

func TestIngestFile_embedderFailureRollsBack(t *testing.T) {
	boom := errors.New("embedding service down")
	faulty := embedding.NewFaultyEmbedder(embedding.NewMockEmbedder(8), boom, 1)
	graph := &recordingProjection{}
	idx, store := testIndexer(t, faulty, WithGraph(graph))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "spec.txt", "First clause text.\n\nSecond clause text.")

	_, err := idx.IngestFile(ctx, path, "T1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected embedder error, got %v", err)
	}
	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Tenders != 1 {
		t.Errorf("tender should survive the rollback, tenders=%d", st.Tenders)
	}
	if st.Documents != 0 || st.Clauses != 0 || st.Chunks != 0 {
		t.Errorf("no document rows should remain: %+v", st)
	}
	if graph.count() != 0 {
		t.Errorf("nothing should be projected after rollback, got %d", graph.count())
	}

	// The tender is reused on retry.
	res, err := idx.IngestFile(ctx, path, "T1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.TenderCreated {
		t.Error("retry should find the existing tender")
	}
}

// slowEmbedder delays every call and runs onEmbed, if set, before delegating.
type slowEmbedder struct {
	embedding.Embedder
	delay   time.Duration
	onEmbed func(ctx context.Context)
}

func (e *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.onEmbed != nil {
		e.onEmbed(ctx)
	}
	time.Sleep(e.delay)
	return e.Embedder.Embed(ctx, text)
}

func paragraphs(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = word + " paragraph number " + strings.Repeat("x", i+1) + "."
	}
	return strings.Join(parts, "\n\n")
}

func TestIngestFile_embeddingHoldsNoWriteLock(t *testing.T) {
	var (
		once     sync.Once
		writeErr error
		store    *storage.SQLiteStore
	)
	slow := &slowEmbedder{Embedder: embedding.NewMockEmbedder(8)}
	slow.onEmbed = func(ctx context.Context) {
		once.Do(func() {
			// Another writer must get through while this document is being embedded.
			_, _, writeErr = store.FindOrCreateTender(ctx, "Other")
		})
	}
	var idx *Indexer
	idx, store = testIndexer(t, slow)
	path := writeFile(t, t.TempDir(), "spec.md", paragraphs(3, "Alpha"))

	if _, err := idx.IngestFile(context.Background(), path, "T1"); err != nil {
		t.Fatal(err)
	}
	if writeErr != nil {
		t.Fatalf("concurrent write during embedding failed: %v", writeErr)
	}
}

func TestIngestFile_concurrentDocuments(t *testing.T) {
	slow := &slowEmbedder{Embedder: embedding.NewMockEmbedder(8), delay: 5 * time.Millisecond}
	idx, store := testIndexer(t, slow)
	ctx := context.Background()
	if _, _, err := store.FindOrCreateTender(ctx, "T1"); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.md", paragraphs(20, "Alpha")),
		writeFile(t, dir, "b.md", paragraphs(20, "Beta")),
	}

	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			_, errs[i] = idx.IngestFile(ctx, p, "T1")
		}(i, p)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("ingest %s: %v", filepath.Base(paths[i]), err)
		}
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Tenders != 1 || st.Documents != 2 || st.Clauses != 40 || st.Chunks != 40 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestIngestFile_unsupportedType(t *testing.T) {
	idx, store := testIndexer(t, nil)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "drawing.dwg", "binary")

	_, err := idx.IngestFile(ctx, path, "T1")
	if !errors.Is(err, models.ErrUnsupportedInput) {
		t.Fatalf("expected ErrUnsupportedInput, got %v", err)
	}
	st, _ := store.Stats(ctx)
	if st.Tenders != 0 || st.Documents != 0 {
		t.Errorf("unsupported input must not write: %+v", st)
	}
}

func TestIngestFile_reingestCreatesNewDocument(t *testing.T) {
	idx, store := testIndexer(t, nil)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "spec.md", "Alpha section content.\n\nBeta section content here.")

	first, err := idx.IngestFile(ctx, path, "T1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := idx.IngestFile(ctx, path, "T1")
	if err != nil {
		t.Fatal(err)
	}
	if first.Document.ID == second.Document.ID {
		t.Error("re-ingest should create a new document")
	}
	if first.Document.Metadata["checksum"] != second.Document.Metadata["checksum"] {
		t.Error("same file should have the same checksum")
	}
	st, _ := store.Stats(ctx)
	if st.Tenders != 1 || st.Documents != 2 || st.Clauses != 4 {
		t.Errorf("stats: %+v", st)
	}
}

func TestIngestFile_validation(t *testing.T) {
	idx, _ := testIndexer(t, nil)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "Some clause text here.")

	if _, err := idx.IngestFile(ctx, path, "  "); !errors.Is(err, models.ErrValidation) {
		t.Errorf("blank tender: got %v", err)
	}
	if _, err := idx.IngestFile(ctx, filepath.Join(dir, "missing.txt"), "T1"); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := idx.IngestFile(ctx, dir+"/sub.md", "T1"); err == nil {
		t.Error("missing path should fail")
	}
}

func TestIngestFile_emptyDocument(t *testing.T) {
	idx, store := testIndexer(t, nil)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "empty.txt", "abc\n\n\n")

	res, err := idx.IngestFile(ctx, path, "T1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Clauses != 0 {
		t.Errorf("Clauses=%d", res.Clauses)
	}
	st, _ := store.Stats(ctx)
	if st.Documents != 1 || st.Clauses != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestIngestFile_projectionFailureKeepsCommit(t *testing.T) {
	graph := &recordingProjection{err: errors.New("graph offline")}
	kw := &recordingProjection{}
	idx, store := testIndexer(t, nil, WithGraph(graph), WithKeywordIndex(kw))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "spec.md", "Alpha section content.\n\nBeta section content here.")

	res, err := idx.IngestFile(ctx, path, "T1")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if res.ProjectionFailures != 2 {
		t.Errorf("ProjectionFailures=%d, want 2", res.ProjectionFailures)
	}
	st, _ := store.Stats(ctx)
	if st.Clauses != 2 {
		t.Errorf("relational commit should stand: %+v", st)
	}

	if _, err := idx.Reproject(ctx, res.Tender.ID); err == nil {
		t.Error("reproject should report the failing graph store")
	}
	graph.err = nil
	n, err := idx.Reproject(ctx, res.Tender.ID)
	if err != nil {
		t.Fatalf("Reproject: %v", err)
	}
	if n != 2 || graph.count() != 2 {
		t.Errorf("reprojected %d, graph has %d", n, graph.count())
	}
}

func TestIngestDirectory(t *testing.T) {
	idx, store := testIndexer(t, nil)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Alpha section content.")
	writeFile(t, dir, "b.txt", "Beta section content.\n\nGamma section content.")
	writeFile(t, dir, "c.dwg", "skipped")
	if err := os.MkdirAll(filepath.Join(dir, ".hidden"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, ".hidden"), "d.md", "Hidden section content.")

	results, err := idx.IngestDirectory(ctx, dir, "T1")
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(results))
	}
	st, _ := store.Stats(ctx)
	if st.Documents != 2 || st.Clauses != 3 {
		t.Errorf("stats: %+v", st)
	}
}
