package status

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/tenderwise/internal/storage"
)

type fakeStats struct {
	stats *storage.Stats
	err   error
}

func (f fakeStats) Stats(context.Context) (*storage.Stats, error) { return f.stats, f.err }

type fakeGraph struct {
	n   int
	err error
}

func (f fakeGraph) Count() (int, error) { return f.n, f.err }

type fakeKeyword uint64

func (f fakeKeyword) DocCount() (uint64, error) { return uint64(f), nil }

type fakeQueue int

func (f fakeQueue) Pending() int { return int(f) }

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db.sqlite")
	require.NoError(t, os.WriteFile(db, make([]byte, 128), 0o644))

	c := NewCollector(
		fakeStats{stats: &storage.Stats{Tenders: 2, Documents: 3, Clauses: 10, Chunks: 10, Dimension: 384}},
		WithGraph(fakeGraph{n: 8}),
		WithKeyword(fakeKeyword(10)),
		WithQueue(fakeQueue(1)),
		WithPaths(map[string]string{"database": db, "graph": filepath.Join(dir, "missing.db")}),
	)
	st, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, st.Tenders)
	assert.EqualValues(t, 10, st.Chunks)
	assert.Equal(t, 384, st.Dimension)
	assert.Equal(t, 8, st.GraphNodes)
	assert.EqualValues(t, 10, st.KeywordDocs)
	assert.Equal(t, 1, st.PendingIngests)
	assert.EqualValues(t, 128, st.DiskUsage["database"])
	assert.EqualValues(t, 0, st.DiskUsage["graph"])
	assert.EqualValues(t, 128, st.DiskUsageTotal)
	assert.EqualValues(t, 2, st.ProjectionLag())
}

func TestCollect_storeErrorFails(t *testing.T) {
	_, err := NewCollector(fakeStats{err: errors.New("locked")}).Collect(context.Background())
	assert.ErrorContains(t, err, "locked")
}

func TestCollect_projectionErrorsAreTolerated(t *testing.T) {
	c := NewCollector(fakeStats{stats: &storage.Stats{Clauses: 1}}, WithGraph(fakeGraph{err: errors.New("bolt closed")}))
	st, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.GraphNodes)
	assert.EqualValues(t, 1, st.ProjectionLag())
}
