// Package status collects corpus and store statistics for the status endpoint and command.
package status

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/storage"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

// StatsSource is the relational store's statistics.
type StatsSource interface {
	Stats(ctx context.Context) (*storage.Stats, error)
}

// NodeCounter counts graph nodes.
type NodeCounter interface {
	Count() (int, error)
}

// DocCounter counts keyword index entries.
type DocCounter interface {
	DocCount() (uint64, error)
}

// Backlog reports queued ingests.
type Backlog interface {
	Pending() int
}

// Collector gathers a models.SystemStatus. Only the store is required.
type Collector struct {
	store   StatsSource
	graph   NodeCounter
	keyword DocCounter
	queue   Backlog
	paths   map[string]string
	logger  *zap.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithGraph adds the graph node count.
func WithGraph(g NodeCounter) Option { return func(c *Collector) { c.graph = g } }

// WithKeyword adds the keyword document count.
func WithKeyword(k DocCounter) Option { return func(c *Collector) { c.keyword = k } }

// WithQueue adds the ingest backlog.
func WithQueue(q Backlog) Option { return func(c *Collector) { c.queue = q } }

// WithPaths measures the disk usage of the named paths.
func WithPaths(paths map[string]string) Option { return func(c *Collector) { c.paths = paths } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Collector) { c.logger = utils.OrNop(l) } }

// NewCollector creates a collector over store.
func NewCollector(store StatsSource, opts ...Option) *Collector {
	c := &Collector{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect returns the current status. Store failures are errors; projection and disk
// failures are logged and leave their fields zero.
func (c *Collector) Collect(ctx context.Context) (*models.SystemStatus, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("store stats: %w", err)
	}
	st := &models.SystemStatus{
		Tenders:   stats.Tenders,
		Documents: stats.Documents,
		Clauses:   stats.Clauses,
		Chunks:    stats.Chunks,
		Dimension: stats.Dimension,
	}
	if c.graph != nil {
		if n, err := c.graph.Count(); err != nil {
			c.logger.Warn("status: count graph nodes failed", zap.Error(err))
		} else {
			st.GraphNodes = n
		}
	}
	if c.keyword != nil {
		if n, err := c.keyword.DocCount(); err != nil {
			c.logger.Warn("status: count keyword docs failed", zap.Error(err))
		} else {
			st.KeywordDocs = n
		}
	}
	if c.queue != nil {
		st.PendingIngests = c.queue.Pending()
	}
	if len(c.paths) > 0 {
		usage, err := storage.MeasureDiskUsage(c.paths)
		if err != nil {
			c.logger.Warn("status: disk usage failed", zap.Error(err))
		} else {
			st.DiskUsage = usage.Paths
			st.DiskUsageTotal = usage.Total
		}
	}
	return st, nil
}
