package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/agent"
	"github.com/hyperjump/tenderwise/internal/audit"
	"github.com/hyperjump/tenderwise/internal/config"
	"github.com/hyperjump/tenderwise/internal/controller"
	"github.com/hyperjump/tenderwise/internal/embedding"
	"github.com/hyperjump/tenderwise/internal/extract"
	"github.com/hyperjump/tenderwise/internal/graph"
	"github.com/hyperjump/tenderwise/internal/indexer"
	"github.com/hyperjump/tenderwise/internal/keyword"
	"github.com/hyperjump/tenderwise/internal/retrieval"
	"github.com/hyperjump/tenderwise/internal/status"
	"github.com/hyperjump/tenderwise/internal/storage"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

const queueDrainTimeout = 30 * time.Second

// Components holds initialized services. It is the only owner of their lifecycles.
type Components struct {
	Config     *config.Config
	Store      *storage.SQLiteStore
	Embedder   embedding.Embedder
	Keyword    *keyword.BleveIndex
	Graph      *graph.Store
	Indexer    *indexer.Indexer
	Queue      *indexer.Queue
	Engine     *retrieval.Engine
	Agent      agent.Agent
	Controller *controller.Controller
	Status     *status.Collector
}

// Close releases every component, draining queued ingests first.
func (c *Components) Close() {
	if c.Queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), queueDrainTimeout)
		_ = c.Queue.Close(ctx)
		cancel()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Graph != nil {
		_ = c.Graph.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	logger = utils.OrNop(logger)
	c := &Components{Config: cfg}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.Store, err = storage.NewSQLiteStore(cfg.Storage.DatabasePath); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if c.Embedder, err = embedding.NewFromConfig(cfg.Embedding, cfg.Timeouts.Embed, logger.Named("embedding")); err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if c.Keyword, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath); err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	if c.Graph, err = graph.Open(cfg.Storage.GraphPath); err != nil {
		return nil, fmt.Errorf("failed to initialize graph store: %w", err)
	}

	c.Indexer = indexer.NewIndexer(c.Store, extract.NewExtractor(), c.Embedder,
		indexer.WithGraph(c.Graph),
		indexer.WithKeywordIndex(c.Keyword),
		indexer.WithEmbedTimeout(cfg.Timeouts.Embed),
		indexer.WithLogger(logger.Named("indexer")),
	)
	c.Queue = indexer.NewQueue(c.Indexer, cfg.Ingest.Workers, cfg.Ingest.QueueSize,
		indexer.WithJobHistory(cfg.Ingest.JobHistory),
		indexer.WithQueueLogger(logger.Named("queue")))

	c.Engine = retrieval.NewEngine(c.Store, c.Embedder,
		retrieval.WithKeywordIndex(c.Keyword),
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithRRFK(float64(cfg.Retrieval.RRFK)),
		retrieval.WithKeywordCandidates(cfg.Retrieval.KeywordCandidates),
		retrieval.WithFuzzyKeywords(cfg.Retrieval.FuzzyKeywords),
		retrieval.WithTimeouts(cfg.Timeouts.Embed, cfg.Timeouts.Store),
		retrieval.WithLogger(logger.Named("retrieval")),
	)
	if c.Agent, err = agent.NewFromConfig(cfg.Agent, agent.NewToolbox(c.Engine, cfg.Retrieval.TopK), logger.Named("agent")); err != nil {
		return nil, fmt.Errorf("failed to initialize agent: %w", err)
	}
	c.Controller = controller.New(c.Agent,
		controller.WithAudit(audit.New(logger)),
		controller.WithTenderResolver(c.Store),
		controller.WithTimeouts(cfg.Timeouts.Query, cfg.Timeouts.Agent),
		controller.WithLogger(logger.Named("controller")),
	)

	c.Status = status.NewCollector(c.Store,
		status.WithGraph(c.Graph),
		status.WithKeyword(c.Keyword),
		status.WithQueue(c.Queue),
		status.WithPaths(map[string]string{
			"database": cfg.Storage.DatabasePath,
			"keyword":  cfg.Storage.BleveIndexPath,
			"graph":    cfg.Storage.GraphPath,
			"uploads":  cfg.Storage.UploadDir,
		}),
		status.WithLogger(logger.Named("status")),
	)
	return c, nil
}

// acceptsUpload reports whether files with ext are both allowed by config and parseable.
func acceptsUpload(cfg *config.Config) func(ext string) bool {
	return func(ext string) bool {
		return extract.Supported(ext) && cfg.Ingest.Supports(ext)
	}
}
