// Package server provides the HTTP API for tenderwise.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/config"
	"github.com/hyperjump/tenderwise/internal/indexer"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

// maxUploadBytes bounds a multipart upload.
const maxUploadBytes = 64 << 20

// QueryHandler answers query requests.
type QueryHandler interface {
	Handle(ctx context.Context, req models.QueryRequest) models.QueryResponse
}

// IngestQueue accepts uploaded files for background ingestion.
type IngestQueue interface {
	Submit(path, tenderName string) (indexer.Ack, error)
	Status(id string) (indexer.Job, bool)
}

// TenderLister lists known tenders.
type TenderLister interface {
	ListTenders(ctx context.Context) ([]*models.Tender, error)
}

// ClauseGetter returns a projected clause by ID.
type ClauseGetter interface {
	Get(ctx context.Context, clauseID string) (*models.GraphNode, error)
}

// StatusProvider reports system status.
type StatusProvider interface {
	Collect(ctx context.Context) (*models.SystemStatus, error)
}

// Server is the HTTP server for the tenderwise API.
type Server struct {
	queries   QueryHandler
	queue     IngestQueue
	uploadDir string
	accept    func(ext string) bool
	tenders   TenderLister
	clauses   ClauseGetter
	status    StatusProvider
	timeout   time.Duration
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = utils.OrNop(l) }
}

// WithIngestQueue enables uploads. Files are saved under uploadDir before being queued.
func WithIngestQueue(q IngestQueue, uploadDir string) Option {
	return func(s *Server) {
		s.queue = q
		s.uploadDir = uploadDir
	}
}

// WithUploadFilter rejects uploads whose extension accept returns false for.
func WithUploadFilter(accept func(ext string) bool) Option {
	return func(s *Server) { s.accept = accept }
}

// WithTenders enables GET /api/v1/tenders.
func WithTenders(l TenderLister) Option {
	return func(s *Server) { s.tenders = l }
}

// WithClauses enables GET /api/v1/clauses/{id}.
func WithClauses(g ClauseGetter) Option {
	return func(s *Server) { s.clauses = g }
}

// WithStatus enables GET /api/v1/status.
func WithStatus(p StatusProvider) Option {
	return func(s *Server) { s.status = p }
}

// WithRequestTimeout sets the per-request deadline applied by the router.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer creates a server answering queries through queries.
func NewServer(cfg *config.ServerConfig, queries QueryHandler, opts ...Option) *Server {
	s := &Server{
		queries: queries,
		timeout: 120 * time.Second,
		config:  cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/ingest", s.handleIngest)
		r.Get("/ingest/{id}", s.handleIngestStatus)
		r.Get("/tenders", s.handleListTenders)
		r.Get("/clauses/{id}", s.handleGetClause)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
