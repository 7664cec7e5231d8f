// Package controller runs the query state machine: validate, classify, select a strategy,
// audit, answer through the agent and shape the response.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/agent"
	"github.com/hyperjump/tenderwise/internal/audit"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/query"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

// Fixed response texts.
const (
	RefusedAnswer         = "Invalid Request: Missing tender_id or empty query."
	RefusedClassification = "REJECTED"
	ErrorAnswer           = "I encountered an error processing your request."
)

// TenderResolver maps a tender reference (ID or name) to the stored tender.
type TenderResolver interface {
	ResolveTender(ctx context.Context, ref string) (*models.Tender, error)
}

// Controller turns query requests into responses. It holds no per-request state and is safe
// for concurrent use.
type Controller struct {
	agent        agent.Agent
	audit        *audit.Logger
	resolver     TenderResolver
	logger       *zap.Logger
	queryTimeout time.Duration
	agentTimeout time.Duration
	now          func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the operational logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = utils.OrNop(l) }
}

// WithAudit sets the audit sink.
func WithAudit(a *audit.Logger) Option {
	return func(c *Controller) {
		if a != nil {
			c.audit = a
		}
	}
}

// WithTenderResolver lets callers address tenders by name as well as by ID.
func WithTenderResolver(r TenderResolver) Option {
	return func(c *Controller) { c.resolver = r }
}

// WithTimeouts bounds the whole request and the agent call. Zero disables a bound.
func WithTimeouts(queryTimeout, agentTimeout time.Duration) Option {
	return func(c *Controller) {
		c.queryTimeout = queryTimeout
		c.agentTimeout = agentTimeout
	}
}

// New creates a controller answering through a.
func New(a agent.Agent, opts ...Option) *Controller {
	c := &Controller{
		agent:  a,
		audit:  audit.New(nil),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit answers q against tenderID, recording source as the interface it arrived on.
func (c *Controller) Submit(ctx context.Context, tenderID, q, source string) models.QueryResponse {
	return c.Handle(ctx, models.QueryRequest{TenderID: tenderID, Query: q, InterfaceSource: source})
}

// Handle runs one request through the state machine. It always returns a response; failures
// are reported through Status.
func (c *Controller) Handle(ctx context.Context, req models.QueryRequest) models.QueryResponse {
	start := c.now()
	qc := &models.QueryContext{
		TenderID:        req.TenderID,
		RawQuery:        req.Query,
		InterfaceSource: req.InterfaceSource,
		Timestamp:       start,
		State:           models.StateReceived,
	}

	if err := req.Validate(); err != nil {
		qc.State = models.StateRefused
		c.logger.Info("query refused",
			zap.String("query_id", models.RefusedQueryID),
			zap.String("interface_source", req.InterfaceSource),
			zap.Error(err))
		return refused()
	}
	qc.QueryID = uuid.New().String()
	qc.State = models.StateValidated

	qc.Classification = query.Classify(req.Query)
	qc.State = models.StateClassified

	qc.Strategy = query.SelectWithOverride(qc.Classification, req.Strategy)
	qc.State = models.StateStrategySelected

	c.audit.Record(qc)

	answer, err := c.answer(ctx, qc)
	if err != nil {
		qc.State = models.StateErrored
		qc.Status = models.StatusError
		qc.RefusalReason = err.Error()
		qc.Answer = ErrorAnswer
	} else {
		qc.State = models.StateAnswered
		qc.Status = models.StatusAnswered
		qc.Answer = answer
	}

	resp := models.QueryResponse{
		QueryID:        qc.QueryID,
		Answer:         qc.Answer,
		Classification: qc.Classification.String(),
		Strategy:       qc.Strategy.String(),
		Status:         qc.Status,
		RefusalReason:  qc.RefusalReason,
	}
	qc.State = models.StateLogged
	fields := []zap.Field{
		zap.String("query_id", qc.QueryID),
		zap.String("status", string(qc.Status)),
		zap.Duration("duration", c.now().Sub(start)),
	}
	if err != nil {
		c.logger.Warn("query failed", append(fields, zap.Error(err))...)
	} else {
		c.logger.Info("query completed", fields...)
	}
	return resp
}

func (c *Controller) answer(ctx context.Context, qc *models.QueryContext) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panic: %v", r)
		}
	}()

	ctx, cancel := withTimeout(ctx, c.queryTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("query cancelled: %w", err)
	}

	tenderID := qc.TenderID
	if c.resolver != nil {
		t, err := c.resolver.ResolveTender(ctx, tenderID)
		switch {
		case err == nil:
			tenderID = t.ID
		case errors.Is(err, models.ErrNotFound):
			// unknown tenders retrieve nothing
		default:
			return "", fmt.Errorf("resolve tender: %w", err)
		}
	}

	actx, acancel := withTimeout(ctx, c.agentTimeout)
	defer acancel()
	answer, err = c.agent.Answer(actx, agent.Request{TenderID: tenderID, Query: qc.RawQuery, Strategy: qc.Strategy})
	if err != nil {
		return "", err
	}
	if cerr := actx.Err(); cerr != nil {
		return "", fmt.Errorf("query cancelled: %w", cerr)
	}
	return answer, nil
}

func refused() models.QueryResponse {
	return models.QueryResponse{
		QueryID:        models.RefusedQueryID,
		Answer:         RefusedAnswer,
		Classification: RefusedClassification,
		Strategy:       models.StrategyNone.String(),
		Status:         models.StatusRefused,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
