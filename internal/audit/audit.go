// Package audit writes the governance record of every accepted query.
package audit

import (
	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

// LoggerName is the zap logger name audit records are written under.
const LoggerName = "audit"

// Logger emits audit records as structured zap entries.
type Logger struct {
	logger *zap.Logger
}

// New returns an audit logger derived from base. A nil base discards records.
func New(base *zap.Logger) *Logger {
	return &Logger{logger: utils.OrNop(base).Named(LoggerName)}
}

// Record writes the audit record for a classified query whose strategy has been selected.
func (l *Logger) Record(qc *models.QueryContext) {
	l.logger.Info("query accepted",
		zap.String("query_id", qc.QueryID),
		zap.String("tender_id", qc.TenderID),
		zap.String("classification", qc.Classification.String()),
		zap.String("strategy", qc.Strategy.String()),
		zap.String("query", qc.RawQuery),
		zap.String("interface_source", qc.InterfaceSource),
		zap.Time("timestamp", qc.Timestamp),
	)
}
