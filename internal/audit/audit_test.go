package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/tenderwise/internal/models"
)

func TestLogger_Record(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a := New(zap.New(core))

	a.Record(&models.QueryContext{
		QueryID:         "q-1",
		TenderID:        "T1",
		RawQuery:        "What does Clause 5.1 say?",
		InterfaceSource: "API",
		Timestamp:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Classification:  models.ClassificationExact,
		Strategy:        models.StrategyExactLookup,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, LoggerName, e.LoggerName)
	fields := e.ContextMap()
	assert.Equal(t, "q-1", fields["query_id"])
	assert.Equal(t, "T1", fields["tender_id"])
	assert.Equal(t, "EXACT", fields["classification"])
	assert.Equal(t, "EXACT_LOOKUP", fields["strategy"])
	assert.Equal(t, "What does Clause 5.1 say?", fields["query"])
}

func TestNew_nilBase(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil).Record(&models.QueryContext{QueryID: "x"})
	})
}
