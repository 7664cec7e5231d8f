package models

import (
	"fmt"
	"strings"
	"time"
)

// Classification is the deterministic label assigned to a query.
type Classification int

const (
	ClassificationUnknown Classification = iota
	ClassificationExact
	ClassificationSemantic
)

// String returns the wire name of the classification.
func (c Classification) String() string {
	switch c {
	case ClassificationExact:
		return "EXACT"
	case ClassificationSemantic:
		return "SEMANTIC"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Strategy is the retrieval algorithm chosen for a query.
type Strategy int

const (
	// StrategyNone is only used in refused responses.
	StrategyNone Strategy = iota
	// StrategyExactLookup retrieves clauses keyed by clause number.
	StrategyExactLookup
	// StrategyVector ranks chunks by cosine distance to the query embedding.
	StrategyVector
	// StrategyHybrid fuses exact, keyword and vector rankings.
	StrategyHybrid
)

// String returns the wire name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyExactLookup:
		return "EXACT_LOOKUP"
	case StrategyVector:
		return "VECTOR"
	case StrategyHybrid:
		return "HYBRID"
	default:
		return "NONE"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStrategy parses a strategy name case-insensitively. The empty string parses as StrategyNone.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "":
		return StrategyNone, nil
	case "EXACT_LOOKUP", "EXACT":
		return StrategyExactLookup, nil
	case "VECTOR":
		return StrategyVector, nil
	case "HYBRID":
		return StrategyHybrid, nil
	default:
		return StrategyNone, fmt.Errorf("unknown strategy %q (supported: EXACT_LOOKUP, VECTOR, HYBRID)", name)
	}
}

// Status is the terminal status reported to callers.
type Status string

const (
	StatusAnswered Status = "ANSWERED"
	StatusError    Status = "ERROR"
	StatusRefused  Status = "REFUSED"
)

// State is a controller state machine state.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateValidated        State = "VALIDATED"
	StateClassified       State = "CLASSIFIED"
	StateStrategySelected State = "STRATEGY_SELECTED"
	StateAnswered         State = "ANSWERED"
	StateErrored          State = "ERRORED"
	StateRefused          State = "REFUSED"
	StateLogged           State = "LOGGED"
)

// RefusedQueryID is the sentinel query ID used for refused requests.
const RefusedQueryID = "N/A"

// QueryRequest is the input to the query controller.
type QueryRequest struct {
	TenderID        string `json:"tender_id"`
	Query           string `json:"query"`
	InterfaceSource string `json:"interface_source,omitempty"`
	// Strategy optionally overrides the selected strategy. StrategyNone means "select automatically".
	Strategy Strategy `json:"strategy,omitempty"`
}

// Validate checks the hard preconditions: a tender ID and a non-blank query.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.TenderID) == "" {
		return fmt.Errorf("%w: tender_id is required", ErrValidation)
	}
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrValidation)
	}
	return nil
}

// QueryContext is the per-request record carried through the controller and emitted to the audit log.
type QueryContext struct {
	QueryID         string         `json:"query_id"`
	TenderID        string         `json:"tender_id"`
	RawQuery        string         `json:"raw_query"`
	InterfaceSource string         `json:"interface_source"`
	Timestamp       time.Time      `json:"timestamp"`
	Classification  Classification `json:"classification"`
	Strategy        Strategy       `json:"strategy"`
	State           State          `json:"state"`
	Status          Status         `json:"status,omitempty"`
	RefusalReason   string         `json:"refusal_reason,omitempty"`
	Answer          string         `json:"answer,omitempty"`
}

// QueryResponse is the structured response produced for every terminal state.
type QueryResponse struct {
	QueryID        string `json:"query_id"`
	Answer         string `json:"answer"`
	Classification string `json:"classification"`
	Strategy       string `json:"strategy"`
	Status         Status `json:"status"`
	// RefusalReason carries the internal failure cause for ERROR responses. It is never serialized.
	RefusalReason string `json:"-"`
}
