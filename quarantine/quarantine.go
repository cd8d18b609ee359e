// Package quarantine wraps untrusted content with provenance and risk
// metadata so that callers cannot accidentally treat it as trusted data.
// Every value that crosses a trust boundary (user input, tool output, a
// retrieved document) is wrapped here before it reaches any other guard
// component, and must be explicitly unwrapped with a reason before use.
package quarantine

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Source identifies where a piece of content originated. It is a closed
// set: callers cannot construct arbitrary sources, only select one of the
// named constants below.
type Source string

// Content source constants, closed set per the data model.
const (
	SourceUserInput     Source = "user_input"
	SourceAPIResponse   Source = "api_response"
	SourceWebContent    Source = "web_content"
	SourceEmail         Source = "email"
	SourceFileUpload    Source = "file_upload"
	SourceDatabase      Source = "database"
	SourceRAGRetrieval  Source = "rag_retrieval"
	SourceToolOutput    Source = "tool_output"
	SourceMCPToolOutput Source = "mcp_tool_output"
	SourceModelOutput   Source = "model_output"
	SourceUnknown       Source = "unknown"
)

// Risk is the inferred or overridden trust level of a quarantined value.
type Risk string

// Risk level constants, ordered low to critical.
const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

// defaultRisk maps each ContentSource to its default RiskLevel absent an
// explicit override.
var defaultRisk = map[Source]Risk{
	SourceUserInput:     RiskHigh,
	SourceEmail:         RiskHigh,
	SourceWebContent:    RiskHigh,
	SourceUnknown:       RiskHigh,
	SourceAPIResponse:   RiskMedium,
	SourceToolOutput:    RiskMedium,
	SourceMCPToolOutput: RiskMedium,
	SourceModelOutput:   RiskMedium,
	SourceDatabase:      RiskLow,
	SourceRAGRetrieval:  RiskLow,
	SourceFileUpload:    RiskLow,
}

// DefaultRisk returns the default risk level for a content source, or
// RiskHigh if the source is not recognized.
func DefaultRisk(s Source) Risk {
	if r, ok := defaultRisk[s]; ok {
		return r
	}
	return RiskHigh
}

// ErrInvalidUnwrapReason is returned by Unwrap when the caller supplies an
// empty reason string.
var ErrInvalidUnwrapReason = errors.New("quarantine: unwrap requires a non-empty reason")

// Q wraps a value of type T with provenance and risk metadata. The zero
// value is not usable; construct with Wrap. Fields are unexported so that
// the only way to reach the underlying value is through Unwrap, which
// demands a reason.
type Q[T any] struct {
	value     T
	source    Source
	risk      Risk
	id        string
	timestamp time.Time
}

// Wrap constructs a quarantined value. If risk is omitted, it is inferred
// from source via DefaultRisk. The returned value is immutable.
func Wrap[T any](value T, source Source, risk ...Risk) Q[T] {
	r := DefaultRisk(source)
	if len(risk) > 0 && risk[0] != "" {
		r = risk[0]
	}
	return Q[T]{
		value:     value,
		source:    source,
		risk:      r,
		id:        uuid.NewString(),
		timestamp: time.Now().UTC(),
	}
}

// Unwrap returns the underlying value. reason must be non-empty; it exists
// so every trust-boundary crossing leaves a trail a reviewer or auditor
// can follow back to its justification.
func Unwrap[T any](q Q[T], reason string) (T, error) {
	var zero T
	if reason == "" {
		return zero, ErrInvalidUnwrapReason
	}
	return q.value, nil
}

// Source returns the content source the value was wrapped with.
func (q Q[T]) Source() Source { return q.source }

// Risk returns the risk level the value was wrapped with.
func (q Q[T]) Risk() Risk { return q.risk }

// ID returns the unique identifier assigned at construction.
func (q Q[T]) ID() string { return q.id }

// Timestamp returns the construction time, UTC.
func (q Q[T]) Timestamp() time.Time { return q.timestamp }

// IsQuarantined reports whether x is a Q[T] for some T. It exists for
// callers operating on interface{}-typed values (e.g. generic pipeline
// stages) that need to detect quarantine wrapping without knowing T.
func IsQuarantined(x any) bool {
	switch x.(type) {
	case Q[string]:
		return true
	default:
		return false
	}
}
