package types

import "time"

// Outcome is the terminal state of one execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Diagnostics describes what was sent and received, with secrets masked.
type Diagnostics struct {
	Request             map[string]any `json:"request" yaml:"request"`
	Response            map[string]any `json:"response" yaml:"response"`
	ExecutionTimeMillis int64          `json:"executionTimeMillis" yaml:"executionTimeMillis"`
}

// NewDiagnostics returns diagnostics with empty buckets.
func NewDiagnostics() Diagnostics {
	return Diagnostics{Request: map[string]any{}, Response: map[string]any{}}
}

// ExecutionResult is emitted exactly once per execution.
type ExecutionResult struct {
	ID           string         `json:"id" yaml:"id"`
	Connector    string         `json:"connector" yaml:"connector"`
	Connection   string         `json:"connection,omitempty" yaml:"connection,omitempty"`
	Outcome      Outcome        `json:"outcome" yaml:"outcome"`
	Payload      map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	ErrorKind    string         `json:"errorKind,omitempty" yaml:"errorKind,omitempty"`
	ErrorTitle   string         `json:"errorTitle,omitempty" yaml:"errorTitle,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	ErrorDetails map[string]any `json:"errorDetails,omitempty" yaml:"errorDetails,omitempty"`
	Diagnostics  Diagnostics    `json:"diagnostics" yaml:"diagnostics"`
	StartedAt    time.Time      `json:"startedAt" yaml:"startedAt"`
}

// Succeeded reports whether the execution produced a payload.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}
