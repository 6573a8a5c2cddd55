package models

import "time"

// RecordStatus is the terminal state of a persisted review run.
type RecordStatus string

const (
	RecordStatusPassed  RecordStatus = "passed"
	RecordStatusFailed  RecordStatus = "failed"
	RecordStatusTimeout RecordStatus = "timeout"
	RecordStatusError   RecordStatus = "error"
)

// ReviewRecord is one review run kept in the history store.
type ReviewRecord struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"request_id"`
	UserInput  string         `json:"user_input"`
	Code       string         `json:"code"`
	Status     RecordStatus   `json:"status"`
	Result     Decision       `json:"result"`
	Passed     bool           `json:"passed"`
	Error      string         `json:"error,omitempty"`
	Outcome    *ReviewOutcome `json:"outcome,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}
