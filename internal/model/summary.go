package model

// Action classifies what the reconciler did with one incoming record
type Action string

const (
	ActionInserted       Action = "inserted"
	ActionUpdated        Action = "updated"
	ActionUpdatedClaimed Action = "updated_claimed"
	ActionSkippedManual  Action = "skipped_manual"
)

// ReconcileResult summarises one reconciler call
type ReconcileResult struct {
	Action        Action   `json:"action"`
	ID            int64    `json:"id"`
	FieldsWritten []string `json:"fields_written,omitempty"`
}

// SyncSummary is the user-visible outcome of one pipeline run
type SyncSummary struct {
	Success            bool   `json:"success"`
	Message            string `json:"message,omitempty"`
	CorrelationID      string `json:"correlation_id,omitempty"`
	CarnivalsProcessed int    `json:"carnivals_processed"`
	CarnivalsCreated   int    `json:"carnivals_created"`
	CarnivalsUpdated   int    `json:"carnivals_updated"`
	Skipped            int    `json:"skipped"`
	DurationMs         int64  `json:"duration_ms"`
	Mock               bool   `json:"mock,omitempty"`
	Partial            bool   `json:"partial,omitempty"`
}
