package domain

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	EventEvaluationDecided EventKind = "evaluation.decided"
	EventEvaluationAdvance EventKind = "evaluation.advanced"
	EventAnalysisSaved     EventKind = "analysis.saved"
	EventListingCorrected  EventKind = "listing.corrected"
)

// WorkflowEvent is emitted after a workflow write commits. It feeds the audit
// trail and is never read back by the engine.
type WorkflowEvent struct {
	ID         string          `json:"id"`
	Kind       EventKind       `json:"kind"`
	UserID     string          `json:"user_id,omitempty"`
	Site       string          `json:"site"`
	ListingID  string          `json:"listing_id"`
	State      State           `json:"state,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
