package domain

import (
	"fmt"
	"strings"
	"time"
)

// State is the workflow state of a listing for a reviewer. PENDING is never
// persisted: a listing without a ledger row is pending.
type State string

const (
	StatePending    State = "PENDING"
	StateAnalisar   State = "ANALISAR"
	StateParticipar State = "PARTICIPAR"
	StateDescartar  State = "DESCARTAR"
	StateNoBid      State = "NO_BID"
)

// PortfolioStates are the ledger states visible in deep review.
var PortfolioStates = []State{StateAnalisar, StateParticipar, StateNoBid}

// ParseState accepts any casing, since older rows were written as "Analisar".
func ParseState(raw string) (State, error) {
	switch State(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatePending:
		return StatePending, nil
	case StateAnalisar:
		return StateAnalisar, nil
	case StateParticipar:
		return StateParticipar, nil
	case StateDescartar:
		return StateDescartar, nil
	case StateNoBid:
		return StateNoBid, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse state", fmt.Errorf("unknown state %q", raw))
	}
}

// RawValue is the persisted form.
func (s State) RawValue() string {
	return string(s)
}

// IsTriageDecision reports whether s is a valid SubmitBatchDecision target.
func (s State) IsTriageDecision() bool {
	return s == StateAnalisar || s == StateDescartar
}

// IsAnalysisOutcome reports whether s is a valid AdvanceStatus target.
func (s State) IsAnalysisOutcome() bool {
	return s == StateParticipar || s == StateNoBid
}

func (s State) IsPortfolio() bool {
	for _, p := range PortfolioStates {
		if s == p {
			return true
		}
	}
	return false
}

// EvaluationKey identifies one ledger row.
type EvaluationKey struct {
	UserID    string `json:"user_id"`
	Site      string `json:"site"`
	ListingID string `json:"listing_id"`
}

// EvaluationRecord is the ledger row. RawID points at the resolved Listing.Seq.
type EvaluationRecord struct {
	EvaluationKey
	RawID     int64     `json:"raw_id"`
	State     State     `json:"state"`
	DecidedAt time.Time `json:"decided_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scope controls whether reads join the ledger for every reviewer or only for
// the caller.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopePerUser Scope = "per-user"
)

func ParseScope(raw string) Scope {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "per-user", "per_user", "user":
		return ScopePerUser
	default:
		return ScopeGlobal
	}
}

// PortfolioItem is a listing annotated with its ledger state. Evaluation is
// the ledger row key, which keeps the submitted site when the listing was
// resolved by id alone; AdvanceStatus must be called with it.
type PortfolioItem struct {
	Listing
	State      State         `json:"state"`
	Evaluation EvaluationKey `json:"evaluation"`
	DecidedAt  time.Time     `json:"decided_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type PortfolioView struct {
	Items []PortfolioItem `json:"items"`
}

// ByState returns the subset currently in state s.
func (v PortfolioView) ByState(s State) []PortfolioItem {
	out := make([]PortfolioItem, 0)
	for _, item := range v.Items {
		if item.State == s {
			out = append(out, item)
		}
	}
	return out
}

// Stats feeds the triage dashboard.
type Stats struct {
	Queued         int `json:"queued"`
	Discarded      int `json:"discarded"`
	TotalProcessed int `json:"total_processed"`
}

func NewStats(counts map[State]int) Stats {
	s := Stats{
		Queued:    counts[StateAnalisar],
		Discarded: counts[StateDescartar],
	}
	s.TotalProcessed = s.Queued + s.Discarded
	return s
}

// PendingQuery selects listings without a ledger row.
type PendingQuery struct {
	UserID string
	Scope  Scope
	Filter ListingFilter
	Limit  int
}

// PortfolioQuery selects listings joined to ledger rows in States.
type PortfolioQuery struct {
	UserID string
	Scope  Scope
	States []State
}
