package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

// ListingStore reads the scraped catalog and the read models joined to the ledger.
type ListingStore interface {
	ListPending(ctx context.Context, query domain.PendingQuery) ([]domain.Listing, error)
	ListPortfolio(ctx context.Context, query domain.PortfolioQuery) ([]domain.PortfolioItem, error)
	FilterVocabulary(ctx context.Context) (domain.FilterVocabulary, error)
	// CorrectCoreData overwrites title, dates and prices in place. It returns
	// ErrListingNotFound when no listing matches.
	CorrectCoreData(ctx context.Context, ref domain.ListingRef, correction domain.ListingCorrection) error
}

// ListingCatalog ingests scraped listings. Seq is assigned on first insert
// and kept on updates.
type ListingCatalog interface {
	UpsertListing(ctx context.Context, listing domain.Listing) (int64, error)
}

// EvaluationLedger persists workflow state. Writes are last-write-wins; there
// is no optimistic concurrency token.
type EvaluationLedger interface {
	// WithinTx runs fn in one storage transaction. A non-nil error from fn
	// rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	// AdvanceState overwrites the state of an existing row and reports whether
	// a row matched. It never inserts.
	AdvanceState(ctx context.Context, key domain.EvaluationKey, state domain.State, at time.Time) (bool, error)
	CountByState(ctx context.Context) (map[domain.State]int, error)
}

// LedgerTx is the transactional view used by batch triage.
type LedgerTx interface {
	ResolveListing(ctx context.Context, ref domain.ListingRef) (int64, bool, error)
	ResolveListingByID(ctx context.Context, listingID string) (int64, bool, error)
	// UpsertEvaluation inserts or overwrites the row for rec's key.
	UpsertEvaluation(ctx context.Context, rec domain.EvaluationRecord) error
}

// AnalysisStore persists deep analyses keyed by (site, listing id).
type AnalysisStore interface {
	// GetAnalysis returns ErrAnalysisNotFound when nothing is stored.
	GetAnalysis(ctx context.Context, ref domain.ListingRef) (*domain.DeepAnalysis, error)
	ListAnalyses(ctx context.Context, refs []domain.ListingRef) (map[string]domain.DeepAnalysis, error)
	// UpsertAnalysis overwrites every field except the key and owner; last write wins.
	UpsertAnalysis(ctx context.Context, analysis domain.DeepAnalysis) error
}

// EventPublisher emits workflow events after commit.
type EventPublisher interface {
	PublishWorkflowEvent(ctx context.Context, event domain.WorkflowEvent) error
}

// EventSubscriber delivers workflow events to a handler until ctx is done.
type EventSubscriber interface {
	SubscribeWorkflowEvents(ctx context.Context, handler func(context.Context, domain.WorkflowEvent) error) error
}

// AuditStore persists the workflow audit trail. Appends are idempotent by event id.
type AuditStore interface {
	AppendEvent(ctx context.Context, event domain.WorkflowEvent) error
	ListEvents(ctx context.Context, ref domain.ListingRef, limit int) ([]domain.WorkflowEvent, error)
}

// Guarded operation names. Each gets its own breaker and metric label.
const (
	OpCountByState = "ledger.count_by_state"
	OpPublishEvent = "events.publish"
)

// CallGuard wraps a storage call with circuit breaking.
type CallGuard interface {
	Do(ctx context.Context, operation string, fn func(context.Context) error) error
}

// WorkflowObserver receives workflow counters.
type WorkflowObserver interface {
	RecordBatchDecision(decision domain.State, written, skipped int)
	RecordTransition(state domain.State, matched bool)
	RecordStatsDegraded()
	RecordEventPublish(kind domain.EventKind, err error)
	RecordAnalysisSaved()
}

// PortfolioWriter renders portfolio rows into a document format.
type PortfolioWriter interface {
	WritePortfolio(w io.Writer, items []domain.PortfolioItem, analyses map[string]domain.DeepAnalysis) error
}

// ObjectStorage stores exported files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
