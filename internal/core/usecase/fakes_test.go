package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type listingStoreFake struct {
	pending         []domain.Listing
	portfolio       []domain.PortfolioItem
	vocab           domain.FilterVocabulary
	err             error
	correctErr      error
	pendingQuery    domain.PendingQuery
	portfolioQuery  domain.PortfolioQuery
	correctedRef    domain.ListingRef
	correctedFields domain.ListingCorrection
	correctCalls    int
}

func (f *listingStoreFake) ListPending(_ context.Context, query domain.PendingQuery) ([]domain.Listing, error) {
	f.pendingQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.pending, nil
}

func (f *listingStoreFake) ListPortfolio(_ context.Context, query domain.PortfolioQuery) ([]domain.PortfolioItem, error) {
	f.portfolioQuery = query
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.PortfolioItem, len(f.portfolio))
	copy(out, f.portfolio)
	return out, nil
}

func (f *listingStoreFake) FilterVocabulary(context.Context) (domain.FilterVocabulary, error) {
	if f.err != nil {
		return domain.FilterVocabulary{}, f.err
	}
	return f.vocab, nil
}

func (f *listingStoreFake) CorrectCoreData(_ context.Context, ref domain.ListingRef, correction domain.ListingCorrection) error {
	f.correctCalls++
	if f.correctErr != nil {
		return f.correctErr
	}
	f.correctedRef = ref
	f.correctedFields = correction
	return nil
}

// ledgerFake stages writes inside WithinTx and commits them only when fn succeeds.
type ledgerFake struct {
	exact      map[domain.ListingRef]int64
	byID       map[string]int64
	rows       map[domain.EvaluationKey]domain.EvaluationRecord
	resolveErr error
	upsertErr  error
	advanceErr error
	counts     map[domain.State]int
	countErr   error
	txCount    int
}

func newLedgerFake() *ledgerFake {
	return &ledgerFake{
		exact: make(map[domain.ListingRef]int64),
		byID:  make(map[string]int64),
		rows:  make(map[domain.EvaluationKey]domain.EvaluationRecord),
	}
}

func (f *ledgerFake) WithinTx(ctx context.Context, fn func(context.Context, ports.LedgerTx) error) error {
	f.txCount++
	staged := make(map[domain.EvaluationKey]domain.EvaluationRecord, len(f.rows))
	for k, v := range f.rows {
		staged[k] = v
	}
	if err := fn(ctx, &ledgerTxFake{ledger: f, staged: staged}); err != nil {
		return err
	}
	f.rows = staged
	return nil
}

func (f *ledgerFake) AdvanceState(_ context.Context, key domain.EvaluationKey, state domain.State, at time.Time) (bool, error) {
	if f.advanceErr != nil {
		return false, f.advanceErr
	}
	rec, ok := f.rows[key]
	if !ok {
		return false, nil
	}
	rec.State = state
	rec.UpdatedAt = at
	f.rows[key] = rec
	return true, nil
}

func (f *ledgerFake) CountByState(context.Context) (map[domain.State]int, error) {
	if f.countErr != nil {
		return nil, f.countErr
	}
	return f.counts, nil
}

type ledgerTxFake struct {
	ledger *ledgerFake
	staged map[domain.EvaluationKey]domain.EvaluationRecord
}

func (tx *ledgerTxFake) ResolveListing(_ context.Context, ref domain.ListingRef) (int64, bool, error) {
	if tx.ledger.resolveErr != nil {
		return 0, false, tx.ledger.resolveErr
	}
	id, ok := tx.ledger.exact[ref]
	return id, ok, nil
}

func (tx *ledgerTxFake) ResolveListingByID(_ context.Context, listingID string) (int64, bool, error) {
	id, ok := tx.ledger.byID[listingID]
	return id, ok, nil
}

func (tx *ledgerTxFake) UpsertEvaluation(_ context.Context, rec domain.EvaluationRecord) error {
	if tx.ledger.upsertErr != nil {
		return tx.ledger.upsertErr
	}
	tx.staged[rec.EvaluationKey] = rec
	return nil
}

type analysisStoreFake struct {
	stored    map[domain.ListingRef]domain.DeepAnalysis
	getErr    error
	upsertErr error
	listErr   error
	listRefs  []domain.ListingRef
}

func newAnalysisStoreFake() *analysisStoreFake {
	return &analysisStoreFake{stored: make(map[domain.ListingRef]domain.DeepAnalysis)}
}

func (f *analysisStoreFake) GetAnalysis(_ context.Context, ref domain.ListingRef) (*domain.DeepAnalysis, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.stored[ref]
	if !ok {
		return nil, domain.WrapError(domain.ErrAnalysisNotFound, "get analysis", context.Canceled)
	}
	return &a, nil
}

func (f *analysisStoreFake) ListAnalyses(_ context.Context, refs []domain.ListingRef) (map[string]domain.DeepAnalysis, error) {
	f.listRefs = refs
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]domain.DeepAnalysis)
	for _, ref := range refs {
		if a, ok := f.stored[ref]; ok {
			out[domain.UniqueID(ref.Site, ref.ListingID)] = a
		}
	}
	return out, nil
}

func (f *analysisStoreFake) UpsertAnalysis(_ context.Context, analysis domain.DeepAnalysis) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.stored[domain.ListingRef{Site: analysis.Site, ListingID: analysis.ListingID}] = analysis
	return nil
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.WorkflowEvent
	err    error
}

func (f *publisherFake) PublishWorkflowEvent(_ context.Context, event domain.WorkflowEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type observerFake struct {
	batchWritten  int
	batchSkipped  int
	transitions   map[bool]int
	statsDegraded int
	publishErrors int
	analysisSaved int
}

func newObserverFake() *observerFake {
	return &observerFake{transitions: make(map[bool]int)}
}

func (f *observerFake) RecordBatchDecision(_ domain.State, written, skipped int) {
	f.batchWritten += written
	f.batchSkipped += skipped
}

func (f *observerFake) RecordTransition(_ domain.State, matched bool) { f.transitions[matched]++ }
func (f *observerFake) RecordStatsDegraded() { f.statsDegraded++ }
func (f *observerFake) RecordAnalysisSaved() { f.analysisSaved++ }

func (f *observerFake) RecordEventPublish(_ domain.EventKind, err error) {
	if err != nil {
		f.publishErrors++
	}
}

type guardFake struct {
	calls        []string
	shortCircuit error
}

func (g *guardFake) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	g.calls = append(g.calls, operation)
	if g.shortCircuit != nil {
		return g.shortCircuit
	}
	return fn(ctx)
}
