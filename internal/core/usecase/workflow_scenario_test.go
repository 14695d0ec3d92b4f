package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/repository/memory"
)

type workflowHarness struct {
	store     *memory.Store
	triage    *TriageUseCase
	portfolio *PortfolioUseCase
	analysis  *AnalysisUseCase
}

func newWorkflowHarness(scope domain.Scope) *workflowHarness {
	store := memory.NewStore()
	opts := WorkflowOptions{Scope: scope}
	return &workflowHarness{
		store:     store,
		triage:    NewTriageUseCase(store, store, nil, opts),
		portfolio: NewPortfolioUseCase(store, store, opts),
		analysis:  NewAnalysisUseCase(store, opts),
	}
}

// ledgerRows counts ledger rows through the stats aggregate.
func (h *workflowHarness) ledgerRows(t *testing.T) int {
	t.Helper()
	counts, err := h.store.CountByState(context.Background())
	if err != nil {
		t.Fatalf("CountByState() error = %v", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// failingCountLedger serves the memory ledger but fails the stats aggregate.
type failingCountLedger struct {
	*memory.Store
	err error
}

func (l failingCountLedger) CountByState(context.Context) (map[domain.State]int, error) {
	return nil, l.err
}

func (h *workflowHarness) seed(site, id, uf string) {
	h.store.AddListing(domain.Listing{
		Site:            site,
		ListingID:       id,
		Title:           "Casa " + id,
		UF:              uf,
		City:            "Campinas",
		AssetType:       "Casa",
		FirstRoundPrice: decimal.NewFromInt(100000),
	})
}

func pendingIDs(listings []domain.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.UniqueID())
	}
	return out
}

func TestScenarioTriageMovesListingIntoPortfolio(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "1", "SP")
	h.seed("A", "2", "SP")
	h.seed("B", "3", "MG")

	pending, err := h.triage.FetchPendingQueue(ctx, "u1", domain.ListingFilter{})
	if err != nil {
		t.Fatalf("FetchPendingQueue() error = %v", err)
	}
	if got := pendingIDs(pending); len(got) != 3 || got[0] != "B_3" || got[2] != "A_1" {
		t.Fatalf("expected newest first, got %v", got)
	}

	n, err := h.triage.SubmitBatchDecision(ctx, "u1", []domain.ListingRef{{Site: "A", ListingID: "1"}}, domain.StateAnalisar)
	if err != nil || n != 1 {
		t.Fatalf("SubmitBatchDecision() = (%d, %v)", n, err)
	}
	if _, err := h.triage.SubmitBatchDecision(ctx, "u1", []domain.ListingRef{{Site: "A", ListingID: "2"}}, domain.StateDescartar); err != nil {
		t.Fatalf("SubmitBatchDecision() error = %v", err)
	}

	pending, _ = h.triage.FetchPendingQueue(ctx, "u1", domain.ListingFilter{})
	if got := pendingIDs(pending); len(got) != 1 || got[0] != "B_3" {
		t.Fatalf("expected only B_3 pending, got %v", got)
	}

	view, err := h.portfolio.FetchPortfolio(ctx, "u1")
	if err != nil {
		t.Fatalf("FetchPortfolio() error = %v", err)
	}
	if got := view.ByState(domain.StateAnalisar); len(got) != 1 || got[0].UniqueID() != "A_1" {
		t.Fatalf("expected A_1 in analysis bucket, got %+v", got)
	}
	if len(view.Items) != 1 {
		t.Fatalf("discarded listings must not appear in portfolio, got %d items", len(view.Items))
	}

	stats := h.triage.FetchStats(ctx, "u1")
	if stats != (domain.Stats{Queued: 1, Discarded: 1, TotalProcessed: 2}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestScenarioGlobalScopeHidesOtherReviewersDecisions(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "1", "SP")
	h.seed("A", "2", "SP")

	if _, err := h.triage.SubmitBatchDecision(ctx, "u1", []domain.ListingRef{{Site: "A", ListingID: "1"}}, domain.StateDescartar); err != nil {
		t.Fatalf("SubmitBatchDecision() error = %v", err)
	}

	pending, _ := h.triage.FetchPendingQueue(ctx, "u2", domain.ListingFilter{})
	if got := pendingIDs(pending); len(got) != 1 || got[0] != "A_2" {
		t.Fatalf("expected u2 to see only A_2, got %v", got)
	}
}

func TestScenarioPerUserScopeKeepsQueuesIndependent(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopePerUser)
	h.seed("A", "1", "SP")

	if _, err := h.triage.SubmitBatchDecision(ctx, "u1", []domain.ListingRef{{Site: "A", ListingID: "1"}}, domain.StateAnalisar); err != nil {
		t.Fatalf("SubmitBatchDecision() error = %v", err)
	}

	pending, _ := h.triage.FetchPendingQueue(ctx, "u2", domain.ListingFilter{})
	if len(pending) != 1 {
		t.Fatalf("expected u2 to still see A_1, got %v", pendingIDs(pending))
	}
	view, _ := h.portfolio.FetchPortfolio(ctx, "u2")
	if len(view.Items) != 0 {
		t.Fatalf("expected empty portfolio for u2, got %d", len(view.Items))
	}
}

func TestScenarioResubmittingKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "1", "SP")
	ref := []domain.ListingRef{{Site: "A", ListingID: "1"}}

	for i := 0; i < 3; i++ {
		if _, err := h.triage.SubmitBatchDecision(ctx, "u1", ref, domain.StateAnalisar); err != nil {
			t.Fatalf("SubmitBatchDecision() error = %v", err)
		}
	}
	if h.ledgerRows(t) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", h.ledgerRows(t))
	}
}

func TestScenarioUnresolvableItemWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "1", "SP")

	n, err := h.triage.SubmitBatchDecision(ctx, "u1", []domain.ListingRef{{Site: "Z", ListingID: "nope"}}, domain.StateAnalisar)
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil), got (%d, %v)", n, err)
	}
	if h.ledgerRows(t) != 0 {
		t.Fatalf("expected empty ledger")
	}
}

func TestScenarioFallbackResolvesAcrossSites(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "77", "SP")

	n, err := h.triage.SubmitBatchDecision(ctx, "u1", []domain.ListingRef{{Site: "a", ListingID: "77"}}, domain.StateAnalisar)
	if err != nil || n != 1 {
		t.Fatalf("expected fallback write, got (%d, %v)", n, err)
	}
	view, _ := h.portfolio.FetchPortfolio(ctx, "u1")
	want := domain.EvaluationKey{UserID: "u1", Site: "a", ListingID: "77"}
	if len(view.Items) != 1 || view.Items[0].Seq != 1 || view.Items[0].Evaluation != want {
		t.Fatalf("expected row keyed %+v linked to seq 1, got %+v", want, view.Items)
	}
	pending, _ := h.triage.FetchPendingQueue(ctx, "u1", domain.ListingFilter{})
	if len(pending) != 0 {
		t.Fatalf("expected A_77 to leave the queue, got %v", pendingIDs(pending))
	}
}

func TestScenarioFallbackItemAdvancesThroughEvaluationKey(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "77", "SP")

	if _, err := h.triage.SubmitBatchDecision(ctx, "u1", []domain.ListingRef{{Site: "B", ListingID: "77"}}, domain.StateAnalisar); err != nil {
		t.Fatalf("SubmitBatchDecision() error = %v", err)
	}
	view, _ := h.portfolio.FetchPortfolio(ctx, "u1")
	if len(view.Items) != 1 {
		t.Fatalf("expected one portfolio item, got %+v", view.Items)
	}
	item := view.Items[0]
	if item.Site != "A" || item.Evaluation.Site != "B" || item.Evaluation.ListingID != "77" {
		t.Fatalf("expected listing A/77 keyed as B/77, got listing %s key %+v", item.UniqueID(), item.Evaluation)
	}

	if err := h.portfolio.AdvanceStatus(ctx, item.Evaluation.UserID, item.Evaluation.Site, item.Evaluation.ListingID, domain.StateParticipar); err != nil {
		t.Fatalf("AdvanceStatus() error = %v", err)
	}
	view, _ = h.portfolio.FetchPortfolio(ctx, "u1")
	if got := view.ByState(domain.StateParticipar); len(got) != 1 || got[0].Site != "A" {
		t.Fatalf("expected A/77 in PARTICIPAR, got %+v", view.Items)
	}
	if len(view.ByState(domain.StateAnalisar)) != 0 {
		t.Fatalf("expected nothing left in ANALISAR, got %+v", view.Items)
	}
}

func TestScenarioAdvanceToParticipar(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "1", "SP")

	if _, err := h.triage.SubmitBatchDecision(ctx, "u1", []domain.ListingRef{{Site: "A", ListingID: "1"}}, domain.StateAnalisar); err != nil {
		t.Fatalf("SubmitBatchDecision() error = %v", err)
	}
	if err := h.portfolio.AdvanceStatus(ctx, "u1", "A", "1", domain.StateParticipar); err != nil {
		t.Fatalf("AdvanceStatus() error = %v", err)
	}

	view, _ := h.portfolio.FetchPortfolio(ctx, "u1")
	if len(view.ByState(domain.StateAnalisar)) != 0 || len(view.ByState(domain.StateParticipar)) != 1 {
		t.Fatalf("expected listing moved to PARTICIPAR, got %+v", view.Items)
	}
	if stats := h.triage.FetchStats(ctx, "u1"); stats.Queued != 0 || stats.TotalProcessed != 0 {
		t.Fatalf("advanced listings are not counted as queued: %+v", stats)
	}
}

func TestScenarioAdvanceWithoutRowCreatesNothing(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "1", "SP")

	if err := h.portfolio.AdvanceStatus(ctx, "u1", "A", "1", domain.StateNoBid); err != nil {
		t.Fatalf("AdvanceStatus() error = %v", err)
	}
	if h.ledgerRows(t) != 0 {
		t.Fatalf("expected no phantom row, got %d", h.ledgerRows(t))
	}
	pending, _ := h.triage.FetchPendingQueue(ctx, "u1", domain.ListingFilter{})
	if len(pending) != 1 {
		t.Fatalf("expected listing still pending")
	}
}

func TestScenarioDeepAnalysisRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "1", "SP")

	draft, err := h.analysis.FetchDeepAnalysis(ctx, "u1", "A", "1")
	if err != nil {
		t.Fatalf("FetchDeepAnalysis() error = %v", err)
	}
	draft.LegalOpinion = "sem ônus"
	draft.Risk = domain.RiskHigh
	draft.Occupancy = domain.OccupancyOccupiedByOwner
	draft.DebtSubrogated = false
	draft.CondoDebt = decimal.RequireFromString("1234.56")
	before := draft.UpdatedAt

	if err := h.analysis.SaveDeepAnalysis(ctx, draft); err != nil {
		t.Fatalf("SaveDeepAnalysis() error = %v", err)
	}
	got, err := h.analysis.FetchDeepAnalysis(ctx, "u2", "A", "1")
	if err != nil {
		t.Fatalf("FetchDeepAnalysis() error = %v", err)
	}
	if got.LegalOpinion != "sem ônus" || got.Risk != domain.RiskHigh || got.Occupancy != domain.OccupancyOccupiedByOwner {
		t.Fatalf("unexpected round trip: %+v", got)
	}
	if got.DebtSubrogated || !got.CondoDebt.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("unexpected debt fields: %+v", got)
	}
	if got.UserID != "u1" {
		t.Fatalf("expected creator preserved, got %q", got.UserID)
	}
	if got.UpdatedAt.Before(before) {
		t.Fatalf("expected UpdatedAt >= %v, got %v", before, got.UpdatedAt)
	}
}

func TestScenarioStatsDegradeWhenLedgerFails(t *testing.T) {
	h := newWorkflowHarness(domain.ScopeGlobal)
	ledger := failingCountLedger{Store: h.store, err: errors.New("db unavailable")}
	triage := NewTriageUseCase(h.store, ledger, nil, WorkflowOptions{Scope: domain.ScopeGlobal})

	if stats := triage.FetchStats(context.Background(), "u1"); stats != (domain.Stats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestScenarioFilterRestrictsPending(t *testing.T) {
	ctx := context.Background()
	h := newWorkflowHarness(domain.ScopeGlobal)
	h.seed("A", "1", "SP")
	h.seed("A", "2", "MG")

	pending, err := h.triage.FetchPendingQueue(ctx, "u1", domain.ListingFilter{UFs: []string{"MG"}})
	if err != nil {
		t.Fatalf("FetchPendingQueue() error = %v", err)
	}
	if got := pendingIDs(pending); len(got) != 1 || got[0] != "A_2" {
		t.Fatalf("expected only MG listing, got %v", got)
	}

	vocab, err := h.triage.FetchFilterVocabulary(ctx)
	if err != nil {
		t.Fatalf("FetchFilterVocabulary() error = %v", err)
	}
	if len(vocab.UFs) != 2 || vocab.UFs[0] != "MG" || vocab.UFs[1] != "SP" {
		t.Fatalf("expected sorted states, got %v", vocab.UFs)
	}
}
