package httpadapter

import (
	"context"
	"io"
	"net/http"

	"github.com/kirillkom/garimpo-judicial/internal/config"
	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

type triageFake struct {
	pending []domain.Listing
	vocab   domain.FilterVocabulary
	stats   domain.Stats
	written int
	err     error

	gotUserID   string
	gotFilter   domain.ListingFilter
	gotItems    []domain.ListingRef
	gotDecision domain.State
}

func (f *triageFake) FetchPendingQueue(_ context.Context, userID string, filter domain.ListingFilter) ([]domain.Listing, error) {
	f.gotUserID = userID
	f.gotFilter = filter
	return f.pending, f.err
}

func (f *triageFake) SubmitBatchDecision(_ context.Context, userID string, items []domain.ListingRef, decision domain.State) (int, error) {
	f.gotUserID = userID
	f.gotItems = items
	f.gotDecision = decision
	return f.written, f.err
}

func (f *triageFake) FetchFilterVocabulary(context.Context) (domain.FilterVocabulary, error) {
	return f.vocab, f.err
}

func (f *triageFake) FetchStats(_ context.Context, userID string) domain.Stats {
	f.gotUserID = userID
	return f.stats
}

type portfolioFake struct {
	view domain.PortfolioView
	err  error

	advancedUser  string
	advancedRef   domain.ListingRef
	advancedState domain.State
}

func (f *portfolioFake) FetchPortfolio(context.Context, string) (domain.PortfolioView, error) {
	return f.view, f.err
}

func (f *portfolioFake) AdvanceStatus(_ context.Context, userID, site, listingID string, newState domain.State) error {
	f.advancedUser = userID
	f.advancedRef = domain.ListingRef{Site: site, ListingID: listingID}
	f.advancedState = newState
	return f.err
}

type analysisFake struct {
	stored domain.DeepAnalysis
	saved  *domain.DeepAnalysis
	err    error
}

func (f *analysisFake) FetchDeepAnalysis(_ context.Context, userID, site, listingID string) (domain.DeepAnalysis, error) {
	if f.err != nil {
		return domain.DeepAnalysis{}, f.err
	}
	if f.stored.Site == "" {
		return domain.NewDeepAnalysis(userID, site, listingID), nil
	}
	return f.stored, nil
}

func (f *analysisFake) SaveDeepAnalysis(_ context.Context, analysis domain.DeepAnalysis) error {
	f.saved = &analysis
	return f.err
}

type correctorFake struct {
	gotRef        domain.ListingRef
	gotCorrection domain.ListingCorrection
	err           error
}

func (f *correctorFake) CorrectListingCoreData(_ context.Context, site, listingID string, fields domain.ListingCorrection) error {
	f.gotRef = domain.ListingRef{Site: site, ListingID: listingID}
	f.gotCorrection = fields
	return f.err
}

type exporterFake struct {
	rows int
	err  error
}

func (f *exporterFake) ExportPortfolio(_ context.Context, _ string, w io.Writer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	_, _ = w.Write([]byte("PK-fake-workbook"))
	return f.rows, nil
}

type auditFake struct {
	events   []domain.WorkflowEvent
	gotLimit int
	err      error
}

func (f *auditFake) Record(context.Context, domain.WorkflowEvent) error { return f.err }

func (f *auditFake) History(_ context.Context, _, _ string, limit int) ([]domain.WorkflowEvent, error) {
	f.gotLimit = limit
	return f.events, f.err
}

type testServices struct {
	triage    *triageFake
	portfolio *portfolioFake
	analysis  *analysisFake
	corrector *correctorFake
	exporter  *exporterFake
	audit     *auditFake
}

func newTestServices() *testServices {
	return &testServices{
		triage:    &triageFake{},
		portfolio: &portfolioFake{},
		analysis:  &analysisFake{},
		corrector: &correctorFake{},
		exporter:  &exporterFake{},
		audit:     &auditFake{},
	}
}

func (s *testServices) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Triage:    s.triage,
		Portfolio: s.portfolio,
		Analysis:  s.analysis,
		Listings:  s.corrector,
		Exporter:  s.exporter,
		Audit:     s.audit,
	}, Options{Service: "test"}).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestServices().handler(cfg)
}
