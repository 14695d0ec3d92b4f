package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

type PortfolioUseCase struct {
	listings ports.ListingStore
	ledger   ports.EvaluationLedger
	opts     WorkflowOptions
}

func NewPortfolioUseCase(listings ports.ListingStore, ledger ports.EvaluationLedger, opts WorkflowOptions) *PortfolioUseCase {
	return &PortfolioUseCase{
		listings: listings,
		ledger:   ledger,
		opts:     opts.normalize(),
	}
}

func (uc *PortfolioUseCase) FetchPortfolio(ctx context.Context, userID string) (domain.PortfolioView, error) {
	items, err := uc.listings.ListPortfolio(ctx, domain.PortfolioQuery{
		UserID: userID,
		Scope:  uc.opts.Scope,
		States: domain.PortfolioStates,
	})
	if err != nil {
		return domain.PortfolioView{}, fmt.Errorf("fetch portfolio: %w", err)
	}
	for i := range items {
		items[i].State = domain.State(strings.ToUpper(string(items[i].State)))
	}
	return domain.PortfolioView{Items: items}, nil
}

// AdvanceStatus overwrites the state of an existing ledger row. The source
// state is not checked. A missing row is left missing.
func (uc *PortfolioUseCase) AdvanceStatus(ctx context.Context, userID, site, listingID string, newState domain.State) error {
	if !newState.IsAnalysisOutcome() {
		return domain.WrapError(domain.ErrInvalidInput, "advance status", fmt.Errorf("state %q is not an analysis outcome", newState))
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(listingID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "advance status", errors.New("user id and listing id are required"))
	}

	now := uc.opts.Clock()
	key := domain.EvaluationKey{UserID: userID, Site: site, ListingID: listingID}
	matched, err := uc.ledger.AdvanceState(ctx, key, newState, now)
	if err != nil {
		return fmt.Errorf("advance status: %w", err)
	}
	uc.opts.Observer.RecordTransition(newState, matched)
	if !matched {
		uc.opts.Logger.Info("advance_status_no_row", "user_id", userID, "site", site, "listing_id", listingID, "state", newState)
		return nil
	}

	uc.opts.publish(ctx, newEvent(domain.EventEvaluationAdvance, userID, site, listingID, newState, now, nil))
	return nil
}

// PortfolioExportUseCase joins the portfolio with analyses and hands the rows
// to a document writer.
type PortfolioExportUseCase struct {
	portfolio *PortfolioUseCase
	analyses  ports.AnalysisStore
	writer    ports.PortfolioWriter
}

func NewPortfolioExportUseCase(portfolio *PortfolioUseCase, analyses ports.AnalysisStore, writer ports.PortfolioWriter) *PortfolioExportUseCase {
	return &PortfolioExportUseCase{
		portfolio: portfolio,
		analyses:  analyses,
		writer:    writer,
	}
}

func (uc *PortfolioExportUseCase) ExportPortfolio(ctx context.Context, userID string, w io.Writer) (int, error) {
	view, err := uc.portfolio.FetchPortfolio(ctx, userID)
	if err != nil {
		return 0, err
	}

	refs := make([]domain.ListingRef, 0, len(view.Items))
	seen := make(map[string]struct{}, len(view.Items))
	for _, item := range view.Items {
		if _, ok := seen[item.UniqueID()]; ok {
			continue
		}
		seen[item.UniqueID()] = struct{}{}
		refs = append(refs, domain.ListingRef{Site: item.Site, ListingID: item.ListingID})
	}

	analyses, err := uc.analyses.ListAnalyses(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("list analyses for export: %w", err)
	}
	if err := uc.writer.WritePortfolio(w, view.Items, analyses); err != nil {
		return 0, fmt.Errorf("write portfolio export: %w", err)
	}
	return len(view.Items), nil
}
