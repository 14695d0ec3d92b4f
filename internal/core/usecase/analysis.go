package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

type AnalysisUseCase struct {
	store ports.AnalysisStore
	opts  WorkflowOptions
}

func NewAnalysisUseCase(store ports.AnalysisStore, opts WorkflowOptions) *AnalysisUseCase {
	return &AnalysisUseCase{
		store: store,
		opts:  opts.normalize(),
	}
}

// FetchDeepAnalysis returns the stored record or fresh defaults when the
// listing was never analysed.
func (uc *AnalysisUseCase) FetchDeepAnalysis(ctx context.Context, userID, site, listingID string) (domain.DeepAnalysis, error) {
	analysis, err := uc.store.GetAnalysis(ctx, domain.ListingRef{Site: site, ListingID: listingID})
	if err != nil {
		if domain.IsKind(err, domain.ErrAnalysisNotFound) {
			fresh := domain.NewDeepAnalysis(userID, site, listingID)
			fresh.UpdatedAt = uc.opts.Clock()
			return fresh, nil
		}
		return domain.DeepAnalysis{}, fmt.Errorf("fetch deep analysis: %w", err)
	}
	return *analysis, nil
}

// SaveDeepAnalysis upserts by (site, listing id). UpdatedAt is stamped here;
// the caller's value is ignored.
func (uc *AnalysisUseCase) SaveDeepAnalysis(ctx context.Context, analysis domain.DeepAnalysis) error {
	if strings.TrimSpace(analysis.Site) == "" || strings.TrimSpace(analysis.ListingID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save deep analysis", errors.New("site and listing id are required"))
	}

	normalized, err := normalizeAnalysis(analysis)
	if err != nil {
		return err
	}
	normalized.UpdatedAt = uc.opts.Clock()

	if err := uc.store.UpsertAnalysis(ctx, normalized); err != nil {
		return fmt.Errorf("save deep analysis: %w", err)
	}
	uc.opts.Observer.RecordAnalysisSaved()
	uc.opts.publish(ctx, newEvent(
		domain.EventAnalysisSaved,
		normalized.UserID,
		normalized.Site,
		normalized.ListingID,
		"",
		normalized.UpdatedAt,
		map[string]any{"risk": normalized.Risk, "occupancy": normalized.Occupancy},
	))
	return nil
}

func normalizeAnalysis(in domain.DeepAnalysis) (domain.DeepAnalysis, error) {
	out := in
	risk, err := domain.ParseRiskLevel(string(in.Risk))
	if err != nil {
		return domain.DeepAnalysis{}, fmt.Errorf("save deep analysis: %w", err)
	}
	occupancy, err := domain.ParseOccupancyStatus(string(in.Occupancy))
	if err != nil {
		return domain.DeepAnalysis{}, fmt.Errorf("save deep analysis: %w", err)
	}
	out.Risk = risk
	out.Occupancy = occupancy
	return out, nil
}
