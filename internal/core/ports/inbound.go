package ports

import (
	"context"
	"io"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

// TriageService is the inbound contract for the first review pass.
type TriageService interface {
	FetchPendingQueue(ctx context.Context, userID string, filter domain.ListingFilter) ([]domain.Listing, error)
	SubmitBatchDecision(ctx context.Context, userID string, items []domain.ListingRef, decision domain.State) (int, error)
	FetchFilterVocabulary(ctx context.Context) (domain.FilterVocabulary, error)
	// FetchStats never fails; storage errors degrade to zero counts.
	FetchStats(ctx context.Context, userID string) domain.Stats
}

// PortfolioService is the inbound contract for deep review.
type PortfolioService interface {
	FetchPortfolio(ctx context.Context, userID string) (domain.PortfolioView, error)
	AdvanceStatus(ctx context.Context, userID, site, listingID string, newState domain.State) error
}

// AnalysisService reads and writes the shared deep-analysis record.
type AnalysisService interface {
	FetchDeepAnalysis(ctx context.Context, userID, site, listingID string) (domain.DeepAnalysis, error)
	SaveDeepAnalysis(ctx context.Context, analysis domain.DeepAnalysis) error
}

// ListingCorrector fixes scraped core data of a listing already in the workflow.
type ListingCorrector interface {
	CorrectListingCoreData(ctx context.Context, site, listingID string, fields domain.ListingCorrection) error
}

// PortfolioExporter renders the portfolio with its analyses as a spreadsheet.
type PortfolioExporter interface {
	ExportPortfolio(ctx context.Context, userID string, w io.Writer) (int, error)
}

// AuditService records and reads the workflow audit trail.
type AuditService interface {
	Record(ctx context.Context, event domain.WorkflowEvent) error
	History(ctx context.Context, site, listingID string, limit int) ([]domain.WorkflowEvent, error)
}
