package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

const analysisColumns = `site, listing_id, user_id, legal_opinion, risk, defendant_served, creditors_notified,
	condo_debt, property_tax_debt, debt_subrogated, occupancy, estimated_resale_value, renovation_cost, eviction_cost, updated_at`

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) GetAnalysis(ctx context.Context, ref domain.ListingRef) (*domain.DeepAnalysis, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+analysisColumns+`
FROM deep_analysis
WHERE site = $1 AND listing_id = $2
`, ref.Site, ref.ListingID)

	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAnalysisNotFound, "get deep analysis", fmt.Errorf("site=%s listing_id=%s", ref.Site, ref.ListingID))
		}
		return nil, fmt.Errorf("get deep analysis: %w", err)
	}
	return &a, nil
}

func (r *AnalysisRepository) ListAnalyses(ctx context.Context, refs []domain.ListingRef) (map[string]domain.DeepAnalysis, error) {
	out := make(map[string]domain.DeepAnalysis, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	args := &queryArgs{}
	tuples := make([]string, 0, len(refs))
	for _, ref := range refs {
		tuples = append(tuples, "("+args.add(ref.Site)+","+args.add(ref.ListingID)+")")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+analysisColumns+`
FROM deep_analysis
WHERE (site, listing_id) IN (`+strings.Join(tuples, ",")+`)
`, args.values...)
	if err != nil {
		return nil, fmt.Errorf("list deep analyses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deep analysis: %w", err)
		}
		out[domain.UniqueID(a.Site, a.ListingID)] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deep analyses: %w", err)
	}
	return out, nil
}

// UpsertAnalysis overwrites everything except the key and the creator.
func (r *AnalysisRepository) UpsertAnalysis(ctx context.Context, a domain.DeepAnalysis) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO deep_analysis (`+analysisColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (site, listing_id) DO UPDATE SET
	legal_opinion = EXCLUDED.legal_opinion,
	risk = EXCLUDED.risk,
	defendant_served = EXCLUDED.defendant_served,
	creditors_notified = EXCLUDED.creditors_notified,
	condo_debt = EXCLUDED.condo_debt,
	property_tax_debt = EXCLUDED.property_tax_debt,
	debt_subrogated = EXCLUDED.debt_subrogated,
	occupancy = EXCLUDED.occupancy,
	estimated_resale_value = EXCLUDED.estimated_resale_value,
	renovation_cost = EXCLUDED.renovation_cost,
	eviction_cost = EXCLUDED.eviction_cost,
	updated_at = EXCLUDED.updated_at
`,
		a.Site, a.ListingID, a.UserID, a.LegalOpinion, a.Risk.RawValue(), a.DefendantServed, a.CreditorsNotified,
		a.CondoDebt, a.PropertyTaxDebt, a.DebtSubrogated, a.Occupancy.RawValue(),
		a.EstimatedResaleValue, a.RenovationCost, a.EvictionCost, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert deep analysis: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAnalysis maps stored labels back to enums. Unrecognised labels fall back
// to the form defaults.
func scanAnalysis(row rowScanner) (domain.DeepAnalysis, error) {
	var a domain.DeepAnalysis
	var risk, occupancy string
	err := row.Scan(
		&a.Site, &a.ListingID, &a.UserID, &a.LegalOpinion, &risk, &a.DefendantServed, &a.CreditorsNotified,
		&a.CondoDebt, &a.PropertyTaxDebt, &a.DebtSubrogated, &occupancy,
		&a.EstimatedResaleValue, &a.RenovationCost, &a.EvictionCost, &a.UpdatedAt,
	)
	if err != nil {
		return domain.DeepAnalysis{}, err
	}
	if a.Risk, err = domain.ParseRiskLevel(risk); err != nil {
		a.Risk = domain.RiskLow
	}
	if a.Occupancy, err = domain.ParseOccupancyStatus(occupancy); err != nil {
		a.Occupancy = domain.OccupancyVacant
	}
	return a, nil
}
