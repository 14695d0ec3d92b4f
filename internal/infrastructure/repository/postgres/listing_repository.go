package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

const listingColumns = `l.raw_id, l.site, l.listing_id, l.title, l.uf, l.city, l.auction_type, l.asset_type,
	l.first_round_price, l.second_round_price, l.detail_url, l.cover_image_url, l.first_round_at, l.second_round_at`

type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// ListPending returns listings without a ledger row, newest first. In
// per-user scope only the caller's rows hide a listing.
func (r *ListingRepository) ListPending(ctx context.Context, query domain.PendingQuery) ([]domain.Listing, error) {
	args := &queryArgs{}
	join := "e.raw_id = l.raw_id"
	if query.Scope == domain.ScopePerUser {
		join += " AND e.user_id = " + args.add(query.UserID)
	}

	where := []string{"e.raw_id IS NULL"}
	for _, f := range []struct {
		column string
		set    []string
	}{
		{"l.uf", query.Filter.UFs},
		{"l.city", query.Filter.Cities},
		{"l.asset_type", query.Filter.AssetTypes},
		{"l.site", query.Filter.Sites},
		{"l.auction_type", query.Filter.AuctionTypes},
	} {
		if len(f.set) > 0 {
			where = append(where, args.in(f.column, f.set))
		}
	}
	limit := args.add(query.Limit)

	stmt := `
SELECT ` + listingColumns + `
FROM listings l
LEFT JOIN evaluations e ON ` + join + `
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY l.raw_id DESC
LIMIT ` + limit

	rows, err := r.db.QueryContext(ctx, stmt, args.values...)
	if err != nil {
		return nil, fmt.Errorf("query pending listings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Listing, 0)
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(listingDest(&l)...); err != nil {
			return nil, fmt.Errorf("scan pending listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending listings: %w", err)
	}
	return out, nil
}

func (r *ListingRepository) ListPortfolio(ctx context.Context, query domain.PortfolioQuery) ([]domain.PortfolioItem, error) {
	args := &queryArgs{}
	states := make([]string, 0, len(query.States))
	for _, s := range query.States {
		states = append(states, s.RawValue())
	}
	where := []string{args.in("UPPER(e.state)", states)}
	if query.Scope == domain.ScopePerUser {
		where = append(where, "e.user_id = "+args.add(query.UserID))
	}

	stmt := `
SELECT ` + listingColumns + `, e.state, e.user_id, e.site, e.listing_id, e.decided_at, e.updated_at
FROM evaluations e
JOIN listings l ON l.raw_id = e.raw_id
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY e.updated_at DESC, l.raw_id DESC`

	rows, err := r.db.QueryContext(ctx, stmt, args.values...)
	if err != nil {
		return nil, fmt.Errorf("query portfolio: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PortfolioItem, 0)
	for rows.Next() {
		var item domain.PortfolioItem
		var state string
		dest := append(listingDest(&item.Listing), &state, &item.Evaluation.UserID, &item.Evaluation.Site, &item.Evaluation.ListingID, &item.DecidedAt, &item.UpdatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan portfolio item: %w", err)
		}
		item.State = domain.State(state)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio: %w", err)
	}
	return out, nil
}

func (r *ListingRepository) FilterVocabulary(ctx context.Context) (domain.FilterVocabulary, error) {
	var vocab domain.FilterVocabulary
	for _, f := range []struct {
		column string
		dest   *[]string
	}{
		{"uf", &vocab.UFs},
		{"city", &vocab.Cities},
		{"asset_type", &vocab.AssetTypes},
		{"site", &vocab.Sites},
		{"auction_type", &vocab.AuctionTypes},
	} {
		values, err := r.distinct(ctx, f.column)
		if err != nil {
			return domain.FilterVocabulary{}, err
		}
		*f.dest = values
	}
	return vocab, nil
}

func (r *ListingRepository) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT `+column+` FROM listings WHERE `+column+` <> '' ORDER BY `+column)
	if err != nil {
		return nil, fmt.Errorf("query distinct %s: %w", column, err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct %s: %w", column, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct %s: %w", column, err)
	}
	return out, nil
}

func (r *ListingRepository) CorrectCoreData(ctx context.Context, ref domain.ListingRef, correction domain.ListingCorrection) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE listings
SET title = $3, first_round_at = $4, second_round_at = $5, first_round_price = $6, second_round_price = $7
WHERE site = $1 AND listing_id = $2
`, ref.Site, ref.ListingID, correction.Title, correction.FirstRoundAt, correction.SecondRoundAt,
		correction.FirstRoundPrice, correction.SecondRoundPrice)
	if err != nil {
		return fmt.Errorf("update listing core data: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update listing core data rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrListingNotFound, "update listing core data", fmt.Errorf("site=%s listing_id=%s", ref.Site, ref.ListingID))
	}
	return nil
}

// UpsertListing is the ingestion entry point used by imports. Seq is assigned
// by the database on first insert and kept on updates.
func (r *ListingRepository) UpsertListing(ctx context.Context, l domain.Listing) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO listings (
	site, listing_id, title, uf, city, auction_type, asset_type,
	first_round_price, second_round_price, detail_url, cover_image_url, first_round_at, second_round_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (site, listing_id) DO UPDATE SET
	title = EXCLUDED.title,
	uf = EXCLUDED.uf,
	city = EXCLUDED.city,
	auction_type = EXCLUDED.auction_type,
	asset_type = EXCLUDED.asset_type,
	first_round_price = EXCLUDED.first_round_price,
	second_round_price = EXCLUDED.second_round_price,
	detail_url = EXCLUDED.detail_url,
	cover_image_url = EXCLUDED.cover_image_url,
	first_round_at = EXCLUDED.first_round_at,
	second_round_at = EXCLUDED.second_round_at
RETURNING raw_id
`, l.Site, l.ListingID, l.Title, l.UF, l.City, l.AuctionType, l.AssetType,
		l.FirstRoundPrice, l.SecondRoundPrice, l.DetailURL, l.CoverImageURL, l.FirstRoundAt, l.SecondRoundAt)

	var rawID int64
	if err := row.Scan(&rawID); err != nil {
		return 0, fmt.Errorf("upsert listing: %w", err)
	}
	return rawID, nil
}

func listingDest(l *domain.Listing) []any {
	return []any{
		&l.Seq, &l.Site, &l.ListingID, &l.Title, &l.UF, &l.City, &l.AuctionType, &l.AssetType,
		&l.FirstRoundPrice, &l.SecondRoundPrice, &l.DetailURL, &l.CoverImageURL, &l.FirstRoundAt, &l.SecondRoundAt,
	}
}
