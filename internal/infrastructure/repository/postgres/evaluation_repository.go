package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

type EvaluationRepository struct {
	db *sql.DB
}

func NewEvaluationRepository(db *sql.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

func (r *EvaluationRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) AdvanceState(ctx context.Context, key domain.EvaluationKey, state domain.State, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
UPDATE evaluations
SET state = $4, updated_at = $5
WHERE user_id = $1 AND site = $2 AND listing_id = $3
`, key.UserID, key.Site, key.ListingID, state.RawValue(), at)
	if err != nil {
		return false, fmt.Errorf("advance evaluation state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance evaluation state rows affected: %w", err)
	}
	return affected > 0, nil
}

// CountByState groups case-insensitively so legacy "Analisar" rows are counted.
func (r *EvaluationRepository) CountByState(ctx context.Context) (map[domain.State]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT UPPER(state), COUNT(*)
FROM evaluations
GROUP BY UPPER(state)
`)
	if err != nil {
		return nil, fmt.Errorf("count evaluations by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.State]int)
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		state, err := domain.ParseState(raw)
		if err != nil {
			continue
		}
		counts[state] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state counts: %w", err)
	}
	return counts, nil
}

type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) ResolveListing(ctx context.Context, ref domain.ListingRef) (int64, bool, error) {
	return scanRawID(t.tx.QueryRowContext(ctx, `
SELECT raw_id FROM listings
WHERE site = $1 AND listing_id = $2
`, ref.Site, ref.ListingID))
}

// ResolveListingByID picks the oldest listing when the id repeats across sites.
func (t *ledgerTx) ResolveListingByID(ctx context.Context, listingID string) (int64, bool, error) {
	return scanRawID(t.tx.QueryRowContext(ctx, `
SELECT raw_id FROM listings
WHERE listing_id = $1
ORDER BY raw_id ASC
LIMIT 1
`, listingID))
}

func scanRawID(row *sql.Row) (int64, bool, error) {
	var rawID int64
	if err := row.Scan(&rawID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve listing: %w", err)
	}
	return rawID, true, nil
}

func (t *ledgerTx) UpsertEvaluation(ctx context.Context, rec domain.EvaluationRecord) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO evaluations (user_id, site, listing_id, raw_id, state, decided_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (user_id, site, listing_id) DO UPDATE SET
	raw_id = EXCLUDED.raw_id,
	state = EXCLUDED.state,
	decided_at = EXCLUDED.decided_at,
	updated_at = EXCLUDED.updated_at
`, rec.UserID, rec.Site, rec.ListingID, rec.RawID, rec.State.RawValue(), rec.DecidedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}
