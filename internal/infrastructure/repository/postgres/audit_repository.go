package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AppendEvent ignores redelivered events.
func (r *AuditRepository) AppendEvent(ctx context.Context, event domain.WorkflowEvent) error {
	var payload any
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO workflow_audit (event_id, kind, user_id, site, listing_id, state, payload, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (event_id) DO NOTHING
`, event.ID, string(event.Kind), event.UserID, event.Site, event.ListingID, string(event.State), payload, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("append workflow event: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListEvents(ctx context.Context, ref domain.ListingRef, limit int) ([]domain.WorkflowEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT event_id, kind, user_id, site, listing_id, state, payload, occurred_at
FROM workflow_audit
WHERE site = $1 AND listing_id = $2
ORDER BY occurred_at DESC
LIMIT $3
`, ref.Site, ref.ListingID, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflow events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.WorkflowEvent, 0)
	for rows.Next() {
		var e domain.WorkflowEvent
		var kind, state string
		var payload []byte
		if err := rows.Scan(&e.ID, &kind, &e.UserID, &e.Site, &e.ListingID, &state, &payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan workflow event: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.State = domain.State(state)
		if len(payload) > 0 {
			e.Payload = payload
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow events: %w", err)
	}
	return out, nil
}
