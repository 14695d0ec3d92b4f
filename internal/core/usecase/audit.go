package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

const defaultHistoryLimit = 50

type AuditUseCase struct {
	store ports.AuditStore
}

func NewAuditUseCase(store ports.AuditStore) *AuditUseCase {
	return &AuditUseCase{store: store}
}

func (uc *AuditUseCase) Record(ctx context.Context, event domain.WorkflowEvent) error {
	if event.ID == "" || event.Kind == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record workflow event", errors.New("event id and kind are required"))
	}
	if err := uc.store.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("record workflow event: %w", err)
	}
	return nil
}

func (uc *AuditUseCase) History(ctx context.Context, site, listingID string, limit int) ([]domain.WorkflowEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	events, err := uc.store.ListEvents(ctx, domain.ListingRef{Site: site, ListingID: listingID}, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflow history: %w", err)
	}
	return events, nil
}
