package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

type TriageUseCase struct {
	listings ports.ListingStore
	ledger   ports.EvaluationLedger
	guard    ports.CallGuard
	opts     WorkflowOptions
}

func NewTriageUseCase(
	listings ports.ListingStore,
	ledger ports.EvaluationLedger,
	guard ports.CallGuard,
	opts WorkflowOptions,
) *TriageUseCase {
	return &TriageUseCase{
		listings: listings,
		ledger:   ledger,
		guard:    guard,
		opts:     opts.normalize(),
	}
}

func (uc *TriageUseCase) FetchPendingQueue(ctx context.Context, userID string, filter domain.ListingFilter) ([]domain.Listing, error) {
	listings, err := uc.listings.ListPending(ctx, domain.PendingQuery{
		UserID: userID,
		Scope:  uc.opts.Scope,
		Filter: filter,
		Limit:  uc.opts.PendingLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending queue: %w", err)
	}
	return listings, nil
}

// SubmitBatchDecision records decision for every item whose listing can be
// resolved, in one transaction. Unresolved items are skipped and not counted.
// An existing row for the same (user, site, listing) is overwritten.
func (uc *TriageUseCase) SubmitBatchDecision(
	ctx context.Context,
	userID string,
	items []domain.ListingRef,
	decision domain.State,
) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "submit batch decision", errors.New("user id is required"))
	}
	if !decision.IsTriageDecision() {
		return 0, domain.WrapError(domain.ErrInvalidInput, "submit batch decision", fmt.Errorf("decision %q is not a triage decision", decision))
	}
	if len(items) == 0 {
		return 0, nil
	}

	now := uc.opts.Clock()
	var written []domain.EvaluationRecord
	skipped := 0

	err := uc.ledger.WithinTx(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		written = make([]domain.EvaluationRecord, 0, len(items))
		skipped = 0
		for _, item := range items {
			rawID, ok, err := resolveListing(ctx, tx, item)
			if err != nil {
				return err
			}
			if !ok {
				skipped++
				uc.opts.Logger.Debug("batch_item_unresolved", "site", item.Site, "listing_id", item.ListingID)
				continue
			}

			rec := domain.EvaluationRecord{
				EvaluationKey: domain.EvaluationKey{
					UserID:    userID,
					Site:      item.Site,
					ListingID: item.ListingID,
				},
				RawID:     rawID,
				State:     decision,
				DecidedAt: now,
				UpdatedAt: now,
			}
			if err := tx.UpsertEvaluation(ctx, rec); err != nil {
				return fmt.Errorf("upsert evaluation %s: %w", domain.UniqueID(item.Site, item.ListingID), err)
			}
			written = append(written, rec)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("submit batch decision: %w", err)
	}

	uc.opts.Observer.RecordBatchDecision(decision, len(written), skipped)
	uc.opts.Logger.Info("batch_decision_committed",
		"user_id", userID,
		"decision", decision,
		"written", len(written),
		"skipped", skipped,
	)

	events := make([]domain.WorkflowEvent, 0, len(written))
	for _, rec := range written {
		events = append(events, newEvent(domain.EventEvaluationDecided, rec.UserID, rec.Site, rec.ListingID, rec.State, now, nil))
	}
	uc.opts.publish(ctx, events...)

	return len(written), nil
}

// resolveListing looks up the exact natural key first and falls back to the
// listing id alone on any site.
func resolveListing(ctx context.Context, tx ports.LedgerTx, item domain.ListingRef) (int64, bool, error) {
	if strings.TrimSpace(item.ListingID) == "" {
		return 0, false, nil
	}
	rawID, ok, err := tx.ResolveListing(ctx, item)
	if err != nil {
		return 0, false, fmt.Errorf("resolve listing %s: %w", domain.UniqueID(item.Site, item.ListingID), err)
	}
	if ok {
		return rawID, true, nil
	}
	rawID, ok, err = tx.ResolveListingByID(ctx, item.ListingID)
	if err != nil {
		return 0, false, fmt.Errorf("resolve listing id %s: %w", item.ListingID, err)
	}
	return rawID, ok, nil
}

func (uc *TriageUseCase) FetchFilterVocabulary(ctx context.Context) (domain.FilterVocabulary, error) {
	vocab, err := uc.listings.FilterVocabulary(ctx)
	if err != nil {
		return domain.FilterVocabulary{}, fmt.Errorf("fetch filter vocabulary: %w", err)
	}
	return vocab, nil
}

// FetchStats aggregates the ledger across every reviewer. userID is accepted
// for forward compatibility and not used.
func (uc *TriageUseCase) FetchStats(ctx context.Context, _ string) domain.Stats {
	var counts map[domain.State]int
	call := func(ctx context.Context) error {
		var err error
		counts, err = uc.ledger.CountByState(ctx)
		return err
	}

	var err error
	if uc.guard != nil {
		err = uc.guard.Do(ctx, ports.OpCountByState, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		uc.opts.Observer.RecordStatsDegraded()
		uc.opts.Logger.Warn("stats_degraded", "error", err)
		return domain.Stats{}
	}
	return domain.NewStats(counts)
}
