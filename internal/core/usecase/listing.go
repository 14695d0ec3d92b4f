package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

type ListingCorrectionUseCase struct {
	listings ports.ListingStore
	opts     WorkflowOptions
}

func NewListingCorrectionUseCase(listings ports.ListingStore, opts WorkflowOptions) *ListingCorrectionUseCase {
	return &ListingCorrectionUseCase{
		listings: listings,
		opts:     opts.normalize(),
	}
}

// CorrectListingCoreData is the one write path into the listing catalog. It
// overwrites title, round dates and round prices without keeping history.
func (uc *ListingCorrectionUseCase) CorrectListingCoreData(ctx context.Context, site, listingID string, fields domain.ListingCorrection) error {
	if strings.TrimSpace(site) == "" || strings.TrimSpace(listingID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "correct listing", errors.New("site and listing id are required"))
	}
	fields.Title = strings.TrimSpace(fields.Title)
	if fields.Title == "" {
		return domain.WrapError(domain.ErrInvalidInput, "correct listing", errors.New("title is required"))
	}
	if fields.FirstRoundPrice.IsNegative() || fields.SecondRoundPrice.IsNegative() {
		return domain.WrapError(domain.ErrInvalidInput, "correct listing", errors.New("prices must not be negative"))
	}

	ref := domain.ListingRef{Site: site, ListingID: listingID}
	if err := uc.listings.CorrectCoreData(ctx, ref, fields); err != nil {
		return fmt.Errorf("correct listing %s: %w", domain.UniqueID(site, listingID), err)
	}

	uc.opts.publish(ctx, newEvent(domain.EventListingCorrected, "", site, listingID, "", uc.opts.Clock(), fields))
	return nil
}
