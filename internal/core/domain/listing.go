package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is one scraped auction lot. Identity is (Site, ListingID); Seq is the
// ingestion sequence used for ordering and never changes.
type Listing struct {
	Seq              int64           `json:"-"`
	Site             string          `json:"site"`
	ListingID        string          `json:"listing_id"`
	Title            string          `json:"title"`
	UF               string          `json:"uf"`
	City             string          `json:"city"`
	AuctionType      string          `json:"auction_type"`
	AssetType        string          `json:"asset_type"`
	FirstRoundPrice  decimal.Decimal `json:"first_round_price"`
	SecondRoundPrice decimal.Decimal `json:"second_round_price"`
	DetailURL        string          `json:"detail_url"`
	CoverImageURL    string          `json:"cover_image_url"`
	FirstRoundAt     *time.Time      `json:"first_round_at,omitempty"`
	SecondRoundAt    *time.Time      `json:"second_round_at,omitempty"`
}

// UniqueID is the cross-table join and UI key. It is not a storage key.
func (l Listing) UniqueID() string {
	return UniqueID(l.Site, l.ListingID)
}

func UniqueID(site, listingID string) string {
	return site + "_" + listingID
}

// ListingRef addresses a listing by its natural key, as submitted by reviewers.
type ListingRef struct {
	Site      string `json:"site"`
	ListingID string `json:"listing_id"`
}

// ListingFilter restricts the pending queue. Each non-empty slice is an
// inclusion set; empty slices do not restrict.
type ListingFilter struct {
	UFs          []string `json:"uf,omitempty"`
	Cities       []string `json:"city,omitempty"`
	AssetTypes   []string `json:"asset_type,omitempty"`
	Sites        []string `json:"site,omitempty"`
	AuctionTypes []string `json:"auction_type,omitempty"`
}

func (f ListingFilter) Matches(l Listing) bool {
	return inSet(f.UFs, l.UF) &&
		inSet(f.Cities, l.City) &&
		inSet(f.AssetTypes, l.AssetType) &&
		inSet(f.Sites, l.Site) &&
		inSet(f.AuctionTypes, l.AuctionType)
}

func inSet(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// FilterVocabulary holds the distinct sorted values offered by filter pickers.
type FilterVocabulary struct {
	UFs          []string `json:"ufs"`
	Cities       []string `json:"cities"`
	AssetTypes   []string `json:"asset_types"`
	Sites        []string `json:"sites"`
	AuctionTypes []string `json:"auction_types"`
}

// ListingCorrection carries operator fixes for scraping errors.
type ListingCorrection struct {
	Title            string          `json:"title"`
	FirstRoundAt     *time.Time      `json:"first_round_at,omitempty"`
	SecondRoundAt    *time.Time      `json:"second_round_at,omitempty"`
	FirstRoundPrice  decimal.Decimal `json:"first_round_price"`
	SecondRoundPrice decimal.Decimal `json:"second_round_price"`
}

func (c ListingCorrection) Apply(l *Listing) {
	l.Title = c.Title
	l.FirstRoundAt = c.FirstRoundAt
	l.SecondRoundAt = c.SecondRoundAt
	l.FirstRoundPrice = c.FirstRoundPrice
	l.SecondRoundPrice = c.SecondRoundPrice
}

// OpeningBid is the lowest price the listing can currently be bought for:
// the second round price when set, else the first.
func (l Listing) OpeningBid() decimal.Decimal {
	if l.SecondRoundPrice.IsPositive() {
		return l.SecondRoundPrice
	}
	return l.FirstRoundPrice
}
