package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

// importFile is the scraper drop format.
type importFile struct {
	Listings []importRecord `yaml:"listings"`
}

type importRecord struct {
	Site             string `yaml:"site"`
	ListingID        string `yaml:"listing_id"`
	Title            string `yaml:"title"`
	UF               string `yaml:"uf"`
	City             string `yaml:"city"`
	AuctionType      string `yaml:"auction_type"`
	AssetType        string `yaml:"asset_type"`
	FirstRoundPrice  string `yaml:"first_round_price"`
	SecondRoundPrice string `yaml:"second_round_price"`
	DetailURL        string `yaml:"detail_url"`
	CoverImageURL    string `yaml:"cover_image_url"`
	FirstRoundAt     string `yaml:"first_round_at"`
	SecondRoundAt    string `yaml:"second_round_at"`
}

type importCommand struct {
	command
	Args struct {
		File string `positional-arg-name:"listings.yaml" required:"yes"`
	} `positional-args:"yes"`
}

func (c *importCommand) Execute([]string) error {
	data, err := os.ReadFile(c.Args.File)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	listings, err := parseImport(data)
	if err != nil {
		return err
	}
	for _, l := range listings {
		if _, err := c.env.Catalog.UpsertListing(c.ctx, l); err != nil {
			return fmt.Errorf("import %s: %w", l.UniqueID(), err)
		}
	}
	fmt.Fprintf(c.env.Out, "imported %d listings\n", len(listings))
	return nil
}

func parseImport(data []byte) ([]domain.Listing, error) {
	var file importFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse import file", err)
	}

	out := make([]domain.Listing, 0, len(file.Listings))
	for i, rec := range file.Listings {
		l, err := rec.toListing()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse import file", fmt.Errorf("listing #%d: %w", i+1, err))
		}
		out = append(out, l)
	}
	return out, nil
}

func (r importRecord) toListing() (domain.Listing, error) {
	if strings.TrimSpace(r.Site) == "" || strings.TrimSpace(r.ListingID) == "" {
		return domain.Listing{}, fmt.Errorf("site and listing_id are required")
	}
	first, err := parseMoney(r.FirstRoundPrice)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("first_round_price: %w", err)
	}
	second, err := parseMoney(r.SecondRoundPrice)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("second_round_price: %w", err)
	}
	firstAt, err := parseDate(r.FirstRoundAt)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("first_round_at: %w", err)
	}
	secondAt, err := parseDate(r.SecondRoundAt)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("second_round_at: %w", err)
	}

	return domain.Listing{
		Site:             strings.TrimSpace(r.Site),
		ListingID:        strings.TrimSpace(r.ListingID),
		Title:            strings.TrimSpace(r.Title),
		UF:               strings.ToUpper(strings.TrimSpace(r.UF)),
		City:             strings.TrimSpace(r.City),
		AuctionType:      strings.TrimSpace(r.AuctionType),
		AssetType:        strings.TrimSpace(r.AssetType),
		FirstRoundPrice:  first,
		SecondRoundPrice: second,
		DetailURL:        r.DetailURL,
		CoverImageURL:    r.CoverImageURL,
		FirstRoundAt:     firstAt,
		SecondRoundAt:    secondAt,
	}, nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unsupported date %q", raw)
}
