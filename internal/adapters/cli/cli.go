// Package cli implements the triagectl operator commands on top of the
// workflow services.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jessevdk/go-flags"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

// Env is what the commands operate on.
type Env struct {
	Triage    ports.TriageService
	Portfolio ports.PortfolioService
	Exporter  ports.PortfolioExporter
	Exports   ports.ObjectStorage
	Catalog   ports.ListingCatalog
	Audit     ports.AuditService
	Out       io.Writer
}

type GlobalOptions struct {
	User string `short:"u" long:"user" env:"GARIMPO_USER" description:"Reviewer id used for scoped reads and writes"`
}

// NewParser registers every command against env.
func NewParser(ctx context.Context, env *Env) *flags.Parser {
	opts := &GlobalOptions{}
	parser := flags.NewParser(opts, flags.Default)
	base := command{ctx: ctx, env: env, opts: opts}

	mustAdd(parser, "pending", "List the pending triage queue", &pendingCommand{command: base})
	mustAdd(parser, "decide", "Record a triage decision for a batch of listings", &decideCommand{command: base})
	mustAdd(parser, "stats", "Show triage dashboard counts", &statsCommand{command: base})
	mustAdd(parser, "filters", "Show the filter vocabulary", &filtersCommand{command: base})
	mustAdd(parser, "portfolio", "List listings under deep review", &portfolioCommand{command: base})
	mustAdd(parser, "advance", "Move a portfolio listing to PARTICIPAR or NO_BID", &advanceCommand{command: base})
	mustAdd(parser, "export", "Write the portfolio spreadsheet to export storage", &exportCommand{command: base})
	mustAdd(parser, "import", "Load scraped listings from a YAML file", &importCommand{command: base})
	mustAdd(parser, "history", "Show the audit trail of one listing", &historyCommand{command: base})
	return parser
}

func mustAdd(parser *flags.Parser, name, short string, data any) {
	if _, err := parser.AddCommand(name, short, short, data); err != nil {
		panic(fmt.Sprintf("register command %s: %v", name, err))
	}
}

// Run parses args and executes the selected command. Help output is not an error.
func Run(ctx context.Context, env *Env, args []string) error {
	parser := NewParser(ctx, env)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}

type command struct {
	ctx  context.Context
	env  *Env
	opts *GlobalOptions
}

func (c command) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(c.env.Out)
	t.SetStyle(table.StyleLight)
	return t
}

type pendingCommand struct {
	command
	UFs          []string `long:"uf" description:"Filter by UF (repeatable)"`
	Cities       []string `long:"city" description:"Filter by city (repeatable)"`
	AssetTypes   []string `long:"asset-type" description:"Filter by asset type (repeatable)"`
	Sites        []string `long:"site" description:"Filter by auction site (repeatable)"`
	AuctionTypes []string `long:"auction-type" description:"Filter by auction modality (repeatable)"`
}

func (c *pendingCommand) Execute([]string) error {
	listings, err := c.env.Triage.FetchPendingQueue(c.ctx, c.opts.User, domain.ListingFilter{
		UFs:          c.UFs,
		Cities:       c.Cities,
		AssetTypes:   c.AssetTypes,
		Sites:        c.Sites,
		AuctionTypes: c.AuctionTypes,
	})
	if err != nil {
		return err
	}

	t := c.newTable()
	t.AppendHeader(table.Row{"ID", "Title", "UF", "City", "Type", "Modality", "Opening bid"})
	for _, l := range listings {
		t.AppendRow(table.Row{l.UniqueID(), l.Title, l.UF, l.City, l.AssetType, l.AuctionType, l.OpeningBid().StringFixed(2)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(listings)})
	t.Render()
	return nil
}

type decideCommand struct {
	command
	Decision string `short:"d" long:"decision" required:"true" description:"ANALISAR or DESCARTAR"`
	Args     struct {
		Refs []string `positional-arg-name:"site/listing_id" required:"1"`
	} `positional-args:"yes"`
}

func (c *decideCommand) Execute([]string) error {
	decision, err := domain.ParseState(c.Decision)
	if err != nil {
		return err
	}
	refs := make([]domain.ListingRef, 0, len(c.Args.Refs))
	for _, raw := range c.Args.Refs {
		ref, err := parseRef(raw)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	written, err := c.env.Triage.SubmitBatchDecision(c.ctx, c.opts.User, refs, decision)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.env.Out, "%d of %d listings marked %s\n", written, len(refs), decision)
	return nil
}

type statsCommand struct {
	command
}

func (c *statsCommand) Execute([]string) error {
	stats := c.env.Triage.FetchStats(c.ctx, c.opts.User)
	t := c.newTable()
	t.AppendHeader(table.Row{"Queued", "Discarded", "Total processed"})
	t.AppendRow(table.Row{stats.Queued, stats.Discarded, stats.TotalProcessed})
	t.Render()
	return nil
}

type filtersCommand struct {
	command
}

func (c *filtersCommand) Execute([]string) error {
	vocab, err := c.env.Triage.FetchFilterVocabulary(c.ctx)
	if err != nil {
		return err
	}
	t := c.newTable()
	t.AppendHeader(table.Row{"Filter", "Values"})
	t.AppendRow(table.Row{"uf", strings.Join(vocab.UFs, ", ")})
	t.AppendRow(table.Row{"city", strings.Join(vocab.Cities, ", ")})
	t.AppendRow(table.Row{"asset_type", strings.Join(vocab.AssetTypes, ", ")})
	t.AppendRow(table.Row{"site", strings.Join(vocab.Sites, ", ")})
	t.AppendRow(table.Row{"auction_type", strings.Join(vocab.AuctionTypes, ", ")})
	t.Render()
	return nil
}

type portfolioCommand struct {
	command
	State string `short:"s" long:"state" description:"Only show one state (ANALISAR, PARTICIPAR, NO_BID)"`
}

func (c *portfolioCommand) Execute([]string) error {
	view, err := c.env.Portfolio.FetchPortfolio(c.ctx, c.opts.User)
	if err != nil {
		return err
	}
	items := view.Items
	if c.State != "" {
		state, err := domain.ParseState(c.State)
		if err != nil {
			return err
		}
		items = view.ByState(state)
	}

	t := c.newTable()
	t.AppendHeader(table.Row{"ID", "Ref", "Title", "State", "Reviewer", "Opening bid", "Updated"})
	for _, item := range items {
		t.AppendRow(table.Row{
			item.UniqueID(),
			item.Evaluation.Site + "/" + item.Evaluation.ListingID,
			item.Title,
			item.State,
			item.Evaluation.UserID,
			item.OpeningBid().StringFixed(2),
			item.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	return nil
}

type advanceCommand struct {
	command
	State string `short:"s" long:"state" required:"true" description:"PARTICIPAR or NO_BID"`
	Args  struct {
		Ref string `positional-arg-name:"site/listing_id" required:"yes"`
	} `positional-args:"yes"`
}

func (c *advanceCommand) Execute([]string) error {
	state, err := domain.ParseState(c.State)
	if err != nil {
		return err
	}
	ref, err := parseRef(c.Args.Ref)
	if err != nil {
		return err
	}
	if err := c.env.Portfolio.AdvanceStatus(c.ctx, c.opts.User, ref.Site, ref.ListingID, state); err != nil {
		return err
	}
	fmt.Fprintf(c.env.Out, "%s -> %s\n", domain.UniqueID(ref.Site, ref.ListingID), state)
	return nil
}

type exportCommand struct {
	command
	Key string `short:"k" long:"key" default:"carteira.xlsx" description:"File name inside the export directory"`
}

func (c *exportCommand) Execute([]string) error {
	var buf bytes.Buffer
	rows, err := c.env.Exporter.ExportPortfolio(c.ctx, c.opts.User, &buf)
	if err != nil {
		return err
	}
	if err := c.env.Exports.Save(c.ctx, c.Key, &buf); err != nil {
		return fmt.Errorf("save export: %w", err)
	}
	fmt.Fprintf(c.env.Out, "exported %d rows to %s\n", rows, c.Key)
	return nil
}

type historyCommand struct {
	command
	Limit int `short:"n" long:"limit" default:"20" description:"Maximum events to show"`
	Args  struct {
		Ref string `positional-arg-name:"site/listing_id" required:"yes"`
	} `positional-args:"yes"`
}

func (c *historyCommand) Execute([]string) error {
	ref, err := parseRef(c.Args.Ref)
	if err != nil {
		return err
	}
	events, err := c.env.Audit.History(c.ctx, ref.Site, ref.ListingID, c.Limit)
	if err != nil {
		return err
	}
	t := c.newTable()
	t.AppendHeader(table.Row{"When", "Kind", "User", "State"})
	for _, e := range events {
		t.AppendRow(table.Row{e.OccurredAt.Format("2006-01-02 15:04:05"), e.Kind, e.UserID, e.State})
	}
	t.Render()
	return nil
}

// parseRef reads "site/listing_id". Listing ids may themselves contain slashes.
func parseRef(raw string) (domain.ListingRef, error) {
	site, listingID, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok || site == "" || listingID == "" {
		return domain.ListingRef{}, domain.WrapError(domain.ErrInvalidInput, "parse listing ref", fmt.Errorf("expected site/listing_id, got %q", raw))
	}
	return domain.ListingRef{Site: site, ListingID: listingID}, nil
}
