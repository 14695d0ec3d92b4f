package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/usecase"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/repository/memory"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/storage/localfs"
)

const sampleImport = `
listings:
  - site: zuk
    listing_id: "101"
    title: Apartamento Moema
    uf: sp
    city: São Paulo
    auction_type: Judicial
    asset_type: Apartamento
    first_round_price: "500000"
    second_round_price: "250000.50"
    first_round_at: "2026-11-03"
    second_round_at: "2026-11-17 14:00"
  - site: zuk
    listing_id: "102"
    title: Casa Niterói
    uf: RJ
    city: Niterói
    asset_type: Casa
    first_round_price: "320000"
`

type cliHarness struct {
	env     *Env
	out     *bytes.Buffer
	store   *memory.Store
	exports *localfs.Storage
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	store := memory.NewStore()
	exports, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	opts := usecase.WorkflowOptions{Scope: domain.ScopeGlobal}
	portfolio := usecase.NewPortfolioUseCase(store, store, opts)
	out := &bytes.Buffer{}
	return &cliHarness{
		env: &Env{
			Triage:    usecase.NewTriageUseCase(store, store, nil, opts),
			Portfolio: portfolio,
			Exporter:  usecase.NewPortfolioExportUseCase(portfolio, store, xlsx.NewPortfolioWriter()),
			Exports:   exports,
			Catalog:   store,
			Audit:     usecase.NewAuditUseCase(store),
			Out:       out,
		},
		out:     out,
		store:   store,
		exports: exports,
	}
}

func (h *cliHarness) run(t *testing.T, args ...string) string {
	t.Helper()
	h.out.Reset()
	if err := Run(context.Background(), h.env, args); err != nil {
		t.Fatalf("Run(%v) error = %v", args, err)
	}
	return h.out.String()
}

func (h *cliHarness) importSample(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listings.yaml")
	if err := os.WriteFile(path, []byte(sampleImport), 0o600); err != nil {
		t.Fatalf("write import file: %v", err)
	}
	if out := h.run(t, "import", path); !strings.Contains(out, "imported 2 listings") {
		t.Fatalf("unexpected import output: %q", out)
	}
}

func TestImportThenPendingWithFilter(t *testing.T) {
	h := newCLIHarness(t)
	h.importSample(t)

	out := h.run(t, "pending", "--uf", "SP")
	if !strings.Contains(out, "zuk_101") || strings.Contains(out, "zuk_102") {
		t.Fatalf("expected only the SP listing, got:\n%s", out)
	}
	if !strings.Contains(out, "250000.50") {
		t.Fatalf("expected second round price as opening bid, got:\n%s", out)
	}
}

func TestDecideAdvanceAndPortfolio(t *testing.T) {
	h := newCLIHarness(t)
	h.importSample(t)

	out := h.run(t, "--user", "ana", "decide", "--decision", "analisar", "zuk/101", "zuk/102", "zuk/999")
	if !strings.Contains(out, "2 of 3 listings marked ANALISAR") {
		t.Fatalf("unexpected decide output: %q", out)
	}

	stats := h.run(t, "stats")
	if !strings.Contains(stats, "2") {
		t.Fatalf("expected queued count in stats, got:\n%s", stats)
	}

	h.run(t, "-u", "ana", "advance", "--state", "PARTICIPAR", "zuk/101")
	view, err := h.env.Portfolio.FetchPortfolio(context.Background(), "ana")
	if err != nil {
		t.Fatalf("FetchPortfolio() error = %v", err)
	}
	if got := view.ByState(domain.StateParticipar); len(got) != 1 || got[0].UniqueID() != "zuk_101" {
		t.Fatalf("expected zuk_101 advanced to PARTICIPAR, got %+v", view.Items)
	}

	portfolio := h.run(t, "portfolio", "--state", "participar")
	if !strings.Contains(portfolio, "zuk_101") || strings.Contains(portfolio, "zuk_102") {
		t.Fatalf("expected only the PARTICIPAR listing, got:\n%s", portfolio)
	}
}

func TestExportSavesWorkbook(t *testing.T) {
	h := newCLIHarness(t)
	h.importSample(t)
	h.run(t, "-u", "ana", "decide", "-d", "ANALISAR", "zuk/101")

	out := h.run(t, "export", "--key", "semana.xlsx")
	if !strings.Contains(out, "exported 1 rows to semana.xlsx") {
		t.Fatalf("unexpected export output: %q", out)
	}
	rc, err := h.exports.Open(context.Background(), "semana.xlsx")
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer rc.Close()
	head := make([]byte, 2)
	if _, err := rc.Read(head); err != nil || string(head) != "PK" {
		t.Fatalf("expected a zip-based workbook, got %q (err=%v)", head, err)
	}
}

func TestFiltersListsVocabulary(t *testing.T) {
	h := newCLIHarness(t)
	h.importSample(t)

	out := h.run(t, "filters")
	if !strings.Contains(out, "RJ, SP") {
		t.Fatalf("expected sorted, upper-cased UFs, got:\n%s", out)
	}
}

func TestDecideRejectsMalformedRef(t *testing.T) {
	h := newCLIHarness(t)
	err := Run(context.Background(), h.env, []string{"-u", "ana", "decide", "-d", "ANALISAR", "zuk-101"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestParseRefKeepsSlashesInListingID(t *testing.T) {
	ref, err := parseRef("caixa/1444/2025")
	if err != nil {
		t.Fatalf("parseRef() error = %v", err)
	}
	if ref.Site != "caixa" || ref.ListingID != "1444/2025" {
		t.Fatalf("unexpected ref %+v", ref)
	}
}

func TestParseImportRejectsBadPrice(t *testing.T) {
	_, err := parseImport([]byte("listings:\n  - site: zuk\n    listing_id: \"1\"\n    first_round_price: abc\n"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestParseImportDates(t *testing.T) {
	listings, err := parseImport([]byte(sampleImport))
	if err != nil {
		t.Fatalf("parseImport() error = %v", err)
	}
	first := listings[0]
	if first.FirstRoundAt == nil || first.FirstRoundAt.Day() != 3 || first.SecondRoundAt.Hour() != 14 {
		t.Fatalf("unexpected dates: %v %v", first.FirstRoundAt, first.SecondRoundAt)
	}
	if listings[1].FirstRoundAt != nil || listings[1].UF != "RJ" {
		t.Fatalf("unexpected second listing: %+v", listings[1])
	}
}
