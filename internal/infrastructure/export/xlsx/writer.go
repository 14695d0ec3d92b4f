package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

const SheetName = "Carteira"

var header = []any{
	"Site", "ID", "Título", "UF", "Cidade", "Tipo", "Status", "Avaliador",
	"1ª Praça", "2ª Praça", "Data 1ª Praça", "Data 2ª Praça",
	"Risco", "Ocupação", "Passivos", "Valor de Revenda", "Margem Estimada",
	"Atualizado em", "Link",
}

// currency column indexes, 1-based
const (
	firstMoneyCol = 9
	lastMoneyCol  = 17
)

// PortfolioWriter renders the portfolio as a single-sheet workbook.
type PortfolioWriter struct{}

func NewPortfolioWriter() *PortfolioWriter {
	return &PortfolioWriter{}
}

func (PortfolioWriter) WritePortfolio(w io.Writer, items []domain.PortfolioItem, analyses map[string]domain.DeepAnalysis) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, item := range items {
		rowNum := i + 2
		row := portfolioRow(item, analyses)
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return fmt.Errorf("row %d cell: %w", rowNum, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", rowNum, err)
		}
	}

	if len(items) > 0 {
		from, _ := excelize.CoordinatesToCellName(firstMoneyCol, 2)
		to, _ := excelize.CoordinatesToCellName(lastMoneyCol, len(items)+1)
		if err := f.SetCellStyle(SheetName, from, to, moneyStyle); err != nil {
			return fmt.Errorf("style money columns: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func portfolioRow(item domain.PortfolioItem, analyses map[string]domain.DeepAnalysis) []any {
	analysis, ok := analyses[item.UniqueID()]
	if !ok {
		analysis = domain.NewDeepAnalysis("", item.Site, item.ListingID)
	}
	return []any{
		item.Site,
		item.ListingID,
		item.Title,
		item.UF,
		item.City,
		item.AssetType,
		string(item.State),
		item.Evaluation.UserID,
		item.FirstRoundPrice.InexactFloat64(),
		item.SecondRoundPrice.InexactFloat64(),
		formatDate(item.FirstRoundAt),
		formatDate(item.SecondRoundAt),
		analysis.Risk.RawValue(),
		analysis.Occupancy.RawValue(),
		analysis.TotalLiabilities().InexactFloat64(),
		analysis.EstimatedResaleValue.InexactFloat64(),
		analysis.EstimatedMargin(item.OpeningBid()).InexactFloat64(),
		item.UpdatedAt.Format("2006-01-02 15:04"),
		item.DetailURL,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
