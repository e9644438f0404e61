package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/drstein77/salesdash/internal/models"
)

const (
	sheetSummary    = "Summary"
	sheetTrend      = "Monthly Trend"
	sheetCategories = "Categories"
)

// WriteWorkbook writes the report aggregates as an .xlsx workbook with one
// sheet for the KPIs, one for the monthly trend and one for the categories.
func WriteWorkbook(w io.Writer, rep *models.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	for _, name := range []string{sheetTrend, sheetCategories} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("adding sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4F46E5"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("creating money style: %w", err)
	}

	summary := [][]any{
		{"Metric", "Value"},
		{"File", rep.FileName},
		{"Generated (UTC)", rep.GeneratedAt.Format("2006-01-02 15:04:05")},
	}
	if rep.Totals != nil {
		summary = append(summary,
			[]any{"Total Sales", rep.Totals.Sum.InexactFloat64()},
			[]any{"Average Sale Value", rep.Totals.Mean.InexactFloat64()},
			[]any{"Total Transactions", rep.Totals.Count},
		)
	}
	for _, c := range rep.Conditions {
		summary = append(summary, []any{"Notice", c.Message})
	}
	if err := writeTable(f, sheetSummary, summary, headerStyle); err != nil {
		return err
	}

	trend := [][]any{{"Month", "Total Sales ($)"}}
	for _, m := range rep.MonthlyTrend {
		trend = append(trend, []any{m.Month.Format("2006-01"), m.Total.InexactFloat64()})
	}
	if err := writeTable(f, sheetTrend, trend, headerStyle); err != nil {
		return err
	}

	categories := [][]any{{"Category", "Total Sales ($)"}}
	for _, c := range rep.CategoryTotals {
		categories = append(categories, []any{CategoryLabel(c.Category), c.Total.InexactFloat64()})
	}
	if err := writeTable(f, sheetCategories, categories, headerStyle); err != nil {
		return err
	}

	for sheet, n := range map[string]int{sheetTrend: len(trend), sheetCategories: len(categories)} {
		if n < 2 {
			continue
		}
		if err := f.SetCellStyle(sheet, "B2", fmt.Sprintf("B%d", n), moneyStyle); err != nil {
			return fmt.Errorf("styling %s: %w", sheet, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("writing %s!%s: %w", sheet, cell, err)
			}
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", "B", 28); err != nil {
		return fmt.Errorf("sizing %s columns: %w", sheet, err)
	}
	return nil
}
