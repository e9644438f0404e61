package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one data row of a spreadsheet; cells are indexed by column position.
type Row []Value

// Dataset is the ordered content of an uploaded spreadsheet.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// Index returns the position of the named column.
func (d *Dataset) Index(column string) (int, bool) {
	for i, c := range d.Columns {
		if c == column {
			return i, true
		}
	}
	return -1, false
}

// Has reports whether the dataset carries the named column.
func (d *Dataset) Has(column string) bool {
	_, ok := d.Index(column)
	return ok
}

// Head returns up to n rows formatted as strings.
func (d *Dataset) Head(n int) [][]string {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	out := make([][]string, 0, n)
	for _, row := range d.Rows[:n] {
		cells := make([]string, len(d.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i].String()
			}
		}
		out = append(out, cells)
	}
	return out
}

// Totals are the headline KPIs of a report.
type Totals struct {
	Sum   decimal.Decimal `json:"total_sales"`
	Mean  decimal.Decimal `json:"average_sale"`
	Count int             `json:"transactions"`
}

type MonthTotal struct {
	Month time.Time       `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// CategoryTotal is the summed sales amount of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Condition describes a configured column that was not found and the
// features that were skipped because of it.
type Condition struct {
	Column  string   `json:"column"`
	Skipped []string `json:"skipped"`
	Message string   `json:"message"`
}

// Report is the outcome of one run over an uploaded spreadsheet.
type Report struct {
	ID             string          `json:"id"`
	FileName       string          `json:"file_name"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Columns        []string        `json:"columns"`
	Preview        [][]string      `json:"preview"`
	DateColumn     string          `json:"date_column,omitempty"`
	Totals         *Totals         `json:"totals,omitempty"`
	MonthlyTrend   []MonthTotal    `json:"monthly_trend"`
	CategoryTotals []CategoryTotal `json:"category_totals"`
	Conditions     []Condition     `json:"conditions,omitempty"`
}

// ReportSummary is the persisted trace of a report in the upload history.
type ReportSummary struct {
	ID          string          `json:"id"`
	FileName    string          `json:"file_name"`
	GeneratedAt time.Time       `json:"generated_at"`
	RowCount    int             `json:"row_count"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	AverageSale decimal.Decimal `json:"average_sale"`
	Categories  []CategoryTotal `json:"categories,omitempty"`
}

// Summarize extracts the history record of a report.
func (r *Report) Summarize() ReportSummary {
	s := ReportSummary{
		ID:          r.ID,
		FileName:    r.FileName,
		GeneratedAt: r.GeneratedAt,
		Categories:  r.CategoryTotals,
	}
	if r.Totals != nil {
		s.RowCount = r.Totals.Count
		s.TotalSales = r.Totals.Sum
		s.AverageSale = r.Totals.Mean
	}
	return s
}
