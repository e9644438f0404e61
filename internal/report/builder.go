// Package report turns a loaded sales spreadsheet into KPIs and chart data.
//
// A Builder runs one pass per upload: it normalizes the date column, then
// computes totals, the monthly trend and the per-category totals. A
// configured column that is missing never aborts the run; it yields a
// Condition and the features depending on it are skipped.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drstein77/salesdash/internal/models"
)

const (
	FeatureDateNormalization = "date normalization"
	FeatureTotalSales        = "total sales"
	FeatureAverageSale       = "average sale"
	FeatureTransactions      = "transaction count"
	FeatureMonthlyTrend      = "monthly sales trend"
	FeatureCategoryBar       = "sales by category"
	FeatureCategoryShare     = "category share"
)

// DefaultPreviewRows is how many raw rows a report previews.
const DefaultPreviewRows = 5

// Fields binds the builder to the columns of a spreadsheet.
type Fields struct {
	Date     string `yaml:"date"`
	Amount   string `yaml:"amount"`
	Category string `yaml:"category"`
}

// DefaultFields returns the column names of the stock sales export.
func DefaultFields() Fields {
	return Fields{
		Date:     "Order_Date",
		Amount:   "Sales_Amount",
		Category: "Product_Category",
	}
}

type Log interface {
	Debug(string, ...zap.Field)
}

// Builder produces reports. It keeps no state between runs.
type Builder struct {
	fields      Fields
	previewRows int
	log         Log

	now   func() time.Time
	newID func() string
}

// NewBuilder creates a Builder for the given column binding.
func NewBuilder(fields Fields, previewRows int, log Log) *Builder {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &Builder{
		fields:      fields,
		previewRows: previewRows,
		log:         log,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Fields returns the column binding of the builder.
func (b *Builder) Fields() Fields {
	return b.fields
}

// Build runs the whole pipeline over ds. The preview is taken from the raw
// rows before any normalization.
func (b *Builder) Build(fileName string, ds *models.Dataset) *models.Report {
	rep := &models.Report{
		ID:             b.newID(),
		FileName:       fileName,
		GeneratedAt:    b.now().UTC(),
		Columns:        ds.Columns,
		Preview:        ds.Head(b.previewRows),
		MonthlyTrend:   []models.MonthTotal{},
		CategoryTotals: []models.CategoryTotal{},
	}

	hasDate := ds.Has(b.fields.Date)
	hasAmount := ds.Has(b.fields.Amount)
	hasCategory := ds.Has(b.fields.Category)

	if hasDate {
		before := len(ds.Rows)
		ds = NormalizeDates(ds, b.fields.Date)
		rep.DateColumn = b.fields.Date
		b.log.Debug("dates normalized",
			zap.String("column", b.fields.Date),
			zap.Int("rows", len(ds.Rows)),
			zap.Int("dropped", before-len(ds.Rows)))
	} else {
		rep.Conditions = append(rep.Conditions, models.Condition{
			Column:  b.fields.Date,
			Skipped: []string{FeatureDateNormalization, FeatureMonthlyTrend},
			Message: fmt.Sprintf("Column '%s' not found. The monthly sales trend is not available.", b.fields.Date),
		})
	}

	if !hasAmount {
		rep.Conditions = append(rep.Conditions, models.Condition{
			Column: b.fields.Amount,
			Skipped: []string{
				FeatureTotalSales, FeatureAverageSale, FeatureTransactions,
				FeatureMonthlyTrend, FeatureCategoryBar, FeatureCategoryShare,
			},
			Message: fmt.Sprintf("Required column '%s' not found. Please check column names.", b.fields.Amount),
		})
	}
	if !hasCategory {
		rep.Conditions = append(rep.Conditions, models.Condition{
			Column:  b.fields.Category,
			Skipped: []string{FeatureCategoryBar, FeatureCategoryShare},
			Message: fmt.Sprintf("Column '%s' not found. Category charts are not available.", b.fields.Category),
		})
	}
	if !hasAmount {
		return rep
	}

	// The column checks above make the errors below unreachable.
	totals, _ := ComputeTotals(ds, b.fields.Amount)
	rep.Totals = &totals

	if hasDate {
		rep.MonthlyTrend, _ = MonthlyTrend(ds, b.fields.Date, b.fields.Amount)
	}
	if hasCategory {
		rep.CategoryTotals, _ = CategoryTotals(ds, b.fields.Category, b.fields.Amount)
	}
	return rep
}
