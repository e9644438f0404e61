package report

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/drstein77/salesdash/internal/models"
)

// ErrColumnNotFound is matched by every MissingColumnError.
var ErrColumnNotFound = errors.New("column not found")

// MissingColumnError names a configured column absent from the dataset.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrColumnNotFound
}

func columnIndex(ds *models.Dataset, column string) (int, error) {
	idx, ok := ds.Index(column)
	if !ok {
		return -1, &MissingColumnError{Column: column}
	}
	return idx, nil
}

// amountAt returns the numeric amount of a cell. Blank, NaN and
// non-numeric cells carry no amount.
func amountAt(row models.Row, idx int) (decimal.Decimal, bool) {
	if idx >= len(row) {
		return decimal.Zero, false
	}
	v := row[idx]
	if v.Kind != models.Number || math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v.Num), true
}

// ComputeTotals returns the sum and mean of the amount column and the
// number of rows. Rows without a numeric amount are counted but do not
// take part in the sum or the mean.
func ComputeTotals(ds *models.Dataset, amountField string) (models.Totals, error) {
	idx, err := columnIndex(ds, amountField)
	if err != nil {
		return models.Totals{}, err
	}

	sum := decimal.Zero
	numeric := 0
	for _, row := range ds.Rows {
		if amount, ok := amountAt(row, idx); ok {
			sum = sum.Add(amount)
			numeric++
		}
	}

	totals := models.Totals{Sum: sum, Mean: decimal.Zero, Count: len(ds.Rows)}
	if numeric > 0 {
		totals.Mean = sum.Div(decimal.NewFromInt(int64(numeric)))
	}
	return totals, nil
}

// MonthlyTrend sums the amount column per calendar month. Months between
// the first and the last one that have no rows are reported with a zero
// total, so the result is a contiguous ascending series.
func MonthlyTrend(ds *models.Dataset, dateField, amountField string) ([]models.MonthTotal, error) {
	dateIdx, err := columnIndex(ds, dateField)
	if err != nil {
		return nil, err
	}
	amountIdx, err := columnIndex(ds, amountField)
	if err != nil {
		return nil, err
	}

	sums := make(map[time.Time]decimal.Decimal)
	var first, last time.Time
	for _, row := range ds.Rows {
		if dateIdx >= len(row) {
			continue
		}
		at, ok := ParseDate(row[dateIdx])
		if !ok {
			continue
		}
		month := monthStart(at)
		if len(sums) == 0 || month.Before(first) {
			first = month
		}
		if len(sums) == 0 || month.After(last) {
			last = month
		}
		amount, _ := amountAt(row, amountIdx)
		sums[month] = sums[month].Add(amount)
	}

	trend := make([]models.MonthTotal, 0, len(sums))
	if len(sums) == 0 {
		return trend, nil
	}
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		total, ok := sums[m]
		if !ok {
			total = decimal.Zero
		}
		trend = append(trend, models.MonthTotal{Month: m, Total: total})
	}
	return trend, nil
}

// CategoryTotals sums the amount column per category and orders the
// groups by descending total. Groups start out in ascending label order
// and the sort is stable, so equal totals keep that order.
func CategoryTotals(ds *models.Dataset, categoryField, amountField string) ([]models.CategoryTotal, error) {
	catIdx, err := columnIndex(ds, categoryField)
	if err != nil {
		return nil, err
	}
	amountIdx, err := columnIndex(ds, amountField)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]decimal.Decimal)
	for _, row := range ds.Rows {
		label := ""
		if catIdx < len(row) {
			label = row[catIdx].String()
		}
		amount, _ := amountAt(row, amountIdx)
		sums[label] = sums[label].Add(amount)
	}

	totals := make([]models.CategoryTotal, 0, len(sums))
	for label, total := range sums {
		totals = append(totals, models.CategoryTotal{Category: label, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Category < totals[j].Category
	})
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Total.GreaterThan(totals[j].Total)
	})
	return totals, nil
}
