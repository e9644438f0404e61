package report

import (
	"math"
	"strings"
	"time"

	"github.com/drstein77/salesdash/internal/models"
)

const (
	serialMin = 1000
	serialMax = 90000
)

// excelEpoch is day zero of the Windows 1900 date system as spreadsheets
// count it. Serials are added to it without the Feb-29-1900 correction.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
	"2006/1/2 15:04:05",
	"2006/1/2",
	"2006.1.2",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
	"2-Jan-2006",
	"2-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Mon, 2 Jan 2006",
}

// ExcelSerialToDate converts a number that looks like an Excel serial date
// (strictly between 1000 and 90000) into a calendar time. Empty and NaN
// values become empty; any other value is returned unchanged.
func ExcelSerialToDate(v models.Value) models.Value {
	if v.IsMissing() {
		return models.EmptyValue()
	}
	if v.Kind != models.Number || v.Num <= serialMin || v.Num >= serialMax {
		return v
	}
	days := math.Floor(v.Num)
	frac := time.Duration(math.Round((v.Num - days) * float64(24*time.Hour)))
	return models.TimeValue(excelEpoch.AddDate(0, 0, int(days)).Add(frac))
}

// ParseDate interprets a cell as a calendar date. Numbers that survived
// serial conversion are not dates; they are never read as offsets from the
// Unix epoch.
func ParseDate(v models.Value) (time.Time, bool) {
	switch v.Kind {
	case models.Time:
		return v.At, true
	case models.Text:
		s := strings.TrimSpace(v.Str)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// NormalizeDates converts Excel serials in the date column to calendar
// dates and drops every row whose date cannot be parsed. The input is left
// untouched; a dataset without the column is returned as is.
func NormalizeDates(ds *models.Dataset, dateField string) *models.Dataset {
	idx, ok := ds.Index(dateField)
	if !ok {
		return ds
	}

	out := &models.Dataset{
		Columns: ds.Columns,
		Rows:    make([]models.Row, 0, len(ds.Rows)),
	}
	for _, row := range ds.Rows {
		if idx >= len(row) {
			continue
		}
		at, ok := ParseDate(ExcelSerialToDate(row[idx]))
		if !ok {
			continue
		}
		normalized := make(models.Row, len(row))
		copy(normalized, row)
		normalized[idx] = models.TimeValue(at)
		out.Rows = append(out.Rows, normalized)
	}
	return out
}

// monthStart truncates t to the first day of its month, keeping the wall
// clock month whatever the zone of t.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
