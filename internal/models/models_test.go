package models

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind Kind
	}{
		{"", Empty},
		{"   ", Empty},
		{"41760", Number},
		{" 12.5 ", Number},
		{"-3", Number},
		{"1e3", Number},
		{"Electronics", Text},
		{"2024-01-05", Text},
		{"1e999", Text},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, ParseCell(tt.raw).Kind)
		})
	}

	assert.Equal(t, 12.5, ParseCell(" 12.5 ").Num)
	assert.Equal(t, "Electronics", ParseCell("Electronics").Str)
}

func TestValue_IsMissing(t *testing.T) {
	assert.True(t, EmptyValue().IsMissing())
	assert.True(t, NumberValue(math.NaN()).IsMissing())
	assert.False(t, NumberValue(0).IsMissing())
	assert.False(t, TextValue("").IsMissing())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "41760", NumberValue(41760).String())
	assert.Equal(t, "0.1", NumberValue(0.1).String())
	assert.Equal(t, "A", TextValue("A").String())
	assert.Equal(t, "", EmptyValue().String())
	assert.Equal(t, "2014-05-01", TimeValue(time.Date(2014, 5, 1, 0, 0, 0, 0, time.UTC)).String())
	assert.Equal(t, "2014-05-01 12:00:00", TimeValue(time.Date(2014, 5, 1, 12, 0, 0, 0, time.UTC)).String())
}

func TestDataset_Index(t *testing.T) {
	ds := &Dataset{Columns: []string{"Order_Date", "Sales_Amount"}}

	idx, ok := ds.Index("Sales_Amount")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = ds.Index("sales_amount")
	assert.False(t, ok, "column lookup is case sensitive")
	assert.True(t, ds.Has("Order_Date"))
}

func TestDataset_Head(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"a", "b", "c"},
		Rows: []Row{
			{NumberValue(1), TextValue("x")},
			{NumberValue(2), TextValue("y"), EmptyValue()},
			{NumberValue(3)},
		},
	}

	assert.Equal(t, [][]string{{"1", "x", ""}, {"2", "y", ""}}, ds.Head(2))
	assert.Len(t, ds.Head(10), 3)
	assert.Empty(t, ds.Head(0))
}

func TestReport_Summarize(t *testing.T) {
	at := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	rep := &Report{
		ID:          "r1",
		FileName:    "sales.xlsx",
		GeneratedAt: at,
		Totals: &Totals{
			Sum:   decimal.NewFromInt(300),
			Mean:  decimal.NewFromInt(150),
			Count: 2,
		},
		CategoryTotals: []CategoryTotal{{Category: "B", Total: decimal.NewFromInt(200)}},
	}

	s := rep.Summarize()

	assert.Equal(t, "r1", s.ID)
	assert.Equal(t, at, s.GeneratedAt)
	assert.Equal(t, 2, s.RowCount)
	assert.True(t, s.TotalSales.Equal(decimal.NewFromInt(300)))
	assert.True(t, s.AverageSale.Equal(decimal.NewFromInt(150)))
	assert.Len(t, s.Categories, 1)

	rep.Totals = nil
	s = rep.Summarize()
	assert.Zero(t, s.RowCount)
	assert.True(t, s.TotalSales.IsZero())
}
