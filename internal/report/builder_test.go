package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/drstein77/salesdash/internal/models"
)

var fixedNow = time.Date(2024, time.July, 1, 9, 30, 0, 0, time.UTC)

func testBuilder(t *testing.T, fields Fields) (*Builder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	b := NewBuilder(fields, 0, zap.New(core))
	b.now = func() time.Time { return fixedNow }
	b.newID = func() string { return "report-1" }
	return b, logs
}

func scenario() *models.Dataset {
	return salesDataset(
		sale(models.NumberValue(41760), 100, "A"),
		sale(models.NumberValue(41791), 200, "B"),
		sale(models.TextValue("bad"), 50, "A"),
	)
}

func TestBuild_Scenario(t *testing.T) {
	b, logs := testBuilder(t, DefaultFields())

	rep := b.Build("sales.xlsx", scenario())

	assert.Equal(t, "report-1", rep.ID)
	assert.Equal(t, "sales.xlsx", rep.FileName)
	assert.Equal(t, fixedNow, rep.GeneratedAt)
	assert.Equal(t, "Order_Date", rep.DateColumn)
	assert.Empty(t, rep.Conditions)

	require.NotNil(t, rep.Totals)
	assertDecimal(t, "300", rep.Totals.Sum)
	assertDecimal(t, "150", rep.Totals.Mean)
	assert.Equal(t, 2, rep.Totals.Count)

	require.Len(t, rep.CategoryTotals, 2)
	assert.Equal(t, "B", rep.CategoryTotals[0].Category)
	assertDecimal(t, "200", rep.CategoryTotals[0].Total)
	assert.Equal(t, "A", rep.CategoryTotals[1].Category)
	assertDecimal(t, "100", rep.CategoryTotals[1].Total)

	require.Len(t, rep.MonthlyTrend, 2)
	assert.Equal(t, day(2014, time.May, 1), rep.MonthlyTrend[0].Month)
	assertDecimal(t, "100", rep.MonthlyTrend[0].Total)
	assert.Equal(t, day(2014, time.June, 1), rep.MonthlyTrend[1].Month)
	assertDecimal(t, "200", rep.MonthlyTrend[1].Total)

	entries := logs.FilterMessage("dates normalized").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["dropped"])
}

func TestBuild_PreviewIsRaw(t *testing.T) {
	b, _ := testBuilder(t, DefaultFields())

	rep := b.Build("sales.xlsx", scenario())

	require.Len(t, rep.Preview, 3, "preview includes rows dropped later")
	assert.Equal(t, []string{"41760", "100", "A"}, rep.Preview[0])
	assert.Equal(t, []string{"bad", "50", "A"}, rep.Preview[2])
	assert.Equal(t, []string{"Order_Date", "Sales_Amount", "Product_Category"}, rep.Columns)
}

func TestBuild_PreviewIsCapped(t *testing.T) {
	b, _ := testBuilder(t, DefaultFields())
	ds := salesDataset()
	for i := 0; i < 8; i++ {
		ds.Rows = append(ds.Rows, sale(models.NumberValue(41760), 1, "A"))
	}

	rep := b.Build("sales.xlsx", ds)

	assert.Len(t, rep.Preview, DefaultPreviewRows)
}

func TestBuild_MissingAmount(t *testing.T) {
	b, _ := testBuilder(t, DefaultFields())
	ds := &models.Dataset{
		Columns: []string{"Order_Date", "Product_Category"},
		Rows: []models.Row{
			{models.NumberValue(41760), models.TextValue("A")},
		},
	}

	rep := b.Build("sales.xlsx", ds)

	assert.Nil(t, rep.Totals)
	assert.Empty(t, rep.MonthlyTrend)
	assert.Empty(t, rep.CategoryTotals)
	assert.Len(t, rep.Preview, 1)

	require.Len(t, rep.Conditions, 1)
	cond := rep.Conditions[0]
	assert.Equal(t, "Sales_Amount", cond.Column)
	assert.Equal(t, "Required column 'Sales_Amount' not found. Please check column names.", cond.Message)
	assert.Contains(t, cond.Skipped, FeatureMonthlyTrend)
	assert.Contains(t, cond.Skipped, FeatureCategoryBar)
	assert.Contains(t, cond.Skipped, FeatureCategoryShare)
}

func TestBuild_MissingDate(t *testing.T) {
	b, logs := testBuilder(t, DefaultFields())
	ds := &models.Dataset{
		Columns: []string{"Sales_Amount", "Product_Category"},
		Rows: []models.Row{
			{models.NumberValue(10), models.TextValue("A")},
			{models.NumberValue(5), models.TextValue("B")},
		},
	}

	rep := b.Build("sales.xlsx", ds)

	require.NotNil(t, rep.Totals)
	assertDecimal(t, "15", rep.Totals.Sum)
	assert.Equal(t, 2, rep.Totals.Count)
	assert.Empty(t, rep.MonthlyTrend)
	assert.Len(t, rep.CategoryTotals, 2)
	assert.Empty(t, rep.DateColumn)
	assert.Zero(t, logs.FilterMessage("dates normalized").Len())

	require.Len(t, rep.Conditions, 1)
	assert.Equal(t, "Order_Date", rep.Conditions[0].Column)
	assert.Equal(t, []string{FeatureDateNormalization, FeatureMonthlyTrend}, rep.Conditions[0].Skipped)
}

func TestBuild_MissingCategory(t *testing.T) {
	b, _ := testBuilder(t, DefaultFields())
	ds := &models.Dataset{
		Columns: []string{"Order_Date", "Sales_Amount"},
		Rows: []models.Row{
			{models.NumberValue(41760), models.NumberValue(10)},
		},
	}

	rep := b.Build("sales.xlsx", ds)

	require.NotNil(t, rep.Totals)
	assert.Len(t, rep.MonthlyTrend, 1)
	assert.Empty(t, rep.CategoryTotals)
	require.Len(t, rep.Conditions, 1)
	assert.Equal(t, "Column 'Product_Category' not found. Category charts are not available.", rep.Conditions[0].Message)
}

func TestBuild_EmptyDataset(t *testing.T) {
	b, _ := testBuilder(t, DefaultFields())

	rep := b.Build("empty.xlsx", salesDataset())

	require.NotNil(t, rep.Totals)
	assert.True(t, rep.Totals.Sum.IsZero())
	assert.True(t, rep.Totals.Mean.IsZero())
	assert.Zero(t, rep.Totals.Count)
	assert.NotNil(t, rep.MonthlyTrend)
	assert.Empty(t, rep.MonthlyTrend)
	assert.NotNil(t, rep.CategoryTotals)
	assert.Empty(t, rep.CategoryTotals)
	assert.Empty(t, rep.Preview)
	assert.Empty(t, rep.Conditions)
}

func TestBuild_CustomFields(t *testing.T) {
	b, _ := testBuilder(t, Fields{Date: "Date", Amount: "Revenue", Category: "Segment"})
	ds := &models.Dataset{
		Columns: []string{"Date", "Revenue", "Segment"},
		Rows: []models.Row{
			{models.TextValue("2024-02-10"), models.NumberValue(7), models.TextValue("Retail")},
		},
	}

	rep := b.Build("custom.csv", ds)

	assert.Empty(t, rep.Conditions)
	require.NotNil(t, rep.Totals)
	assertDecimal(t, "7", rep.Totals.Sum)
	require.Len(t, rep.MonthlyTrend, 1)
	assert.Equal(t, day(2024, time.February, 1), rep.MonthlyTrend[0].Month)
	assert.Equal(t, "Segment", b.Fields().Category)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	b, _ := testBuilder(t, DefaultFields())
	ds := scenario()

	_ = b.Build("sales.xlsx", ds)

	assert.Len(t, ds.Rows, 3)
	assert.Equal(t, models.Number, ds.Rows[0][0].Kind)
}
