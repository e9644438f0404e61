// Package charts renders report data as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/drstein77/salesdash/internal/models"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no chart data")

const (
	TitleMonthlyTrend  = "Monthly Sales Trend"
	TitleCategorySales = "Sales by Product Category"
	TitleCategoryShare = "Sales Share by Category"

	axisSales = "Total Sales ($)"
)

// Size is the pixel size of rendered charts.
type Size struct {
	Width  int
	Height int
}

var DefaultSize = Size{Width: 960, Height: 420}

// MonthlyTrend draws the monthly totals as a line chart.
func MonthlyTrend(trend []models.MonthTotal, size Size) ([]byte, error) {
	if len(trend) == 0 {
		return nil, ErrNoData
	}

	xs := make([]time.Time, 0, len(trend)+1)
	ys := make([]float64, 0, len(trend)+1)
	for _, m := range trend {
		xs = append(xs, m.Month)
		ys = append(ys, m.Total.InexactFloat64())
	}
	// A single point has no x range; draw it as a flat segment over its month.
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 1, 0).Add(-time.Second))
		ys = append(ys, ys[0])
	}

	graph := chart.Chart{
		Title:  TitleMonthlyTrend,
		Width:  size.Width,
		Height: size.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01"),
		},
		YAxis: chart.YAxis{
			Name:  axisSales,
			Range: valueRange(ys),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    axisSales,
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return render(graph.Render)
}

// CategoryBar draws the category totals as a bar chart, in the given order.
func CategoryBar(totals []models.CategoryTotal, size Size) ([]byte, error) {
	if len(totals) == 0 {
		return nil, ErrNoData
	}

	bars := make([]chart.Value, 0, len(totals))
	ys := make([]float64, 0, len(totals))
	for _, c := range totals {
		v := c.Total.InexactFloat64()
		bars = append(bars, chart.Value{Label: label(c.Category), Value: v})
		ys = append(ys, v)
	}

	graph := chart.BarChart{
		Title:    TitleCategorySales,
		Width:    size.Width,
		Height:   size.Height,
		BarWidth: barWidth(len(bars), size.Width),
		Background: chart.Style{
			Padding: chart.Box{Top: 50},
		},
		YAxis: chart.YAxis{
			Name:  axisSales,
			Range: valueRange(ys),
		},
		Bars: bars,
	}
	return render(graph.Render)
}

// CategoryDonut draws each category's share of total sales. Categories
// with a total of zero or less have no share and are left out.
func CategoryDonut(totals []models.CategoryTotal, size Size) ([]byte, error) {
	values := make([]chart.Value, 0, len(totals))
	for _, c := range totals {
		if !c.Total.IsPositive() {
			continue
		}
		values = append(values, chart.Value{Label: label(c.Category), Value: c.Total.InexactFloat64()})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	graph := chart.DonutChart{
		Title:  TitleCategoryShare,
		Width:  size.Height,
		Height: size.Height,
		Values: values,
	}
	return render(graph.Render)
}

func render(fn func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}
	return buf.Bytes(), nil
}

// valueRange always includes zero and never collapses to a single value,
// which go-chart refuses to draw.
func valueRange(ys []float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, y := range ys {
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	if lo == hi {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi * 1.05}
}

func barWidth(n, width int) int {
	w := width / (2 * n)
	if w > 80 {
		return 80
	}
	if w < 8 {
		return 8
	}
	return w
}

func label(category string) string {
	if category == "" {
		return "(blank)"
	}
	return category
}

// Image is one rendered chart of a report.
type Image struct {
	Name  string
	Title string
	PNG   []byte
}

// ForReport renders every chart the report has data for, in display order.
func ForReport(rep *models.Report, size Size) ([]Image, error) {
	builders := []struct {
		name  string
		title string
		draw  func() ([]byte, error)
	}{
		{"monthly_trend", TitleMonthlyTrend, func() ([]byte, error) { return MonthlyTrend(rep.MonthlyTrend, size) }},
		{"category_sales", TitleCategorySales, func() ([]byte, error) { return CategoryBar(rep.CategoryTotals, size) }},
		{"category_share", TitleCategoryShare, func() ([]byte, error) { return CategoryDonut(rep.CategoryTotals, size) }},
	}

	var images []Image
	for _, b := range builders {
		png, err := b.draw()
		if errors.Is(err, ErrNoData) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		images = append(images, Image{Name: b.name, Title: b.title, PNG: png})
	}
	return images, nil
}
