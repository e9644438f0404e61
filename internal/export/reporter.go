package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/drstein77/salesdash/internal/models"
)

type TableConfig struct {
	LabelWidth int
	ValueWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		LabelWidth: 32,
		ValueWidth: 20,
	}
}

// Reporter prints a report as plain text tables.
type Reporter struct {
	writer io.Writer
	config TableConfig
	tmpl   *template.Template
}

const reportTemplate = `Sales Report: {{.FileName}}
Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05"}} UTC
Columns: {{join .Columns ", "}}
{{if .DateColumn}}Dates normalized in column: {{.DateColumn}}
{{end}}{{with .Totals}}
=== Key Performance Indicators ===
Total Sales:        {{money .Sum}}
Average Sale Value: {{money .Mean}}
Total Transactions: {{count .Count}}
{{end}}{{if .MonthlyTrend}}
=== Monthly Sales Trend ===
{{separator}}
{{row "Month" "Total Sales ($)"}}
{{separator}}
{{range .MonthlyTrend}}{{row (.Month.Format "2006-01") (money .Total)}}
{{end}}{{separator}}
{{end}}{{if .CategoryTotals}}
=== Sales by Product Category ===
{{separator}}
{{row "Category" "Total Sales ($)"}}
{{separator}}
{{range .CategoryTotals}}{{row (category .Category) (money .Total)}}
{{end}}{{separator}}
{{end}}{{if .Conditions}}
=== Notices ===
{{range .Conditions}}- {{.Message}}
{{end}}{{end}}`

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	c := &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}

	funcMap := template.FuncMap{
		"money":    FormatMoney,
		"count":    FormatCount,
		"join":     strings.Join,
		"category": CategoryLabel,
		"row": func(label, value string) string {
			return fmt.Sprintf("| %-*s | %*s |",
				c.config.LabelWidth, label,
				c.config.ValueWidth, value)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+",
				strings.Repeat("-", c.config.LabelWidth+2),
				strings.Repeat("-", c.config.ValueWidth+2))
		},
	}
	c.tmpl = template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplate))
	return c
}

func (c *Reporter) Handle(report *models.Report) error {
	if err := c.tmpl.Execute(c.writer, report); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// CategoryLabel is the display name of a category; the blank category is "(blank)".
func CategoryLabel(category string) string {
	if category == "" {
		return "(blank)"
	}
	return category
}
