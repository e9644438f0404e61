package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/drstein77/salesdash/internal/charts"
	"github.com/drstein77/salesdash/internal/compress"
	"github.com/drstein77/salesdash/internal/models"
)

// Bundle entry names.
const (
	BundleReport   = "report.json"
	BundleWorkbook = "summary.xlsx"
)

// WriteBundle writes a zip archive holding the JSON report, the summary
// workbook and one PNG per chart the report has data for.
func WriteBundle(w io.Writer, rep *models.Report, size charts.Size) error {
	images, err := charts.ForReport(rep, size)
	if err != nil {
		return err
	}

	var workbook bytes.Buffer
	if err := WriteWorkbook(&workbook, rep); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	type entry struct {
		name string
		data []byte
	}
	entries := []entry{
		{BundleReport, payload},
		{BundleWorkbook, workbook.Bytes()},
	}
	for _, img := range images {
		entries = append(entries, entry{img.Name + ".png", img.PNG})
	}

	zw := compress.NewZipWriter(w)

	for _, e := range entries {
		if err := zw.Next(e.name); err != nil {
			return err
		}
		if _, err := zw.Write(e.data); err != nil {
			return fmt.Errorf("writing %s: %w", e.name, err)
		}
	}
	return zw.Close()
}
