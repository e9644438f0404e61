// Package sheet loads uploaded spreadsheets into datasets.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/drstein77/salesdash/internal/models"
)

var (
	ErrUnreadable        = errors.New("unreadable spreadsheet")
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

const (
	formatXLSX = ".xlsx"
	formatXLS  = ".xls"
	formatCSV  = ".csv"
)

// Supported reports whether a file name carries an extension Load accepts.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case formatXLSX, ".xlsm", formatXLS, formatCSV:
		return true
	}
	return false
}

// Load reads the first worksheet of the named file. The first row is the
// header; every other row becomes a dataset row.
func Load(name string, r io.Reader) (*models.Dataset, error) {
	if !Supported(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %w", ErrUnreadable, err)
	}

	var rows [][]models.Value
	switch strings.ToLower(filepath.Ext(name)) {
	case formatXLS:
		rows, err = readXLS(data)
	case formatCSV:
		rows, err = readCSV(data)
	default:
		rows, err = readXLSX(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return toDataset(rows), nil
}

func readXLSX(data []byte) ([][]models.Value, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no worksheet found")
	}
	sheet := sheets[0]
	// Raw values keep date cells as serial numbers.
	raw, err := file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	rows := make([][]models.Value, len(raw))
	for r, cells := range raw {
		rows[r] = make([]models.Value, len(cells))
		for c, cell := range cells {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			typ, err := file.GetCellType(sheet, name)
			if err != nil {
				return nil, fmt.Errorf("reading cell %s: %w", name, err)
			}
			rows[r][c] = xlsxValue(typ, cell)
		}
	}
	return rows, nil
}

// xlsxValue keeps text cells as text even when they look numeric, so codes
// like "00123" survive.
func xlsxValue(typ excelize.CellType, raw string) models.Value {
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeDate:
		return textValue(raw)
	case excelize.CellTypeBool:
		return boolValue(raw == "1")
	case excelize.CellTypeError:
		return models.EmptyValue()
	default:
		return models.ParseCell(raw)
	}
}

// readCSV infers cell kinds from the text since CSV carries no types.
func readCSV(data []byte) ([][]models.Value, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	rows := make([][]models.Value, len(records))
	for r, record := range records {
		rows[r] = make([]models.Value, len(record))
		for c, cell := range record {
			rows[r][c] = models.ParseCell(cell)
		}
	}
	return rows, nil
}

func textValue(s string) models.Value {
	if strings.TrimSpace(s) == "" {
		return models.EmptyValue()
	}
	return models.TextValue(s)
}

func boolValue(b bool) models.Value {
	if b {
		return models.TextValue("TRUE")
	}
	return models.TextValue("FALSE")
}

// toDataset turns raw rows into a dataset. Blank rows are skipped, short
// rows are padded, blank or repeated header names are made unique.
func toDataset(rows [][]models.Value) *models.Dataset {
	ds := &models.Dataset{Columns: []string{}, Rows: []models.Row{}}

	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return ds
	}

	header := make([]string, len(rows[start]))
	for i, cell := range rows[start] {
		header[i] = cell.String()
	}
	ds.Columns = headerNames(header)
	for _, raw := range rows[start+1:] {
		if isBlank(raw) {
			continue
		}
		if len(raw) > len(ds.Columns) {
			for i := len(ds.Columns); i < len(raw); i++ {
				ds.Columns = append(ds.Columns, unnamed(i))
			}
		}
		row := make(models.Row, len(ds.Columns))
		for i := range row {
			if i < len(raw) {
				row[i] = raw[i]
			}
		}
		ds.Rows = append(ds.Rows, row)
	}

	// Rows read before a wider row was seen are shorter than the header.
	for i, row := range ds.Rows {
		if len(row) < len(ds.Columns) {
			padded := make(models.Row, len(ds.Columns))
			copy(padded, row)
			ds.Rows[i] = padded
		}
	}
	return ds
}

func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, cell := range raw {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = unnamed(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

func unnamed(i int) string {
	return "Unnamed: " + strconv.Itoa(i)
}

func isBlank(row []models.Value) bool {
	for _, cell := range row {
		if !cell.IsMissing() {
			return false
		}
	}
	return true
}
