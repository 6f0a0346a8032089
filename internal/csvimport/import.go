// Package csvimport extracts candidate LinkedIn URLs from uploaded CSV or XLSX files.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jonathan/shortlist/internal/linkedin"
)

// Default limits for uploads.
const (
	DefaultMaxRows  = 200
	DefaultMaxBytes = 5 << 20
)

// ErrTooManyRows is returned when the file has more data rows than allowed.
var ErrTooManyRows = errors.New("too many rows")

// ErrFileTooLarge is returned when the file exceeds the byte cap.
var ErrFileTooLarge = errors.New("file too large")

// Options configures Parse.
type Options struct {
	MaxRows  int
	MaxBytes int64
}

// DefaultOptions returns the upload limits used by the API.
func DefaultOptions() Options {
	return Options{MaxRows: DefaultMaxRows, MaxBytes: DefaultMaxBytes}
}

// Result holds the URLs found in a file.
type Result struct {
	URLs          []string `json:"urls"`
	HeaderSkipped bool     `json:"header_skipped"`
	Rows          int      `json:"rows"`
	EmptyRows     int      `json:"empty_rows"`
}

// Parse reads rows from r. Files named *.xlsx are read as spreadsheets (first sheet),
// anything else as CSV. For each row the first cell containing "linkedin.com" is used,
// falling back to the first column.
func Parse(r io.Reader, filename string, opts Options) (*Result, error) {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, opts.MaxBytes)
	}

	var rows [][]string
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		rows, err = readXLSX(data)
	} else {
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}

	return extract(rows, opts.MaxRows)
}

func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func extract(rows [][]string, maxRows int) (*Result, error) {
	res := &Result{URLs: []string{}}
	if len(rows) == 0 {
		return res, nil
	}

	start := 0
	if len(rows) > 1 && isHeader(rows[0]) {
		res.HeaderSkipped = true
		start = 1
	}

	for _, row := range rows[start:] {
		if rowIsBlank(row) {
			res.EmptyRows++
			continue
		}
		res.Rows++
		if res.Rows > maxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, maxRows)
		}
		if u := urlFromRow(row); u != "" {
			res.URLs = append(res.URLs, u)
		} else {
			res.EmptyRows++
		}
	}
	return res, nil
}

// isHeader treats a non-blank first row without any LinkedIn cell as a
// header. extract only asks when the file has more than one row.
func isHeader(row []string) bool {
	for _, cell := range row {
		if linkedin.ContainsLinkedIn(cell) {
			return false
		}
	}
	return !rowIsBlank(row)
}

func urlFromRow(row []string) string {
	for _, cell := range row {
		if linkedin.ContainsLinkedIn(cell) {
			return strings.TrimSpace(cell)
		}
	}
	if len(row) > 0 {
		return strings.TrimSpace(row[0])
	}
	return ""
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
