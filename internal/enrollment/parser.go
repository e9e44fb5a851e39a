package enrollment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one raw spreadsheet row keyed by normalized column name.
type Row map[string]string

// Get returns a trimmed cell value.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// ErrUnsupportedFormat is returned for file types the parser cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// normalizeHeader maps header spellings onto one key:
// "parentName", "parent_name" and "Parent Name" all become "parentname".
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", "")
	h = strings.ReplaceAll(h, " ", "")
	return h
}

// ParseRows reads a tabular upload into raw rows. The format is picked by
// file extension: .xlsx via excelize, .csv via encoding/csv. The first row
// is the header.
func ParseRows(r io.Reader, filename string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return parseXLSX(r)
	case ".csv":
		return parseCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func parseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("xlsx has no sheets")
	}
	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return tableToRows(cells), nil
}

func parseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	cells, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return tableToRows(cells), nil
}

func tableToRows(cells [][]string) []Row {
	if len(cells) == 0 {
		return nil
	}
	header := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		header[i] = normalizeHeader(h)
	}

	var rows []Row
	for _, rec := range cells[1:] {
		row := make(Row, len(header))
		empty := true
		for i, col := range header {
			if col == "" || i >= len(rec) {
				continue
			}
			row[col] = rec[i]
			if strings.TrimSpace(rec[i]) != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}
