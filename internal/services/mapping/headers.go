package mapping

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadHeaders extracts the column headers from the first row of a tabular
// evidence file. Supports .xlsx/.xls workbooks and .csv files. Blank header
// cells are dropped; a file with no usable headers is an error.
func ReadHeaders(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return readWorkbookHeaders(path)
	case ".csv":
		return readCSVHeaders(path)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
}

func readWorkbookHeaders(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file is empty or has no header row")
	}

	return cleanHeaders(rows[0])
}

func readCSVHeaders(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("file is empty or has no header row")
	}

	return cleanHeaders(record)
}

// cleanHeaders trims each cell and drops blanks, preserving order
func cleanHeaders(raw []string) ([]string, error) {
	headers := make([]string, 0, len(raw))
	for _, cell := range raw {
		h := strings.TrimSpace(cell)
		if h != "" {
			headers = append(headers, h)
		}
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("file is empty or has no header row")
	}
	return headers, nil
}
