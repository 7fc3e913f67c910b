package track

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"casetrack-desktop/internal/services/schema"
)

const workbookSheet = "Datos"

// Workbook builds the upload spreadsheet for the track: one row per point,
// the track's own columns plus a Matricula column bound to the given plate.
// The result is submitted as a GPS import.
func (t *Track) Workbook(plate string) ([]byte, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, fmt.Errorf("a plate is required to import a track")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), workbookSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	columns := append(append([]string(nil), t.Headers...), schema.FieldMatricula)
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(workbookSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, point := range t.Points {
		row := make([]any, 0, len(columns))
		for _, column := range columns {
			row = append(row, point.cell(column, plate))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(workbookSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}

	return buf.Bytes(), nil
}

// cell returns the value of one column for the point. Absent optional values
// become empty cells.
func (p Point) cell(column, plate string) any {
	switch column {
	case schema.FieldFecha:
		return p.Fecha
	case schema.FieldHora:
		return p.Hora
	case schema.FieldCoordenadaX:
		return p.CoordenadaX
	case schema.FieldCoordenadaY:
		return p.CoordenadaY
	case schema.FieldAltitud:
		if p.Altitud != nil {
			return *p.Altitud
		}
		return ""
	case schema.FieldVelocidad:
		if p.Velocidad != nil {
			return *p.Velocidad
		}
		return ""
	case schema.FieldMatricula:
		return plate
	default:
		return ""
	}
}

// WorkbookName derives the upload file name from the track file name,
// swapping the track extension for .xlsx.
func WorkbookName(original string) string {
	base := filepath.Base(original)
	ext := filepath.Ext(base)
	switch strings.ToLower(ext) {
	case ".gpx", ".kml":
		return strings.TrimSuffix(base, ext) + ".xlsx"
	default:
		return base
	}
}
