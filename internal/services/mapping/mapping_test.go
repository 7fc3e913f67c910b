package mapping

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"casetrack-desktop/internal/services/schema"
)

func TestAutoMap(t *testing.T) {
	t.Run("Should map a typical export by alias", func(t *testing.T) {
		m, err := New(schema.KindLPR)
		require.NoError(t, err)

		mapped := m.AutoMap([]string{"Plate", "Date", "Time", "Camera", "Lane"})

		assert.Equal(t, 5, mapped)
		assert.Equal(t, "Plate", m.Header(schema.FieldMatricula))
		assert.Equal(t, "Date", m.Header(schema.FieldFecha))
		assert.Equal(t, "Time", m.Header(schema.FieldHora))
		assert.Equal(t, "Camera", m.Header(schema.FieldIDLector))
		assert.Equal(t, "Lane", m.Header(schema.FieldCarril))
		assert.True(t, m.IsComplete())
	})

	t.Run("Should never claim one header for two fields", func(t *testing.T) {
		m, err := New(schema.KindGPS)
		require.NoError(t, err)

		// "timestamp" is an alias of Hora only; "fecha" of Fecha only. A
		// single column can still satisfy at most one field.
		m.AutoMap([]string{"matricula", "timestamp"})

		headers := map[string]bool{}
		for field, header := range m.Payload() {
			if field == schema.CombinedFormatKey {
				continue
			}
			assert.False(t, headers[header], "header %s assigned twice", header)
			headers[header] = true
		}
	})

	t.Run("Should match aliases case-insensitively but keep the raw header", func(t *testing.T) {
		m, err := New(schema.KindLPR)
		require.NoError(t, err)

		m.AutoMap([]string{"MATRICULA", "FECHA", "HORA", "LECTOR"})

		assert.Equal(t, "MATRICULA", m.Header(schema.FieldMatricula))
		assert.Equal(t, "LECTOR", m.Header(schema.FieldIDLector))
	})

	t.Run("Should be deterministic for a fixed header order", func(t *testing.T) {
		headers := []string{"lat", "lon", "y", "x", "fecha", "hora"}

		first, err := New(schema.KindGPXKML)
		require.NoError(t, err)
		second, err := New(schema.KindGPXKML)
		require.NoError(t, err)

		first.AutoMap(headers)
		second.AutoMap(headers)

		assert.Equal(t, first.Payload(), second.Payload())
		// Earlier headers win: "lon"/"lat" beat the bare "x"/"y" columns.
		assert.Equal(t, "lon", first.Header(schema.FieldCoordenadaX))
		assert.Equal(t, "lat", first.Header(schema.FieldCoordenadaY))
	})

	t.Run("Should discard previous assignments on re-run", func(t *testing.T) {
		m, err := New(schema.KindLPR)
		require.NoError(t, err)

		require.NoError(t, m.Assign(schema.FieldVelocidad, "OldSpeed"))
		m.AutoMap([]string{"plate", "date", "time", "camera"})

		assert.Empty(t, m.Header(schema.FieldVelocidad))
	})

	t.Run("Should leave fields without aliases unmapped", func(t *testing.T) {
		m, err := New(schema.KindGPXKML)
		require.NoError(t, err)

		m.AutoMap([]string{"fecha", "hora", "lon", "lat", "Altitud", "Precision"})

		assert.Empty(t, m.Header(schema.FieldAltitud))
		assert.Empty(t, m.Header(schema.FieldPrecision))
	})
}

func TestAutoMapExact(t *testing.T) {
	t.Run("Should bind canonical headers including alias-less fields", func(t *testing.T) {
		m, err := New(schema.KindGPXKML)
		require.NoError(t, err)

		mapped := m.AutoMapExact([]string{"Fecha", "Hora", "Coordenada_X", "Coordenada_Y", "Altitud"})

		assert.Equal(t, 5, mapped)
		assert.Equal(t, "Altitud", m.Header(schema.FieldAltitud))
		assert.True(t, m.IsComplete())
	})
}

func TestManualAssignment(t *testing.T) {
	t.Run("Should reject fields that do not apply to the kind", func(t *testing.T) {
		m, err := New(schema.KindExterno)
		require.NoError(t, err)

		err = m.Assign(schema.FieldCarril, "Lane")
		assert.Error(t, err)
	})

	t.Run("Should report missing required fields in declaration order", func(t *testing.T) {
		m, err := New(schema.KindLPR)
		require.NoError(t, err)

		require.NoError(t, m.Assign(schema.FieldFecha, "Date"))

		assert.Equal(t, []string{schema.FieldMatricula, schema.FieldHora, schema.FieldIDLector}, m.MissingRequired())
		assert.False(t, m.IsComplete())
	})

	t.Run("Should become incomplete again after clearing a required field", func(t *testing.T) {
		m, err := New(schema.KindGPS)
		require.NoError(t, err)

		m.AutoMap([]string{"matricula", "fecha", "hora"})
		require.True(t, m.IsComplete())

		m.Clear(schema.FieldHora)
		assert.False(t, m.IsComplete())
	})
}

func TestCombinedMode(t *testing.T) {
	t.Run("Should bind one column to both date and time", func(t *testing.T) {
		m, err := New(schema.KindLPR)
		require.NoError(t, err)

		require.NoError(t, m.SetCombinedFormat("YYYY-MM-DD HH:mm:ss"))
		require.NoError(t, m.AssignCombined("Timestamp"))

		assert.Equal(t, "Timestamp", m.Header(schema.FieldFecha))
		assert.Equal(t, "Timestamp", m.Header(schema.FieldHora))
	})

	t.Run("Should include the format key in the payload", func(t *testing.T) {
		m, err := New(schema.KindGPS)
		require.NoError(t, err)

		require.NoError(t, m.SetCombinedFormat(schema.DefaultCombinedFormat))
		require.NoError(t, m.AssignCombined("fecha_hora"))
		require.NoError(t, m.Assign(schema.FieldMatricula, "plate"))

		payload := m.Payload()
		assert.Equal(t, schema.DefaultCombinedFormat, payload[schema.CombinedFormatKey])
		assert.Equal(t, "fecha_hora", payload[schema.FieldFecha])
		assert.Equal(t, "fecha_hora", payload[schema.FieldHora])
	})

	t.Run("Should drop the format key when combined mode is disabled", func(t *testing.T) {
		m, err := New(schema.KindGPS)
		require.NoError(t, err)

		require.NoError(t, m.SetCombinedFormat(schema.DefaultCombinedFormat))
		m.DisableCombined()

		_, present := m.Payload()[schema.CombinedFormatKey]
		assert.False(t, present)
	})

	t.Run("Should reject unknown layouts", func(t *testing.T) {
		m, err := New(schema.KindLPR)
		require.NoError(t, err)

		assert.Error(t, m.SetCombinedFormat("YYYY.MM.DD"))
	})

	t.Run("Should refuse combined assignment when mode is off", func(t *testing.T) {
		m, err := New(schema.KindLPR)
		require.NoError(t, err)

		assert.Error(t, m.AssignCombined("Timestamp"))
	})
}

func TestReadHeaders(t *testing.T) {
	t.Run("Should read the first row of a workbook", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "captures.xlsx")

		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Plate", "Date", " Time ", ""}))
		require.NoError(t, f.SaveAs(path))

		headers, err := ReadHeaders(path)

		require.NoError(t, err)
		assert.Equal(t, []string{"Plate", "Date", "Time"}, headers)
	})

	t.Run("Should read the first record of a csv file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "captures.csv")

		f, err := os.Create(path)
		require.NoError(t, err)
		w := csv.NewWriter(f)
		require.NoError(t, w.WriteAll([][]string{
			{"matricula", "fecha", "hora"},
			{"1234ABC", "01/02/2024", "10:30:00"},
		}))
		require.NoError(t, f.Close())

		headers, err := ReadHeaders(path)

		require.NoError(t, err)
		assert.Equal(t, []string{"matricula", "fecha", "hora"}, headers)
	})

	t.Run("Should fail on a workbook with only blank headers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blank.xlsx")

		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"", "  ", ""}))
		require.NoError(t, f.SaveAs(path))

		_, err := ReadHeaders(path)

		assert.ErrorContains(t, err, "no header row")
	})

	t.Run("Should fail on an empty csv file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.csv")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, err := ReadHeaders(path)

		assert.ErrorContains(t, err, "no header row")
	})

	t.Run("Should reject unsupported extensions", func(t *testing.T) {
		_, err := ReadHeaders("notes.txt")
		assert.ErrorContains(t, err, "unsupported file extension")
	})
}
