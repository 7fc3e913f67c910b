package readers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casetrack-desktop/internal/api"
)

func TestEvaluate(t *testing.T) {
	t.Run("Should proceed when every reader already exists", func(t *testing.T) {
		report, err := Evaluate(&api.ReaderValidation{
			TotalRegistros:     100,
			LectoresExistentes: []api.ReaderCheck{{ID: "CAM-01", Estado: "existente"}},
			EsSeguroProceder:   true,
		})

		require.NoError(t, err)
		assert.Equal(t, DecisionProceed, report.Decision)
	})

	t.Run("Should ask for confirmation when new readers would be created", func(t *testing.T) {
		report, err := Evaluate(&api.ReaderValidation{
			TotalRegistros:   50,
			LectoresNuevos:   []api.ReaderCheck{{ID: "CAM-NORTE-02", Estado: "nuevo_seguro"}},
			EsSeguroProceder: true,
		})

		require.NoError(t, err)
		assert.Equal(t, DecisionConfirm, report.Decision)
	})

	t.Run("Should block on problematic readers even if the backend says safe", func(t *testing.T) {
		report, err := Evaluate(&api.ReaderValidation{
			TotalRegistros: 50,
			LectoresProblematicos: []api.ReaderCheck{
				{ID: "1234ABC", Estado: "problematico", Razon: "parece una matrícula"},
			},
			EsSeguroProceder: true,
		})

		require.NoError(t, err)
		assert.Equal(t, DecisionBlocked, report.Decision)
		assert.False(t, report.Validation.EsSeguroProceder)
	})

	t.Run("Should ask for confirmation when the backend flags unsafe without detail", func(t *testing.T) {
		report, err := Evaluate(&api.ReaderValidation{
			TotalRegistros:   10,
			EsSeguroProceder: false,
		})

		require.NoError(t, err)
		assert.Equal(t, DecisionConfirm, report.Decision)
	})

	t.Run("Should refuse to decide on a failed validation", func(t *testing.T) {
		_, err := Evaluate(&api.ReaderValidation{
			Error:        "columna ID_Lector no encontrada",
			Advertencias: []string{"Error al validar el archivo"},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "columna ID_Lector no encontrada")
	})

	t.Run("Should reject a nil validation", func(t *testing.T) {
		_, err := Evaluate(nil)
		assert.Error(t, err)
	})
}

func TestSummary(t *testing.T) {
	t.Run("Should describe the outcome in one line", func(t *testing.T) {
		report, err := Evaluate(&api.ReaderValidation{
			TotalRegistros:     120,
			LectoresExistentes: []api.ReaderCheck{{ID: "A"}, {ID: "B"}},
			LectoresNuevos:     []api.ReaderCheck{{ID: "C"}},
			EsSeguroProceder:   true,
		})
		require.NoError(t, err)

		assert.Equal(t, "120 records: 2 existing, 1 new, 0 problematic readers (confirm)", report.Summary())
	})
}
