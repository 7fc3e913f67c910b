package api

import (
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client := NewClient("http://backend.test", "agent", "secret", 5*time.Second)
	httpmock.ActivateNonDefault(client.http.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestUploadImport(t *testing.T) {
	t.Run("Should submit multipart upload and return task id", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("POST", "http://backend.test/casos/7/archivos/upload",
			httpmock.NewJsonResponderOrPanic(202, map[string]any{
				"task_id": "task-123",
				"message": "accepted",
			}))

		mapping := map[string]string{"Matricula": "Plate", "Fecha": "Date"}
		initiation, err := client.UploadImport(7, "captures.xlsx", []byte("fake"), "LPR", mapping)

		require.NoError(t, err)
		assert.Equal(t, "task-123", initiation.TaskID)
	})

	t.Run("Should surface backend detail on rejection", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("POST", "http://backend.test/casos/7/archivos/upload",
			httpmock.NewJsonResponderOrPanic(422, map[string]any{
				"detail": "tipo_archivo no soportado",
			}))

		_, err := client.UploadImport(7, "captures.xlsx", []byte("fake"), "BAD", nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "tipo_archivo no soportado")
	})

	t.Run("Should fail when the response has no task id", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("POST", "http://backend.test/casos/7/archivos/upload",
			httpmock.NewJsonResponderOrPanic(202, map[string]any{"message": "ok"}))

		_, err := client.UploadImport(7, "captures.xlsx", []byte("fake"), "LPR", nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no task id")
	})
}

func TestValidateReaders(t *testing.T) {
	t.Run("Should decode the reader classification lists", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("POST", "http://backend.test/casos/3/archivos/validate_lectores",
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"total_registros": 150,
				"lectores_nuevos": []map[string]any{
					{"id": "CAM-NORTE-02", "estado": "nuevo_seguro", "razon": "formato reconocido"},
				},
				"lectores_problematicos": []map[string]any{
					{"id": "1234ABC", "estado": "problematico", "razon": "parece una matrícula", "sugerencia": "revisar el mapeo de columnas"},
				},
				"lectores_existentes": []map[string]any{
					{"id": "CAM-SUR-01", "estado": "existente"},
				},
				"es_seguro_proceder": false,
				"advertencias":       []string{"Se detectaron 1 lectores problemáticos"},
			}))

		validation, err := client.ValidateReaders(3, "captures.xlsx", []byte("fake"), "LPR",
			map[string]string{"ID_Lector": "Camera"})

		require.NoError(t, err)
		assert.Equal(t, 150, validation.TotalRegistros)
		assert.False(t, validation.EsSeguroProceder)
		require.Len(t, validation.LectoresProblematicos, 1)
		assert.Equal(t, "1234ABC", validation.LectoresProblematicos[0].ID)
		assert.Equal(t, "problematico", validation.LectoresProblematicos[0].Estado)
		require.Len(t, validation.LectoresNuevos, 1)
		assert.Equal(t, "CAM-NORTE-02", validation.LectoresNuevos[0].ID)
	})
}

func TestTaskStatus(t *testing.T) {
	t.Run("Should return status snapshot for a live task", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("GET", "http://backend.test/api/tasks/task-1/status",
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"status":   "running",
				"message":  "Procesando registros",
				"progress": 42.5,
				"total":    1000,
				"stage":    "processing",
			}))

		status, err := client.TaskStatus("task-1")

		require.NoError(t, err)
		assert.Equal(t, "running", status.Status)
		assert.Equal(t, "processing", status.Stage)
		assert.InDelta(t, 42.5, status.Progress, 0.001)
		require.NotNil(t, status.Total)
		assert.Equal(t, 1000, *status.Total)
	})

	t.Run("Should map 404 to ErrTaskNotFound", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("GET", "http://backend.test/api/tasks/gone/status",
			httpmock.NewJsonResponderOrPanic(404, map[string]any{"detail": "Task ID not found"}))

		_, err := client.TaskStatus("gone")

		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestCrossWithLPR(t *testing.T) {
	t.Run("Should post filters and return task id", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("POST", "http://backend.test/api/external-data/cross-with-lpr-async",
			httpmock.NewJsonResponderOrPanic(202, map[string]any{
				"task_id": "cross-9",
				"message": "accepted",
			}))

		initiation, err := client.CrossWithLPR(CrossFilters{
			CasoID:     12,
			Matricula:  "1234ABC",
			FechaDesde: "2024-01-01",
		})

		require.NoError(t, err)
		assert.Equal(t, "cross-9", initiation.TaskID)
	})
}

func TestListCaseFiles(t *testing.T) {
	t.Run("Should decode the case file listing", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("GET", "http://backend.test/casos/5/archivos",
			httpmock.NewJsonResponderOrPanic(200, []map[string]any{
				{
					"ID_Archivo":           11,
					"ID_Caso":              5,
					"Nombre_del_Archivo":   "camaras_entrada_sur.xlsx",
					"Tipo_de_Archivo":      "LPR",
					"Fecha_de_Importacion": "2024-03-01",
					"Total_Registros":      512,
				},
			}))

		files, err := client.ListCaseFiles(5)

		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, 11, files[0].IDArchivo)
		assert.Equal(t, "LPR", files[0].TipoDeArchivo)
		assert.Equal(t, 512, files[0].TotalRegistros)
	})
}

func TestDeleteFile(t *testing.T) {
	t.Run("Should succeed on 204", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("DELETE", "http://backend.test/archivos/11",
			httpmock.NewStringResponder(204, ""))

		assert.NoError(t, client.DeleteFile(11))
	})

	t.Run("Should report the backend detail on failure", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("DELETE", "http://backend.test/archivos/11",
			httpmock.NewJsonResponderOrPanic(409, map[string]any{"detail": "archivo en uso"}))

		err := client.DeleteFile(11)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "archivo en uso")
	})
}

func TestCaseName(t *testing.T) {
	t.Run("Should fetch once and serve repeats from cache", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("GET", "http://backend.test/casos/5",
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"ID_Caso":         5,
				"Nombre_del_Caso": "Robo Banco Central",
			}))

		assert.Equal(t, "Robo Banco Central", client.CaseName(5))
		assert.Equal(t, "Robo Banco Central", client.CaseName(5))

		info := httpmock.GetCallCountInfo()
		assert.Equal(t, 1, info["GET http://backend.test/casos/5"])
	})

	t.Run("Should fall back to the id when the lookup fails", func(t *testing.T) {
		client := newTestClient(t)

		httpmock.RegisterResponder("GET", "http://backend.test/casos/8",
			httpmock.NewStringResponder(500, "boom"))

		assert.Equal(t, "caso 8", client.CaseName(8))
	})
}
