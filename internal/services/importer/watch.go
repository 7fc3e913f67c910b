package importer

import (
	"fmt"
	"log"
	"strings"

	"casetrack-desktop/internal/models"
	"casetrack-desktop/internal/services/tasks"
)

// recordStarted persists the history row for a started import and returns
// its id, or "" when persistence is disabled.
func (s *Service) recordStarted(req Request, taskID, fileName string) string {
	if s.db == nil {
		return ""
	}

	record := models.ImportRecord{
		CaseID:   fmt.Sprintf("%d", req.CaseID),
		TaskID:   taskID,
		JobType:  "import",
		FileName: fileName,
		FileKind: string(req.Kind),
		Status:   "pending",
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("WARNING: failed to persist import history: %v", err)
		return ""
	}
	return record.ID
}

// watch registers the task with the registry and translates its terminal
// state into notifications and history updates.
func (s *Service) watch(caseID int, taskID, recordID, fileName string) {
	_, err := s.registry.Add(taskID, tasks.Callbacks{
		OnComplete: func(result map[string]any) {
			s.handleCompleted(caseID, recordID, fileName, result)
		},
		OnError: func(message string) {
			s.handleFailed(recordID, fileName, message)
		},
	})
	if err != nil {
		log.Printf("WARNING: failed to track task %s: %v", taskID, err)
	}
}

func (s *Service) handleCompleted(caseID int, recordID, fileName string, result map[string]any) {
	total := resultInt(result, "total_registros")
	duplicates := resultStrings(result, "lecturas_duplicadas")
	missingReaders := resultStrings(result, "lectores_no_encontrados")
	createdReaders := resultStrings(result, "nuevos_lectores_creados")

	switch {
	case len(duplicates) > 0:
		// Completion notice plus a detailed advisory listing what was
		// omitted, as two separate surfaces.
		s.notifier.Notify(Notification{
			Level: LevelWarning,
			Title: "Importación Completada con Registros Duplicados",
			Message: fmt.Sprintf("Se procesaron %d registros correctamente. %d registros duplicados fueron omitidos.",
				total, len(duplicates)),
		})
		s.notifier.Notify(Notification{
			Level:   LevelWarning,
			Title:   "Registros Duplicados Detectados",
			Message: duplicateDetail(duplicates),
		})
	case len(missingReaders) > 0:
		// The backend creates unknown readers during the import, so this is
		// a positive outcome, not a warning.
		s.notifier.Notify(Notification{
			Level: LevelInfo,
			Title: "Importación Completada con Lectores Nuevos",
			Message: fmt.Sprintf("Se procesaron %d registros correctamente. Se crearon %d lectores nuevos.",
				total, len(missingReaders)),
		})
	default:
		s.notifier.Notify(Notification{
			Level:   LevelSuccess,
			Title:   "Importación Completada",
			Message: fmt.Sprintf("Se procesaron %d registros de %s correctamente.", total, fileName),
		})
	}

	if len(createdReaders) > 0 {
		log.Printf("Import %s created %d new readers", fileName, len(createdReaders))
	}

	s.updateRecord(recordID, map[string]any{
		"status":         "completed",
		"total_records":  total,
		"duplicate_rows": len(duplicates),
		"new_readers":    len(createdReaders),
	})

	if s.onRefresh != nil {
		s.onRefresh(caseID)
	}
}

func (s *Service) handleFailed(recordID, fileName, message string) {
	s.notifier.Notify(Notification{
		Level:   LevelError,
		Title:   "Error en la Importación",
		Message: message,
	})

	s.updateRecord(recordID, map[string]any{
		"status":  "failed",
		"message": message,
	})

	log.Printf("Import of %s failed: %s", fileName, message)
}

func (s *Service) updateRecord(recordID string, fields map[string]any) {
	if s.db == nil || recordID == "" {
		return
	}
	if err := s.db.Model(&models.ImportRecord{}).Where("id = ?", recordID).Updates(fields).Error; err != nil {
		log.Printf("WARNING: failed to update import history: %v", err)
	}
}

// duplicateDetail describes the omitted duplicate rows, listing at most the
// first ten.
func duplicateDetail(duplicates []string) string {
	msg := fmt.Sprintf("La importación se completó exitosamente, pero se encontraron %d registros duplicados que no fueron importados.",
		len(duplicates))
	if len(duplicates) <= 10 {
		return msg + " Omitidos: " + strings.Join(duplicates, ", ")
	}
	return fmt.Sprintf("%s Los primeros 10: %s...", msg, strings.Join(duplicates[:10], ", "))
}

// resultInt reads an integer field from a task result, tolerating the
// float64 shape JSON decoding produces.
func resultInt(result map[string]any, key string) int {
	if result == nil {
		return 0
	}
	switch v := result[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// resultStrings reads a string list field from a task result
func resultStrings(result map[string]any, key string) []string {
	if result == nil {
		return nil
	}
	raw, ok := result[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
