// Package crossref starts and tracks asynchronous cross-references between
// external records and LPR captures.
package crossref

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"casetrack-desktop/internal/api"
	"casetrack-desktop/internal/models"
	"casetrack-desktop/internal/services/importer"
	"casetrack-desktop/internal/services/tasks"
)

// Client is the backend surface the cross-reference service needs
type Client interface {
	CrossWithLPR(filters api.CrossFilters) (*api.UploadInitiation, error)
}

// Service runs cross-reference jobs
type Service struct {
	client   Client
	registry *tasks.Registry
	notifier importer.Notifier
	db       *gorm.DB
}

// NewService creates the cross-reference service. db and notifier may be nil.
func NewService(client Client, registry *tasks.Registry, notifier importer.Notifier, db *gorm.DB) *Service {
	if notifier == nil {
		notifier = importer.NopNotifier{}
	}
	return &Service{client: client, registry: registry, notifier: notifier, db: db}
}

// Result summarizes a finished cross-reference
type Result struct {
	TotalMatches int
	UniquePlates int
	Limited      bool
}

// Start launches an asynchronous cross-reference and tracks it until it
// finishes. onDone, when set, receives the summarized result.
func (s *Service) Start(filters api.CrossFilters, onDone func(Result)) (string, error) {
	if filters.CasoID <= 0 {
		return "", fmt.Errorf("a case id is required to cross-reference")
	}

	initiation, err := s.client.CrossWithLPR(filters)
	if err != nil {
		return "", fmt.Errorf("failed to start cross-reference: %w", err)
	}

	recordID := s.recordStarted(filters, initiation.TaskID)

	_, err = s.registry.Add(initiation.TaskID, tasks.Callbacks{
		OnComplete: func(result map[string]any) {
			s.handleCompleted(recordID, result, onDone)
		},
		OnError: func(message string) {
			s.handleFailed(recordID, message)
		},
	})
	if err != nil {
		log.Printf("WARNING: failed to track task %s: %v", initiation.TaskID, err)
	}

	s.notifier.Notify(importer.Notification{
		Level:   importer.LevelInfo,
		Title:   "Búsqueda iniciada",
		Message: initiation.Message,
	})

	log.Printf("Cross-reference accepted for caso %d (task %s)", filters.CasoID, initiation.TaskID)
	return initiation.TaskID, nil
}

func (s *Service) handleCompleted(recordID string, result map[string]any, onDone func(Result)) {
	summary := summarize(result)

	if summary.TotalMatches == 0 {
		s.notifier.Notify(importer.Notification{
			Level:   importer.LevelWarning,
			Title:   "Búsqueda completada",
			Message: "No se encontraron coincidencias con los filtros especificados",
		})
	} else {
		message := fmt.Sprintf("Se encontraron %d coincidencias para %d matrícula%s diferentes",
			summary.TotalMatches, summary.UniquePlates, plural(summary.UniquePlates))
		level := importer.LevelSuccess
		if summary.Limited {
			message += ". Resultados limitados para optimizar rendimiento - use filtros más específicos para ver todas las coincidencias."
			level = importer.LevelWarning
		}
		s.notifier.Notify(importer.Notification{
			Level:   level,
			Title:   "Búsqueda completada",
			Message: message,
		})
	}

	s.updateRecord(recordID, map[string]any{
		"status":        "completed",
		"total_records": summary.TotalMatches,
	})

	if onDone != nil {
		onDone(summary)
	}
}

func (s *Service) handleFailed(recordID, message string) {
	s.notifier.Notify(importer.Notification{
		Level:   importer.LevelError,
		Title:   "Error en búsqueda",
		Message: FriendlyError(message),
	})
	s.updateRecord(recordID, map[string]any{
		"status":  "failed",
		"message": message,
	})
}

// summarize extracts match counts from the raw task result
func summarize(result map[string]any) Result {
	rows, _ := result["results"].([]any)
	summary := Result{TotalMatches: len(rows)}

	if total, ok := result["total_matches"].(float64); ok && total > 0 {
		summary.TotalMatches = int(total)
	}
	if limited, ok := result["limited"].(bool); ok {
		summary.Limited = limited
	}

	plates := make(map[string]bool)
	for _, row := range rows {
		if m, ok := row.(map[string]any); ok {
			if plate, ok := m["matricula"].(string); ok {
				plates[plate] = true
			}
		}
	}
	summary.UniquePlates = len(plates)

	return summary
}

func (s *Service) recordStarted(filters api.CrossFilters, taskID string) string {
	if s.db == nil {
		return ""
	}
	record := models.ImportRecord{
		CaseID:  fmt.Sprintf("%d", filters.CasoID),
		TaskID:  taskID,
		JobType: "cross_reference",
		Status:  "pending",
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("WARNING: failed to persist cross-reference history: %v", err)
		return ""
	}
	return record.ID
}

func (s *Service) updateRecord(recordID string, fields map[string]any) {
	if s.db == nil || recordID == "" {
		return
	}
	if err := s.db.Model(&models.ImportRecord{}).Where("id = ?", recordID).Updates(fields).Error; err != nil {
		log.Printf("WARNING: failed to update cross-reference history: %v", err)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
