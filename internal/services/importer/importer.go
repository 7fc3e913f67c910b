// Package importer drives the end-to-end import of an evidence file: column
// mapping, reader pre-validation, upload, and tracking of the backend task
// until it finishes.
package importer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"casetrack-desktop/internal/api"
	"casetrack-desktop/internal/services/mapping"
	"casetrack-desktop/internal/services/readers"
	"casetrack-desktop/internal/services/schema"
	"casetrack-desktop/internal/services/tasks"
	"casetrack-desktop/internal/services/track"
)

// Client is the backend surface the importer depends on
type Client interface {
	UploadImport(caseID int, fileName string, fileData []byte, fileKind string, columnMapping map[string]string) (*api.UploadInitiation, error)
	ValidateReaders(caseID int, fileName string, fileData []byte, fileKind string, columnMapping map[string]string) (*api.ReaderValidation, error)
}

// Service orchestrates evidence imports
type Service struct {
	client   Client
	registry *tasks.Registry
	notifier Notifier
	db       *gorm.DB
	// onRefresh is called when an import finishes so listings can reload
	onRefresh func(caseID int)
}

// NewService creates the import orchestrator. db and notifier may be nil;
// history persistence and notifications are skipped respectively.
func NewService(client Client, registry *tasks.Registry, notifier Notifier, db *gorm.DB) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		client:   client,
		registry: registry,
		notifier: notifier,
		db:       db,
	}
}

// SetRefreshHook registers a callback invoked after an import completes
func (s *Service) SetRefreshHook(hook func(caseID int)) {
	s.onRefresh = hook
}

// Request describes one import attempt
type Request struct {
	CaseID   int
	FilePath string
	Kind     schema.ImportKind

	// Mapping overrides the automatic column mapping when set
	Mapping *mapping.Mapping

	// Plate is required for track imports, which carry no plate of their own
	Plate string

	// ConfirmNewReaders acknowledges that the upload may create new readers
	ConfirmNewReaders bool
}

// Outcome is the result of starting an import. When NeedsConfirmation is set
// no upload happened: the caller must ask the operator and retry with
// ConfirmNewReaders.
type Outcome struct {
	TaskID            string
	NeedsConfirmation bool
	ReaderReport      *readers.Report
}

// tabularExtensions are accepted for LPR, GPS and external imports
var tabularExtensions = map[string]bool{".xlsx": true, ".xls": true, ".csv": true}

// trackExtensions are accepted for track imports
var trackExtensions = map[string]bool{".gpx": true, ".kml": true}

// Import runs the full pipeline for one file. It returns as soon as the
// backend accepts the upload; progress is then reported asynchronously
// through the task registry and the notifier.
func (s *Service) Import(req Request) (*Outcome, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("unsupported import kind: %s", req.Kind)
	}
	if err := checkExtension(req.Kind, req.FilePath); err != nil {
		return nil, err
	}

	fileName, fileData, m, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	if missing := m.MissingRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("incomplete column mapping, missing: %s", strings.Join(missing, ", "))
	}

	// Reader gate applies to LPR files only; other kinds carry no readers
	// worth pre-validating.
	if req.Kind == schema.KindLPR {
		outcome, err := s.gateReaders(req, fileName, fileData, m)
		if err != nil || outcome != nil {
			return outcome, err
		}
	}

	uploadKind := req.Kind
	if req.Kind == schema.KindGPXKML {
		// Normalized tracks are positional traces; the backend stores them
		// as GPS records.
		uploadKind = schema.KindGPS
	}

	initiation, err := s.client.UploadImport(req.CaseID, fileName, fileData, string(uploadKind), m.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to start import: %w", err)
	}

	recordID := s.recordStarted(req, initiation.TaskID, fileName)
	s.watch(req.CaseID, initiation.TaskID, recordID, fileName)

	log.Printf("Import of %s accepted for caso %d (task %s)", fileName, req.CaseID, initiation.TaskID)
	return &Outcome{TaskID: initiation.TaskID}, nil
}

// prepare loads the file and resolves its column mapping. Track files are
// normalized into a synthesized workbook bound to the requested plate.
func (s *Service) prepare(req Request) (string, []byte, *mapping.Mapping, error) {
	if req.Kind == schema.KindGPXKML {
		trk, err := track.Parse(req.FilePath)
		if err != nil {
			return "", nil, nil, err
		}

		data, err := trk.Workbook(req.Plate)
		if err != nil {
			return "", nil, nil, err
		}

		m := req.Mapping
		if m == nil {
			if m, err = mapping.New(req.Kind); err != nil {
				return "", nil, nil, err
			}
			m.AutoMapExact(trk.Headers)
		}

		return track.WorkbookName(req.FilePath), data, m, nil
	}

	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to read file: %w", err)
	}

	m := req.Mapping
	if m == nil {
		headers, err := mapping.ReadHeaders(req.FilePath)
		if err != nil {
			return "", nil, nil, err
		}
		if m, err = mapping.New(req.Kind); err != nil {
			return "", nil, nil, err
		}
		mapped := m.AutoMap(headers)
		log.Printf("Auto-mapped %d of %d required columns for %s",
			mapped, len(schema.RequiredFields(req.Kind)), filepath.Base(req.FilePath))
	}

	return filepath.Base(req.FilePath), data, m, nil
}

// gateReaders runs the pre-import reader check. Returns a non-nil outcome
// when the import must not continue yet (blocked or awaiting confirmation).
func (s *Service) gateReaders(req Request, fileName string, fileData []byte, m *mapping.Mapping) (*Outcome, error) {
	validation, err := s.client.ValidateReaders(req.CaseID, fileName, fileData, string(req.Kind), m.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to validate readers: %w", err)
	}

	report, err := readers.Evaluate(validation)
	if err != nil {
		return nil, err
	}

	log.Printf("Reader check for %s: %s", fileName, report.Summary())

	switch report.Decision {
	case readers.DecisionBlocked:
		s.notifier.Notify(Notification{
			Level:   LevelError,
			Title:   "Importación bloqueada",
			Message: fmt.Sprintf("Se detectaron %d lectores problemáticos. Revise el mapeo de columnas.", len(validation.LectoresProblematicos)),
		})
		return &Outcome{ReaderReport: report}, fmt.Errorf("import blocked: %d problematic readers", len(validation.LectoresProblematicos))
	case readers.DecisionConfirm:
		if !req.ConfirmNewReaders {
			return &Outcome{NeedsConfirmation: true, ReaderReport: report}, nil
		}
	}

	return nil, nil
}

// checkExtension rejects files whose extension does not match the kind
// before any parsing work happens.
func checkExtension(kind schema.ImportKind, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if kind == schema.KindGPXKML {
		if !trackExtensions[ext] {
			return fmt.Errorf("%s imports require a .gpx or .kml file, got %q", kind, ext)
		}
		return nil
	}
	if !tabularExtensions[ext] {
		return fmt.Errorf("%s imports require a .xlsx, .xls or .csv file, got %q", kind, ext)
	}
	return nil
}
