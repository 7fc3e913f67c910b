package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"casetrack-desktop/internal/api"
	"casetrack-desktop/internal/config"
	"casetrack-desktop/internal/crypto"
	"casetrack-desktop/internal/database"
	"casetrack-desktop/internal/models"
	"casetrack-desktop/internal/services/crossref"
	"casetrack-desktop/internal/services/importer"
	"casetrack-desktop/internal/services/scheduler"
	"casetrack-desktop/internal/services/tasks"
)

// App struct - main application state
type App struct {
	ctx             context.Context
	cfg             *config.Config
	db              *gorm.DB
	client          *api.Client
	selectedProfile *models.ServerProfile

	registry         *tasks.Registry
	importService    *importer.Service
	crossService     *crossref.Service
	schedulerService *scheduler.Service
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{}
}

// startup wires the application together. The context is saved so background
// services can be stopped on shutdown.
func (a *App) startup(ctx context.Context) error {
	a.ctx = ctx
	log.Println("Application starting up...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	// Initialize encryption first; profiles cannot be saved without it
	if err := crypto.InitEncryption(); err != nil {
		return fmt.Errorf("encryption initialization failed: %w", err)
	}
	log.Println("Encryption initialized successfully")

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db
	log.Println("Database initialized successfully")

	// Connect to the default server; SelectProfile replaces this connection
	a.connect(cfg.ServerURL, "", "")

	// The scheduler outlives profile switches, so it reaches the current
	// cross-reference service through the app rather than holding one
	a.schedulerService = scheduler.NewService(db, ctx, crossDispatch{app: a})
	if err := a.schedulerService.Start(); err != nil {
		log.Printf("WARNING: Failed to start scheduler: %v", err)
	} else {
		log.Println("Scheduler service initialized and started")
	}

	log.Println("Startup complete")
	return nil
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	log.Println("Application shutting down...")

	if a.schedulerService != nil {
		a.schedulerService.Stop()
	}

	if a.registry != nil {
		a.registry.StopAll()
	}

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}

// connect rebuilds the backend client and the services bound to it
func (a *App) connect(baseURL, username, password string) {
	a.client = api.NewClient(baseURL, username, password, a.cfg.HTTPTimeout)
	a.registry = tasks.NewRegistry(a.client, a.cfg.PollInterval, a.cfg.DismissDelay)

	notifier := logNotifier{}
	a.importService = importer.NewService(a.client, a.registry, notifier, a.db)
	a.importService.SetRefreshHook(func(caseID int) {
		log.Printf("Case %d files changed, listings should reload", caseID)
	})
	a.crossService = crossref.NewService(a.client, a.registry, notifier, a.db)
}

// crossDispatch forwards scheduled jobs to the app's current cross-reference
// service, surviving reconnects
type crossDispatch struct {
	app *App
}

func (d crossDispatch) Start(filters api.CrossFilters, onDone func(crossref.Result)) (string, error) {
	if d.app.crossService == nil {
		return "", errors.New("not connected to a server")
	}
	return d.app.crossService.Start(filters, onDone)
}

// logNotifier writes import and cross-reference notifications to the log
type logNotifier struct{}

func (logNotifier) Notify(n importer.Notification) {
	log.Printf("[%s] %s: %s", n.Level, n.Title, n.Message)
}

// ====================================================================================
// PROFILE MANAGEMENT
// ====================================================================================

// ListProfiles returns all server profiles
func (a *App) ListProfiles() ([]models.ServerProfile, error) {
	var profiles []models.ServerProfile
	if err := a.db.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfile retrieves a specific server profile by ID
func (a *App) GetProfile(profileID string) (*models.ServerProfile, error) {
	var profile models.ServerProfile
	if err := a.db.Where("id = ?", profileID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateProfile creates a new server profile
// NOTE: Callers should run TestConnection() first to validate credentials and
// URL before saving to database
func (a *App) CreateProfile(req CreateProfileRequest) error {
	// Validate encryption is initialized
	if !crypto.IsInitialized() {
		return errors.New("encryption system not initialized - cannot save profiles")
	}

	passwordEnc, err := crypto.EncryptPassword(req.Password)
	if err != nil {
		return err
	}

	profile := &models.ServerProfile{
		Name:        req.Name,
		Owner:       req.Owner,
		BaseURL:     req.BaseURL,
		Username:    req.Username,
		PasswordEnc: passwordEnc,
	}

	return a.db.Create(profile).Error
}

// UpdateProfile updates an existing server profile
func (a *App) UpdateProfile(profileID string, req CreateProfileRequest) error {
	var profile models.ServerProfile
	if err := a.db.Where("id = ?", profileID).First(&profile).Error; err != nil {
		return err
	}

	profile.Name = req.Name
	profile.Owner = req.Owner
	profile.BaseURL = req.BaseURL
	profile.Username = req.Username

	// Encrypt password if provided
	if req.Password != "" {
		passwordEnc, err := crypto.EncryptPassword(req.Password)
		if err != nil {
			return err
		}
		profile.PasswordEnc = passwordEnc
	}

	return a.db.Save(&profile).Error
}

// DeleteProfile deletes a server profile
func (a *App) DeleteProfile(profileID string) error {
	return a.db.Where("id = ?", profileID).Delete(&models.ServerProfile{}).Error
}

// SelectProfile sets the active profile and reconnects to its server
func (a *App) SelectProfile(profileID string) error {
	var profile models.ServerProfile
	if err := a.db.Where("id = ?", profileID).First(&profile).Error; err != nil {
		return err
	}

	password, err := crypto.DecryptPassword(profile.PasswordEnc)
	if err != nil {
		return fmt.Errorf("failed to decrypt profile password: %w", err)
	}

	if a.registry != nil {
		a.registry.StopAll()
	}
	a.connect(profile.BaseURL, profile.Username, password)
	a.selectedProfile = &profile
	log.Printf("Selected profile: %s", profile.Name)
	return nil
}

// GetSelectedProfile returns the currently selected profile
func (a *App) GetSelectedProfile() (*models.ServerProfile, error) {
	if a.selectedProfile == nil {
		return nil, nil
	}
	return a.selectedProfile, nil
}

// TestConnection tests a backend connection without saving to database
func (a *App) TestConnection(req TestConnectionRequest) TestConnectionResponse {
	client := api.NewClient(req.URL, req.Username, req.Password, a.cfg.HTTPTimeout)
	if err := client.Ping(); err != nil {
		return TestConnectionResponse{
			Success: false,
			Error:   fmt.Sprintf("Connection failed: %v", err),
		}
	}
	return TestConnectionResponse{Success: true}
}

// ====================================================================================
// IMPORTS AND CROSS-REFERENCES
// ====================================================================================

// StartImport runs the import pipeline for one evidence file
func (a *App) StartImport(req importer.Request) (*importer.Outcome, error) {
	return a.importService.Import(req)
}

// StartCrossReference launches an asynchronous cross-reference job
func (a *App) StartCrossReference(filters api.CrossFilters) (string, error) {
	return a.crossService.Start(filters, func(result crossref.Result) {
		log.Printf("Cross-reference finished: %d matches across %d plates",
			result.TotalMatches, result.UniquePlates)
	})
}

// ListCaseFiles lists the files already imported into a case
func (a *App) ListCaseFiles(caseID int) ([]api.CaseFile, error) {
	return a.client.ListCaseFiles(caseID)
}

// DeleteCaseFile removes an imported file and its records from the backend
func (a *App) DeleteCaseFile(fileID int) error {
	return a.client.DeleteFile(fileID)
}

// CaseName resolves a case id to its display name
func (a *App) CaseName(caseID int) string {
	return a.client.CaseName(caseID)
}

// ActiveTasks returns the ids of tasks still being monitored
func (a *App) ActiveTasks() []string {
	return a.registry.Active()
}

// ListHistory retrieves recent import and cross-reference history
func (a *App) ListHistory(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 10 // Default to 10 most recent entries
	}

	var records []models.ImportRecord
	if err := a.db.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		entry := HistoryEntry{
			TaskID:    record.TaskID,
			CaseID:    record.CaseID,
			JobType:   record.JobType,
			FileName:  record.FileName,
			FileKind:  record.FileKind,
			Status:    record.Status,
			StartedAt: record.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}

		// Set completed_at if the job is finished
		if record.UpdatedAt.After(record.CreatedAt) {
			completedAt := record.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
			entry.CompletedAt = &completedAt
		}

		entry.Summary = historySummary(&record)
		entries = append(entries, entry)
	}

	return entries, nil
}

// historySummary creates a brief summary of a history row
func historySummary(record *models.ImportRecord) string {
	switch record.Status {
	case "completed":
		if record.TotalRecords > 0 {
			summary := fmt.Sprintf("%d records imported", record.TotalRecords)
			if record.DuplicateRows > 0 {
				summary += fmt.Sprintf(", %d duplicates skipped", record.DuplicateRows)
			}
			return summary
		}
		if record.Message != "" {
			return record.Message
		}
		return "Completed"
	case "failed":
		if record.Message != "" {
			return "Failed: " + record.Message
		}
		return "Failed"
	default:
		return record.Status
	}
}

// ====================================================================================
// SCHEDULER SERVICE OPERATIONS
// ====================================================================================

// ListScheduledJobs retrieves all scheduled jobs
func (a *App) ListScheduledJobs() ([]scheduler.JobListResponse, error) {
	return a.schedulerService.ListJobs()
}

// UpsertScheduledJob creates or updates a scheduled job
func (a *App) UpsertScheduledJob(req scheduler.UpsertJobRequest) (string, error) {
	return a.schedulerService.UpsertJob(req)
}

// DeleteScheduledJob removes a scheduled job
func (a *App) DeleteScheduledJob(jobID string) error {
	return a.schedulerService.DeleteJob(jobID)
}

// ====================================================================================
// REQUEST/RESPONSE TYPES
// ====================================================================================

// HistoryEntry represents one import or cross-reference in the history
type HistoryEntry struct {
	TaskID      string  `json:"task_id"`
	CaseID      string  `json:"case_id"`
	JobType     string  `json:"job_type"` // "import", "cross_reference"
	FileName    string  `json:"file_name,omitempty"`
	FileKind    string  `json:"file_kind,omitempty"`
	Status      string  `json:"status"`       // "completed", "failed", "pending"
	StartedAt   string  `json:"started_at"`   // ISO 8601 timestamp
	CompletedAt *string `json:"completed_at"` // ISO 8601 timestamp or null
	Summary     string  `json:"summary"`      // Brief result description
}

// CreateProfileRequest represents a request to create/update a server profile
type CreateProfileRequest struct {
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"` // Plain text, will be encrypted
}

// TestConnectionRequest represents a connection test request
type TestConnectionRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// TestConnectionResponse represents the test result
type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
