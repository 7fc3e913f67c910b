package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrTaskNotFound is returned by TaskStatus when the backend no longer knows
// the task id. Callers must treat this as terminal and stop polling.
var ErrTaskNotFound = errors.New("task not found")

// Client talks to the case-management backend
type Client struct {
	baseURL   string
	username  string
	password  string
	http      *resty.Client
	caseNames *nameCache
}

// NewClient creates an authenticated backend client
func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	client := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		username:  username,
		password:  password,
		caseNames: newNameCache(256),
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client.http = resty.New().
		SetHeader("User-Agent", "casetrack-desktop").
		SetBasicAuth(username, password).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on 429 (Too Many Requests) and 5xx server errors
			return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
		})

	return client
}

// UploadInitiation is the acknowledgement for an accepted background job
type UploadInitiation struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// TaskStatus is one snapshot of a background task
type TaskStatus struct {
	Status   string         `json:"status"` // pending, running, completed, failed
	Message  string         `json:"message"`
	Progress float64        `json:"progress"`
	Total    *int           `json:"total,omitempty"`
	Stage    string         `json:"stage,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
}

// ReaderCheck classifies one reader id found in an upload
type ReaderCheck struct {
	ID         string `json:"id"`
	Estado     string `json:"estado"` // existente, nuevo_seguro, problematico
	Razon      string `json:"razon,omitempty"`
	Sugerencia string `json:"sugerencia,omitempty"`
}

// ReaderValidation is the pre-import reader report for a file
type ReaderValidation struct {
	TotalRegistros        int           `json:"total_registros"`
	LectoresNuevos        []ReaderCheck `json:"lectores_nuevos"`
	LectoresProblematicos []ReaderCheck `json:"lectores_problematicos"`
	LectoresExistentes    []ReaderCheck `json:"lectores_existentes"`
	EsSeguroProceder      bool          `json:"es_seguro_proceder"`
	Advertencias          []string      `json:"advertencias"`
	Error                 string        `json:"error,omitempty"`
}

// CaseFile is a previously imported evidence file attached to a case
type CaseFile struct {
	IDArchivo          int    `json:"ID_Archivo"`
	IDCaso             int    `json:"ID_Caso"`
	NombreDelArchivo   string `json:"Nombre_del_Archivo"`
	TipoDeArchivo      string `json:"Tipo_de_Archivo"`
	FechaDeImportacion string `json:"Fecha_de_Importacion"`
	TotalRegistros     int    `json:"Total_Registros"`
}

// CrossFilters selects which external records to cross against LPR captures
type CrossFilters struct {
	CasoID        int            `json:"caso_id"`
	Matricula     string         `json:"matricula,omitempty"`
	SourceName    string         `json:"source_name,omitempty"`
	FechaDesde    string         `json:"fecha_desde,omitempty"`
	FechaHasta    string         `json:"fecha_hasta,omitempty"`
	CustomFilters map[string]any `json:"custom_filters,omitempty"`
}

// UploadImport submits an evidence file for asynchronous import. The backend
// answers immediately with a task id; progress is polled separately.
func (c *Client) UploadImport(caseID int, fileName string, fileData []byte, fileKind string, columnMapping map[string]string) (*UploadInitiation, error) {
	mappingJSON, err := json.Marshal(columnMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to encode column mapping: %w", err)
	}

	resp, err := c.http.R().
		SetFileReader("excel_file", fileName, bytes.NewReader(fileData)).
		SetFormData(map[string]string{
			"tipo_archivo":   fileKind,
			"column_mapping": string(mappingJSON),
		}).
		Post(c.buildURL(fmt.Sprintf("casos/%d/archivos/upload", caseID)))
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("upload rejected: %s", errorDetail(resp))
	}

	var initiation UploadInitiation
	if err := json.Unmarshal(resp.Body(), &initiation); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if initiation.TaskID == "" {
		return nil, fmt.Errorf("upload accepted but no task id returned")
	}

	return &initiation, nil
}

// ValidateReaders runs the reader pre-check for a file without importing it
func (c *Client) ValidateReaders(caseID int, fileName string, fileData []byte, fileKind string, columnMapping map[string]string) (*ReaderValidation, error) {
	mappingJSON, err := json.Marshal(columnMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to encode column mapping: %w", err)
	}

	resp, err := c.http.R().
		SetFileReader("excel_file", fileName, bytes.NewReader(fileData)).
		SetFormData(map[string]string{
			"tipo_archivo":   fileKind,
			"column_mapping": string(mappingJSON),
		}).
		Post(c.buildURL(fmt.Sprintf("casos/%d/archivos/validate_lectores", caseID)))
	if err != nil {
		return nil, fmt.Errorf("reader validation request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("reader validation rejected: %s", errorDetail(resp))
	}

	var validation ReaderValidation
	if err := json.Unmarshal(resp.Body(), &validation); err != nil {
		return nil, fmt.Errorf("failed to parse reader validation response: %w", err)
	}

	return &validation, nil
}

// TaskStatus fetches one status snapshot for a background task. A 404 maps to
// ErrTaskNotFound.
func (c *Client) TaskStatus(taskID string) (*TaskStatus, error) {
	resp, err := c.http.R().Get(c.buildURL(fmt.Sprintf("api/tasks/%s/status", taskID)))
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, ErrTaskNotFound
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("status request rejected: %s", errorDetail(resp))
	}

	var status TaskStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return nil, fmt.Errorf("failed to parse task status: %w", err)
	}

	return &status, nil
}

// CrossWithLPR starts an asynchronous cross-reference between external records
// and LPR captures. Returns the task id to poll.
func (c *Client) CrossWithLPR(filters CrossFilters) (*UploadInitiation, error) {
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(filters).
		Post(c.buildURL("api/external-data/cross-with-lpr-async"))
	if err != nil {
		return nil, fmt.Errorf("cross-reference request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("cross-reference rejected: %s", errorDetail(resp))
	}

	var initiation UploadInitiation
	if err := json.Unmarshal(resp.Body(), &initiation); err != nil {
		return nil, fmt.Errorf("failed to parse cross-reference response: %w", err)
	}
	if initiation.TaskID == "" {
		return nil, fmt.Errorf("cross-reference accepted but no task id returned")
	}

	return &initiation, nil
}

// ListCaseFiles returns the files already imported into a case
func (c *Client) ListCaseFiles(caseID int) ([]CaseFile, error) {
	resp, err := c.http.R().Get(c.buildURL(fmt.Sprintf("casos/%d/archivos", caseID)))
	if err != nil {
		return nil, fmt.Errorf("file list request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("file list request rejected: %s", errorDetail(resp))
	}

	var files []CaseFile
	if err := json.Unmarshal(resp.Body(), &files); err != nil {
		return nil, fmt.Errorf("failed to parse file list: %w", err)
	}

	return files, nil
}

// DeleteFile removes an imported file and its records from the backend
func (c *Client) DeleteFile(fileID int) error {
	resp, err := c.http.R().Delete(c.buildURL(fmt.Sprintf("archivos/%d", fileID)))
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("delete rejected: %s", errorDetail(resp))
	}
	return nil
}

// CaseName resolves a case id to its display name (with caching). Falls back
// to the stringified id when the lookup fails so listings stay usable offline.
func (c *Client) CaseName(caseID int) string {
	if name, ok := c.caseNames.Get(caseID); ok {
		return name
	}

	resp, err := c.http.R().Get(c.buildURL(fmt.Sprintf("casos/%d", caseID)))
	if err != nil || !resp.IsSuccess() {
		return fmt.Sprintf("caso %d", caseID)
	}

	var caso struct {
		NombreDelCaso string `json:"Nombre_del_Caso"`
	}
	if err := json.Unmarshal(resp.Body(), &caso); err != nil || caso.NombreDelCaso == "" {
		return fmt.Sprintf("caso %d", caseID)
	}

	c.caseNames.Put(caseID, caso.NombreDelCaso)
	return caso.NombreDelCaso
}

// Ping verifies the server is reachable with the configured credentials
func (c *Client) Ping() error {
	resp, err := c.http.R().Get(c.buildURL("api/health"))
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("server returned %d", resp.StatusCode())
	}
	return nil
}

// buildURL constructs the full URL for an endpoint
func (c *Client) buildURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, endpoint)
}

// errorDetail extracts the backend's detail message, falling back to the
// status line when the body is not the expected JSON shape.
func errorDetail(resp *resty.Response) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode())
}
