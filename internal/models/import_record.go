package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImportRecord is the local history row for one import or cross-reference
// attempt. Task ids are assigned by the backend; the record id is local.
type ImportRecord struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	CaseID        string    `gorm:"not null;column:case_id;index" json:"case_id"`
	TaskID        string    `gorm:"column:task_id;index" json:"task_id"`
	JobType       string    `gorm:"not null;column:job_type" json:"job_type"` // import, cross_reference
	FileName      string    `gorm:"column:file_name" json:"file_name"`
	FileKind      string    `gorm:"column:file_kind" json:"file_kind"` // LPR, GPS, GPX_KML, EXTERNO
	Status        string    `gorm:"not null;default:pending" json:"status"`
	TotalRecords  int       `gorm:"column:total_records" json:"total_records"`
	DuplicateRows int       `gorm:"column:duplicate_rows" json:"duplicate_rows"`
	NewReaders    int       `gorm:"column:new_readers" json:"new_readers"`
	Message       string    `gorm:"type:text" json:"message"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (ir *ImportRecord) BeforeCreate(tx *gorm.DB) error {
	if ir.ID == "" {
		ir.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for GORM
func (ImportRecord) TableName() string {
	return "import_records"
}
