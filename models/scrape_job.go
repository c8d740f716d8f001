package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ScrapeJobStatus represents the lifecycle of a background scrape job
type ScrapeJobStatus string

const (
	ScrapeJobStatusRunning   ScrapeJobStatus = "running"
	ScrapeJobStatusCompleted ScrapeJobStatus = "completed"
	ScrapeJobStatusCancelled ScrapeJobStatus = "cancelled"
	ScrapeJobStatusError     ScrapeJobStatus = "error"
)

func (s ScrapeJobStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ScrapeJobStatus) Valid() bool {
	switch s {
	case ScrapeJobStatusRunning, ScrapeJobStatusCompleted,
		ScrapeJobStatusCancelled, ScrapeJobStatusError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the job has left running
func (s ScrapeJobStatus) IsTerminal() bool {
	return s != ScrapeJobStatusRunning
}

// Scan implements the sql.Scanner interface for ScrapeJobStatus
func (s *ScrapeJobStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ScrapeJobStatus(v)
	case []byte:
		*s = ScrapeJobStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScrapeJobStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ScrapeJobStatus
func (s ScrapeJobStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ScrapeJobStatus: %s", s)
	}
	return string(s), nil
}

// ScrapeJob is a cancellable bulk contact lookup over a set of leads.
// Counters are only changed through atomic UPDATEs so any API instance can poll it.
type ScrapeJob struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	LeadIDs         pq.Int64Array   `gorm:"type:text;not null" json:"lead_ids"`
	MissingOnly     bool            `gorm:"not null;default:false" json:"missing_only"`
	Status          ScrapeJobStatus `gorm:"size:32;not null;default:'running';index:idx_scrape_jobs_status" json:"status"`
	Total           int             `gorm:"not null;default:0" json:"total"`
	Processed       int             `gorm:"not null;default:0" json:"processed"`
	Found           int             `gorm:"not null;default:0" json:"found"`
	Skipped         int             `gorm:"not null;default:0" json:"skipped"`
	AlreadyHad      int             `gorm:"not null;default:0" json:"already_had"`
	CancelRequested bool            `gorm:"not null;default:false" json:"cancel_requested"`
	Error           *string         `gorm:"type:text" json:"error,omitempty"`
	StartedAt       time.Time       `gorm:"not null" json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (ScrapeJob) TableName() string {
	return "scrape_jobs"
}

// BeforeCreate is called before creating a new record
func (j *ScrapeJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = ScrapeJobStatusRunning
	}
	if j.LeadIDs == nil {
		j.LeadIDs = pq.Int64Array{}
	}
	if j.StartedAt.IsZero() {
		j.StartedAt = utils.UTCNow()
	}
	return nil
}

// Progress returns processed/total in [0, 1]
func (j *ScrapeJob) Progress() float64 {
	if j.Total <= 0 {
		return 1
	}
	return float64(j.Processed) / float64(j.Total)
}

// ScrapeResult classifies how a single lead was handled by a scrape job
type ScrapeResult string

const (
	ScrapeResultFound      ScrapeResult = "found"
	ScrapeResultSkipped    ScrapeResult = "skipped"
	ScrapeResultAlreadyHad ScrapeResult = "already_had"
)
