package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/utils"
	"gorm.io/gorm"
)

// CursorStatus is the per-lead sequence state
type CursorStatus string

const (
	CursorStatusIdle             CursorStatus = "idle"
	CursorStatusAwaitingContent  CursorStatus = "awaiting_content"
	CursorStatusAwaitingApproval CursorStatus = "awaiting_approval"
	CursorStatusQueued           CursorStatus = "queued"
	// CursorStatusSent means the previous step was delivered and the next one waits for its delay
	CursorStatusSent      CursorStatus = "sent"
	CursorStatusFailed    CursorStatus = "failed"
	CursorStatusCompleted CursorStatus = "completed"
	CursorStatusPaused    CursorStatus = "paused"
)

func (s CursorStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CursorStatus) Valid() bool {
	switch s {
	case CursorStatusIdle, CursorStatusAwaitingContent, CursorStatusAwaitingApproval,
		CursorStatusQueued, CursorStatusSent, CursorStatusFailed,
		CursorStatusCompleted, CursorStatusPaused:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CursorStatus
func (s *CursorStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CursorStatus(v)
	case []byte:
		*s = CursorStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CursorStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CursorStatus
func (s CursorStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CursorStatus: %s", s)
	}
	return string(s), nil
}

// CampaignLead is a lead's enrollment in a campaign and its sequence cursor.
// CurrentStepIndex is a position floor: the current step is the first live step
// whose position is >= CurrentStepIndex. It never decreases.
type CampaignLead struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	CampaignID       uint         `gorm:"not null;uniqueIndex:uk_campaign_leads_campaign_lead,priority:1;index:idx_campaign_leads_campaign_status,priority:1" json:"campaign_id"`
	LeadID           uint         `gorm:"not null;uniqueIndex:uk_campaign_leads_campaign_lead,priority:2" json:"lead_id"`
	CurrentStepIndex int          `gorm:"not null;default:0" json:"current_step_index"`
	CursorStatus     CursorStatus `gorm:"size:32;not null;default:'idle';index:idx_campaign_leads_campaign_status,priority:2" json:"cursor_status"`
	ResumeStatus     *string      `gorm:"size:32" json:"resume_status,omitempty"`
	NextDueAt        *time.Time   `gorm:"index:idx_campaign_leads_next_due_at" json:"next_due_at,omitempty"`
	LastError        *string      `gorm:"type:text" json:"last_error,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CreatedAt        time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt        *time.Time   `json:"updated_at,omitempty"`

	// Relations
	Lead     *Lead     `gorm:"foreignKey:LeadID;references:ID" json:"lead,omitempty"`
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (CampaignLead) TableName() string {
	return "campaign_leads"
}

// BeforeCreate is called before creating a new record
func (cl *CampaignLead) BeforeCreate(tx *gorm.DB) error {
	if cl.CursorStatus == "" {
		cl.CursorStatus = CursorStatusIdle
	}
	if cl.CreatedAt.IsZero() {
		cl.CreatedAt = utils.UTCNow()
	}
	return nil
}

// IsTerminal reports whether the cursor reached the end of its sequence
func (cl *CampaignLead) IsTerminal() bool {
	return cl.CursorStatus == CursorStatusCompleted
}

// CampaignLeadFilter represents filter criteria for campaign leads
type CampaignLeadFilter struct {
	CampaignID   *uint         `json:"campaign_id,omitempty"`
	LeadID       *uint         `json:"lead_id,omitempty"`
	CursorStatus *CursorStatus `json:"cursor_status,omitempty"`
	DueBefore    *time.Time    `json:"due_before,omitempty"`
}
