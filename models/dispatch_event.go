package models

import (
	"time"

	"github.com/amirphl/outreach-orchestrator/utils"
	"gorm.io/gorm"
)

// DispatchOutcome is the terminal result recorded in the activity feed
type DispatchOutcome string

const (
	DispatchOutcomeSent   DispatchOutcome = "sent"
	DispatchOutcomeFailed DispatchOutcome = "failed"
)

// DispatchEvent is an activity-feed entry for a terminal dispatch outcome
type DispatchEvent struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ApprovalItemID uint            `gorm:"not null;index:idx_dispatch_events_item" json:"approval_item_id"`
	CampaignID     uint            `gorm:"not null;index:idx_dispatch_events_campaign_occurred,priority:1" json:"campaign_id"`
	CampaignLeadID uint            `gorm:"not null" json:"campaign_lead_id"`
	StepPosition   int             `gorm:"not null" json:"step_position"`
	Channel        Channel         `gorm:"size:32;not null" json:"channel"`
	Outcome        DispatchOutcome `gorm:"size:16;not null" json:"outcome"`
	ContainerID    *string         `gorm:"size:128" json:"container_id,omitempty"`
	ErrorCode      *string         `gorm:"size:64" json:"error_code,omitempty"`
	Error          *string         `gorm:"type:text" json:"error,omitempty"`
	Attempts       int             `gorm:"not null;default:0" json:"attempts"`
	OccurredAt     time.Time       `gorm:"not null;index:idx_dispatch_events_campaign_occurred,priority:2" json:"occurred_at"`
}

// TableName returns the table name for the model
func (DispatchEvent) TableName() string {
	return "dispatch_events"
}

// BeforeCreate is called before creating a new record
func (e *DispatchEvent) BeforeCreate(tx *gorm.DB) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = utils.UTCNow()
	}
	return nil
}

// DispatchEventFilter represents filter criteria for activity events
type DispatchEventFilter struct {
	CampaignID     *uint            `json:"campaign_id,omitempty"`
	CampaignLeadID *uint            `json:"campaign_lead_id,omitempty"`
	Outcome        *DispatchOutcome `json:"outcome,omitempty"`
	Since          *time.Time       `json:"since,omitempty"`
}
