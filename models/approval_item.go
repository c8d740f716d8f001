package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/utils"
	"gorm.io/gorm"
)

// ApprovalStatus represents the review and delivery state of a drafted item
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusQueued   ApprovalStatus = "queued"
	ApprovalStatusSent     ApprovalStatus = "sent"
	ApprovalStatusFailed   ApprovalStatus = "failed"
)

func (s ApprovalStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected,
		ApprovalStatusQueued, ApprovalStatusSent, ApprovalStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusRejected || s == ApprovalStatusSent || s == ApprovalStatusFailed
}

// CanTransitionTo enforces the forward-only ordering
// pending -> {approved|rejected} -> queued -> {sent|failed}
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	switch s {
	case ApprovalStatusPending:
		return next == ApprovalStatusApproved || next == ApprovalStatusRejected
	case ApprovalStatusApproved:
		return next == ApprovalStatusQueued
	case ApprovalStatusQueued:
		return next == ApprovalStatusSent || next == ApprovalStatusFailed
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ApprovalStatus
func (s *ApprovalStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ApprovalStatus(v)
	case []byte:
		*s = ApprovalStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ApprovalStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ApprovalStatus
func (s ApprovalStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ApprovalStatus: %s", s)
	}
	return string(s), nil
}

// NonTerminalApprovalStatuses are the statuses that block drafting another item for the same step
var NonTerminalApprovalStatuses = []ApprovalStatus{
	ApprovalStatusPending,
	ApprovalStatusApproved,
	ApprovalStatusQueued,
}

// ApprovalItem is one drafted piece of content for a (campaign lead, step) pair
type ApprovalItem struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CampaignID     uint           `gorm:"not null;index:idx_approval_items_campaign_status,priority:1" json:"campaign_id"`
	CampaignLeadID uint           `gorm:"not null;index:idx_approval_items_lead_step,priority:1" json:"campaign_lead_id"`
	StepID         uint           `gorm:"not null;index:idx_approval_items_lead_step,priority:2" json:"step_id"`
	StepPosition   int            `gorm:"not null" json:"step_position"`
	Channel        Channel        `gorm:"size:32;not null" json:"channel"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Subject        *string        `gorm:"size:255" json:"subject,omitempty"`
	Tone           *string        `gorm:"size:64" json:"tone,omitempty"`
	Length         *string        `gorm:"size:64" json:"length,omitempty"`
	Focus          *string        `gorm:"size:255" json:"focus,omitempty"`
	AIGenerated    bool           `gorm:"not null;default:false" json:"ai_generated"`
	Status         ApprovalStatus `gorm:"size:32;not null;default:'pending';index:idx_approval_items_campaign_status,priority:2" json:"status"`
	ContainerID    *string        `gorm:"size:128;index:idx_approval_items_container_id" json:"container_id,omitempty"`
	Attempts       int            `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt  *time.Time     `json:"next_attempt_at,omitempty"`
	DispatchDay    *string        `gorm:"size:10" json:"dispatch_day,omitempty"`
	LastError      *string        `gorm:"type:text" json:"last_error,omitempty"`
	ErrorCode      *string        `gorm:"size:64" json:"error_code,omitempty"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty"`
	QueuedAt       *time.Time     `json:"queued_at,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	FailedAt       *time.Time     `json:"failed_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`

	// Relations
	CampaignLead *CampaignLead `gorm:"foreignKey:CampaignLeadID;references:ID" json:"campaign_lead,omitempty"`
	Step         *SequenceStep `gorm:"foreignKey:StepID;references:ID" json:"step,omitempty"`
}

// TableName returns the table name for the model
func (ApprovalItem) TableName() string {
	return "approval_items"
}

// BeforeCreate is called before creating a new record
func (a *ApprovalItem) BeforeCreate(tx *gorm.DB) error {
	if a.Status == "" {
		a.Status = ApprovalStatusPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

// HasContainer reports whether the item has an in-flight provider job
func (a *ApprovalItem) HasContainer() bool {
	return a.ContainerID != nil && *a.ContainerID != ""
}

// ApprovalItemFilter represents filter criteria for approval items
type ApprovalItemFilter struct {
	IDs            []uint          `json:"ids,omitempty"`
	CampaignID     *uint           `json:"campaign_id,omitempty"`
	CampaignLeadID *uint           `json:"campaign_lead_id,omitempty"`
	StepID         *uint           `json:"step_id,omitempty"`
	Status         *ApprovalStatus `json:"status,omitempty"`
	Channel        *Channel        `json:"channel,omitempty"`
}
