package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of an outreach campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive,
		CampaignStatusPaused, CampaignStatusCompleted:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign represents an outreach campaign in the database
type Campaign struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Status      CampaignStatus `gorm:"size:32;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	DailyCap    int            `gorm:"not null;default:0" json:"daily_cap"`
	WindowStart string         `gorm:"size:5;not null;default:'09:00'" json:"window_start"`
	WindowEnd   string         `gorm:"size:5;not null;default:'17:00'" json:"window_end"`
	Timezone    string         `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	LaunchedAt  *time.Time     `json:"launched_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:CampaignID" json:"steps,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.WindowStart == "" {
		c.WindowStart = utils.DefaultWindowStart
	}
	if c.WindowEnd == "" {
		c.WindowEnd = utils.DefaultWindowEnd
	}
	if c.Timezone == "" {
		c.Timezone = utils.DefaultTimezone
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// Location returns the campaign timezone, falling back to UTC when it cannot be resolved
func (c *Campaign) Location() *time.Location {
	loc, err := utils.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusActive
	case CampaignStatusActive:
		return newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusCompleted
	case CampaignStatusPaused:
		return newStatus == CampaignStatusActive
	default:
		return false
	}
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID     *uint           `json:"id,omitempty"`
	UUID   *uuid.UUID      `json:"uuid,omitempty"`
	Status *CampaignStatus `json:"status,omitempty"`
	Name   *string         `json:"name,omitempty"`
}
