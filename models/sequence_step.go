package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/utils"
	"gorm.io/gorm"
)

// StepType is the outreach action performed by a sequence step
type StepType string

const (
	StepTypeConnectionRequest StepType = "connection_request"
	StepTypeMessage           StepType = "message"
	StepTypeEmail             StepType = "email"
	StepTypeSMS               StepType = "sms"
)

func (t StepType) String() string {
	return string(t)
}

// Valid checks if the step type is valid
func (t StepType) Valid() bool {
	switch t {
	case StepTypeConnectionRequest, StepTypeMessage, StepTypeEmail, StepTypeSMS:
		return true
	default:
		return false
	}
}

// Channel returns the channel that delivers this step
func (t StepType) Channel() Channel {
	switch t {
	case StepTypeEmail:
		return ChannelEmail
	case StepTypeSMS:
		return ChannelSMS
	default:
		return ChannelLinkedIn
	}
}

// Scan implements the sql.Scanner interface for StepType
func (t *StepType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = StepType(v)
	case []byte:
		*t = StepType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into StepType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for StepType
func (t StepType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid StepType: %s", t)
	}
	return string(t), nil
}

// Channel identifies the medium an item is delivered through
type Channel string

const (
	ChannelLinkedIn Channel = "linkedin"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
)

func (c Channel) String() string {
	return string(c)
}

// SequenceStep is one ordered action in a campaign sequence.
// Positions are assigned max+1 on add and never reused, so a soft-deleted
// step leaves a gap rather than shifting the cursors of in-flight leads.
type SequenceStep struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CampaignID  uint           `gorm:"not null;index:idx_sequence_steps_campaign_position,priority:1" json:"campaign_id"`
	Position    int            `gorm:"not null;index:idx_sequence_steps_campaign_position,priority:2" json:"position"`
	Type        StepType       `gorm:"size:32;not null" json:"type"`
	DelayDays   int            `gorm:"not null;default:0" json:"delay_days"`
	Template    *string        `gorm:"type:text" json:"template,omitempty"`
	Subject     *string        `gorm:"size:255" json:"subject,omitempty"`
	WindowStart *string        `gorm:"size:5" json:"window_start,omitempty"`
	WindowEnd   *string        `gorm:"size:5" json:"window_end,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName returns the table name for the model
func (SequenceStep) TableName() string {
	return "sequence_steps"
}

// BeforeCreate is called before creating a new record
func (s *SequenceStep) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (s *SequenceStep) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	s.UpdatedAt = &now
	return nil
}

// HasWindowOverride reports whether the step defines its own send window
func (s *SequenceStep) HasWindowOverride() bool {
	return s.WindowStart != nil && s.WindowEnd != nil && *s.WindowStart != "" && *s.WindowEnd != ""
}

// SequenceStepFilter represents filter criteria for sequence steps
type SequenceStepFilter struct {
	CampaignID  *uint     `json:"campaign_id,omitempty"`
	Type        *StepType `json:"type,omitempty"`
	MinPosition *int      `json:"min_position,omitempty"`
}
