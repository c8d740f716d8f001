package models

import (
	"time"

	"github.com/amirphl/outreach-orchestrator/utils"
	"gorm.io/gorm"
)

// Lead is a contact that campaigns reach out to
type Lead struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	FirstName   string     `gorm:"size:128" json:"first_name"`
	LastName    string     `gorm:"size:128" json:"last_name"`
	Company     string     `gorm:"size:255" json:"company"`
	Title       string     `gorm:"size:255" json:"title"`
	LinkedInURL string     `gorm:"column:linkedin_url;size:512;index:idx_leads_linkedin_url" json:"linkedin_url"`
	Email       *string    `gorm:"size:255;index:idx_leads_email" json:"email,omitempty"`
	Phone       *string    `gorm:"size:32" json:"phone,omitempty"`
	ScrapedAt   *time.Time `json:"scraped_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Lead) TableName() string {
	return "leads"
}

// BeforeCreate is called before creating a new record
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// FullName joins first and last name
func (l *Lead) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	default:
		return l.FirstName + " " + l.LastName
	}
}

// HasEmail reports whether contact info was already found for the lead
func (l *Lead) HasEmail() bool {
	return l.Email != nil && *l.Email != ""
}

// LeadFilter represents filter criteria for leads
type LeadFilter struct {
	IDs          []uint  `json:"ids,omitempty"`
	MissingEmail *bool   `json:"missing_email,omitempty"`
	Company      *string `json:"company,omitempty"`
}
