package models

import "time"

// DailySendCounter counts dispatches of a campaign on one calendar day in the campaign timezone.
// Rows are never deleted; they double as the dispatch audit history.
type DailySendCounter struct {
	CampaignID uint       `gorm:"primaryKey;autoIncrement:false" json:"campaign_id"`
	Day        string     `gorm:"primaryKey;size:10" json:"day"`
	Count      int        `gorm:"column:sent_count;not null;default:0" json:"count"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (DailySendCounter) TableName() string {
	return "daily_send_counters"
}
