package dto

// CampaignLeadResponse represents a lead's cursor in a campaign
type CampaignLeadResponse struct {
	ID               uint    `json:"id"`
	CampaignID       uint    `json:"campaign_id"`
	LeadID           uint    `json:"lead_id"`
	CurrentStepIndex int     `json:"current_step_index"`
	CursorStatus     string  `json:"cursor_status"`
	ResumeStatus     *string `json:"resume_status,omitempty"`
	NextDueAt        *string `json:"next_due_at,omitempty"`
	LastError        *string `json:"last_error,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

// LeadActionResponse is returned by retry, skip, pause and resume
type LeadActionResponse struct {
	Message string               `json:"message"`
	Lead    CampaignLeadResponse `json:"lead"`
}
