package dto

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	DailyCap    int              `json:"daily_cap" validate:"gte=0"`
	WindowStart *string          `json:"window_start,omitempty" validate:"omitempty,datetime=15:04"`
	WindowEnd   *string          `json:"window_end,omitempty" validate:"omitempty,datetime=15:04"`
	Timezone    *string          `json:"timezone,omitempty" validate:"omitempty,max=64"`
	Steps       []AddStepRequest `json:"steps,omitempty" validate:"omitempty,dive"`
}

// CampaignResponse represents a campaign with its sequence and progress
type CampaignResponse struct {
	ID          uint           `json:"id"`
	UUID        string         `json:"uuid"`
	Name        string         `json:"name"`
	Status      string         `json:"status"`
	DailyCap    int            `json:"daily_cap"`
	WindowStart string         `json:"window_start"`
	WindowEnd   string         `json:"window_end"`
	Timezone    string         `json:"timezone"`
	LaunchedAt  *string        `json:"launched_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
	CreatedAt   string         `json:"created_at"`
	Steps       []StepResponse `json:"steps"`
	Stats       *CampaignStats `json:"stats,omitempty"`
}

// CampaignStats summarizes lead progress and today's dispatch count against the daily cap
type CampaignStats struct {
	TotalLeads     int64            `json:"total_leads"`
	LeadsByStatus  map[string]int64 `json:"leads_by_status"`
	Today          string           `json:"today"`
	SentToday      int              `json:"sent_today"`
	RemainingToday *int             `json:"remaining_today,omitempty"` // nil when the campaign has no cap
}

// CampaignActionResponse is returned by launch, pause and resume
type CampaignActionResponse struct {
	Message string `json:"message"`
	ID      uint   `json:"id"`
	Status  string `json:"status"`
}

// LeadInput describes a lead created inline while adding leads to a campaign
type LeadInput struct {
	FirstName   string  `json:"first_name" validate:"max=128"`
	LastName    string  `json:"last_name" validate:"max=128"`
	Company     string  `json:"company" validate:"max=255"`
	Title       string  `json:"title" validate:"max=255"`
	LinkedInURL string  `json:"linkedin_url" validate:"omitempty,url,max=512"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,e164"`
}

// AddLeadsRequest enrolls existing leads by id and/or new inline leads
type AddLeadsRequest struct {
	CampaignID uint        `json:"-"`
	LeadIDs    []uint      `json:"lead_ids,omitempty" validate:"omitempty,dive,gt=0"`
	Leads      []LeadInput `json:"leads,omitempty" validate:"omitempty,dive"`
}

// AddLeadsResponse reports how many leads were enrolled
type AddLeadsResponse struct {
	Message         string `json:"message"`
	Added           int    `json:"added"`
	Skipped         int    `json:"skipped"`
	CampaignLeadIDs []uint `json:"campaign_lead_ids"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}
