package dto

// ListActivityRequest filters the activity feed
type ListActivityRequest struct {
	CampaignID     *uint   `query:"campaign_id"`
	CampaignLeadID *uint   `query:"campaign_lead_id"`
	Outcome        *string `query:"outcome" validate:"omitempty,oneof=sent failed"`
	Since          *string `query:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Page           int     `query:"page"`
	Limit          int     `query:"limit"`
}

// ActivityEventResponse is one terminal dispatch outcome
type ActivityEventResponse struct {
	ID             uint    `json:"id"`
	ApprovalItemID uint    `json:"approval_item_id"`
	CampaignID     uint    `json:"campaign_id"`
	CampaignLeadID uint    `json:"campaign_lead_id"`
	StepPosition   int     `json:"step_position"`
	Channel        string  `json:"channel"`
	Outcome        string  `json:"outcome"`
	ContainerID    *string `json:"container_id,omitempty"`
	ErrorCode      *string `json:"error_code,omitempty"`
	Error          *string `json:"error,omitempty"`
	Attempts       int     `json:"attempts"`
	OccurredAt     string  `json:"occurred_at"`
}

// ListActivityResponse is a page of the activity feed, newest first
type ListActivityResponse struct {
	Items      []ActivityEventResponse `json:"items"`
	Pagination PaginationInfo          `json:"pagination"`
}
