package dto

// AddStepRequest appends a step to a campaign's sequence
type AddStepRequest struct {
	CampaignID  uint    `json:"-"`
	Type        string  `json:"type" validate:"required"`
	DelayDays   int     `json:"delay_days"`
	Template    *string `json:"template,omitempty"`
	Subject     *string `json:"subject,omitempty" validate:"omitempty,max=255"`
	WindowStart *string `json:"window_start,omitempty" validate:"omitempty,datetime=15:04"`
	WindowEnd   *string `json:"window_end,omitempty" validate:"omitempty,datetime=15:04"`
}

// StepResponse represents a sequence step
type StepResponse struct {
	ID          uint    `json:"id"`
	CampaignID  uint    `json:"campaign_id"`
	Position    int     `json:"position"`
	Type        string  `json:"type"`
	Channel     string  `json:"channel"`
	DelayDays   int     `json:"delay_days"`
	Template    *string `json:"template,omitempty"`
	Subject     *string `json:"subject,omitempty"`
	WindowStart *string `json:"window_start,omitempty"`
	WindowEnd   *string `json:"window_end,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// ListStepsResponse lists a campaign's live steps in position order
type ListStepsResponse struct {
	CampaignID uint           `json:"campaign_id"`
	Steps      []StepResponse `json:"steps"`
}
