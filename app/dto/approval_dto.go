package dto

// ListApprovalsRequest filters the approval queue
type ListApprovalsRequest struct {
	CampaignID *uint   `query:"campaign_id"`
	Status     *string `query:"status" validate:"omitempty,oneof=pending approved rejected queued sent failed"`
	Channel    *string `query:"channel" validate:"omitempty,oneof=linkedin email sms"`
	Page       int     `query:"page"`
	Limit      int     `query:"limit"`
}

// ApprovalItemResponse represents a drafted message and its delivery state
type ApprovalItemResponse struct {
	ID             uint    `json:"id"`
	CampaignID     uint    `json:"campaign_id"`
	CampaignLeadID uint    `json:"campaign_lead_id"`
	StepID         uint    `json:"step_id"`
	StepPosition   int     `json:"step_position"`
	Channel        string  `json:"channel"`
	Content        string  `json:"content"`
	Subject        *string `json:"subject,omitempty"`
	Tone           *string `json:"tone,omitempty"`
	Length         *string `json:"length,omitempty"`
	Focus          *string `json:"focus,omitempty"`
	AIGenerated    bool    `json:"ai_generated"`
	Status         string  `json:"status"`
	ContainerID    *string `json:"container_id,omitempty"`
	Attempts       int     `json:"attempts"`
	LastError      *string `json:"last_error,omitempty"`
	ErrorCode      *string `json:"error_code,omitempty"`
	ReviewedAt     *string `json:"reviewed_at,omitempty"`
	QueuedAt       *string `json:"queued_at,omitempty"`
	SentAt         *string `json:"sent_at,omitempty"`
	FailedAt       *string `json:"failed_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// ListApprovalsResponse is a page of approval items
type ListApprovalsResponse struct {
	Items      []ApprovalItemResponse `json:"items"`
	Pagination PaginationInfo         `json:"pagination"`
}

// ApprovalStatusResponse is the delivery state of a single item
type ApprovalStatusResponse struct {
	ID          uint    `json:"id"`
	Status      string  `json:"status"`
	ContainerID *string `json:"container_id,omitempty"`
	Attempts    int     `json:"attempts"`
	LastError   *string `json:"last_error,omitempty"`
	ErrorCode   *string `json:"error_code,omitempty"`
	SentAt      *string `json:"sent_at,omitempty"`
	FailedAt    *string `json:"failed_at,omitempty"`
}

// EditContentRequest overwrites a pending draft
type EditContentRequest struct {
	ID      uint    `json:"-"`
	Content string  `json:"content" validate:"required"`
	Subject *string `json:"subject,omitempty" validate:"omitempty,max=255"`
}

// PersonalizeParams steers content regeneration
type PersonalizeParams struct {
	Tone   *string `json:"tone,omitempty"`
	Length *string `json:"length,omitempty"`
	Focus  *string `json:"focus,omitempty" validate:"omitempty,max=255"`
}

// RegenerateRequest regenerates a single pending draft
type RegenerateRequest struct {
	ID uint `json:"-"`
	PersonalizeParams
}

// RegenerateResponse carries the new draft; AIUnavailable marks a template fallback
type RegenerateResponse struct {
	Item          ApprovalItemResponse `json:"item"`
	AIUnavailable bool                 `json:"aiUnavailable"`
}

// BulkIDsRequest selects approval items for a bulk action
type BulkIDsRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// BulkActionResponse counts per-item outcomes of a bulk approve or reject
type BulkActionResponse struct {
	Requested  int    `json:"requested"`
	Succeeded  int    `json:"succeeded"`
	Skipped    int    `json:"skipped"`
	SkippedIDs []uint `json:"skipped_ids"`
}

// BulkPersonalizeRequest regenerates several drafts with the same parameters
type BulkPersonalizeRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,dive,gt=0"`
	PersonalizeParams
}

// PersonalizedItem is one regenerated draft
type PersonalizedItem struct {
	ID      uint   `json:"id"`
	Content string `json:"content"`
}

// BulkPersonalizeResponse counts regenerated and failed ids
type BulkPersonalizeResponse struct {
	Regenerated int                `json:"regenerated"`
	Failed      int                `json:"failed"`
	Items       []PersonalizedItem `json:"items"`
}
