package dto

// ScrapeJobRequest starts a job, or cancels JobID when Cancel is set
type ScrapeJobRequest struct {
	LeadIDs     []uint `json:"lead_ids,omitempty" validate:"omitempty,dive,gt=0"`
	MissingOnly bool   `json:"missing_only"`
	Cancel      bool   `json:"cancel"`
	JobID       string `json:"job_id,omitempty" validate:"omitempty,uuid"`
}

// ScrapeJobResponse is the poll view of a scrape job
type ScrapeJobResponse struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	Processed       int     `json:"processed"`
	Total           int     `json:"total"`
	Found           int     `json:"found"`
	Skipped         int     `json:"skipped"`
	AlreadyHad      int     `json:"already_had"`
	Progress        float64 `json:"progress"`
	CancelRequested bool    `json:"cancel_requested"`
	Error           *string `json:"error,omitempty"`
	StartedAt       string  `json:"started_at"`
	FinishedAt      *string `json:"finished_at,omitempty"`
}
