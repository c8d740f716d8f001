// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
)

// normalizePage validates a 1-based page and limit and returns the query offset
func normalizePage(page, limit int) (int, int, int, error) {
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return 0, 0, 0, ErrInvalidPage
	}
	if limit == 0 {
		limit = utils.DefaultPageSize
	}
	if limit < 0 || limit > utils.MaxPageSize {
		return 0, 0, 0, ErrInvalidPageSize
	}
	return page, limit, (page - 1) * limit, nil
}

func pagination(total int64, page, limit int) dto.PaginationInfo {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return dto.PaginationInfo{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToCampaignResponse converts a campaign model; stats are filled by the caller
func ToCampaignResponse(c *models.Campaign, steps []*models.SequenceStep) dto.CampaignResponse {
	resp := dto.CampaignResponse{
		ID:          c.ID,
		UUID:        c.UUID.String(),
		Name:        c.Name,
		Status:      string(c.Status),
		DailyCap:    c.DailyCap,
		WindowStart: c.WindowStart,
		WindowEnd:   c.WindowEnd,
		Timezone:    c.Timezone,
		LaunchedAt:  formatTimePtr(c.LaunchedAt),
		CompletedAt: formatTimePtr(c.CompletedAt),
		CreatedAt:   formatTime(c.CreatedAt),
		Steps:       make([]dto.StepResponse, 0, len(steps)),
	}
	for _, s := range steps {
		resp.Steps = append(resp.Steps, ToStepResponse(s))
	}
	return resp
}

func ToStepResponse(s *models.SequenceStep) dto.StepResponse {
	return dto.StepResponse{
		ID:          s.ID,
		CampaignID:  s.CampaignID,
		Position:    s.Position,
		Type:        string(s.Type),
		Channel:     string(s.Type.Channel()),
		DelayDays:   s.DelayDays,
		Template:    s.Template,
		Subject:     s.Subject,
		WindowStart: s.WindowStart,
		WindowEnd:   s.WindowEnd,
		CreatedAt:   formatTime(s.CreatedAt),
	}
}

func ToCampaignLeadResponse(cl *models.CampaignLead) dto.CampaignLeadResponse {
	return dto.CampaignLeadResponse{
		ID:               cl.ID,
		CampaignID:       cl.CampaignID,
		LeadID:           cl.LeadID,
		CurrentStepIndex: cl.CurrentStepIndex,
		CursorStatus:     string(cl.CursorStatus),
		ResumeStatus:     cl.ResumeStatus,
		NextDueAt:        formatTimePtr(cl.NextDueAt),
		LastError:        cl.LastError,
		CompletedAt:      formatTimePtr(cl.CompletedAt),
	}
}

func ToApprovalItemResponse(a *models.ApprovalItem) dto.ApprovalItemResponse {
	return dto.ApprovalItemResponse{
		ID:             a.ID,
		CampaignID:     a.CampaignID,
		CampaignLeadID: a.CampaignLeadID,
		StepID:         a.StepID,
		StepPosition:   a.StepPosition,
		Channel:        string(a.Channel),
		Content:        a.Content,
		Subject:        a.Subject,
		Tone:           a.Tone,
		Length:         a.Length,
		Focus:          a.Focus,
		AIGenerated:    a.AIGenerated,
		Status:         string(a.Status),
		ContainerID:    a.ContainerID,
		Attempts:       a.Attempts,
		LastError:      a.LastError,
		ErrorCode:      a.ErrorCode,
		ReviewedAt:     formatTimePtr(a.ReviewedAt),
		QueuedAt:       formatTimePtr(a.QueuedAt),
		SentAt:         formatTimePtr(a.SentAt),
		FailedAt:       formatTimePtr(a.FailedAt),
		CreatedAt:      formatTime(a.CreatedAt),
	}
}

func ToActivityEventResponse(e *models.DispatchEvent) dto.ActivityEventResponse {
	return dto.ActivityEventResponse{
		ID:             e.ID,
		ApprovalItemID: e.ApprovalItemID,
		CampaignID:     e.CampaignID,
		CampaignLeadID: e.CampaignLeadID,
		StepPosition:   e.StepPosition,
		Channel:        string(e.Channel),
		Outcome:        string(e.Outcome),
		ContainerID:    e.ContainerID,
		ErrorCode:      e.ErrorCode,
		Error:          e.Error,
		Attempts:       e.Attempts,
		OccurredAt:     formatTime(e.OccurredAt),
	}
}

func ToScrapeJobResponse(j *models.ScrapeJob) dto.ScrapeJobResponse {
	return dto.ScrapeJobResponse{
		JobID:           j.ID,
		Status:          string(j.Status),
		Processed:       j.Processed,
		Total:           j.Total,
		Found:           j.Found,
		Skipped:         j.Skipped,
		AlreadyHad:      j.AlreadyHad,
		Progress:        j.Progress(),
		CancelRequested: j.CancelRequested,
		Error:           j.Error,
		StartedAt:       formatTime(j.StartedAt),
		FinishedAt:      formatTimePtr(j.FinishedAt),
	}
}
