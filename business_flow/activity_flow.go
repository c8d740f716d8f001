package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
)

// ActivityFlow reads the feed of terminal dispatch outcomes
type ActivityFlow interface {
	ListActivity(ctx context.Context, req *dto.ListActivityRequest) (*dto.ListActivityResponse, error)
}

// ActivityFlowImpl implements ActivityFlow
type ActivityFlowImpl struct {
	eventRepo repository.DispatchEventRepository
}

func NewActivityFlow(eventRepo repository.DispatchEventRepository) ActivityFlow {
	return &ActivityFlowImpl{eventRepo: eventRepo}
}

func (s *ActivityFlowImpl) ListActivity(ctx context.Context, req *dto.ListActivityRequest) (*dto.ListActivityResponse, error) {
	page, limit, offset, err := normalizePage(req.Page, req.Limit)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", err)
	}

	filter := models.DispatchEventFilter{
		CampaignID:     req.CampaignID,
		CampaignLeadID: req.CampaignLeadID,
	}
	if req.Outcome != nil {
		outcome := models.DispatchOutcome(*req.Outcome)
		filter.Outcome = &outcome
	}
	if req.Since != nil {
		since, err := time.Parse(time.RFC3339, *req.Since)
		if err != nil {
			return nil, NewBusinessError("INVALID_FILTER", "since must be an RFC3339 timestamp", ErrInvalidSince)
		}
		since = since.UTC()
		filter.Since = &since
	}

	events, err := s.eventRepo.ByFilter(ctx, filter, "occurred_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("ACTIVITY_LIST_FAILED", "Failed to list activity", err)
	}
	total, err := s.eventRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ACTIVITY_LIST_FAILED", "Failed to count activity", err)
	}

	resp := &dto.ListActivityResponse{
		Items:      make([]dto.ActivityEventResponse, 0, len(events)),
		Pagination: pagination(total, page, limit),
	}
	for _, e := range events {
		resp.Items = append(resp.Items, ToActivityEventResponse(e))
	}
	return resp, nil
}
