package businessflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/sirupsen/logrus"
)

// ApprovalFlow is the human review workflow over drafted items
type ApprovalFlow interface {
	ListApprovals(ctx context.Context, req *dto.ListApprovalsRequest) (*dto.ListApprovalsResponse, error)
	GetApprovalStatus(ctx context.Context, id uint) (*dto.ApprovalStatusResponse, error)
	EditContent(ctx context.Context, req *dto.EditContentRequest) (*dto.ApprovalItemResponse, error)
	Regenerate(ctx context.Context, req *dto.RegenerateRequest) (*dto.RegenerateResponse, error)
	Approve(ctx context.Context, id uint) (*dto.ApprovalItemResponse, error)
	Reject(ctx context.Context, id uint) (*dto.ApprovalItemResponse, error)
	BulkApprove(ctx context.Context, req *dto.BulkIDsRequest) (*dto.BulkActionResponse, error)
	BulkReject(ctx context.Context, req *dto.BulkIDsRequest) (*dto.BulkActionResponse, error)
	BulkPersonalize(ctx context.Context, req *dto.BulkPersonalizeRequest) (*dto.BulkPersonalizeResponse, error)
}

// ApprovalFlowImpl implements ApprovalFlow
type ApprovalFlowImpl struct {
	itemRepo         repository.ApprovalItemRepository
	campaignLeadRepo repository.CampaignLeadRepository
	stepRepo         repository.SequenceStepRepository
	composer         *services.ContentComposer
	logger           logrus.FieldLogger
	now              func() time.Time
}

func NewApprovalFlow(
	itemRepo repository.ApprovalItemRepository,
	campaignLeadRepo repository.CampaignLeadRepository,
	stepRepo repository.SequenceStepRepository,
	composer *services.ContentComposer,
	logger logrus.FieldLogger,
) ApprovalFlow {
	return &ApprovalFlowImpl{
		itemRepo:         itemRepo,
		campaignLeadRepo: campaignLeadRepo,
		stepRepo:         stepRepo,
		composer:         composer,
		logger:           logger,
		now:              utils.UTCNow,
	}
}

// personalization is a validated set of regeneration parameters
type personalization struct {
	tone   string
	length string
	focus  string
}

func (s *ApprovalFlowImpl) ListApprovals(ctx context.Context, req *dto.ListApprovalsRequest) (*dto.ListApprovalsResponse, error) {
	page, limit, offset, err := normalizePage(req.Page, req.Limit)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", err)
	}

	filter := models.ApprovalItemFilter{CampaignID: req.CampaignID}
	if req.Status != nil {
		status := models.ApprovalStatus(*req.Status)
		filter.Status = &status
	}
	if req.Channel != nil {
		ch := models.Channel(*req.Channel)
		filter.Channel = &ch
	}

	items, err := s.itemRepo.ByFilter(ctx, filter, "id ASC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_LIST_FAILED", "Failed to list approval items", err)
	}
	total, err := s.itemRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_LIST_FAILED", "Failed to count approval items", err)
	}

	resp := &dto.ListApprovalsResponse{
		Items:      make([]dto.ApprovalItemResponse, 0, len(items)),
		Pagination: pagination(total, page, limit),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, ToApprovalItemResponse(item))
	}
	return resp, nil
}

func (s *ApprovalFlowImpl) GetApprovalStatus(ctx context.Context, id uint) (*dto.ApprovalStatusResponse, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_LOOKUP_FAILED", "Failed to lookup approval item", err)
	}
	return &dto.ApprovalStatusResponse{
		ID:          item.ID,
		Status:      string(item.Status),
		ContainerID: item.ContainerID,
		Attempts:    item.Attempts,
		LastError:   item.LastError,
		ErrorCode:   item.ErrorCode,
		SentAt:      formatTimePtr(item.SentAt),
		FailedAt:    formatTimePtr(item.FailedAt),
	}, nil
}

// EditContent overwrites the draft of a pending item; status is unchanged
func (s *ApprovalFlowImpl) EditContent(ctx context.Context, req *dto.EditContentRequest) (*dto.ApprovalItemResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, NewBusinessError("APPROVAL_VALIDATION_FAILED", "Content is required", ErrContentRequired)
	}

	updates := map[string]any{"content": content}
	if req.Subject != nil {
		updates["subject"] = strings.TrimSpace(*req.Subject)
	}
	ok, err := s.itemRepo.UpdatePending(ctx, req.ID, updates)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_UPDATE_FAILED", "Failed to update approval item", err)
	}
	if !ok {
		return nil, s.notPendingError(ctx, req.ID)
	}

	item, err := s.getItem(ctx, req.ID)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_LOOKUP_FAILED", "Failed to lookup approval item", err)
	}
	resp := ToApprovalItemResponse(item)
	return &resp, nil
}

// Regenerate redrafts a pending item. A generator outage falls back to the
// step template and is reported through AIUnavailable, never as an error.
func (s *ApprovalFlowImpl) Regenerate(ctx context.Context, req *dto.RegenerateRequest) (*dto.RegenerateResponse, error) {
	params, err := validatePersonalization(req.PersonalizeParams)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_VALIDATION_FAILED", "Invalid personalization parameters", err)
	}

	item, err := s.getItem(ctx, req.ID)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_LOOKUP_FAILED", "Failed to lookup approval item", err)
	}
	if item.Status != models.ApprovalStatusPending {
		return nil, NewBusinessErrorf("APPROVAL_NOT_PENDING", "Approval item is %s", ErrApprovalNotPending, item.Status)
	}

	composed, err := s.compose(ctx, item, params)
	if err != nil {
		return nil, NewBusinessError("REGENERATION_FAILED", "Failed to regenerate content", err)
	}
	if err := s.storeDraft(ctx, item.ID, composed, params); err != nil {
		return nil, err
	}

	item, err = s.getItem(ctx, req.ID)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_LOOKUP_FAILED", "Failed to lookup approval item", err)
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":        item.ID,
		"ai_unavailable": composed.AIUnavailable,
	}).Info("Approval item regenerated")

	return &dto.RegenerateResponse{
		Item:          ToApprovalItemResponse(item),
		AIUnavailable: composed.AIUnavailable,
	}, nil
}

func (s *ApprovalFlowImpl) Approve(ctx context.Context, id uint) (*dto.ApprovalItemResponse, error) {
	return s.review(ctx, id, models.ApprovalStatusApproved)
}

// Reject is terminal for the item; the lead's cursor does not move
func (s *ApprovalFlowImpl) Reject(ctx context.Context, id uint) (*dto.ApprovalItemResponse, error) {
	return s.review(ctx, id, models.ApprovalStatusRejected)
}

func (s *ApprovalFlowImpl) BulkApprove(ctx context.Context, req *dto.BulkIDsRequest) (*dto.BulkActionResponse, error) {
	return s.bulkReview(ctx, req.IDs, models.ApprovalStatusApproved)
}

func (s *ApprovalFlowImpl) BulkReject(ctx context.Context, req *dto.BulkIDsRequest) (*dto.BulkActionResponse, error) {
	return s.bulkReview(ctx, req.IDs, models.ApprovalStatusRejected)
}

// BulkPersonalize regenerates each id independently. Ids that are not pending,
// or whose generator call fell back to a template, are counted as failed and keep their draft.
func (s *ApprovalFlowImpl) BulkPersonalize(ctx context.Context, req *dto.BulkPersonalizeRequest) (*dto.BulkPersonalizeResponse, error) {
	if len(req.IDs) == 0 {
		return nil, NewBusinessError("APPROVAL_VALIDATION_FAILED", "No ids provided", ErrNoIDsProvided)
	}
	params, err := validatePersonalization(req.PersonalizeParams)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_VALIDATION_FAILED", "Invalid personalization parameters", err)
	}

	resp := &dto.BulkPersonalizeResponse{Items: []dto.PersonalizedItem{}}
	for _, id := range dedupeIDs(req.IDs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := s.logger.WithField("item_id", id)

		item, err := s.getItem(ctx, id)
		if err != nil || item.Status != models.ApprovalStatusPending {
			resp.Failed++
			continue
		}
		composed, err := s.compose(ctx, item, params)
		if err != nil {
			log.WithError(err).Warn("Personalization failed")
			resp.Failed++
			continue
		}
		if composed.AIUnavailable {
			resp.Failed++
			continue
		}
		if err := s.storeDraft(ctx, id, composed, params); err != nil {
			log.WithError(err).Info("Personalized draft not stored")
			resp.Failed++
			continue
		}
		resp.Regenerated++
		resp.Items = append(resp.Items, dto.PersonalizedItem{ID: id, Content: composed.Content})
	}

	s.logger.WithFields(logrus.Fields{
		"regenerated": resp.Regenerated,
		"failed":      resp.Failed,
	}).Info("Bulk personalization finished")

	return resp, nil
}

func (s *ApprovalFlowImpl) review(ctx context.Context, id uint, to models.ApprovalStatus) (*dto.ApprovalItemResponse, error) {
	ok, err := s.itemRepo.TransitionStatus(ctx, id, models.ApprovalStatusPending, to, map[string]any{"reviewed_at": s.now()})
	if err != nil {
		return nil, NewBusinessError("APPROVAL_UPDATE_FAILED", "Failed to update approval item", err)
	}
	if !ok {
		return nil, s.notPendingError(ctx, id)
	}

	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_LOOKUP_FAILED", "Failed to lookup approval item", err)
	}
	s.logger.WithFields(logrus.Fields{"item_id": id, "status": to}).Info("Approval item reviewed")

	resp := ToApprovalItemResponse(item)
	return &resp, nil
}

func (s *ApprovalFlowImpl) bulkReview(ctx context.Context, ids []uint, to models.ApprovalStatus) (*dto.BulkActionResponse, error) {
	if len(ids) == 0 {
		return nil, NewBusinessError("APPROVAL_VALIDATION_FAILED", "No ids provided", ErrNoIDsProvided)
	}

	ids = dedupeIDs(ids)
	resp := &dto.BulkActionResponse{Requested: len(ids), SkippedIDs: []uint{}}
	now := s.now()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := s.itemRepo.TransitionStatus(ctx, id, models.ApprovalStatusPending, to, map[string]any{"reviewed_at": now})
		if err != nil {
			s.logger.WithError(err).WithField("item_id", id).Warn("Bulk review skipped item")
		}
		if err != nil || !ok {
			resp.Skipped++
			resp.SkippedIDs = append(resp.SkippedIDs, id)
			continue
		}
		resp.Succeeded++
	}

	s.logger.WithFields(logrus.Fields{
		"status":    to,
		"succeeded": resp.Succeeded,
		"skipped":   resp.Skipped,
	}).Info("Bulk review finished")

	return resp, nil
}

func (s *ApprovalFlowImpl) compose(ctx context.Context, item *models.ApprovalItem, p personalization) (services.ComposedContent, error) {
	cl, err := s.campaignLeadRepo.ByIDWithLead(ctx, item.CampaignLeadID)
	if err != nil {
		return services.ComposedContent{}, err
	}
	if cl == nil {
		return services.ComposedContent{}, ErrCampaignLeadNotFound
	}
	step, err := s.stepRepo.ByIDUnscoped(ctx, item.StepID)
	if err != nil {
		return services.ComposedContent{}, err
	}
	if step == nil {
		return services.ComposedContent{}, ErrStepNotFound
	}

	return s.composer.Compose(ctx, services.ContentRequest{
		Target:   services.TargetFromLead(cl.Lead),
		StepType: step.Type,
		Template: step.Template,
		Subject:  step.Subject,
		Tone:     p.tone,
		Length:   p.length,
		Focus:    p.focus,
	})
}

func (s *ApprovalFlowImpl) storeDraft(ctx context.Context, id uint, composed services.ComposedContent, p personalization) error {
	updates := map[string]any{
		"content":      composed.Content,
		"ai_generated": composed.AIGenerated,
		"tone":         optional(p.tone),
		"length":       optional(p.length),
		"focus":        optional(p.focus),
	}
	if composed.Subject != nil {
		updates["subject"] = *composed.Subject
	}
	ok, err := s.itemRepo.UpdatePending(ctx, id, updates)
	if err != nil {
		return NewBusinessError("APPROVAL_UPDATE_FAILED", "Failed to update approval item", err)
	}
	if !ok {
		return NewBusinessError("APPROVAL_NOT_PENDING", "Approval item is no longer pending", ErrApprovalNotPending)
	}
	return nil
}

func (s *ApprovalFlowImpl) getItem(ctx context.Context, id uint) (*models.ApprovalItem, error) {
	item, err := s.itemRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrApprovalNotFound
	}
	return item, nil
}

// notPendingError distinguishes a missing item from one that already left pending
func (s *ApprovalFlowImpl) notPendingError(ctx context.Context, id uint) error {
	item, err := s.getItem(ctx, id)
	if errors.Is(err, ErrApprovalNotFound) {
		return NewBusinessError("APPROVAL_NOT_FOUND", "Approval item not found", err)
	}
	if err != nil {
		return NewBusinessError("APPROVAL_LOOKUP_FAILED", "Failed to lookup approval item", err)
	}
	return NewBusinessErrorf("APPROVAL_NOT_PENDING", "Approval item is %s", ErrApprovalNotPending, item.Status)
}

func validatePersonalization(p dto.PersonalizeParams) (personalization, error) {
	var out personalization
	if p.Tone != nil && *p.Tone != "" {
		tone := strings.ToLower(strings.TrimSpace(*p.Tone))
		if !slices.Contains(services.Tones, tone) {
			return out, fmt.Errorf("%w: %q", ErrInvalidTone, *p.Tone)
		}
		out.tone = tone
	}
	if p.Length != nil && *p.Length != "" {
		length := strings.ToLower(strings.TrimSpace(*p.Length))
		if !slices.Contains(services.Lengths, length) {
			return out, fmt.Errorf("%w: %q", ErrInvalidLength, *p.Length)
		}
		out.length = length
	}
	if p.Focus != nil {
		out.focus = strings.TrimSpace(*p.Focus)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
