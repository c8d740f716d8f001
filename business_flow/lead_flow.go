package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/sirupsen/logrus"
)

// LeadFlow holds the operator actions on a single campaign lead
type LeadFlow interface {
	RetryLead(ctx context.Context, campaignLeadID uint) (*dto.LeadActionResponse, error)
	SkipStep(ctx context.Context, campaignLeadID uint) (*dto.LeadActionResponse, error)
	PauseLead(ctx context.Context, campaignLeadID uint) (*dto.LeadActionResponse, error)
	ResumeLead(ctx context.Context, campaignLeadID uint) (*dto.LeadActionResponse, error)
}

// LeadFlowImpl implements LeadFlow
type LeadFlowImpl struct {
	campaignLeadRepo repository.CampaignLeadRepository
	stepRepo         repository.SequenceStepRepository
	itemRepo         repository.ApprovalItemRepository
	logger           logrus.FieldLogger
	now              func() time.Time
}

func NewLeadFlow(
	campaignLeadRepo repository.CampaignLeadRepository,
	stepRepo repository.SequenceStepRepository,
	itemRepo repository.ApprovalItemRepository,
	logger logrus.FieldLogger,
) LeadFlow {
	return &LeadFlowImpl{
		campaignLeadRepo: campaignLeadRepo,
		stepRepo:         stepRepo,
		itemRepo:         itemRepo,
		logger:           logger,
		now:              utils.UTCNow,
	}
}

var pausableStatuses = []models.CursorStatus{
	models.CursorStatusIdle,
	models.CursorStatusAwaitingContent,
	models.CursorStatusAwaitingApproval,
	models.CursorStatusQueued,
	models.CursorStatusSent,
	models.CursorStatusFailed,
}

// RetryLead re-enters awaiting_content for the same step so a fresh draft is generated
func (s *LeadFlowImpl) RetryLead(ctx context.Context, campaignLeadID uint) (*dto.LeadActionResponse, error) {
	cl, err := s.getCampaignLead(ctx, campaignLeadID)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to lookup campaign lead", err)
	}
	if err := s.ensureStuck(ctx, cl); err != nil {
		return nil, err
	}

	ok, err := s.campaignLeadRepo.TransitionStatus(ctx, cl.ID,
		[]models.CursorStatus{cl.CursorStatus}, models.CursorStatusAwaitingContent,
		map[string]any{"next_due_at": nil, "last_error": nil})
	if err != nil {
		return nil, NewBusinessError("LEAD_UPDATE_FAILED", "Failed to retry campaign lead", err)
	}
	if !ok {
		return nil, NewBusinessError("LEAD_NOT_RETRYABLE", "Campaign lead changed state", ErrLeadNotRetryable)
	}

	s.logger.WithFields(logrus.Fields{"campaign_lead_id": cl.ID, "from": cl.CursorStatus}).Info("Campaign lead retried")
	return s.actionResponse(ctx, cl.ID, "Lead will be redrafted for the current step")
}

// SkipStep moves the cursor past the failed or rejected step without sending it
func (s *LeadFlowImpl) SkipStep(ctx context.Context, campaignLeadID uint) (*dto.LeadActionResponse, error) {
	cl, err := s.getCampaignLead(ctx, campaignLeadID)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to lookup campaign lead", err)
	}
	if err := s.ensureStuck(ctx, cl); err != nil {
		return nil, err
	}

	position, err := s.currentPosition(ctx, cl)
	if err != nil {
		return nil, NewBusinessError("STEP_LOOKUP_FAILED", "Failed to lookup current step", err)
	}

	now := s.now()
	newIndex := position + 1
	next, err := s.stepRepo.CurrentStep(ctx, cl.CampaignID, newIndex)
	if err != nil {
		return nil, NewBusinessError("STEP_LOOKUP_FAILED", "Failed to lookup next step", err)
	}

	to := models.CursorStatusIdle
	var nextDueAt, completedAt *time.Time
	if next == nil {
		to = models.CursorStatusCompleted
		completedAt = &now
	} else {
		due := utils.AddDays(now, next.DelayDays)
		nextDueAt = &due
	}

	ok, err := s.campaignLeadRepo.Advance(ctx, cl.ID, cl.CursorStatus, newIndex, to, nextDueAt, completedAt)
	if err != nil {
		return nil, NewBusinessError("LEAD_UPDATE_FAILED", "Failed to skip step", err)
	}
	if !ok {
		return nil, NewBusinessError("LEAD_NOT_RETRYABLE", "Campaign lead changed state", ErrLeadNotRetryable)
	}

	s.logger.WithFields(logrus.Fields{
		"campaign_lead_id": cl.ID,
		"skipped_position": position,
		"to":               to,
	}).Info("Campaign lead step skipped")
	return s.actionResponse(ctx, cl.ID, "Step skipped")
}

func (s *LeadFlowImpl) PauseLead(ctx context.Context, campaignLeadID uint) (*dto.LeadActionResponse, error) {
	cl, err := s.getCampaignLead(ctx, campaignLeadID)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to lookup campaign lead", err)
	}

	ok, err := s.campaignLeadRepo.TransitionStatus(ctx, cl.ID, pausableStatuses, models.CursorStatusPaused,
		map[string]any{"resume_status": string(cl.CursorStatus)})
	if err != nil {
		return nil, NewBusinessError("LEAD_UPDATE_FAILED", "Failed to pause campaign lead", err)
	}
	if !ok {
		return nil, NewBusinessErrorf("LEAD_NOT_PAUSABLE", "Campaign lead is %s", ErrLeadNotPausable, cl.CursorStatus)
	}

	s.logger.WithFields(logrus.Fields{"campaign_lead_id": cl.ID, "resume_status": cl.CursorStatus}).Info("Campaign lead paused")
	return s.actionResponse(ctx, cl.ID, "Lead paused")
}

// ResumeLead restores the status recorded at pause time
func (s *LeadFlowImpl) ResumeLead(ctx context.Context, campaignLeadID uint) (*dto.LeadActionResponse, error) {
	cl, err := s.getCampaignLead(ctx, campaignLeadID)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to lookup campaign lead", err)
	}
	if cl.CursorStatus != models.CursorStatusPaused {
		return nil, NewBusinessErrorf("LEAD_NOT_PAUSED", "Campaign lead is %s", ErrLeadNotPaused, cl.CursorStatus)
	}

	to := models.CursorStatusIdle
	if cl.ResumeStatus != nil {
		if rs := models.CursorStatus(*cl.ResumeStatus); rs.Valid() && rs != models.CursorStatusPaused {
			to = rs
		}
	}

	ok, err := s.campaignLeadRepo.TransitionStatus(ctx, cl.ID,
		[]models.CursorStatus{models.CursorStatusPaused}, to, map[string]any{"resume_status": nil})
	if err != nil {
		return nil, NewBusinessError("LEAD_UPDATE_FAILED", "Failed to resume campaign lead", err)
	}
	if !ok {
		return nil, NewBusinessError("LEAD_NOT_PAUSED", "Campaign lead is not paused", ErrLeadNotPaused)
	}

	s.logger.WithFields(logrus.Fields{"campaign_lead_id": cl.ID, "status": to}).Info("Campaign lead resumed")
	return s.actionResponse(ctx, cl.ID, "Lead resumed")
}

// ensureStuck accepts a failed cursor, or one awaiting approval whose latest item was rejected
func (s *LeadFlowImpl) ensureStuck(ctx context.Context, cl *models.CampaignLead) error {
	switch cl.CursorStatus {
	case models.CursorStatusFailed:
		return nil
	case models.CursorStatusAwaitingApproval:
		latest, err := s.itemRepo.LatestForLead(ctx, cl.ID)
		if err != nil {
			return NewBusinessError("APPROVAL_LOOKUP_FAILED", "Failed to lookup latest approval item", err)
		}
		if latest != nil && latest.Status == models.ApprovalStatusRejected {
			return nil
		}
		return NewBusinessError("LEAD_NOT_RETRYABLE", "Latest approval item was not rejected", ErrLeadNotRetryable)
	default:
		return NewBusinessErrorf("LEAD_NOT_RETRYABLE", "Campaign lead is %s", ErrLeadNotRetryable, cl.CursorStatus)
	}
}

// currentPosition is the position of the step the lead is stuck on
func (s *LeadFlowImpl) currentPosition(ctx context.Context, cl *models.CampaignLead) (int, error) {
	latest, err := s.itemRepo.LatestForLead(ctx, cl.ID)
	if err != nil {
		return 0, err
	}
	if latest != nil && latest.StepPosition >= cl.CurrentStepIndex {
		return latest.StepPosition, nil
	}
	step, err := s.stepRepo.CurrentStep(ctx, cl.CampaignID, cl.CurrentStepIndex)
	if err != nil {
		return 0, err
	}
	if step == nil {
		return cl.CurrentStepIndex, nil
	}
	return step.Position, nil
}

func (s *LeadFlowImpl) getCampaignLead(ctx context.Context, id uint) (*models.CampaignLead, error) {
	cl, err := s.campaignLeadRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cl == nil {
		return nil, ErrCampaignLeadNotFound
	}
	return cl, nil
}

func (s *LeadFlowImpl) actionResponse(ctx context.Context, id uint, msg string) (*dto.LeadActionResponse, error) {
	cl, err := s.getCampaignLead(ctx, id)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to lookup campaign lead", err)
	}
	return &dto.LeadActionResponse{Message: msg, Lead: ToCampaignLeadResponse(cl)}, nil
}
