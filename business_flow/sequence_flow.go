package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/app/scheduler"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SequenceFlow manages the ordered steps of a campaign
type SequenceFlow interface {
	ListSteps(ctx context.Context, campaignID uint) (*dto.ListStepsResponse, error)
	AddStep(ctx context.Context, req *dto.AddStepRequest) (*dto.StepResponse, error)
	RemoveStep(ctx context.Context, campaignID, stepID uint) error
}

// SequenceFlowImpl implements SequenceFlow
type SequenceFlowImpl struct {
	campaignRepo repository.CampaignRepository
	stepRepo     repository.SequenceStepRepository
	db           *gorm.DB
	logger       logrus.FieldLogger
}

func NewSequenceFlow(
	campaignRepo repository.CampaignRepository,
	stepRepo repository.SequenceStepRepository,
	db *gorm.DB,
	logger logrus.FieldLogger,
) SequenceFlow {
	return &SequenceFlowImpl{
		campaignRepo: campaignRepo,
		stepRepo:     stepRepo,
		db:           db,
		logger:       logger,
	}
}

func (s *SequenceFlowImpl) ListSteps(ctx context.Context, campaignID uint) (*dto.ListStepsResponse, error) {
	if _, err := getCampaign(ctx, s.campaignRepo, campaignID); err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	steps, err := s.stepRepo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("STEP_LOOKUP_FAILED", "Failed to list sequence steps", err)
	}
	resp := &dto.ListStepsResponse{CampaignID: campaignID, Steps: make([]dto.StepResponse, 0, len(steps))}
	for _, step := range steps {
		resp.Steps = append(resp.Steps, ToStepResponse(step))
	}
	return resp, nil
}

// AddStep validates the step and appends it at max(position)+1.
// Invalid input is rejected before anything is written.
func (s *SequenceFlowImpl) AddStep(ctx context.Context, req *dto.AddStepRequest) (*dto.StepResponse, error) {
	step, err := buildStep(req)
	if err != nil {
		return nil, NewBusinessError("STEP_VALIDATION_FAILED", "Step validation failed", err)
	}

	campaign, err := getCampaign(ctx, s.campaignRepo, req.CampaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign.Status == models.CampaignStatusCompleted {
		return nil, NewBusinessError("CAMPAIGN_COMPLETED", "Cannot add steps to a completed campaign", ErrCampaignCompleted)
	}

	step.CampaignID = campaign.ID
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		pos, err := s.stepRepo.NextPosition(txCtx, campaign.ID)
		if err != nil {
			return err
		}
		step.Position = pos
		return s.stepRepo.Save(txCtx, step)
	})
	if err != nil {
		return nil, NewBusinessError("STEP_CREATION_FAILED", "Failed to add sequence step", err)
	}

	s.logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"step_id":     step.ID,
		"position":    step.Position,
		"type":        step.Type,
	}).Info("Sequence step added")

	resp := ToStepResponse(step)
	return &resp, nil
}

// RemoveStep soft-deletes a step. Items already drafted for it keep their history.
func (s *SequenceFlowImpl) RemoveStep(ctx context.Context, campaignID, stepID uint) error {
	if _, err := getCampaign(ctx, s.campaignRepo, campaignID); err != nil {
		return NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	ok, err := s.stepRepo.SoftDelete(ctx, campaignID, stepID)
	if err != nil {
		return NewBusinessError("STEP_DELETION_FAILED", "Failed to remove sequence step", err)
	}
	if !ok {
		return NewBusinessError("STEP_NOT_FOUND", "Sequence step not found", ErrStepNotFound)
	}
	s.logger.WithFields(logrus.Fields{"campaign_id": campaignID, "step_id": stepID}).Info("Sequence step removed")
	return nil
}

func buildStep(req *dto.AddStepRequest) (*models.SequenceStep, error) {
	stepType := models.StepType(strings.TrimSpace(req.Type))
	if !stepType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStepType, req.Type)
	}
	if req.DelayDays < 0 {
		return nil, ErrInvalidStepDelay
	}

	step := &models.SequenceStep{
		Type:      stepType,
		DelayDays: req.DelayDays,
		Template:  nonEmpty(req.Template),
		Subject:   nonEmpty(req.Subject),
	}

	if req.WindowStart != nil || req.WindowEnd != nil {
		if req.WindowStart == nil || req.WindowEnd == nil {
			return nil, ErrInvalidSendWindow
		}
		if _, err := scheduler.ParseSendWindow(*req.WindowStart, *req.WindowEnd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSendWindow, err)
		}
		step.WindowStart = req.WindowStart
		step.WindowEnd = req.WindowEnd
	}
	return step, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
