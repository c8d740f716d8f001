// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/app/scheduler"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CampaignResponse, error)
	GetCampaign(ctx context.Context, id uint) (*dto.CampaignResponse, error)
	LaunchCampaign(ctx context.Context, id uint) (*dto.CampaignActionResponse, error)
	PauseCampaign(ctx context.Context, id uint) (*dto.CampaignActionResponse, error)
	ResumeCampaign(ctx context.Context, id uint) (*dto.CampaignActionResponse, error)
	AddLeads(ctx context.Context, req *dto.AddLeadsRequest) (*dto.AddLeadsResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo     repository.CampaignRepository
	stepRepo         repository.SequenceStepRepository
	leadRepo         repository.LeadRepository
	campaignLeadRepo repository.CampaignLeadRepository
	guard            *scheduler.RateGuard
	db               *gorm.DB
	logger           logrus.FieldLogger
	now              func() time.Time
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	stepRepo repository.SequenceStepRepository,
	leadRepo repository.LeadRepository,
	campaignLeadRepo repository.CampaignLeadRepository,
	guard *scheduler.RateGuard,
	db *gorm.DB,
	logger logrus.FieldLogger,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:     campaignRepo,
		stepRepo:         stepRepo,
		leadRepo:         leadRepo,
		campaignLeadRepo: campaignLeadRepo,
		guard:            guard,
		db:               db,
		logger:           logger,
		now:              utils.UTCNow,
	}
}

// CreateCampaign creates a draft campaign and its initial steps in one transaction
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CampaignResponse, error) {
	campaign, err := s.buildCampaign(req)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}
	steps := make([]*models.SequenceStep, 0, len(req.Steps))
	for i := range req.Steps {
		step, err := buildStep(&req.Steps[i])
		if err != nil {
			return nil, NewBusinessErrorf("STEP_VALIDATION_FAILED", "Step %d validation failed", err, i+1)
		}
		steps = append(steps, step)
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.campaignRepo.Save(txCtx, campaign); err != nil {
			return err
		}
		for i, step := range steps {
			step.CampaignID = campaign.ID
			step.Position = i + 1
			if err := s.stepRepo.Save(txCtx, step); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	s.logger.WithFields(logrus.Fields{"campaign_id": campaign.ID, "steps": len(steps)}).Info("Campaign created")

	resp := ToCampaignResponse(campaign, steps)
	return &resp, nil
}

// GetCampaign returns a campaign with its live steps and progress stats
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, id uint) (*dto.CampaignResponse, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	steps, err := s.stepRepo.ListByCampaign(ctx, id)
	if err != nil {
		return nil, NewBusinessError("STEP_LOOKUP_FAILED", "Failed to list sequence steps", err)
	}

	stats, err := s.campaignStats(ctx, campaign)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_STATS_FAILED", "Failed to compute campaign stats", err)
	}

	resp := ToCampaignResponse(campaign, steps)
	resp.Stats = stats
	return &resp, nil
}

// LaunchCampaign moves a draft campaign to active; enrolled leads become due on the next tick
func (s *CampaignFlowImpl) LaunchCampaign(ctx context.Context, id uint) (*dto.CampaignActionResponse, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	steps, err := s.stepRepo.ListByCampaign(ctx, id)
	if err != nil {
		return nil, NewBusinessError("STEP_LOOKUP_FAILED", "Failed to list sequence steps", err)
	}
	if len(steps) == 0 {
		return nil, NewBusinessError("CAMPAIGN_HAS_NO_STEPS", "Campaign needs at least one step to launch", ErrCampaignHasNoSteps)
	}

	return s.transition(ctx, campaign, models.CampaignStatusDraft, models.CampaignStatusActive,
		map[string]any{"launched_at": s.now()}, "Campaign launched")
}

// PauseCampaign stops all processing for the campaign; cursors are left untouched
func (s *CampaignFlowImpl) PauseCampaign(ctx context.Context, id uint) (*dto.CampaignActionResponse, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	return s.transition(ctx, campaign, models.CampaignStatusActive, models.CampaignStatusPaused, nil, "Campaign paused")
}

// ResumeCampaign reactivates a paused campaign
func (s *CampaignFlowImpl) ResumeCampaign(ctx context.Context, id uint) (*dto.CampaignActionResponse, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	return s.transition(ctx, campaign, models.CampaignStatusPaused, models.CampaignStatusActive, nil, "Campaign resumed")
}

// AddLeads enrolls leads into the campaign at the first step.
// Unknown ids and leads already enrolled are skipped.
func (s *CampaignFlowImpl) AddLeads(ctx context.Context, req *dto.AddLeadsRequest) (*dto.AddLeadsResponse, error) {
	if len(req.LeadIDs) == 0 && len(req.Leads) == 0 {
		return nil, NewBusinessError("LEADS_VALIDATION_FAILED", "No leads provided", ErrNoLeadsProvided)
	}

	campaign, err := getCampaign(ctx, s.campaignRepo, req.CampaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign.Status == models.CampaignStatusCompleted {
		return nil, NewBusinessError("CAMPAIGN_COMPLETED", "Cannot add leads to a completed campaign", ErrCampaignCompleted)
	}

	requested := len(req.Leads)
	var enrolled []*models.CampaignLead
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		candidates := make([]uint, 0, len(req.LeadIDs)+len(req.Leads))

		ids := dedupeIDs(req.LeadIDs)
		requested += len(ids)
		existing, err := s.leadRepo.ByIDs(txCtx, ids)
		if err != nil {
			return err
		}
		for _, l := range existing {
			candidates = append(candidates, l.ID)
		}

		for _, in := range req.Leads {
			lead := toLead(in)
			if err := s.leadRepo.Save(txCtx, lead); err != nil {
				return err
			}
			candidates = append(candidates, lead.ID)
		}

		already, err := s.campaignLeadRepo.ExistingLeadIDs(txCtx, campaign.ID, candidates)
		if err != nil {
			return err
		}
		for _, leadID := range candidates {
			if slices.Contains(already, leadID) {
				continue
			}
			enrolled = append(enrolled, &models.CampaignLead{
				CampaignID:   campaign.ID,
				LeadID:       leadID,
				CursorStatus: models.CursorStatusIdle,
			})
		}
		if len(enrolled) == 0 {
			return nil
		}
		return s.campaignLeadRepo.SaveBatch(txCtx, enrolled)
	})
	if err != nil {
		return nil, NewBusinessError("ADD_LEADS_FAILED", "Failed to add leads", err)
	}

	resp := &dto.AddLeadsResponse{
		Message:         "Leads added successfully",
		Added:           len(enrolled),
		Skipped:         requested - len(enrolled),
		CampaignLeadIDs: make([]uint, 0, len(enrolled)),
	}
	for _, cl := range enrolled {
		resp.CampaignLeadIDs = append(resp.CampaignLeadIDs, cl.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"added":       resp.Added,
		"skipped":     resp.Skipped,
	}).Info("Leads enrolled")

	return resp, nil
}

func (s *CampaignFlowImpl) transition(
	ctx context.Context,
	campaign *models.Campaign,
	from, to models.CampaignStatus,
	updates map[string]any,
	message string,
) (*dto.CampaignActionResponse, error) {
	if campaign.Status != from {
		return nil, NewBusinessErrorf("CAMPAIGN_TRANSITION_NOT_ALLOWED", "Campaign is %s", ErrCampaignTransition, campaign.Status)
	}
	ok, err := s.campaignRepo.TransitionStatus(ctx, campaign.ID, []models.CampaignStatus{from}, to, updates)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to update campaign", err)
	}
	if !ok {
		return nil, NewBusinessError("CAMPAIGN_TRANSITION_NOT_ALLOWED", "Campaign changed concurrently", ErrCampaignTransition)
	}

	s.logger.WithFields(logrus.Fields{"campaign_id": campaign.ID, "from": from, "to": to}).Info(message)

	return &dto.CampaignActionResponse{
		Message: message,
		ID:      campaign.ID,
		Status:  string(to),
	}, nil
}

func (s *CampaignFlowImpl) campaignStats(ctx context.Context, campaign *models.Campaign) (*dto.CampaignStats, error) {
	counts, err := s.campaignLeadRepo.CountByStatus(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	stats := &dto.CampaignStats{LeadsByStatus: make(map[string]int64, len(counts))}
	for status, n := range counts {
		stats.LeadsByStatus[string(status)] = n
		stats.TotalLeads += n
	}

	now := s.now()
	stats.Today = s.guard.Day(campaign, now)
	sent, err := s.guard.Used(ctx, campaign, now)
	if err != nil {
		return nil, err
	}
	stats.SentToday = sent
	remaining, err := s.guard.Remaining(ctx, campaign, now)
	if err != nil {
		return nil, err
	}
	if remaining >= 0 {
		stats.RemainingToday = &remaining
	}
	return stats, nil
}

func (s *CampaignFlowImpl) buildCampaign(req *dto.CreateCampaignRequest) (*models.Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrCampaignNameRequired
	}
	if req.DailyCap < 0 {
		return nil, ErrInvalidDailyCap
	}

	campaign := &models.Campaign{
		Name:        name,
		Status:      models.CampaignStatusDraft,
		DailyCap:    req.DailyCap,
		WindowStart: utils.DefaultWindowStart,
		WindowEnd:   utils.DefaultWindowEnd,
		Timezone:    utils.DefaultTimezone,
	}

	if req.WindowStart != nil || req.WindowEnd != nil {
		if req.WindowStart == nil || req.WindowEnd == nil {
			return nil, ErrInvalidSendWindow
		}
		if _, err := scheduler.ParseSendWindow(*req.WindowStart, *req.WindowEnd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSendWindow, err)
		}
		campaign.WindowStart = *req.WindowStart
		campaign.WindowEnd = *req.WindowEnd
	}

	if req.Timezone != nil && *req.Timezone != "" {
		if _, err := utils.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, *req.Timezone)
		}
		campaign.Timezone = *req.Timezone
	}

	return campaign, nil
}

func getCampaign(ctx context.Context, repo repository.CampaignRepository, id uint) (*models.Campaign, error) {
	campaign, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

func toLead(in dto.LeadInput) *models.Lead {
	lead := &models.Lead{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Company:     strings.TrimSpace(in.Company),
		Title:       strings.TrimSpace(in.Title),
		LinkedInURL: strings.TrimSpace(in.LinkedInURL),
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		lead.Email = utils.ToPtr(strings.ToLower(strings.TrimSpace(*in.Email)))
	}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" {
		lead.Phone = utils.ToPtr(strings.TrimSpace(*in.Phone))
	}
	return lead
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
