package handlers

import (
	"context"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	businessflow "github.com/amirphl/outreach-orchestrator/business_flow"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	LaunchCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	ResumeCampaign(c fiber.Ctx) error
	AddLeads(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
	logger       logrus.FieldLogger
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow, logger logrus.FieldLogger) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
		logger:       logger,
	}
}

// CreateCampaign handles the campaign creation process
// @Summary Create Campaign
// @Description Create a draft campaign with an optional initial sequence
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CampaignResponse} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.CreateCampaign(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "CAMPAIGN_CREATION_FAILED", "Campaign creation failed")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// GetCampaign returns a campaign with its sequence and progress
// @Summary Get Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse} "Campaign retrieved successfully"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id")
	defer cancel()

	result, err := h.campaignFlow.GetCampaign(ctx, id)
	if err != nil {
		return h.handleError(c, err, "CAMPAIGN_LOOKUP_FAILED", "Failed to retrieve campaign")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// LaunchCampaign activates a draft campaign
// @Summary Launch Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign launched"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign is not a draft or has no steps"
// @Router /api/v1/campaigns/{id}/launch [post]
func (h *CampaignHandler) LaunchCampaign(c fiber.Ctx) error {
	return h.action(c, "/api/v1/campaigns/:id/launch", h.campaignFlow.LaunchCampaign)
}

// PauseCampaign pauses an active campaign
// @Summary Pause Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign paused"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign is not active"
// @Router /api/v1/campaigns/{id}/pause [post]
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	return h.action(c, "/api/v1/campaigns/:id/pause", h.campaignFlow.PauseCampaign)
}

// ResumeCampaign resumes a paused campaign
// @Summary Resume Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign resumed"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign is not paused"
// @Router /api/v1/campaigns/{id}/resume [post]
func (h *CampaignHandler) ResumeCampaign(c fiber.Ctx) error {
	return h.action(c, "/api/v1/campaigns/:id/resume", h.campaignFlow.ResumeCampaign)
}

// AddLeads enrolls leads into a campaign
// @Summary Add Leads
// @Description Enroll existing leads by id and/or create leads inline
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.AddLeadsRequest true "Leads to enroll"
// @Success 201 {object} dto.APIResponse{data=dto.AddLeadsResponse} "Leads added"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign is completed"
// @Router /api/v1/campaigns/{id}/leads [post]
func (h *CampaignHandler) AddLeads(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	var req dto.AddLeadsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	req.CampaignID = id

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/leads")
	defer cancel()

	result, err := h.campaignFlow.AddLeads(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "ADD_LEADS_FAILED", "Failed to add leads")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

func (h *CampaignHandler) action(
	c fiber.Ctx,
	endpoint string,
	fn func(ctx context.Context, id uint) (*dto.CampaignActionResponse, error),
) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := requestContext(c, endpoint)
	defer cancel()

	result, err := fn(ctx, id)
	if err != nil {
		return h.handleError(c, err, "CAMPAIGN_UPDATE_FAILED", "Failed to update campaign")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *CampaignHandler) handleError(c fiber.Ctx, err error, code, fallback string) error {
	status := businessStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Path()).Error(fallback)
		utils.CaptureError(err, map[string]string{"handler": "campaign"})
	}
	return h.ErrorResponse(c, status, businessMessage(err, status, fallback), businessflow.ErrorCode(err, code), nil)
}
