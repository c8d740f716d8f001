package handlers

import (
	"github.com/amirphl/outreach-orchestrator/app/dto"
	businessflow "github.com/amirphl/outreach-orchestrator/business_flow"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// SequenceHandlerInterface defines the contract for sequence step handlers
type SequenceHandlerInterface interface {
	ListSteps(c fiber.Ctx) error
	AddStep(c fiber.Ctx) error
	RemoveStep(c fiber.Ctx) error
}

// SequenceHandler handles sequence step HTTP requests
type SequenceHandler struct {
	sequenceFlow businessflow.SequenceFlow
	validator    *validator.Validate
	logger       logrus.FieldLogger
}

func (h *SequenceHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SequenceHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func NewSequenceHandler(sequenceFlow businessflow.SequenceFlow, logger logrus.FieldLogger) *SequenceHandler {
	return &SequenceHandler{
		sequenceFlow: sequenceFlow,
		validator:    validator.New(),
		logger:       logger,
	}
}

// ListSteps lists the live steps of a campaign
// @Summary List Sequence Steps
// @Tags Sequence
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.ListStepsResponse} "Steps retrieved"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id}/steps [get]
func (h *SequenceHandler) ListSteps(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/steps")
	defer cancel()

	result, err := h.sequenceFlow.ListSteps(ctx, id)
	if err != nil {
		return h.handleError(c, err, "STEP_LOOKUP_FAILED", "Failed to list steps")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Steps retrieved successfully", result)
}

// AddStep appends a step to the campaign's sequence
// @Summary Add Sequence Step
// @Description Append a connection_request, message, email or sms step; delay_days must be a whole number
// @Tags Sequence
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.AddStepRequest true "Step definition"
// @Success 201 {object} dto.APIResponse{data=dto.StepResponse} "Step added"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign is completed"
// @Router /api/v1/campaigns/{id}/steps [post]
func (h *SequenceHandler) AddStep(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	var req dto.AddStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	req.CampaignID = id

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/steps")
	defer cancel()

	result, err := h.sequenceFlow.AddStep(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "STEP_CREATION_FAILED", "Failed to add step")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Step added successfully", result)
}

// RemoveStep soft-deletes a step
// @Summary Remove Sequence Step
// @Tags Sequence
// @Produce json
// @Param id path int true "Campaign ID"
// @Param stepId path int true "Step ID"
// @Success 200 {object} dto.APIResponse "Step removed"
// @Failure 404 {object} dto.APIResponse "Campaign or step not found"
// @Router /api/v1/campaigns/{id}/steps/{stepId} [delete]
func (h *SequenceHandler) RemoveStep(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}
	stepID, err := paramID(c, "stepId")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_STEP_ID", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/steps/:stepId")
	defer cancel()

	if err := h.sequenceFlow.RemoveStep(ctx, id, stepID); err != nil {
		return h.handleError(c, err, "STEP_DELETION_FAILED", "Failed to remove step")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Step removed successfully", fiber.Map{"id": stepID})
}

func (h *SequenceHandler) handleError(c fiber.Ctx, err error, code, fallback string) error {
	status := businessStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Path()).Error(fallback)
		utils.CaptureError(err, map[string]string{"handler": "sequence"})
	}
	return h.ErrorResponse(c, status, businessMessage(err, status, fallback), businessflow.ErrorCode(err, code), nil)
}
