package handlers

import (
	"github.com/amirphl/outreach-orchestrator/app/dto"
	businessflow "github.com/amirphl/outreach-orchestrator/business_flow"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ActivityHandler serves the dispatch activity feed
type ActivityHandler struct {
	activityFlow businessflow.ActivityFlow
	validator    *validator.Validate
	logger       logrus.FieldLogger
}

func NewActivityHandler(activityFlow businessflow.ActivityFlow, logger logrus.FieldLogger) *ActivityHandler {
	return &ActivityHandler{
		activityFlow: activityFlow,
		validator:    validator.New(),
		logger:       logger,
	}
}

// ListActivity lists terminal dispatch outcomes, newest first
// @Summary List Activity
// @Tags Activity
// @Produce json
// @Param campaign_id query int false "Campaign ID"
// @Param campaign_lead_id query int false "Campaign lead ID"
// @Param outcome query string false "Outcome" Enums(sent, failed)
// @Param since query string false "RFC3339 lower bound"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(50)
// @Success 200 {object} dto.APIResponse{data=dto.ListActivityResponse} "Activity retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Router /api/v1/activity [get]
func (h *ActivityHandler) ListActivity(c fiber.Ctx) error {
	var req dto.ListActivityRequest
	if err := c.Bind().Query(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid query parameters",
			Error:   dto.ErrorDetail{Code: "INVALID_REQUEST", Details: err.Error()},
		})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Validation failed",
			Error:   dto.ErrorDetail{Code: "VALIDATION_ERROR", Details: validationMessages(err)},
		})
	}

	ctx, cancel := requestContext(c, "/api/v1/activity")
	defer cancel()

	result, err := h.activityFlow.ListActivity(ctx, &req)
	if err != nil {
		status := businessStatus(err)
		if status >= fiber.StatusInternalServerError {
			h.logger.WithError(err).Error("Failed to list activity")
			utils.CaptureError(err, map[string]string{"handler": "activity"})
		}
		return c.Status(status).JSON(dto.APIResponse{
			Success: false,
			Message: businessMessage(err, status, "Failed to list activity"),
			Error:   dto.ErrorDetail{Code: businessflow.ErrorCode(err, "ACTIVITY_LIST_FAILED")},
		})
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Activity retrieved successfully",
		Data:    result,
	})
}
