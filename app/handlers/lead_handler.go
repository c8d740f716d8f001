package handlers

import (
	"context"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	businessflow "github.com/amirphl/outreach-orchestrator/business_flow"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// LeadHandlerInterface defines the contract for per-lead operator actions
type LeadHandlerInterface interface {
	RetryLead(c fiber.Ctx) error
	SkipStep(c fiber.Ctx) error
	PauseLead(c fiber.Ctx) error
	ResumeLead(c fiber.Ctx) error
}

// LeadHandler handles campaign lead HTTP requests
type LeadHandler struct {
	leadFlow businessflow.LeadFlow
	logger   logrus.FieldLogger
}

func (h *LeadHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *LeadHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func NewLeadHandler(leadFlow businessflow.LeadFlow, logger logrus.FieldLogger) *LeadHandler {
	return &LeadHandler{leadFlow: leadFlow, logger: logger}
}

// RetryLead redrafts the current step of a failed or rejected lead
// @Summary Retry Lead
// @Tags Leads
// @Produce json
// @Param id path int true "Campaign lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadActionResponse} "Lead retried"
// @Failure 404 {object} dto.APIResponse "Campaign lead not found"
// @Failure 409 {object} dto.APIResponse "Lead is not failed or rejected"
// @Router /api/v1/campaign-leads/{id}/retry [post]
func (h *LeadHandler) RetryLead(c fiber.Ctx) error {
	return h.action(c, "/api/v1/campaign-leads/:id/retry", h.leadFlow.RetryLead)
}

// SkipStep moves a failed or rejected lead to its next step without sending
// @Summary Skip Step
// @Tags Leads
// @Produce json
// @Param id path int true "Campaign lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadActionResponse} "Step skipped"
// @Failure 404 {object} dto.APIResponse "Campaign lead not found"
// @Failure 409 {object} dto.APIResponse "Lead is not failed or rejected"
// @Router /api/v1/campaign-leads/{id}/skip [post]
func (h *LeadHandler) SkipStep(c fiber.Ctx) error {
	return h.action(c, "/api/v1/campaign-leads/:id/skip", h.leadFlow.SkipStep)
}

// PauseLead pauses a single lead
// @Summary Pause Lead
// @Tags Leads
// @Produce json
// @Param id path int true "Campaign lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadActionResponse} "Lead paused"
// @Failure 404 {object} dto.APIResponse "Campaign lead not found"
// @Failure 409 {object} dto.APIResponse "Lead is completed or already paused"
// @Router /api/v1/campaign-leads/{id}/pause [post]
func (h *LeadHandler) PauseLead(c fiber.Ctx) error {
	return h.action(c, "/api/v1/campaign-leads/:id/pause", h.leadFlow.PauseLead)
}

// ResumeLead resumes a paused lead
// @Summary Resume Lead
// @Tags Leads
// @Produce json
// @Param id path int true "Campaign lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadActionResponse} "Lead resumed"
// @Failure 404 {object} dto.APIResponse "Campaign lead not found"
// @Failure 409 {object} dto.APIResponse "Lead is not paused"
// @Router /api/v1/campaign-leads/{id}/resume [post]
func (h *LeadHandler) ResumeLead(c fiber.Ctx) error {
	return h.action(c, "/api/v1/campaign-leads/:id/resume", h.leadFlow.ResumeLead)
}

func (h *LeadHandler) action(
	c fiber.Ctx,
	endpoint string,
	fn func(ctx context.Context, id uint) (*dto.LeadActionResponse, error),
) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_LEAD_ID", nil)
	}

	ctx, cancel := requestContext(c, endpoint)
	defer cancel()

	result, err := fn(ctx, id)
	if err != nil {
		status := businessStatus(err)
		if status >= fiber.StatusInternalServerError {
			h.logger.WithError(err).WithField("path", c.Path()).Error("Lead action failed")
			utils.CaptureError(err, map[string]string{"handler": "lead"})
		}
		return h.ErrorResponse(c, status, businessMessage(err, status, "Lead action failed"), businessflow.ErrorCode(err, "LEAD_UPDATE_FAILED"), nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
