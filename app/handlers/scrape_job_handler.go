package handlers

import (
	"github.com/amirphl/outreach-orchestrator/app/dto"
	businessflow "github.com/amirphl/outreach-orchestrator/business_flow"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ScrapeJobHandler handles contact enrichment job requests
type ScrapeJobHandler struct {
	scrapeFlow businessflow.ScrapeFlow
	validator  *validator.Validate
	logger     logrus.FieldLogger
}

func (h *ScrapeJobHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ScrapeJobHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func NewScrapeJobHandler(scrapeFlow businessflow.ScrapeFlow, logger logrus.FieldLogger) *ScrapeJobHandler {
	return &ScrapeJobHandler{
		scrapeFlow: scrapeFlow,
		validator:  validator.New(),
		logger:     logger,
	}
}

// StartOrCancel starts a scrape job, or cancels one when cancel is set
// @Summary Start or Cancel Scrape Job
// @Description Starts a background enrichment job over the given leads (or all leads missing an email when missing_only is set). With cancel=true the job_id is cancelled instead.
// @Tags Scrape Jobs
// @Accept json
// @Produce json
// @Param request body dto.ScrapeJobRequest true "Job request"
// @Success 200 {object} dto.APIResponse{data=dto.ScrapeJobResponse} "Cancellation requested"
// @Success 202 {object} dto.APIResponse{data=dto.ScrapeJobResponse} "Job started"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Job not found"
// @Failure 409 {object} dto.APIResponse "Job is not running"
// @Router /api/v1/scrape-jobs [post]
func (h *ScrapeJobHandler) StartOrCancel(c fiber.Ctx) error {
	var req dto.ScrapeJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := requestContext(c, "/api/v1/scrape-jobs")
	defer cancel()

	result, err := h.scrapeFlow.StartOrCancel(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "SCRAPE_JOB_FAILED", "Failed to process scrape job request")
	}
	if req.Cancel {
		return h.SuccessResponse(c, fiber.StatusOK, "Cancellation requested", result)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Scrape job started", result)
}

// Poll returns the progress of a scrape job
// @Summary Poll Scrape Job
// @Tags Scrape Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} dto.APIResponse{data=dto.ScrapeJobResponse} "Job progress"
// @Failure 404 {object} dto.APIResponse "Job not found"
// @Router /api/v1/scrape-jobs/{id} [get]
func (h *ScrapeJobHandler) Poll(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/scrape-jobs/:id")
	defer cancel()

	result, err := h.scrapeFlow.Poll(ctx, c.Params("id"))
	if err != nil {
		return h.handleError(c, err, "SCRAPE_JOB_LOOKUP_FAILED", "Failed to retrieve scrape job")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Scrape job retrieved successfully", result)
}

func (h *ScrapeJobHandler) handleError(c fiber.Ctx, err error, code, fallback string) error {
	status := businessStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Path()).Error(fallback)
		utils.CaptureError(err, map[string]string{"handler": "scrape_job"})
	}
	return h.ErrorResponse(c, status, businessMessage(err, status, fallback), businessflow.ErrorCode(err, code), nil)
}
