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

// ApprovalHandlerInterface defines the contract for approval queue handlers
type ApprovalHandlerInterface interface {
	ListApprovals(c fiber.Ctx) error
	GetApprovalStatus(c fiber.Ctx) error
	EditContent(c fiber.Ctx) error
	Regenerate(c fiber.Ctx) error
	Approve(c fiber.Ctx) error
	Reject(c fiber.Ctx) error
	BulkApprove(c fiber.Ctx) error
	BulkReject(c fiber.Ctx) error
	BulkPersonalize(c fiber.Ctx) error
}

// ApprovalHandler handles approval queue HTTP requests
type ApprovalHandler struct {
	approvalFlow businessflow.ApprovalFlow
	validator    *validator.Validate
	logger       logrus.FieldLogger
}

func (h *ApprovalHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ApprovalHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvalFlow businessflow.ApprovalFlow, logger logrus.FieldLogger) *ApprovalHandler {
	return &ApprovalHandler{
		approvalFlow: approvalFlow,
		validator:    validator.New(),
		logger:       logger,
	}
}

// ListApprovals lists approval items
// @Summary List Approvals
// @Description Page through drafted messages, optionally filtered by campaign, status and channel
// @Tags Approvals
// @Produce json
// @Param campaign_id query int false "Campaign ID"
// @Param status query string false "Item status" Enums(pending, approved, rejected, queued, sent, failed)
// @Param channel query string false "Channel" Enums(linkedin, email, sms)
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(50)
// @Success 200 {object} dto.APIResponse{data=dto.ListApprovalsResponse} "Approvals retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Router /api/v1/approvals [get]
func (h *ApprovalHandler) ListApprovals(c fiber.Ctx) error {
	var req dto.ListApprovalsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := requestContext(c, "/api/v1/approvals")
	defer cancel()

	result, err := h.approvalFlow.ListApprovals(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "APPROVAL_LIST_FAILED", "Failed to list approvals")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Approvals retrieved successfully", result)
}

// GetApprovalStatus returns the delivery state of an item
// @Summary Get Approval Status
// @Tags Approvals
// @Produce json
// @Param id path int true "Approval item ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApprovalStatusResponse} "Status retrieved"
// @Failure 404 {object} dto.APIResponse "Approval item not found"
// @Router /api/v1/approvals/{id} [get]
func (h *ApprovalHandler) GetApprovalStatus(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_APPROVAL_ID", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/approvals/:id")
	defer cancel()

	result, err := h.approvalFlow.GetApprovalStatus(ctx, id)
	if err != nil {
		return h.handleError(c, err, "APPROVAL_LOOKUP_FAILED", "Failed to retrieve approval status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Approval status retrieved successfully", result)
}

// EditContent overwrites a pending draft
// @Summary Edit Draft Content
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path int true "Approval item ID"
// @Param request body dto.EditContentRequest true "New content"
// @Success 200 {object} dto.APIResponse{data=dto.ApprovalItemResponse} "Content updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Approval item not found"
// @Failure 409 {object} dto.APIResponse "Item is no longer pending"
// @Router /api/v1/approvals/{id}/content [put]
func (h *ApprovalHandler) EditContent(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_APPROVAL_ID", nil)
	}

	var req dto.EditContentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	req.ID = id

	ctx, cancel := requestContext(c, "/api/v1/approvals/:id/content")
	defer cancel()

	result, err := h.approvalFlow.EditContent(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "APPROVAL_EDIT_FAILED", "Failed to edit content")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Content updated successfully", result)
}

// Regenerate redrafts a pending item with optional personalization
// @Summary Regenerate Draft
// @Description Regenerate the draft; aiUnavailable is true when the template fallback was used
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path int true "Approval item ID"
// @Param request body dto.PersonalizeParams false "Personalization"
// @Success 200 {object} dto.APIResponse{data=dto.RegenerateResponse} "Draft regenerated"
// @Failure 400 {object} dto.APIResponse "Invalid tone or length"
// @Failure 404 {object} dto.APIResponse "Approval item not found"
// @Failure 409 {object} dto.APIResponse "Item is no longer pending"
// @Router /api/v1/approvals/{id}/regenerate [post]
func (h *ApprovalHandler) Regenerate(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_APPROVAL_ID", nil)
	}

	var req dto.RegenerateRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req.PersonalizeParams); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	req.ID = id

	ctx, cancel := requestContext(c, "/api/v1/approvals/:id/regenerate")
	defer cancel()

	result, err := h.approvalFlow.Regenerate(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "APPROVAL_REGENERATE_FAILED", "Failed to regenerate content")
	}
	message := "Content regenerated successfully"
	if result.AIUnavailable {
		message = "AI generation unavailable, template content used"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, result)
}

// Approve approves a pending item for dispatch
// @Summary Approve Item
// @Tags Approvals
// @Produce json
// @Param id path int true "Approval item ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApprovalItemResponse} "Item approved"
// @Failure 404 {object} dto.APIResponse "Approval item not found"
// @Failure 409 {object} dto.APIResponse "Item is no longer pending"
// @Router /api/v1/approvals/{id}/approve [post]
func (h *ApprovalHandler) Approve(c fiber.Ctx) error {
	return h.review(c, "/api/v1/approvals/:id/approve", "Item approved successfully", h.approvalFlow.Approve)
}

// Reject rejects a pending item
// @Summary Reject Item
// @Tags Approvals
// @Produce json
// @Param id path int true "Approval item ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApprovalItemResponse} "Item rejected"
// @Failure 404 {object} dto.APIResponse "Approval item not found"
// @Failure 409 {object} dto.APIResponse "Item is no longer pending"
// @Router /api/v1/approvals/{id}/reject [post]
func (h *ApprovalHandler) Reject(c fiber.Ctx) error {
	return h.review(c, "/api/v1/approvals/:id/reject", "Item rejected successfully", h.approvalFlow.Reject)
}

// BulkApprove approves every pending item among ids
// @Summary Bulk Approve
// @Description Items that are missing or not pending are skipped and reported
// @Tags Approvals
// @Accept json
// @Produce json
// @Param request body dto.BulkIDsRequest true "Item ids"
// @Success 200 {object} dto.APIResponse{data=dto.BulkActionResponse} "Bulk approve finished"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/approvals/bulk-approve [post]
func (h *ApprovalHandler) BulkApprove(c fiber.Ctx) error {
	return h.bulk(c, "/api/v1/approvals/bulk-approve", h.approvalFlow.BulkApprove)
}

// BulkReject rejects every pending item among ids
// @Summary Bulk Reject
// @Description Items that are missing or not pending are skipped and reported
// @Tags Approvals
// @Accept json
// @Produce json
// @Param request body dto.BulkIDsRequest true "Item ids"
// @Success 200 {object} dto.APIResponse{data=dto.BulkActionResponse} "Bulk reject finished"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/approvals/bulk-reject [post]
func (h *ApprovalHandler) BulkReject(c fiber.Ctx) error {
	return h.bulk(c, "/api/v1/approvals/bulk-reject", h.approvalFlow.BulkReject)
}

// BulkPersonalize regenerates several drafts with the same parameters
// @Summary Bulk Personalize
// @Tags Approvals
// @Accept json
// @Produce json
// @Param request body dto.BulkPersonalizeRequest true "Item ids and personalization"
// @Success 200 {object} dto.APIResponse{data=dto.BulkPersonalizeResponse} "Bulk personalize finished"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/approvals/bulk-personalize [post]
func (h *ApprovalHandler) BulkPersonalize(c fiber.Ctx) error {
	var req dto.BulkPersonalizeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := requestContext(c, "/api/v1/approvals/bulk-personalize")
	defer cancel()

	result, err := h.approvalFlow.BulkPersonalize(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "BULK_PERSONALIZE_FAILED", "Bulk personalize failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bulk personalize finished", result)
}

func (h *ApprovalHandler) review(
	c fiber.Ctx,
	endpoint, message string,
	fn func(ctx context.Context, id uint) (*dto.ApprovalItemResponse, error),
) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_APPROVAL_ID", nil)
	}

	ctx, cancel := requestContext(c, endpoint)
	defer cancel()

	result, err := fn(ctx, id)
	if err != nil {
		return h.handleError(c, err, "APPROVAL_REVIEW_FAILED", "Failed to review item")
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, result)
}

func (h *ApprovalHandler) bulk(
	c fiber.Ctx,
	endpoint string,
	fn func(ctx context.Context, req *dto.BulkIDsRequest) (*dto.BulkActionResponse, error),
) error {
	var req dto.BulkIDsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := requestContext(c, endpoint)
	defer cancel()

	result, err := fn(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "BULK_REVIEW_FAILED", "Bulk action failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bulk action finished", result)
}

func (h *ApprovalHandler) handleError(c fiber.Ctx, err error, code, fallback string) error {
	status := businessStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Path()).Error(fallback)
		utils.CaptureError(err, map[string]string{"handler": "approval"})
	}
	return h.ErrorResponse(c, status, businessMessage(err, status, fallback), businessflow.ErrorCode(err, code), nil)
}
