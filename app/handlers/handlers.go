// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	businessflow "github.com/amirphl/outreach-orchestrator/business_flow"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must have at least " + err.Param() + " entries"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "datetime":
		return err.Field() + " must match the layout " + err.Param()
	case "uuid":
		return err.Field() + " must be a UUID"
	case "url":
		return err.Field() + " must be a URL"
	case "e164":
		return err.Field() + " must be an E.164 phone number"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// validationMessages flattens validator errors into readable messages
func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

// businessStatus maps a business flow error to an HTTP status code
func businessStatus(err error) int {
	switch {
	case businessflow.IsValidationError(err):
		return fiber.StatusBadRequest
	case businessflow.IsNotFound(err):
		return fiber.StatusNotFound
	case businessflow.IsConflict(err):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// businessMessage is the client-facing message for err; internals are hidden on 5xx
func businessMessage(err error, status int, fallback string) string {
	if status >= fiber.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}

// paramID parses a positive numeric path parameter
func paramID(c fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return uint(id), nil
}

// requestContext derives a bounded context carrying request-scoped values for logging
func requestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), utils.RequestTimeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}
