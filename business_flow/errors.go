// Package businessflow contains the core business logic and use cases for outreach campaigns
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignNameRequired = errors.New("campaign name is required")
	ErrInvalidDailyCap      = errors.New("daily cap must not be negative")
	ErrInvalidTimezone      = errors.New("invalid timezone")
	ErrInvalidSendWindow    = errors.New("send window must be a pair of HH:MM times")
	ErrCampaignTransition   = errors.New("campaign status does not allow this action")
	ErrCampaignHasNoSteps   = errors.New("campaign has no sequence steps")
	ErrCampaignCompleted    = errors.New("campaign is completed")
	ErrNoLeadsProvided      = errors.New("no leads provided")

	// Sequence-related errors
	ErrStepNotFound     = errors.New("sequence step not found")
	ErrInvalidStepType  = errors.New("invalid step type")
	ErrInvalidStepDelay = errors.New("step delay must be a non-negative whole number of days")

	// Lead-related errors
	ErrCampaignLeadNotFound = errors.New("campaign lead not found")
	ErrLeadNotRetryable     = errors.New("lead is not failed or rejected")
	ErrLeadNotPausable      = errors.New("lead cannot be paused in its current state")
	ErrLeadNotPaused        = errors.New("lead is not paused")

	// Approval-related errors
	ErrApprovalNotFound   = errors.New("approval item not found")
	ErrApprovalNotPending = errors.New("approval item is not pending")
	ErrContentRequired    = errors.New("content is required")
	ErrInvalidTone        = errors.New("invalid tone")
	ErrInvalidLength      = errors.New("invalid length")
	ErrNoIDsProvided      = errors.New("no ids provided")

	// Scrape job errors
	ErrScrapeJobNotFound   = errors.New("scrape job not found")
	ErrScrapeJobNotRunning = errors.New("scrape job is not running")
	ErrScrapeJobIDRequired = errors.New("job id is required to cancel")

	// Filter errors
	ErrInvalidPage     = errors.New("invalid page")
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidSince    = errors.New("invalid since timestamp")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// IsValidationError reports errors caused by bad input; nothing was changed
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrCampaignNameRequired, ErrInvalidDailyCap, ErrInvalidTimezone, ErrInvalidSendWindow,
		ErrNoLeadsProvided, ErrInvalidStepType, ErrInvalidStepDelay, ErrContentRequired,
		ErrInvalidTone, ErrInvalidLength, ErrNoIDsProvided, ErrScrapeJobIDRequired,
		ErrInvalidPage, ErrInvalidPageSize, ErrInvalidSince,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports a missing campaign, step, lead, item or job
func IsNotFound(err error) bool {
	return IsCampaignNotFound(err) || IsStepNotFound(err) || IsCampaignLeadNotFound(err) ||
		IsApprovalNotFound(err) || IsScrapeJobNotFound(err)
}

// IsConflict reports a request that is valid but not allowed in the current state
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrCampaignTransition, ErrCampaignHasNoSteps, ErrCampaignCompleted,
		ErrLeadNotRetryable, ErrLeadNotPausable, ErrLeadNotPaused,
		ErrApprovalNotPending, ErrScrapeJobNotRunning,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

func IsCampaignLeadNotFound(err error) bool {
	return errors.Is(err, ErrCampaignLeadNotFound)
}

func IsApprovalNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound)
}

func IsApprovalNotPending(err error) bool {
	return errors.Is(err, ErrApprovalNotPending)
}

func IsScrapeJobNotFound(err error) bool {
	return errors.Is(err, ErrScrapeJobNotFound)
}

func IsInvalidStepType(err error) bool {
	return errors.Is(err, ErrInvalidStepType)
}

func IsInvalidStepDelay(err error) bool {
	return errors.Is(err, ErrInvalidStepDelay)
}

// ErrorCode returns the BusinessError code in err's chain, or fallback
func ErrorCode(err error, fallback string) string {
	var be *BusinessError
	if errors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	return fallback
}
