package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorClass tells the scheduler whether a failed dispatch may be retried
type ErrorClass string

const (
	ErrorClassTransient ErrorClass = "transient"
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error codes recorded on failed items
const (
	CodeNetwork            = "NETWORK_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeProviderError      = "PROVIDER_ERROR"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnsupportedChannel = "UNSUPPORTED_CHANNEL"
	CodeJobFailed          = "JOB_FAILED"
	CodeUnknown            = "UNKNOWN"
)

// ChannelError is a classified failure from a channel adapter
type ChannelError struct {
	Class ErrorClass
	Code  string
	Err   error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Code, e.Class, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Code, e.Class)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure
func Transient(code string, err error) *ChannelError {
	return &ChannelError{Class: ErrorClassTransient, Code: code, Err: err}
}

// Permanent wraps err as a non-retryable failure
func Permanent(code string, err error) *ChannelError {
	return &ChannelError{Class: ErrorClassPermanent, Code: code, Err: err}
}

// Classify returns err as a *ChannelError. Network errors and timeouts are transient,
// unknown errors default to transient because retries are bounded anyway.
func Classify(err error) *ChannelError {
	if err == nil {
		return nil
	}
	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(CodeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Transient(CodeTimeout, err)
		}
		return Transient(CodeNetwork, err)
	}
	return Transient(CodeUnknown, err)
}

// IsTransient reports whether err may succeed on re-submit
func IsTransient(err error) bool {
	ce := Classify(err)
	return ce != nil && ce.Class == ErrorClassTransient
}

// ErrorCode returns the classified code of err
func ErrorCode(err error) string {
	if ce := Classify(err); ce != nil {
		return ce.Code
	}
	return ""
}

// ClassifyHTTPStatus maps a provider HTTP status to a channel error
func ClassifyHTTPStatus(status int, body string) *ChannelError {
	err := fmt.Errorf("http status %d: %s", status, strings.TrimSpace(body))
	switch {
	case status == http.StatusTooManyRequests:
		return Transient(CodeRateLimited, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return Transient(CodeTimeout, err)
	case status >= 500:
		return Transient(CodeProviderError, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Permanent(CodeUnauthorized, err)
	case status == http.StatusNotFound:
		return Permanent(CodeNotFound, err)
	case status >= 400:
		return Permanent(CodeInvalidArgument, err)
	default:
		return Transient(CodeUnknown, err)
	}
}

// classifySMTPError follows SMTP reply semantics: 4xx replies are temporary, 5xx permanent
func classifySMTPError(err error) *ChannelError {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Transient(CodeTimeout, err)
		}
		return Transient(CodeNetwork, err)
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"try again", "temporary", "421", "450", "451", "452", "connection refused", "eof"} {
		if strings.Contains(msg, s) {
			return Transient(CodeNetwork, err)
		}
	}
	for _, s := range []string{"535", "534", "530"} {
		if strings.Contains(msg, s) {
			return Permanent(CodeUnauthorized, err)
		}
	}
	for _, s := range []string{"550", "551", "552", "553", "554", "invalid address"} {
		if strings.Contains(msg, s) {
			return Permanent(CodeInvalidArgument, err)
		}
	}
	return Transient(CodeUnknown, err)
}
