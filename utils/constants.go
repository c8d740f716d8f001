package utils

import (
	"time"
)

// contextKey is a private type for request-scoped context values
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
)

// RequestTimeout bounds the work done for a single API request
const RequestTimeout = 30 * time.Second

// Send window defaults applied when neither the step nor the campaign define one
const (
	DefaultWindowStart = "09:00"
	DefaultWindowEnd   = "17:00"
	DefaultTimezone    = "UTC"
)

// Retry defaults for transient channel failures
const (
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = 30 * time.Second
)

// DefaultPageSize is used by list endpoints when no limit is given
const DefaultPageSize = 50

// MaxPageSize bounds list endpoints
const MaxPageSize = 500

// CORSMaxAge is how long browsers may cache preflight responses, in seconds
const CORSMaxAge = 86400
