package scheduler

import (
	"time"

	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/utils"
)

// RetryPolicy is a bounded exponential backoff for transient dispatch failures.
// Attempts counts submissions, including the first one.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	p := RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay, MaxDelay: cfg.MaxDelay}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = utils.DefaultRetryMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = utils.DefaultRetryBaseDelay
	}
	return p
}

// CanRetry reports whether another submission is allowed after attempts
func (p RetryPolicy) CanRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}

// Backoff returns the delay before the submission following attempt: base * 2^(attempt-1)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
