// Package services contains the external collaborators of the orchestrator:
// channel adapters, content generation, contact scraping and activity publishing.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/amirphl/outreach-orchestrator/models"
)

// PollStatus is the provider-side state of a submitted job
type PollStatus string

const (
	PollStatusPending PollStatus = "pending"
	PollStatusSuccess PollStatus = "success"
	PollStatusFailure PollStatus = "failure"
)

// PollResult is returned by ChannelAdapter.Poll
type PollResult struct {
	Status    PollStatus `json:"status"`
	Output    string     `json:"output,omitempty"`
	ErrorCode string     `json:"error_code,omitempty"`
	// Retryable marks a failure the provider reports as worth re-submitting
	Retryable bool `json:"retryable,omitempty"`
}

// Target is who a dispatch is addressed to
type Target struct {
	LeadID      uint
	FirstName   string
	Name        string
	Company     string
	Title       string
	LinkedInURL string
	Email       string
	Phone       string
}

// TargetFromLead builds a dispatch target from a lead
func TargetFromLead(l *models.Lead) Target {
	if l == nil {
		return Target{}
	}
	t := Target{
		LeadID:      l.ID,
		FirstName:   l.FirstName,
		Name:        l.FullName(),
		Company:     l.Company,
		Title:       l.Title,
		LinkedInURL: l.LinkedInURL,
	}
	if l.Email != nil {
		t.Email = *l.Email
	}
	if l.Phone != nil {
		t.Phone = *l.Phone
	}
	return t
}

// ChannelAdapter is the two-phase submit/poll contract shared by every outreach medium.
// Errors returned by either call are *ChannelError or are classified by IsTransient.
type ChannelAdapter interface {
	Channel() models.Channel
	// Submit enqueues delivery with the provider and returns its job id.
	// It is called at most once per dispatch attempt.
	Submit(ctx context.Context, target Target, content string, args ChannelArgs) (string, error)
	// Poll reports the state of a previously submitted job without blocking on it
	Poll(ctx context.Context, jobID string) (PollResult, error)
}

// ChannelRegistry resolves the adapter for a channel
type ChannelRegistry struct {
	mu       sync.RWMutex
	adapters map[models.Channel]ChannelAdapter
}

// NewChannelRegistry creates a registry from the given adapters
func NewChannelRegistry(adapters ...ChannelAdapter) *ChannelRegistry {
	r := &ChannelRegistry{adapters: make(map[models.Channel]ChannelAdapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its channel
func (r *ChannelRegistry) Register(a ChannelAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Channel()] = a
}

// For returns the adapter serving ch
func (r *ChannelRegistry) For(ch models.Channel) (ChannelAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[ch]
	if !ok {
		return nil, Permanent(CodeUnsupportedChannel, fmt.Errorf("no adapter registered for channel %q", ch))
	}
	return a, nil
}
