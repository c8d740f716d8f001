// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/outreach-orchestrator/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error)
	// TransitionStatus moves a campaign from one of the given statuses; false when no row matched
	TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, updates map[string]any) (bool, error)
}

// SequenceStepRepository defines operations for sequence steps
type SequenceStepRepository interface {
	Repository[models.SequenceStep, models.SequenceStepFilter]
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.SequenceStep, error)
	// NextPosition returns max(position)+1 over live and deleted steps so positions are never reused
	NextPosition(ctx context.Context, campaignID uint) (int, error)
	// CurrentStep returns the first live step with position >= minPosition, or nil when the sequence is exhausted
	CurrentStep(ctx context.Context, campaignID uint, minPosition int) (*models.SequenceStep, error)
	// ByIDUnscoped also returns soft-deleted steps
	ByIDUnscoped(ctx context.Context, id uint) (*models.SequenceStep, error)
	SoftDelete(ctx context.Context, campaignID, stepID uint) (bool, error)
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	ByIDs(ctx context.Context, ids []uint) ([]*models.Lead, error)
	ListMissingEmailIDs(ctx context.Context) ([]uint, error)
	UpdateContact(ctx context.Context, id uint, email, phone *string, scrapedAt time.Time) error
}

// CampaignLeadRepository defines operations for campaign lead cursors
type CampaignLeadRepository interface {
	Repository[models.CampaignLead, models.CampaignLeadFilter]
	ByIDWithLead(ctx context.Context, id uint) (*models.CampaignLead, error)
	ListByStatus(ctx context.Context, campaignID uint, status models.CursorStatus, limit int) ([]*models.CampaignLead, error)
	// PromoteDue moves idle/sent cursors whose next_due_at has passed to awaiting_content
	PromoteDue(ctx context.Context, campaignID uint, now time.Time) (int64, error)
	// TransitionStatus is a compare-and-set on cursor_status
	TransitionStatus(ctx context.Context, id uint, from []models.CursorStatus, to models.CursorStatus, updates map[string]any) (bool, error)
	// Advance moves the step index forward; the index guard keeps it monotonic
	Advance(ctx context.Context, id uint, from models.CursorStatus, newIndex int, to models.CursorStatus, nextDueAt *time.Time, completedAt *time.Time) (bool, error)
	CountUnfinished(ctx context.Context, campaignID uint) (int64, error)
	CountByStatus(ctx context.Context, campaignID uint) (map[models.CursorStatus]int64, error)
	ExistingLeadIDs(ctx context.Context, campaignID uint, leadIDs []uint) ([]uint, error)
}

// ApprovalItemRepository defines operations for approval items
type ApprovalItemRepository interface {
	Repository[models.ApprovalItem, models.ApprovalItemFilter]
	ExistsNonTerminal(ctx context.Context, campaignLeadID, stepID uint) (bool, error)
	LatestForLead(ctx context.Context, campaignLeadID uint) (*models.ApprovalItem, error)
	// ListDispatchable returns approved items never submitted
	ListDispatchable(ctx context.Context, campaignID uint, limit int) ([]*models.ApprovalItem, error)
	// ListRetryDue returns queued items without a container whose retry time has passed
	ListRetryDue(ctx context.Context, campaignID uint, now time.Time, limit int) ([]*models.ApprovalItem, error)
	// ListInFlight returns queued items holding a provider container id
	ListInFlight(ctx context.Context, campaignID uint, limit int) ([]*models.ApprovalItem, error)
	// TransitionStatus is a compare-and-set on status
	TransitionStatus(ctx context.Context, id uint, from models.ApprovalStatus, to models.ApprovalStatus, updates map[string]any) (bool, error)
	// UpdateIf updates fields only while the item still has the expected status and attempt count
	UpdateIf(ctx context.Context, id uint, status models.ApprovalStatus, attempts int, updates map[string]any) (bool, error)
	// UpdatePending rewrites draft fields while the item is still pending
	UpdatePending(ctx context.Context, id uint, updates map[string]any) (bool, error)
}

// DailySendCounterRepository defines operations for per-day dispatch counters
type DailySendCounterRepository interface {
	// Reserve increments the counter unless that would exceed dailyCap (when > 0)
	Reserve(ctx context.Context, campaignID uint, day string, dailyCap int) (bool, error)
	Release(ctx context.Context, campaignID uint, day string) error
	Get(ctx context.Context, campaignID uint, day string) (int, error)
}

// ScrapeJobRepository defines operations for scrape jobs
type ScrapeJobRepository interface {
	Save(ctx context.Context, job *models.ScrapeJob) error
	ByJobID(ctx context.Context, id string) (*models.ScrapeJob, error)
	ListRunning(ctx context.Context) ([]*models.ScrapeJob, error)
	// RecordResult bumps processed and the matching counter while processed < total
	RecordResult(ctx context.Context, id string, result models.ScrapeResult) (bool, error)
	RequestCancel(ctx context.Context, id string) (bool, error)
	IsCancelRequested(ctx context.Context, id string) (bool, error)
	// Finish moves a running job to a terminal status
	Finish(ctx context.Context, id string, status models.ScrapeJobStatus, errMsg *string) (bool, error)
}

// DispatchEventRepository defines operations for the activity feed
type DispatchEventRepository interface {
	Repository[models.DispatchEvent, models.DispatchEventFilter]
}
