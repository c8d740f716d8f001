package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// errLostRace marks a compare-and-set that another tick won; callers skip silently
var errLostRace = errors.New("state changed concurrently")

// StatusTracker polls in-flight items and applies terminal outcomes to items and cursors
type StatusTracker struct {
	db        *gorm.DB
	repos     Repositories
	channels  *services.ChannelRegistry
	guard     *RateGuard
	retry     RetryPolicy
	publisher services.ActivityPublisher
	logger    logrus.FieldLogger
	batchSize int
	now       func() time.Time
}

func NewStatusTracker(
	db *gorm.DB,
	repos Repositories,
	channels *services.ChannelRegistry,
	guard *RateGuard,
	retry RetryPolicy,
	publisher services.ActivityPublisher,
	logger logrus.FieldLogger,
	batchSize int,
) *StatusTracker {
	if publisher == nil {
		publisher = services.NoopPublisher{}
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &StatusTracker{
		db:        db,
		repos:     repos,
		channels:  channels,
		guard:     guard,
		retry:     retry,
		publisher: publisher,
		logger:    logger,
		batchSize: batchSize,
		now:       utils.UTCNow,
	}
}

// PollCampaign checks every queued item of the campaign that holds a provider job id.
// Pending jobs are left alone until the next tick.
func (t *StatusTracker) PollCampaign(ctx context.Context, c *models.Campaign) error {
	items, err := t.repos.Items.ListInFlight(ctx, c.ID, t.batchSize)
	if err != nil {
		return fmt.Errorf("list in-flight items: %w", err)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.pollItem(ctx, c, item)
	}
	return nil
}

func (t *StatusTracker) pollItem(ctx context.Context, c *models.Campaign, item *models.ApprovalItem) {
	log := t.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "item_id": item.ID, "container_id": *item.ContainerID})

	adapter, err := t.channels.For(item.Channel)
	if err != nil {
		t.fail(ctx, c, item, item.Attempts, services.ErrorCode(err), err.Error())
		return
	}

	res, err := adapter.Poll(ctx, *item.ContainerID)
	if err != nil {
		if services.IsTransient(err) {
			log.WithError(err).Debug("poll failed, will retry next tick")
			return
		}
		t.onFailure(ctx, c, item, services.ErrorCode(err), err.Error(), false)
		return
	}

	switch res.Status {
	case services.PollStatusSuccess:
		t.recordSuccess(ctx, c, item)
	case services.PollStatusFailure:
		code := res.ErrorCode
		if code == "" {
			code = services.CodeJobFailed
		}
		msg := res.Output
		if msg == "" {
			msg = "provider reported failure"
		}
		t.onFailure(ctx, c, item, code, msg, res.Retryable)
	default:
		log.Debug("job still pending")
	}
}

func (t *StatusTracker) onFailure(ctx context.Context, c *models.Campaign, item *models.ApprovalItem, code, msg string, retryable bool) {
	if retryable && t.retry.CanRetry(item.Attempts) {
		t.scheduleRetry(ctx, item, item.Attempts, code, msg)
		return
	}
	t.fail(ctx, c, item, item.Attempts, code, msg)
}

// HandleSubmitError applies the retry policy to a failed submission. Permanent
// failures and exhausted retries fail the item and give its daily-cap slot back.
func (t *StatusTracker) HandleSubmitError(ctx context.Context, c *models.Campaign, item *models.ApprovalItem, attempts int, err error) {
	ce := services.Classify(err)
	if ce.Class == services.ErrorClassTransient && t.retry.CanRetry(attempts) {
		t.scheduleRetry(ctx, item, attempts, ce.Code, err.Error())
		return
	}
	t.fail(ctx, c, item, attempts, ce.Code, err.Error())
}

func (t *StatusTracker) scheduleRetry(ctx context.Context, item *models.ApprovalItem, attempts int, code, msg string) {
	next := t.now().Add(t.retry.Backoff(attempts))
	ok, err := t.repos.Items.UpdateIf(ctx, item.ID, models.ApprovalStatusQueued, attempts, map[string]any{
		"container_id":    nil,
		"next_attempt_at": next,
		"last_error":      msg,
		"error_code":      code,
	})
	log := t.logger.WithFields(logrus.Fields{"item_id": item.ID, "attempts": attempts, "error_code": code})
	if err != nil {
		log.WithError(err).Error("failed to schedule retry")
		return
	}
	if !ok {
		log.Debug("retry skipped, item changed concurrently")
		return
	}
	dispatchTotal.WithLabelValues(string(item.Channel), outcomeRetry).Inc()
	log.WithField("next_attempt_at", next).Info("transient dispatch failure, retry scheduled")
}

func (t *StatusTracker) recordSuccess(ctx context.Context, c *models.Campaign, item *models.ApprovalItem) {
	now := t.now()
	var event *models.DispatchEvent

	err := repository.WithTransaction(ctx, t.db, func(txCtx context.Context) error {
		ok, err := t.repos.Items.UpdateIf(txCtx, item.ID, models.ApprovalStatusQueued, item.Attempts, map[string]any{
			"status":          models.ApprovalStatusSent,
			"sent_at":         now,
			"next_attempt_at": nil,
			"last_error":      nil,
			"error_code":      nil,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}

		if err := t.advanceCursor(txCtx, item, now); err != nil {
			return err
		}

		event = &models.DispatchEvent{
			ApprovalItemID: item.ID,
			CampaignID:     item.CampaignID,
			CampaignLeadID: item.CampaignLeadID,
			StepPosition:   item.StepPosition,
			Channel:        item.Channel,
			Outcome:        models.DispatchOutcomeSent,
			ContainerID:    item.ContainerID,
			Attempts:       item.Attempts,
			OccurredAt:     now,
		}
		return t.repos.Events.Save(txCtx, event)
	})
	if err != nil {
		if errors.Is(err, errLostRace) {
			return
		}
		t.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "item_id": item.ID}).WithError(err).Error("failed to record sent item")
		return
	}

	dispatchTotal.WithLabelValues(string(item.Channel), outcomeSent).Inc()
	t.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "item_id": item.ID, "campaign_lead_id": item.CampaignLeadID}).Info("item sent")
	t.publish(ctx, event)
}

// advanceCursor moves the lead past the sent step. The next step's delay runs from now.
func (t *StatusTracker) advanceCursor(ctx context.Context, item *models.ApprovalItem, now time.Time) error {
	newIndex := item.StepPosition + 1
	next, err := t.repos.Steps.CurrentStep(ctx, item.CampaignID, newIndex)
	if err != nil {
		return err
	}

	to := models.CursorStatusSent
	var nextDueAt, completedAt *time.Time
	if next == nil {
		to = models.CursorStatusCompleted
		completedAt = &now
	} else {
		due := utils.AddDays(now, next.DelayDays)
		nextDueAt = &due
	}

	ok, err := t.repos.CampaignLeads.Advance(ctx, item.CampaignLeadID, models.CursorStatusQueued, newIndex, to, nextDueAt, completedAt)
	if err != nil || ok {
		return err
	}

	// The lead was paused while its job was in flight: keep it paused, resuming into the advanced state
	_, err = t.repos.CampaignLeads.TransitionStatus(ctx, item.CampaignLeadID,
		[]models.CursorStatus{models.CursorStatusPaused}, models.CursorStatusPaused,
		map[string]any{
			"current_step_index": newIndex,
			"resume_status":      string(to),
			"next_due_at":        nextDueAt,
			"completed_at":       completedAt,
		})
	return err
}

func (t *StatusTracker) fail(ctx context.Context, c *models.Campaign, item *models.ApprovalItem, attempts int, code, msg string) {
	now := t.now()
	var event *models.DispatchEvent

	err := repository.WithTransaction(ctx, t.db, func(txCtx context.Context) error {
		ok, err := t.repos.Items.UpdateIf(txCtx, item.ID, models.ApprovalStatusQueued, attempts, map[string]any{
			"status":          models.ApprovalStatusFailed,
			"failed_at":       now,
			"next_attempt_at": nil,
			"last_error":      msg,
			"error_code":      code,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}

		// Step index stays put so an operator retry re-drafts the same step
		if _, err := t.repos.CampaignLeads.TransitionStatus(txCtx, item.CampaignLeadID,
			[]models.CursorStatus{models.CursorStatusQueued}, models.CursorStatusFailed,
			map[string]any{"last_error": msg}); err != nil {
			return err
		}
		if _, err := t.repos.CampaignLeads.TransitionStatus(txCtx, item.CampaignLeadID,
			[]models.CursorStatus{models.CursorStatusPaused}, models.CursorStatusPaused,
			map[string]any{"resume_status": string(models.CursorStatusFailed), "last_error": msg}); err != nil {
			return err
		}

		// Only successful dispatches count against the daily cap
		if item.DispatchDay != nil {
			if err := t.guard.Release(txCtx, item.CampaignID, *item.DispatchDay); err != nil {
				return err
			}
		}

		event = &models.DispatchEvent{
			ApprovalItemID: item.ID,
			CampaignID:     item.CampaignID,
			CampaignLeadID: item.CampaignLeadID,
			StepPosition:   item.StepPosition,
			Channel:        item.Channel,
			Outcome:        models.DispatchOutcomeFailed,
			ContainerID:    item.ContainerID,
			ErrorCode:      &code,
			Error:          &msg,
			Attempts:       attempts,
			OccurredAt:     now,
		}
		return t.repos.Events.Save(txCtx, event)
	})
	log := t.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "item_id": item.ID, "error_code": code, "attempts": attempts})
	if err != nil {
		if errors.Is(err, errLostRace) {
			log.Debug("fail skipped, item changed concurrently")
			return
		}
		log.WithError(err).Error("failed to record failed item")
		return
	}

	dispatchTotal.WithLabelValues(string(item.Channel), outcomeFailed).Inc()
	log.WithField("error", msg).Warn("dispatch failed")
	utils.CaptureError(fmt.Errorf("dispatch of item %d failed: %s: %s", item.ID, code, msg), map[string]string{
		"channel":     string(item.Channel),
		"error_code":  code,
		"campaign_id": fmt.Sprint(c.ID),
	})
	t.publish(ctx, event)
}

func (t *StatusTracker) publish(ctx context.Context, event *models.DispatchEvent) {
	if event == nil {
		return
	}
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.logger.WithField("event_id", event.ID).WithError(err).Warn("failed to publish activity")
	}
}
