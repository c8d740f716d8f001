// Package scheduler drives campaign sequences forward: drafting content, dispatching
// approved items through channel adapters and tracking their delivery.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// submitLease is how long a claimed, unsubmitted item waits before another tick may re-claim it
const submitLease = 10 * time.Minute

var (
	errCapReached     = errors.New("daily cap reached")
	errCursorNotReady = errors.New("lead cursor is not awaiting approval")
)

// Repositories groups the stores the scheduler works on
type Repositories struct {
	Campaigns     repository.CampaignRepository
	Steps         repository.SequenceStepRepository
	CampaignLeads repository.CampaignLeadRepository
	Items         repository.ApprovalItemRepository
	Counters      repository.DailySendCounterRepository
	Events        repository.DispatchEventRepository
}

// NewRepositories builds the gorm-backed repositories
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Campaigns:     repository.NewCampaignRepository(db),
		Steps:         repository.NewSequenceStepRepository(db),
		CampaignLeads: repository.NewCampaignLeadRepository(db),
		Items:         repository.NewApprovalItemRepository(db),
		Counters:      repository.NewDailySendCounterRepository(db),
		Events:        repository.NewDispatchEventRepository(db),
	}
}

// Option customizes a SequenceScheduler
type Option func(*SequenceScheduler)

// WithClock replaces the time source; it must return UTC
func WithClock(now func() time.Time) Option {
	return func(s *SequenceScheduler) {
		s.now = now
		s.tracker.now = now
	}
}

// WithTickLock makes ticks exclusive across instances
func WithTickLock(lock TickLock) Option {
	return func(s *SequenceScheduler) {
		s.lock = lock
	}
}

// WithArgDefaults sets provider-wide channel argument values
func WithArgDefaults(d services.ArgDefaults) Option {
	return func(s *SequenceScheduler) {
		s.argDefaults = d
	}
}

// SequenceScheduler runs the dispatch tick over active campaigns
type SequenceScheduler struct {
	db          *gorm.DB
	repos       Repositories
	channels    *services.ChannelRegistry
	composer    *services.ContentComposer
	guard       *RateGuard
	tracker     *StatusTracker
	lock        TickLock
	argDefaults services.ArgDefaults
	logger      logrus.FieldLogger

	interval    time.Duration
	concurrency int
	batchSize   int
	now         func() time.Time
}

func NewSequenceScheduler(
	db *gorm.DB,
	repos Repositories,
	channels *services.ChannelRegistry,
	composer *services.ContentComposer,
	publisher services.ActivityPublisher,
	cfg config.SchedulerConfig,
	retryCfg config.RetryConfig,
	logger logrus.FieldLogger,
	opts ...Option,
) *SequenceScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.CampaignConcurrency <= 0 {
		cfg.CampaignConcurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	guard := NewRateGuard(repos.Counters)
	s := &SequenceScheduler{
		db:          db,
		repos:       repos,
		channels:    channels,
		composer:    composer,
		guard:       guard,
		tracker:     NewStatusTracker(db, repos, channels, guard, NewRetryPolicy(retryCfg), publisher, logger, cfg.BatchSize),
		lock:        newLocalTickLock(),
		logger:      logger,
		interval:    cfg.Interval,
		concurrency: cfg.CampaignConcurrency,
		batchSize:   cfg.BatchSize,
		now:         utils.UTCNow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the scheduler loop in a background goroutine and returns a stop
// function that waits for the loop to exit
func (s *SequenceScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *SequenceScheduler) tick(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).Error("scheduler tick failed")
	}
}

// RunOnce performs one tick over every active campaign
func (s *SequenceScheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	release, ok, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire tick lock: %w", err)
	}
	if !ok {
		s.logger.Debug("tick lock held elsewhere, skipping")
		return nil
	}
	defer release()

	campaigns, err := s.repos.Campaigns.ListByStatus(ctx, models.CampaignStatusActive)
	if err != nil {
		return fmt.Errorf("list active campaigns: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, c := range campaigns {
		g.Go(func() error {
			if err := s.processCampaign(gctx, c); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.WithField("campaign_id", c.ID).WithError(err).Error("process campaign failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *SequenceScheduler) processCampaign(ctx context.Context, c *models.Campaign) error {
	now := s.now()

	if n, err := s.repos.CampaignLeads.PromoteDue(ctx, c.ID, now); err != nil {
		return err
	} else if n > 0 {
		s.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "count": n}).Debug("leads due for content")
	}

	if err := s.draftContent(ctx, c); err != nil {
		return fmt.Errorf("draft content: %w", err)
	}
	if err := s.dispatchApproved(ctx, c, now); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if err := s.resubmitDue(ctx, c, now); err != nil {
		return fmt.Errorf("resubmit: %w", err)
	}
	if err := s.tracker.PollCampaign(ctx, c); err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	return s.completeIfFinished(ctx, c)
}

// draftContent creates a pending item for every lead awaiting content
func (s *SequenceScheduler) draftContent(ctx context.Context, c *models.Campaign) error {
	leads, err := s.repos.CampaignLeads.ListByStatus(ctx, c.ID, models.CursorStatusAwaitingContent, s.batchSize)
	if err != nil {
		return err
	}

	for _, cl := range leads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := s.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "campaign_lead_id": cl.ID})

		step, err := s.repos.Steps.CurrentStep(ctx, c.ID, cl.CurrentStepIndex)
		if err != nil {
			return err
		}
		if step == nil {
			now := s.now()
			if _, err := s.repos.CampaignLeads.TransitionStatus(ctx, cl.ID,
				[]models.CursorStatus{models.CursorStatusAwaitingContent}, models.CursorStatusCompleted,
				map[string]any{"completed_at": now, "next_due_at": nil}); err != nil {
				return err
			}
			log.Info("sequence exhausted, lead completed")
			continue
		}

		composed, err := s.composer.Compose(ctx, services.ContentRequest{
			Target:   services.TargetFromLead(cl.Lead),
			StepType: step.Type,
			Template: step.Template,
			Subject:  step.Subject,
		})
		if err != nil {
			return err
		}

		item := &models.ApprovalItem{
			CampaignID:     c.ID,
			CampaignLeadID: cl.ID,
			StepID:         step.ID,
			StepPosition:   step.Position,
			Channel:        step.Type.Channel(),
			Content:        composed.Content,
			Subject:        composed.Subject,
			AIGenerated:    composed.AIGenerated,
			Status:         models.ApprovalStatusPending,
		}

		err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
			ok, err := s.repos.CampaignLeads.TransitionStatus(txCtx, cl.ID,
				[]models.CursorStatus{models.CursorStatusAwaitingContent}, models.CursorStatusAwaitingApproval,
				map[string]any{"current_step_index": step.Position, "last_error": nil})
			if err != nil {
				return err
			}
			if !ok {
				return errLostRace
			}
			exists, err := s.repos.Items.ExistsNonTerminal(txCtx, cl.ID, step.ID)
			if err != nil {
				return err
			}
			if exists {
				return errLostRace
			}
			return s.repos.Items.Save(txCtx, item)
		})
		if errors.Is(err, errLostRace) {
			log.Debug("draft skipped, lead changed concurrently")
			continue
		}
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"item_id": item.ID, "step_position": step.Position, "ai_generated": item.AIGenerated}).Info("content drafted")
	}
	return nil
}

// dispatchApproved submits approved items that have never been sent
func (s *SequenceScheduler) dispatchApproved(ctx context.Context, c *models.Campaign, now time.Time) error {
	items, err := s.repos.Items.ListDispatchable(ctx, c.ID, s.batchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := s.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "item_id": item.ID})
		if item.Step == nil || item.CampaignLead == nil {
			log.Warn("approved item without step or lead, skipping")
			continue
		}

		open, err := s.guard.WithinWindow(c, item.Step, now)
		if err != nil {
			log.WithError(err).Warn("invalid send window")
			continue
		}
		if !open {
			continue
		}

		err = s.dispatchItem(ctx, c, item, now)
		switch {
		case err == nil:
		case errors.Is(err, errCapReached):
			capRejections.Inc()
			log.Debug("daily cap reached, deferring remaining items")
			return nil
		case errors.Is(err, errLostRace), errors.Is(err, errCursorNotReady):
			log.WithError(err).Debug("dispatch skipped")
		default:
			return err
		}
	}
	return nil
}

// dispatchItem takes the dispatch lock and a cap slot in one transaction, then submits.
// When the cap is reached the transaction rolls back and the item stays approved.
func (s *SequenceScheduler) dispatchItem(ctx context.Context, c *models.Campaign, item *models.ApprovalItem, now time.Time) error {
	day := s.guard.Day(c, now)
	attempts := item.Attempts + 1

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		ok, err := s.repos.Items.TransitionStatus(txCtx, item.ID, models.ApprovalStatusApproved, models.ApprovalStatusQueued, map[string]any{
			"attempts":        attempts,
			"queued_at":       now,
			"dispatch_day":    day,
			"next_attempt_at": now.Add(submitLease),
		})
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}

		ok, err = s.repos.CampaignLeads.TransitionStatus(txCtx, item.CampaignLeadID,
			[]models.CursorStatus{models.CursorStatusAwaitingApproval}, models.CursorStatusQueued, nil)
		if err != nil {
			return err
		}
		if !ok {
			return errCursorNotReady
		}

		reserved, err := s.guard.Reserve(txCtx, c, day)
		if err != nil {
			return err
		}
		if !reserved {
			return errCapReached
		}
		return nil
	})
	if err != nil {
		return err
	}

	item.Status = models.ApprovalStatusQueued
	item.Attempts = attempts
	item.DispatchDay = &day
	s.submit(ctx, c, item, attempts)
	return nil
}

// resubmitDue re-sends queued items whose retry backoff has elapsed
func (s *SequenceScheduler) resubmitDue(ctx context.Context, c *models.Campaign, now time.Time) error {
	items, err := s.repos.Items.ListRetryDue(ctx, c.ID, now, s.batchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := s.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "item_id": item.ID, "attempts": item.Attempts})
		if item.Step == nil || item.CampaignLead == nil {
			log.Warn("queued item without step or lead, skipping")
			continue
		}

		if !s.tracker.retry.CanRetry(item.Attempts) {
			code := services.CodeUnknown
			if item.ErrorCode != nil {
				code = *item.ErrorCode
			}
			msg := "retries exhausted"
			if item.LastError != nil {
				msg = *item.LastError
			}
			s.tracker.fail(ctx, c, item, item.Attempts, code, msg)
			continue
		}

		open, err := s.guard.WithinWindow(c, item.Step, now)
		if err != nil || !open {
			continue
		}

		attempts := item.Attempts + 1
		ok, err := s.repos.Items.UpdateIf(ctx, item.ID, models.ApprovalStatusQueued, item.Attempts, map[string]any{
			"attempts":        attempts,
			"next_attempt_at": now.Add(submitLease),
		})
		if err != nil {
			return err
		}
		if !ok {
			log.Debug("resubmit skipped, item claimed elsewhere")
			continue
		}
		item.Attempts = attempts
		s.submit(ctx, c, item, attempts)
	}
	return nil
}

// submit hands a claimed item to its channel adapter and stores the returned job id
func (s *SequenceScheduler) submit(ctx context.Context, c *models.Campaign, item *models.ApprovalItem, attempts int) {
	log := s.logger.WithFields(logrus.Fields{"campaign_id": c.ID, "item_id": item.ID, "channel": item.Channel, "attempts": attempts})

	adapter, err := s.channels.For(item.Channel)
	if err != nil {
		s.tracker.HandleSubmitError(ctx, c, item, attempts, err)
		return
	}

	target := services.TargetFromLead(item.CampaignLead.Lead)
	args, err := services.BuildArgs(item.Step.Type, item.Subject, target, s.argDefaults)
	if err != nil {
		s.tracker.HandleSubmitError(ctx, c, item, attempts, err)
		return
	}

	jobID, err := adapter.Submit(ctx, target, item.Content, args)
	if err != nil {
		log.WithError(err).Warn("submit failed")
		s.tracker.HandleSubmitError(ctx, c, item, attempts, err)
		return
	}

	ok, err := s.repos.Items.UpdateIf(ctx, item.ID, models.ApprovalStatusQueued, attempts, map[string]any{
		"container_id":    jobID,
		"next_attempt_at": nil,
	})
	if err != nil {
		log.WithError(err).WithField("container_id", jobID).Error("failed to store container id")
		return
	}
	if !ok {
		log.WithField("container_id", jobID).Warn("item changed while submitting, container id dropped")
		return
	}
	item.ContainerID = &jobID
	dispatchTotal.WithLabelValues(string(item.Channel), outcomeSubmitted).Inc()
	log.WithField("container_id", jobID).Info("item submitted")
}

func (s *SequenceScheduler) completeIfFinished(ctx context.Context, c *models.Campaign) error {
	total, err := s.repos.CampaignLeads.Count(ctx, models.CampaignLeadFilter{CampaignID: &c.ID})
	if err != nil || total == 0 {
		return err
	}
	unfinished, err := s.repos.CampaignLeads.CountUnfinished(ctx, c.ID)
	if err != nil || unfinished > 0 {
		return err
	}
	ok, err := s.repos.Campaigns.TransitionStatus(ctx, c.ID,
		[]models.CampaignStatus{models.CampaignStatusActive}, models.CampaignStatusCompleted,
		map[string]any{"completed_at": s.now()})
	if err != nil {
		return err
	}
	if ok {
		s.logger.WithField("campaign_id", c.ID).Info("campaign completed")
	}
	return nil
}
