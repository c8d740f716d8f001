// Package jobs runs background work that lives outside the scheduler tick
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/services"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrScrapeJobNotFound   = errors.New("scrape job not found")
	ErrScrapeJobNotRunning = errors.New("scrape job is not running")
	ErrManagerClosed       = errors.New("scrape manager is shutting down")
)

const interruptedMessage = "interrupted"

var scrapeLeadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outreach_scrape_leads_total",
		Help: "Leads handled by scrape jobs by result",
	},
	[]string{"result"},
)

// StartRequest selects the leads a scrape job covers. MissingOnly wins over LeadIDs.
type StartRequest struct {
	LeadIDs     []uint
	MissingOnly bool
}

// Progress is the externally visible state of a scrape job
type Progress struct {
	JobID      string                 `json:"job_id"`
	Status     models.ScrapeJobStatus `json:"status"`
	Processed  int                    `json:"processed"`
	Total      int                    `json:"total"`
	Found      int                    `json:"found"`
	Skipped    int                    `json:"skipped"`
	AlreadyHad int                    `json:"already_had"`
	Progress   float64                `json:"progress"`
	Error      *string                `json:"error,omitempty"`
}

// ProgressOf converts a persisted job into its poll view
func ProgressOf(job *models.ScrapeJob) Progress {
	return Progress{
		JobID:      job.ID,
		Status:     job.Status,
		Processed:  job.Processed,
		Total:      job.Total,
		Found:      job.Found,
		Skipped:    job.Skipped,
		AlreadyHad: job.AlreadyHad,
		Progress:   job.Progress(),
		Error:      job.Error,
	}
}

// ScrapeManager runs scrape jobs in background goroutines.
// All progress lives in the scrape_jobs table so any instance can poll or cancel.
type ScrapeManager struct {
	jobs        repository.ScrapeJobRepository
	leads       repository.LeadRepository
	scraper     services.ContactScraper
	concurrency int
	logger      logrus.FieldLogger
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewScrapeManager(
	jobs repository.ScrapeJobRepository,
	leads repository.LeadRepository,
	scraper services.ContactScraper,
	concurrency int,
	logger logrus.FieldLogger,
) *ScrapeManager {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ScrapeManager{
		jobs:        jobs,
		leads:       leads,
		scraper:     scraper,
		concurrency: concurrency,
		logger:      logger,
		now:         utils.UTCNow,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start persists a running job and processes it in the background
func (m *ScrapeManager) Start(ctx context.Context, req StartRequest) (*models.ScrapeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}

	ids, err := m.resolveLeadIDs(ctx, req)
	if err != nil {
		return nil, err
	}

	job := &models.ScrapeJob{
		LeadIDs:     toInt64Array(ids),
		MissingOnly: req.MissingOnly,
		Status:      models.ScrapeJobStatusRunning,
		Total:       len(ids),
		StartedAt:   m.now(),
	}
	if err := m.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create scrape job: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"total":        job.Total,
		"missing_only": job.MissingOnly,
	}).Info("Scrape job started")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(m.ctx, job.ID, ids)
	}()

	return job, nil
}

// Cancel asks a running job to stop before its next lead
func (m *ScrapeManager) Cancel(ctx context.Context, jobID string) (*models.ScrapeJob, error) {
	job, err := m.jobs.ByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrScrapeJobNotFound
	}
	ok, err := m.jobs.RequestCancel(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel scrape job: %w", err)
	}
	if !ok {
		return job, ErrScrapeJobNotRunning
	}
	job.CancelRequested = true
	m.logger.WithField("job_id", jobID).Info("Scrape job cancel requested")
	return job, nil
}

// Poll is a pure read of the persisted job
func (m *ScrapeManager) Poll(ctx context.Context, jobID string) (Progress, error) {
	job, err := m.Job(ctx, jobID)
	if err != nil {
		return Progress{}, err
	}
	return ProgressOf(job), nil
}

// Job returns the persisted job row
func (m *ScrapeManager) Job(ctx context.Context, jobID string) (*models.ScrapeJob, error) {
	job, err := m.jobs.ByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrScrapeJobNotFound
	}
	return job, nil
}

// RecoverInterrupted marks jobs left running by a previous process as errored.
// Call it once at startup before any job is started.
func (m *ScrapeManager) RecoverInterrupted(ctx context.Context) (int, error) {
	running, err := m.jobs.ListRunning(ctx)
	if err != nil {
		return 0, err
	}
	msg := interruptedMessage
	n := 0
	for _, job := range running {
		ok, err := m.jobs.Finish(ctx, job.ID, models.ScrapeJobStatusError, &msg)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		m.logger.WithField("count", n).Warn("Marked interrupted scrape jobs as error")
	}
	return n, nil
}

// Close stops accepting jobs, interrupts running ones and waits for their goroutines
func (m *ScrapeManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// Wait blocks until every started job goroutine has returned
func (m *ScrapeManager) Wait() {
	m.wg.Wait()
}

func (m *ScrapeManager) resolveLeadIDs(ctx context.Context, req StartRequest) ([]uint, error) {
	if req.MissingOnly {
		return m.leads.ListMissingEmailIDs(ctx)
	}
	leads, err := m.leads.ByIDs(ctx, dedupe(req.LeadIDs))
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (m *ScrapeManager) run(ctx context.Context, jobID string, ids []uint) {
	log := m.logger.WithField("job_id", jobID)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	var cancelled atomic.Bool
	for _, id := range ids {
		if cancelled.Load() || gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if m.cancelRequested(gctx, log, jobID) {
				cancelled.Store(true)
				return nil
			}
			return m.processLead(gctx, jobID, id)
		})
	}
	err := g.Wait()

	// the job row must reach a terminal state even when shutdown cancelled ctx
	fctx := context.WithoutCancel(ctx)
	switch {
	case err != nil:
		msg := err.Error()
		m.finish(fctx, log, jobID, models.ScrapeJobStatusError, &msg)
		utils.CaptureError(err, map[string]string{"component": "scrape_manager", "job_id": jobID})
	case ctx.Err() != nil:
		msg := interruptedMessage
		m.finish(fctx, log, jobID, models.ScrapeJobStatusError, &msg)
	case cancelled.Load():
		m.finish(fctx, log, jobID, models.ScrapeJobStatusCancelled, nil)
	default:
		m.finish(fctx, log, jobID, models.ScrapeJobStatusCompleted, nil)
	}
}

func (m *ScrapeManager) cancelRequested(ctx context.Context, log logrus.FieldLogger, jobID string) bool {
	requested, err := m.jobs.IsCancelRequested(ctx, jobID)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("Failed to read scrape cancel flag")
		}
		return false
	}
	return requested
}

func (m *ScrapeManager) processLead(ctx context.Context, jobID string, leadID uint) error {
	log := m.logger.WithFields(logrus.Fields{"job_id": jobID, "lead_id": leadID})

	lead, err := m.leads.ByID(ctx, leadID)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.WithError(err).Warn("Failed to load lead for scrape")
		return m.record(ctx, jobID, models.ScrapeResultSkipped)
	}
	if lead == nil {
		return m.record(ctx, jobID, models.ScrapeResultSkipped)
	}
	if lead.Email != nil && *lead.Email != "" {
		return m.record(ctx, jobID, models.ScrapeResultAlreadyHad)
	}

	contact, err := m.scraper.Scrape(ctx, services.TargetFromLead(lead))
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		if errors.Is(err, services.ErrScraperUnavailable) {
			return err
		}
		log.WithError(err).Info("Scrape failed for lead")
		return m.record(ctx, jobID, models.ScrapeResultSkipped)
	}
	if !contact.Found() {
		return m.record(ctx, jobID, models.ScrapeResultSkipped)
	}

	if err := m.leads.UpdateContact(ctx, lead.ID, contact.Email, contact.Phone, m.now()); err != nil {
		log.WithError(err).Error("Failed to store scraped contact")
		return m.record(ctx, jobID, models.ScrapeResultSkipped)
	}
	return m.record(ctx, jobID, models.ScrapeResultFound)
}

func (m *ScrapeManager) record(ctx context.Context, jobID string, result models.ScrapeResult) error {
	ok, err := m.jobs.RecordResult(ctx, jobID, result)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		m.logger.WithError(err).WithField("job_id", jobID).Error("Failed to record scrape result")
		return nil
	}
	if ok {
		scrapeLeadsTotal.WithLabelValues(string(result)).Inc()
	}
	return nil
}

func (m *ScrapeManager) finish(ctx context.Context, log logrus.FieldLogger, jobID string, status models.ScrapeJobStatus, errMsg *string) {
	ok, err := m.jobs.Finish(ctx, jobID, status, errMsg)
	if err != nil {
		log.WithError(err).Error("Failed to finish scrape job")
		return
	}
	if !ok {
		return
	}
	entry := log.WithField("status", status)
	if job, err := m.jobs.ByJobID(ctx, jobID); err == nil && job != nil {
		entry = entry.WithFields(logrus.Fields{
			"processed":   job.Processed,
			"total":       job.Total,
			"found":       job.Found,
			"skipped":     job.Skipped,
			"already_had": job.AlreadyHad,
		})
	}
	entry.Info("Scrape job finished")
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toInt64Array(ids []uint) pq.Int64Array {
	out := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
