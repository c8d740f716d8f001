package businessflow

import (
	"context"
	"errors"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/app/jobs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ScrapeFlow starts, cancels and polls contact scrape jobs
type ScrapeFlow interface {
	StartOrCancel(ctx context.Context, req *dto.ScrapeJobRequest) (*dto.ScrapeJobResponse, error)
	Poll(ctx context.Context, jobID string) (*dto.ScrapeJobResponse, error)
}

// ScrapeFlowImpl implements ScrapeFlow
type ScrapeFlowImpl struct {
	manager *jobs.ScrapeManager
	logger  logrus.FieldLogger
}

func NewScrapeFlow(manager *jobs.ScrapeManager, logger logrus.FieldLogger) ScrapeFlow {
	return &ScrapeFlowImpl{manager: manager, logger: logger}
}

func (s *ScrapeFlowImpl) StartOrCancel(ctx context.Context, req *dto.ScrapeJobRequest) (*dto.ScrapeJobResponse, error) {
	if req.Cancel {
		return s.cancel(ctx, req.JobID)
	}

	job, err := s.manager.Start(ctx, jobs.StartRequest{LeadIDs: req.LeadIDs, MissingOnly: req.MissingOnly})
	if err != nil {
		return nil, NewBusinessError("SCRAPE_START_FAILED", "Failed to start scrape job", err)
	}
	resp := ToScrapeJobResponse(job)
	return &resp, nil
}

func (s *ScrapeFlowImpl) Poll(ctx context.Context, jobID string) (*dto.ScrapeJobResponse, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, NewBusinessError("SCRAPE_JOB_NOT_FOUND", "Scrape job not found", ErrScrapeJobNotFound)
	}
	job, err := s.manager.Job(ctx, jobID)
	if err != nil {
		return nil, scrapeError(err, "SCRAPE_POLL_FAILED", "Failed to poll scrape job")
	}
	resp := ToScrapeJobResponse(job)
	return &resp, nil
}

func (s *ScrapeFlowImpl) cancel(ctx context.Context, jobID string) (*dto.ScrapeJobResponse, error) {
	if jobID == "" {
		return nil, NewBusinessError("SCRAPE_JOB_ID_REQUIRED", "Job id is required to cancel", ErrScrapeJobIDRequired)
	}
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, NewBusinessError("SCRAPE_JOB_NOT_FOUND", "Scrape job not found", ErrScrapeJobNotFound)
	}
	job, err := s.manager.Cancel(ctx, jobID)
	if err != nil {
		return nil, scrapeError(err, "SCRAPE_CANCEL_FAILED", "Failed to cancel scrape job")
	}
	resp := ToScrapeJobResponse(job)
	return &resp, nil
}

// scrapeError maps manager errors onto business errors
func scrapeError(err error, code, message string) error {
	switch {
	case errors.Is(err, jobs.ErrScrapeJobNotFound):
		return NewBusinessError("SCRAPE_JOB_NOT_FOUND", "Scrape job not found", ErrScrapeJobNotFound)
	case errors.Is(err, jobs.ErrScrapeJobNotRunning):
		return NewBusinessError("SCRAPE_JOB_NOT_RUNNING", "Scrape job is not running", ErrScrapeJobNotRunning)
	default:
		return NewBusinessError(code, message, err)
	}
}
