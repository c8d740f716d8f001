package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
	"gorm.io/gorm"
)

// ScrapeJobRepositoryImpl implements ScrapeJobRepository
type ScrapeJobRepositoryImpl struct {
	*BaseRepository[models.ScrapeJob, any]
}

func NewScrapeJobRepository(db *gorm.DB) ScrapeJobRepository {
	return &ScrapeJobRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ScrapeJob, any](db),
	}
}

func (r *ScrapeJobRepositoryImpl) ByJobID(ctx context.Context, id string) (*models.ScrapeJob, error) {
	db := r.getDB(ctx)
	var row models.ScrapeJob
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ScrapeJobRepositoryImpl) ListRunning(ctx context.Context) ([]*models.ScrapeJob, error) {
	db := r.getDB(ctx)
	var rows []*models.ScrapeJob
	if err := db.Where("status = ?", models.ScrapeJobStatusRunning).Order("started_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScrapeJobRepositoryImpl) RecordResult(ctx context.Context, id string, result models.ScrapeResult) (bool, error) {
	var column string
	switch result {
	case models.ScrapeResultFound:
		column = "found"
	case models.ScrapeResultSkipped:
		column = "skipped"
	case models.ScrapeResultAlreadyHad:
		column = "already_had"
	default:
		return false, fmt.Errorf("unknown scrape result %q", result)
	}

	db := r.getDB(ctx)
	res := db.Model(&models.ScrapeJob{}).
		Where("id = ? AND status = ? AND processed < total", id, models.ScrapeJobStatusRunning).
		Updates(map[string]any{
			"processed": gorm.Expr("processed + 1"),
			column:      gorm.Expr(column + " + 1"),
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to record scrape result: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ScrapeJobRepositoryImpl) RequestCancel(ctx context.Context, id string) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.ScrapeJob{}).
		Where("id = ? AND status = ?", id, models.ScrapeJobStatusRunning).
		Updates(map[string]any{"cancel_requested": true, "updated_at": utils.UTCNow()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ScrapeJobRepositoryImpl) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	db := r.getDB(ctx)
	var flags []bool
	if err := db.Model(&models.ScrapeJob{}).Where("id = ?", id).Pluck("cancel_requested", &flags).Error; err != nil {
		return false, err
	}
	return len(flags) > 0 && flags[0], nil
}

func (r *ScrapeJobRepositoryImpl) Finish(ctx context.Context, id string, status models.ScrapeJobStatus, errMsg *string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("scrape job cannot finish as %s", status)
	}
	db := r.getDB(ctx)
	now := utils.UTCNow()
	res := db.Model(&models.ScrapeJob{}).
		Where("id = ? AND status = ?", id, models.ScrapeJobStatusRunning).
		Updates(map[string]any{
			"status":      status,
			"error":       errMsg,
			"finished_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to finish scrape job: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
