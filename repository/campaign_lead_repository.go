package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/models"
	"gorm.io/gorm"
)

// CampaignLeadRepositoryImpl implements CampaignLeadRepository
type CampaignLeadRepositoryImpl struct {
	*BaseRepository[models.CampaignLead, models.CampaignLeadFilter]
}

func NewCampaignLeadRepository(db *gorm.DB) CampaignLeadRepository {
	return &CampaignLeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignLead, models.CampaignLeadFilter](db),
	}
}

// ByIDWithLead loads the cursor together with its lead
func (r *CampaignLeadRepositoryImpl) ByIDWithLead(ctx context.Context, id uint) (*models.CampaignLead, error) {
	db := r.getDB(ctx)
	var row models.CampaignLead
	if err := db.Preload("Lead").Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *CampaignLeadRepositoryImpl) ListByStatus(ctx context.Context, campaignID uint, status models.CursorStatus, limit int) ([]*models.CampaignLead, error) {
	if limit <= 0 {
		limit = 100
	}
	db := r.getDB(ctx)
	var rows []*models.CampaignLead
	err := db.Preload("Lead").
		Where("campaign_id = ? AND cursor_status = ?", campaignID, status).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignLeadRepositoryImpl) PromoteDue(ctx context.Context, campaignID uint, now time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND cursor_status IN ? AND (next_due_at IS NULL OR next_due_at <= ?)",
			campaignID, []models.CursorStatus{models.CursorStatusIdle, models.CursorStatusSent}, now).
		Updates(map[string]any{"cursor_status": models.CursorStatusAwaitingContent})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to promote due leads: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *CampaignLeadRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from []models.CursorStatus, to models.CursorStatus, updates map[string]any) (bool, error) {
	db := r.getDB(ctx)

	values := map[string]any{"cursor_status": to}
	for k, v := range updates {
		values[k] = v
	}

	res := db.Model(&models.CampaignLead{}).
		Where("id = ? AND cursor_status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition campaign lead %d to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *CampaignLeadRepositoryImpl) Advance(ctx context.Context, id uint, from models.CursorStatus, newIndex int, to models.CursorStatus, nextDueAt *time.Time, completedAt *time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.CampaignLead{}).
		Where("id = ? AND cursor_status = ? AND current_step_index <= ?", id, from, newIndex).
		Updates(map[string]any{
			"current_step_index": newIndex,
			"cursor_status":      to,
			"next_due_at":        nextDueAt,
			"completed_at":       completedAt,
			"last_error":         nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to advance campaign lead %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CountUnfinished counts cursors that have not completed their sequence
func (r *CampaignLeadRepositoryImpl) CountUnfinished(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND cursor_status <> ?", campaignID, models.CursorStatusCompleted).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus groups a campaign's cursors by status
func (r *CampaignLeadRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.CursorStatus]int64, error) {
	db := r.getDB(ctx)
	var rows []struct {
		CursorStatus models.CursorStatus
		Count        int64
	}
	err := db.Model(&models.CampaignLead{}).
		Select("cursor_status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("cursor_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.CursorStatus]int64, len(rows))
	for _, row := range rows {
		out[row.CursorStatus] = row.Count
	}
	return out, nil
}

func (r *CampaignLeadRepositoryImpl) ExistingLeadIDs(ctx context.Context, campaignID uint, leadIDs []uint) ([]uint, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)
	var ids []uint
	err := db.Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND lead_id IN ?", campaignID, leadIDs).
		Pluck("lead_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *CampaignLeadRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignLeadFilter, orderBy string, limit, offset int) ([]*models.CampaignLead, error) {
	db := r.getDB(ctx)
	var rows []*models.CampaignLead
	if err := paginate(r.applyFilter(db, filter), orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignLeadRepositoryImpl) Count(ctx context.Context, filter models.CampaignLeadFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.CampaignLead{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignLeadRepositoryImpl) Exists(ctx context.Context, filter models.CampaignLeadFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *CampaignLeadRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignLeadFilter) *gorm.DB {
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.LeadID != nil {
		db = db.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.CursorStatus != nil {
		db = db.Where("cursor_status = ?", *filter.CursorStatus)
	}
	if filter.DueBefore != nil {
		db = db.Where("next_due_at <= ?", *filter.DueBefore)
	}
	return db
}
