package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/models"
	"gorm.io/gorm"
)

// ApprovalItemRepositoryImpl implements ApprovalItemRepository
type ApprovalItemRepositoryImpl struct {
	*BaseRepository[models.ApprovalItem, models.ApprovalItemFilter]
}

func NewApprovalItemRepository(db *gorm.DB) ApprovalItemRepository {
	return &ApprovalItemRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ApprovalItem, models.ApprovalItemFilter](db),
	}
}

func (r *ApprovalItemRepositoryImpl) ExistsNonTerminal(ctx context.Context, campaignLeadID, stepID uint) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.ApprovalItem{}).
		Where("campaign_lead_id = ? AND step_id = ? AND status IN ?", campaignLeadID, stepID, models.NonTerminalApprovalStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ApprovalItemRepositoryImpl) LatestForLead(ctx context.Context, campaignLeadID uint) (*models.ApprovalItem, error) {
	db := r.getDB(ctx)
	var row models.ApprovalItem
	err := db.Where("campaign_lead_id = ?", campaignLeadID).Order("id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ApprovalItemRepositoryImpl) ListDispatchable(ctx context.Context, campaignID uint, limit int) ([]*models.ApprovalItem, error) {
	if limit <= 0 {
		limit = 100
	}
	db := r.getDB(ctx)
	var rows []*models.ApprovalItem
	err := db.Preload("CampaignLead").
		Preload("CampaignLead.Lead").
		Preload("Step", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
		Where("campaign_id = ? AND status = ? AND (container_id IS NULL OR container_id = '')", campaignID, models.ApprovalStatusApproved).
		Order("reviewed_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ApprovalItemRepositoryImpl) ListRetryDue(ctx context.Context, campaignID uint, now time.Time, limit int) ([]*models.ApprovalItem, error) {
	if limit <= 0 {
		limit = 100
	}
	db := r.getDB(ctx)
	var rows []*models.ApprovalItem
	err := db.Preload("CampaignLead").
		Preload("CampaignLead.Lead").
		Preload("Step", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
		Where("campaign_id = ? AND status = ? AND (container_id IS NULL OR container_id = '') AND next_attempt_at <= ?",
			campaignID, models.ApprovalStatusQueued, now).
		Order("next_attempt_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ApprovalItemRepositoryImpl) ListInFlight(ctx context.Context, campaignID uint, limit int) ([]*models.ApprovalItem, error) {
	if limit <= 0 {
		limit = 100
	}
	db := r.getDB(ctx)
	var rows []*models.ApprovalItem
	err := db.Where("campaign_id = ? AND status = ? AND container_id IS NOT NULL AND container_id <> ''",
		campaignID, models.ApprovalStatusQueued).
		Order("queued_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ApprovalItemRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from models.ApprovalStatus, to models.ApprovalStatus, updates map[string]any) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("illegal approval transition %s -> %s", from, to)
	}
	db := r.getDB(ctx)

	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}

	res := db.Model(&models.ApprovalItem{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition approval item %d to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ApprovalItemRepositoryImpl) UpdateIf(ctx context.Context, id uint, status models.ApprovalStatus, attempts int, updates map[string]any) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	db := r.getDB(ctx)
	res := db.Model(&models.ApprovalItem{}).
		Where("id = ? AND status = ? AND attempts = ?", id, status, attempts).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update approval item %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ApprovalItemRepositoryImpl) UpdatePending(ctx context.Context, id uint, updates map[string]any) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	db := r.getDB(ctx)
	res := db.Model(&models.ApprovalItem{}).
		Where("id = ? AND status = ?", id, models.ApprovalStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update pending approval item %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ApprovalItemRepositoryImpl) ByFilter(ctx context.Context, filter models.ApprovalItemFilter, orderBy string, limit, offset int) ([]*models.ApprovalItem, error) {
	db := r.getDB(ctx)
	var rows []*models.ApprovalItem
	if err := paginate(r.applyFilter(db, filter), orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ApprovalItemRepositoryImpl) Count(ctx context.Context, filter models.ApprovalItemFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.ApprovalItem{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ApprovalItemRepositoryImpl) Exists(ctx context.Context, filter models.ApprovalItemFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *ApprovalItemRepositoryImpl) applyFilter(db *gorm.DB, filter models.ApprovalItemFilter) *gorm.DB {
	if len(filter.IDs) > 0 {
		db = db.Where("id IN ?", filter.IDs)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.CampaignLeadID != nil {
		db = db.Where("campaign_lead_id = ?", *filter.CampaignLeadID)
	}
	if filter.StepID != nil {
		db = db.Where("step_id = ?", *filter.StepID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Channel != nil {
		db = db.Where("channel = ?", *filter.Channel)
	}
	return db
}
