package repository

import (
	"context"

	"github.com/amirphl/outreach-orchestrator/models"
	"gorm.io/gorm"
)

// DispatchEventRepositoryImpl implements DispatchEventRepository
type DispatchEventRepositoryImpl struct {
	*BaseRepository[models.DispatchEvent, models.DispatchEventFilter]
}

func NewDispatchEventRepository(db *gorm.DB) DispatchEventRepository {
	return &DispatchEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DispatchEvent, models.DispatchEventFilter](db),
	}
}

func (r *DispatchEventRepositoryImpl) ByFilter(ctx context.Context, filter models.DispatchEventFilter, orderBy string, limit, offset int) ([]*models.DispatchEvent, error) {
	db := r.getDB(ctx)
	var rows []*models.DispatchEvent
	if err := paginate(r.applyFilter(db, filter), orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DispatchEventRepositoryImpl) Count(ctx context.Context, filter models.DispatchEventFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.DispatchEvent{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DispatchEventRepositoryImpl) Exists(ctx context.Context, filter models.DispatchEventFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *DispatchEventRepositoryImpl) applyFilter(db *gorm.DB, filter models.DispatchEventFilter) *gorm.DB {
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.CampaignLeadID != nil {
		db = db.Where("campaign_lead_id = ?", *filter.CampaignLeadID)
	}
	if filter.Outcome != nil {
		db = db.Where("outcome = ?", *filter.Outcome)
	}
	if filter.Since != nil {
		db = db.Where("occurred_at >= ?", *filter.Since)
	}
	return db
}
