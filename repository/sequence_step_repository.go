package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amirphl/outreach-orchestrator/models"
	"gorm.io/gorm"
)

// SequenceStepRepositoryImpl implements SequenceStepRepository
type SequenceStepRepositoryImpl struct {
	*BaseRepository[models.SequenceStep, models.SequenceStepFilter]
}

func NewSequenceStepRepository(db *gorm.DB) SequenceStepRepository {
	return &SequenceStepRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SequenceStep, models.SequenceStepFilter](db),
	}
}

func (r *SequenceStepRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.SequenceStep, error) {
	return r.ByFilter(ctx, models.SequenceStepFilter{CampaignID: &campaignID}, "position ASC", 0, 0)
}

func (r *SequenceStepRepositoryImpl) NextPosition(ctx context.Context, campaignID uint) (int, error) {
	db := r.getDB(ctx)
	var maxPos sql.NullInt64
	err := db.Unscoped().
		Model(&models.SequenceStep{}).
		Where("campaign_id = ?", campaignID).
		Select("MAX(position)").
		Row().
		Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next step position: %w", err)
	}
	if !maxPos.Valid {
		return 1, nil
	}
	return int(maxPos.Int64) + 1, nil
}

func (r *SequenceStepRepositoryImpl) CurrentStep(ctx context.Context, campaignID uint, minPosition int) (*models.SequenceStep, error) {
	db := r.getDB(ctx)
	var step models.SequenceStep
	err := db.Where("campaign_id = ? AND position >= ?", campaignID, minPosition).
		Order("position ASC").
		First(&step).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

func (r *SequenceStepRepositoryImpl) ByIDUnscoped(ctx context.Context, id uint) (*models.SequenceStep, error) {
	db := r.getDB(ctx)
	var step models.SequenceStep
	if err := db.Unscoped().Last(&step, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

func (r *SequenceStepRepositoryImpl) SoftDelete(ctx context.Context, campaignID, stepID uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Where("id = ? AND campaign_id = ?", stepID, campaignID).Delete(&models.SequenceStep{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SequenceStepRepositoryImpl) ByFilter(ctx context.Context, filter models.SequenceStepFilter, orderBy string, limit, offset int) ([]*models.SequenceStep, error) {
	db := r.getDB(ctx)
	var rows []*models.SequenceStep
	if err := paginate(r.applyFilter(db, filter), orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SequenceStepRepositoryImpl) Count(ctx context.Context, filter models.SequenceStepFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.SequenceStep{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SequenceStepRepositoryImpl) Exists(ctx context.Context, filter models.SequenceStepFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *SequenceStepRepositoryImpl) applyFilter(db *gorm.DB, filter models.SequenceStepFilter) *gorm.DB {
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.MinPosition != nil {
		db = db.Where("position >= ?", *filter.MinPosition)
	}
	return db
}
