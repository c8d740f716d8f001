package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id string) (*models.Campaign, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid campaign uuid: %w", err)
	}

	db := r.getDB(ctx)
	var campaign models.Campaign
	err = db.Where("uuid = ?", parsed).Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// ListByStatus returns all campaigns in the given status
func (r *CampaignRepositoryImpl) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	return r.ByFilter(ctx, models.CampaignFilter{Status: &status}, "id ASC", 0, 0)
}

// TransitionStatus performs a conditional status change
func (r *CampaignRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, updates map[string]any) (bool, error) {
	db := r.getDB(ctx)

	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}

	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition campaign %d to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	query := paginate(r.applyFilter(db, filter), orderBy, limit, offset)

	err := query.Find(&campaigns).Error
	if err != nil {
		return nil, err
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any campaign matching the filter exists
func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Name != nil {
		db = db.Where("LOWER(name) LIKE LOWER(?)", "%"+*filter.Name+"%")
	}
	return db
}
