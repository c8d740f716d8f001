package repository

import (
	"context"
	"time"

	"github.com/amirphl/outreach-orchestrator/models"
	"gorm.io/gorm"
)

// LeadRepositoryImpl implements LeadRepository
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db),
	}
}

// ByIDs returns leads in id order; unknown ids are ignored
func (r *LeadRepositoryImpl) ByIDs(ctx context.Context, ids []uint) ([]*models.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.ByFilter(ctx, models.LeadFilter{IDs: ids}, "id ASC", 0, 0)
}

// ListMissingEmailIDs returns the ids of leads without an email address
func (r *LeadRepositoryImpl) ListMissingEmailIDs(ctx context.Context) ([]uint, error) {
	db := r.getDB(ctx)
	var ids []uint
	err := db.Model(&models.Lead{}).
		Where("email IS NULL OR email = ''").
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateContact stores scraped contact details. Nil values leave the column unchanged.
func (r *LeadRepositoryImpl) UpdateContact(ctx context.Context, id uint, email, phone *string, scrapedAt time.Time) error {
	db := r.getDB(ctx)
	updates := map[string]any{"scraped_at": scrapedAt}
	if email != nil {
		updates["email"] = *email
	}
	if phone != nil {
		updates["phone"] = *phone
	}
	return db.Model(&models.Lead{}).Where("id = ?", id).Updates(updates).Error
}

func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	db := r.getDB(ctx)
	var rows []*models.Lead
	if err := paginate(r.applyFilter(db, filter), orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Lead{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *LeadRepositoryImpl) applyFilter(db *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if len(filter.IDs) > 0 {
		db = db.Where("id IN ?", filter.IDs)
	}
	if filter.MissingEmail != nil {
		if *filter.MissingEmail {
			db = db.Where("email IS NULL OR email = ''")
		} else {
			db = db.Where("email IS NOT NULL AND email <> ''")
		}
	}
	if filter.Company != nil {
		db = db.Where("company = ?", *filter.Company)
	}
	return db
}
