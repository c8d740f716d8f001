package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailySendCounterRepositoryImpl implements DailySendCounterRepository
type DailySendCounterRepositoryImpl struct {
	*BaseRepository[models.DailySendCounter, any]
}

func NewDailySendCounterRepository(db *gorm.DB) DailySendCounterRepository {
	return &DailySendCounterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DailySendCounter, any](db),
	}
}

// Reserve ensures the (campaign, day) row exists, then performs a single
// conditional increment so two concurrent reservations can never both pass the cap.
func (r *DailySendCounterRepositoryImpl) Reserve(ctx context.Context, campaignID uint, day string, dailyCap int) (bool, error) {
	db := r.getDB(ctx)

	row := models.DailySendCounter{CampaignID: campaignID, Day: day, CreatedAt: utils.UTCNow()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return false, fmt.Errorf("failed to ensure send counter: %w", err)
	}

	query := db.Model(&models.DailySendCounter{}).
		Where("campaign_id = ? AND day = ?", campaignID, day)
	if dailyCap > 0 {
		query = query.Where("sent_count < ?", dailyCap)
	}
	res := query.Updates(map[string]any{
		"sent_count": gorm.Expr("sent_count + 1"),
		"updated_at": utils.UTCNow(),
	})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve send slot: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release gives back a slot reserved for a dispatch that never reached the provider
func (r *DailySendCounterRepositoryImpl) Release(ctx context.Context, campaignID uint, day string) error {
	db := r.getDB(ctx)
	return db.Model(&models.DailySendCounter{}).
		Where("campaign_id = ? AND day = ? AND sent_count > 0", campaignID, day).
		Updates(map[string]any{
			"sent_count": gorm.Expr("sent_count - 1"),
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *DailySendCounterRepositoryImpl) Get(ctx context.Context, campaignID uint, day string) (int, error) {
	db := r.getDB(ctx)
	var row models.DailySendCounter
	err := db.Where("campaign_id = ? AND day = ?", campaignID, day).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Count, nil
}
