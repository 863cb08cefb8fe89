package repository

import (
	"context"
	"time"

	"github.com/adlanelabs/adlane/internal/clickevent/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repository struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewRepository(db *gorm.DB, genID *snowflake.Node) domain.Repository {
	return &repository{db: db, genID: genID}
}

func (r *repository) Append(ctx context.Context, tx *gorm.DB, event domain.ClickEvent) error {
	if event.ID == 0 {
		event.ID = r.genID.Generate()
	}
	return tx.WithContext(ctx).Create(&event).Error
}

func (r *repository) UpsertDailySpend(ctx context.Context, tx *gorm.DB, adID snowflake.ID, day time.Time, amount decimal.Decimal, clicks int) error {
	now := time.Now().UTC()
	res := tx.WithContext(ctx).Exec(
		`UPDATE daily_spend_records
		 SET amount = amount + ?, clicks_count = clicks_count + ?, updated_at = ?
		 WHERE ad_id = ? AND date = ?`,
		amount, clicks, now, adID, day,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&domain.DailySpendRecord{
		ID:          r.genID.Generate(),
		AdID:        adID,
		Date:        day,
		Amount:      amount,
		ClicksCount: clicks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error
}

func (r *repository) CountByAdIP(ctx context.Context, adID snowflake.ID, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Where("ad_id = ? AND ip = ? AND clicked_at >= ?", adID, ip, since).
		Count(&count).Error
	return count, err
}

func (r *repository) CountByAdIPTx(ctx context.Context, tx *gorm.DB, adID snowflake.ID, ip string, since time.Time) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&domain.ClickEvent{}).
		Where("ad_id = ? AND ip = ? AND clicked_at >= ?", adID, ip, since).
		Count(&count).Error
	return count, err
}

func (r *repository) CountByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Where("ip = ? AND clicked_at >= ?", ip, since).
		Count(&count).Error
	return count, err
}

func (r *repository) CountByAd(ctx context.Context, adID snowflake.ID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Where("ad_id = ? AND clicked_at >= ?", adID, since).
		Count(&count).Error
	return count, err
}

func (r *repository) CountBySession(ctx context.Context, sessionID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Where("session_id = ? AND clicked_at >= ?", sessionID, since).
		Count(&count).Error
	return count, err
}

func (r *repository) CountHotIPs(ctx context.Context, adID snowflake.ID, since time.Time, perIPThreshold int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM (
			SELECT ip FROM click_events
			WHERE ad_id = ? AND clicked_at >= ?
			GROUP BY ip
			HAVING COUNT(*) > ?
		) hot`,
		adID, since, perIPThreshold,
	).Scan(&count).Error
	return count, err
}

func (r *repository) CountDistinctAdsByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(DISTINCT ad_id) FROM click_events
		 WHERE ip = ? AND clicked_at >= ?`,
		ip, since,
	).Scan(&count).Error
	return count, err
}
