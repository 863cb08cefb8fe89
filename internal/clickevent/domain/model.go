// Package domain defines the append-only click log and the per-ad daily
// spend rollup. Click rows are written once inside a charge transaction and
// never updated; the fraud detector reads them through window queries. Only
// charged clicks land here — rejected attempts leave no row, so window counts
// over this log measure committed charges, not raw traffic.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ClickEvent struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	AdID      snowflake.ID `gorm:"not null;index:idx_click_events_ad_ip"`
	IP        string       `gorm:"type:text;not null;index:idx_click_events_ad_ip;index"`
	SessionID string       `gorm:"type:text;index"`
	ClickedAt time.Time    `gorm:"not null;index"`
}

func (ClickEvent) TableName() string { return "click_events" }

type DailySpendRecord struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	AdID        snowflake.ID    `gorm:"not null;uniqueIndex:ux_daily_spend_ad_date"`
	Date        time.Time       `gorm:"not null;uniqueIndex:ux_daily_spend_ad_date"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	ClicksCount int             `gorm:"not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

func (DailySpendRecord) TableName() string { return "daily_spend_records" }

type Repository interface {
	// Append records a charged click. It runs on the caller's tx so the log
	// row commits or rolls back with the charge itself.
	Append(ctx context.Context, tx *gorm.DB, event ClickEvent) error

	// UpsertDailySpend adds amount (and clicks) to the ad's rollup row for day.
	UpsertDailySpend(ctx context.Context, tx *gorm.DB, adID snowflake.ID, day time.Time, amount decimal.Decimal, clicks int) error

	CountByAdIP(ctx context.Context, adID snowflake.ID, ip string, since time.Time) (int64, error)

	// CountByAdIPTx is CountByAdIP on the caller's transaction, so the
	// once-per-day rule can be re-checked under the charge row lock.
	CountByAdIPTx(ctx context.Context, tx *gorm.DB, adID snowflake.ID, ip string, since time.Time) (int64, error)
	CountByIP(ctx context.Context, ip string, since time.Time) (int64, error)
	CountByAd(ctx context.Context, adID snowflake.ID, since time.Time) (int64, error)
	CountBySession(ctx context.Context, sessionID string, since time.Time) (int64, error)

	// CountHotIPs returns how many distinct IPs each exceed perIPThreshold
	// clicks on the ad since the given time.
	CountHotIPs(ctx context.Context, adID snowflake.ID, since time.Time, perIPThreshold int64) (int64, error)

	// CountDistinctAdsByIP returns how many distinct ads this IP has been
	// charged for since the given time.
	CountDistinctAdsByIP(ctx context.Context, ip string, since time.Time) (int64, error)
}
