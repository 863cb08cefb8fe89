// Package domain contains the advertising campaign model and its state rules.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type BillingType string

const (
	BillingDailyBudget   BillingType = "daily_budget"
	BillingPerClick      BillingType = "per_click"
	BillingPerImpression BillingType = "per_impression"
)

type AdStatus string

const (
	StatusInactive         AdStatus = "inactive"
	StatusActive           AdStatus = "active"
	StatusExpired          AdStatus = "expired"
	StatusSuspended        AdStatus = "suspended"
	StatusPausedDailyLimit AdStatus = "paused_daily_limit"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// PlacementType distinguishes billable product-ranking placements from
// banner slots, which only accumulate reach and are never charged.
type PlacementType string

const (
	PlacementBanner   PlacementType = "banner"
	PlacementSearch   PlacementType = "search"
	PlacementCategory PlacementType = "category"
)

var (
	ErrAdNotFound   = errors.New("ad_not_found")
	ErrAdNotActive  = errors.New("ad_not_active")
	ErrAdAutoPaused = errors.New("ad_auto_paused")
)

type Ad struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	SellerID  snowflake.ID `gorm:"not null;index"`
	ProductID snowflake.ID `gorm:"not null;index"`

	AdsType     string      `gorm:"type:text;not null"`
	BillingType BillingType `gorm:"type:text;not null"`

	DailyBudget       decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	PerClickRate      decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	PerImpressionRate decimal.Decimal `gorm:"type:decimal(20,8);not null"`

	// CostAmount is the flat amount of legacy upfront-paid campaigns; it only
	// participates in ranking, never in serve-time charging.
	CostAmount  decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	UpfrontPaid bool            `gorm:"not null;default:false"`

	TotalClicks     int `gorm:"not null"`
	RemainingClicks int `gorm:"not null"`

	CurrentDailySpend  decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	LastSpendResetDate *time.Time

	Status         AdStatus       `gorm:"type:text;not null;index"`
	AutoPaused     bool           `gorm:"not null;default:false"`
	ApprovalStatus ApprovalStatus `gorm:"type:text;not null"`

	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`

	// Reach and Click are lifetime counters feeding the ranking score.
	Reach int64 `gorm:"not null;default:0"`
	Click int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Ad) TableName() string { return "ads" }

// WindowContains reports whether the inclusive start/end date range covers day.
func (a *Ad) WindowContains(day time.Time) bool {
	return !a.StartDate.After(day) && !a.EndDate.Before(day)
}

// ResetIfStale applies the midnight-boundary reset to the ad in place and
// reports whether anything changed. A stale ad has its daily spend zeroed and
// the reset date moved to today; a budget pause (and only a budget pause) is
// lifted at the same time. Callers persist the ad when true is returned.
func ResetIfStale(a *Ad, today time.Time) bool {
	if a.LastSpendResetDate != nil && a.LastSpendResetDate.Equal(today) {
		return false
	}
	a.CurrentDailySpend = decimal.Zero
	a.LastSpendResetDate = &today
	if a.Status == StatusPausedDailyLimit {
		a.Status = StatusActive
	}
	a.AutoPaused = false
	return true
}
