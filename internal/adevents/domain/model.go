// Package domain defines the structured, append-only ad event log. Every
// system-initiated decision (auto-pause, suspension, activation, sweep
// transition) lands here with a machine-readable code so the decision can be
// reconstructed later without parsing free text.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventCode string

const (
	EventActivated        EventCode = "activated"
	EventResumed          EventCode = "resumed"
	EventExpired          EventCode = "expired"
	EventSuspended        EventCode = "suspended"
	EventAutoPaused       EventCode = "auto_paused"
	EventFraudRejected    EventCode = "fraud_rejected"
	EventIPCapRejected    EventCode = "ip_cap_rejected"
	EventUpfrontPaid      EventCode = "upfront_paid"
	EventPromotedBySweep  EventCode = "promoted_by_sweep"
	EventRevertedBySweep  EventCode = "reverted_by_sweep"
)

type AdEvent struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	AdID   snowflake.ID `gorm:"not null;index"`
	Code   EventCode    `gorm:"type:text;not null"`
	Detail string       `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;index"`
}

func (AdEvent) TableName() string { return "ad_events" }

type Recorder interface {
	// Record appends an event. It never returns an error to the caller; a
	// failed append is logged and swallowed so audit writes cannot break the
	// serving path.
	Record(ctx context.Context, adID snowflake.ID, code EventCode, detail string)

	ListByAd(ctx context.Context, adID snowflake.ID, limit int) ([]AdEvent, error)
}
