// Package notification is the outbound boundary for seller-facing events.
// Delivery is fire-and-forget: a failed dispatch is logged, never propagated,
// so notification outages cannot touch the charging path.
package notification

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type EventKind string

const (
	KindAdActivated  EventKind = "ad_activated"
	KindAdSuspended  EventKind = "ad_suspended"
	KindAdAutoPaused EventKind = "ad_auto_paused"
	KindAdExpired    EventKind = "ad_expired"
	KindAdResumed    EventKind = "ad_resumed"
)

type Dispatcher interface {
	Notify(ctx context.Context, sellerID snowflake.ID, kind EventKind, payload map[string]string)
}

var Module = fx.Module("notification",
	fx.Provide(NewLogDispatcher),
)

// LogDispatcher records notifications in the log. Real delivery channels are
// owned by the surrounding platform and plugged in behind the same interface.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) Dispatcher {
	return &LogDispatcher{log: log.Named("notification")}
}

func (d *LogDispatcher) Notify(ctx context.Context, sellerID snowflake.ID, kind EventKind, payload map[string]string) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("notification dispatch panicked", zap.Any("panic", rec))
		}
	}()
	d.log.Info("notify seller",
		zap.String("seller_id", sellerID.String()),
		zap.String("kind", string(kind)),
		zap.Any("payload", payload),
	)
}
