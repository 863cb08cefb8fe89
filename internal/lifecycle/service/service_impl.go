package service

import (
	"context"
	"time"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	"github.com/adlanelabs/adlane/internal/clock"
	lifecycledomain "github.com/adlanelabs/adlane/internal/lifecycle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	clk clock.Clock
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

func NewService(p ServiceParam) lifecycledomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("lifecycle.service"),
		clk: p.Clock,
	}
}

func (s *Service) RunStatusSweep(ctx context.Context) (lifecycledomain.SweepResult, error) {
	today := clock.Today(s.clk.Now(ctx))
	now := time.Now().UTC()
	var result lifecycledomain.SweepResult

	// Active campaigns whose window has not opened yet go back to inactive.
	res := s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("status = ? AND start_date > ?", addomain.StatusActive, today).
		Updates(map[string]any{
			"status":     addomain.StatusInactive,
			"updated_at": now,
		})
	if res.Error != nil {
		return result, res.Error
	}
	result.Reverted = res.RowsAffected

	// Ended campaigns expire. No funds are released; none were reserved.
	res = s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("status IN ? AND end_date < ?",
			[]addomain.AdStatus{addomain.StatusActive, addomain.StatusInactive, addomain.StatusPausedDailyLimit},
			today).
		Updates(map[string]any{
			"status":      addomain.StatusExpired,
			"auto_paused": false,
			"updated_at":  now,
		})
	if res.Error != nil {
		return result, res.Error
	}
	result.Expired = res.RowsAffected

	// Paid, approved, inactive campaigns whose window now contains today go live.
	res = s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("status = ? AND upfront_paid = ? AND approval_status = ? AND start_date <= ? AND end_date >= ?",
			addomain.StatusInactive, true, addomain.ApprovalApproved, today, today).
		Updates(map[string]any{
			"status":     addomain.StatusActive,
			"updated_at": now,
		})
	if res.Error != nil {
		return result, res.Error
	}
	result.Promoted = res.RowsAffected

	s.log.Info("status sweep completed",
		zap.Int64("reverted", result.Reverted),
		zap.Int64("expired", result.Expired),
		zap.Int64("promoted", result.Promoted),
	)
	return result, nil
}

func (s *Service) RunDailyReset(ctx context.Context) (lifecycledomain.SweepResult, error) {
	today := clock.Today(s.clk.Now(ctx))
	now := time.Now().UTC()
	var result lifecycledomain.SweepResult

	// Budget pauses lift at the day boundary; expiry/approval pauses do not.
	res := s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("status = ? AND (last_spend_reset_date IS NULL OR last_spend_reset_date <> ?)",
			addomain.StatusPausedDailyLimit, today).
		Updates(map[string]any{
			"status":     addomain.StatusActive,
			"updated_at": now,
		})
	if res.Error != nil {
		return result, res.Error
	}
	result.Reopened = res.RowsAffected

	res = s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("last_spend_reset_date IS NULL OR last_spend_reset_date <> ?", today).
		Updates(map[string]any{
			"current_daily_spend":   0,
			"last_spend_reset_date": today,
			"auto_paused":           false,
			"updated_at":            now,
		})
	if res.Error != nil {
		return result, res.Error
	}
	result.Reset = res.RowsAffected

	s.log.Info("daily reset completed",
		zap.Int64("reset", result.Reset),
		zap.Int64("reopened", result.Reopened),
	)
	return result, nil
}

func (s *Service) RunExpirySweep(ctx context.Context) (lifecycledomain.SweepResult, error) {
	today := clock.Today(s.clk.Now(ctx))
	var result lifecycledomain.SweepResult

	res := s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("status <> ? AND end_date < ?", addomain.StatusExpired, today).
		Updates(map[string]any{
			"status":      addomain.StatusExpired,
			"auto_paused": false,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return result, res.Error
	}
	result.Expired = res.RowsAffected

	s.log.Info("expiry sweep completed", zap.Int64("expired", result.Expired))
	return result, nil
}
