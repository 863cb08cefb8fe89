package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	adeventsdomain "github.com/adlanelabs/adlane/internal/adevents/domain"
	billingdomain "github.com/adlanelabs/adlane/internal/billing/domain"
	clickdomain "github.com/adlanelabs/adlane/internal/clickevent/domain"
	"github.com/adlanelabs/adlane/internal/clock"
	frauddomain "github.com/adlanelabs/adlane/internal/fraud/domain"
	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func reject(message string) billingdomain.ChargeResult {
	return billingdomain.ChargeResult{Charged: decimal.Zero, Message: message}
}

// ChargeImpression meters one rendered impression. Per-click plans see
// impressions for free; daily-budget plans pay a small increment of the
// budget so a fixed budget spreads across many impressions instead of being
// consumed by one.
func (s *Service) ChargeImpression(ctx context.Context, adID snowflake.ID) (billingdomain.ChargeResult, error) {
	var (
		result      billingdomain.ChargeResult
		pauseStatus addomain.AdStatus
		pauseReason string
		pausedAd    *addomain.Ad
	)

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ad, err := lockAd(ctx, tx, adID)
		if err != nil {
			return err
		}
		if ad == nil {
			result = reject(billingdomain.ReasonAdNotFound)
			return nil
		}
		pausedAd = ad

		if ad.BillingType == addomain.BillingPerClick {
			result = billingdomain.ChargeResult{Success: true, Charged: decimal.Zero, Message: billingdomain.ReasonImpressionsFree}
			return nil
		}

		today := clock.Today(s.clk.Now(ctx))
		addomain.ResetIfStale(ad, today)

		if ad.Status != addomain.StatusActive || ad.AutoPaused {
			result = reject(billingdomain.ReasonAdNotActive)
			return nil
		}

		var charge decimal.Decimal
		switch ad.BillingType {
		case addomain.BillingPerImpression:
			charge = ad.PerImpressionRate
		case addomain.BillingDailyBudget:
			if ad.DailyBudget.Sign() <= 0 {
				result = reject(billingdomain.ReasonBudgetNotSet)
				return nil
			}
			remaining := ad.DailyBudget.Sub(ad.CurrentDailySpend)
			if remaining.Sign() <= 0 {
				pauseStatus, pauseReason = addomain.StatusPausedDailyLimit, billingdomain.ReasonBudgetExhausted
				return errAutoPause
			}
			charge = ad.DailyBudget.Mul(budgetRatio)
			if charge.LessThan(minImpressionCharge) {
				charge = minImpressionCharge
			}
			if charge.GreaterThan(remaining) {
				charge = remaining
			}
		}

		if charge.Sign() <= 0 {
			result = billingdomain.ChargeResult{Success: true, Charged: decimal.Zero, Message: billingdomain.ReasonCharged}
			return nil
		}

		_, err = s.wallet.Debit(ctx, tx, walletdomain.MutationRequest{
			SellerID:    ad.SellerID,
			Amount:      charge,
			Description: fmt.Sprintf("ad impression charge (ad %s)", ad.ID.String()),
			AdID:        &ad.ID,
		})
		if errors.Is(err, walletdomain.ErrInsufficientBalance) || errors.Is(err, walletdomain.ErrWalletNotFound) {
			pauseStatus, pauseReason = addomain.StatusInactive, billingdomain.ReasonInsufficientBalance
			return errAutoPause
		}
		if err != nil {
			return err
		}

		if ad.BillingType == addomain.BillingDailyBudget {
			ad.CurrentDailySpend = ad.CurrentDailySpend.Add(charge)
			if ad.CurrentDailySpend.GreaterThanOrEqual(ad.DailyBudget) {
				ad.AutoPaused = true
				ad.Status = addomain.StatusPausedDailyLimit
				pauseReason = billingdomain.ReasonBudgetExhausted
			}
		}
		updates := map[string]any{
			"current_daily_spend":   ad.CurrentDailySpend,
			"last_spend_reset_date": ad.LastSpendResetDate,
			"status":                ad.Status,
			"auto_paused":           ad.AutoPaused,
			"updated_at":            time.Now().UTC(),
		}
		if err := tx.WithContext(ctx).Model(&addomain.Ad{}).Where("id = ?", ad.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := s.clicks.UpsertDailySpend(ctx, tx, ad.ID, today, charge, 0); err != nil {
			return err
		}

		result = billingdomain.ChargeResult{Success: true, Charged: charge, Message: billingdomain.ReasonCharged}
		return nil
	})

	switch {
	case errors.Is(txErr, errAutoPause):
		s.pause(ctx, pausedAd, pauseStatus, pauseReason)
		s.metrics.ChargesTotal.WithLabelValues("impression", "rejected").Inc()
		return reject(pauseReason), nil
	case txErr != nil:
		s.log.Error("impression charge failed",
			zap.String("ad_id", adID.String()),
			zap.Error(txErr),
		)
		s.metrics.ChargesTotal.WithLabelValues("impression", "failed").Inc()
		return reject("persistence_failure"), txErr
	}

	if result.Success && pauseReason != "" {
		// The budget filled up on this very charge; the pause already
		// committed with it, so only the bookkeeping remains.
		s.metrics.AutoPausesTotal.WithLabelValues(pauseReason).Inc()
		s.events.Record(ctx, adID, adeventsdomain.EventAutoPaused, pauseReason)
	}
	s.metrics.ChargesTotal.WithLabelValues("impression", impressionOutcome(result)).Inc()
	return result, nil
}

// ChargeClick bills one redirect click. The fraud gate and the per-IP caps
// run before any money moves; a rejection drops the charge silently so the
// redirect itself still succeeds.
func (s *Service) ChargeClick(ctx context.Context, req billingdomain.ClickRequest) (billingdomain.ChargeResult, error) {
	ad, err := s.getAd(ctx, req.AdID)
	if err != nil {
		return billingdomain.ChargeResult{}, err
	}
	if ad == nil {
		return reject(billingdomain.ReasonAdNotFound), nil
	}

	now := s.clk.Now(ctx)
	today := clock.Today(now)

	// The stale-day reset is applied in memory here so yesterday's budget
	// pause does not reject today's first click; the transaction below
	// re-applies and persists it under the row lock.
	addomain.ResetIfStale(ad, today)
	if ad.Status != addomain.StatusActive || ad.AutoPaused {
		return reject(billingdomain.ReasonAdNotActive), nil
	}

	if s.fraudMode == frauddomain.ModeEnforcing {
		score, err := s.fraud.Score(ctx, frauddomain.ScoreRequest{
			AdID:      req.AdID,
			IP:        req.IP,
			SessionID: req.SessionID,
		})
		if err != nil {
			return billingdomain.ChargeResult{}, err
		}
		if score.ShouldSuspend {
			if err := s.fraud.AutoSuspend(ctx, req.AdID, frauddomain.IndicatorClickStorm); err != nil {
				s.log.Error("auto-suspend failed", zap.String("ad_id", req.AdID.String()), zap.Error(err))
			}
		}
		if score.IsDuplicate || score.FraudScore >= s.rejectScore {
			s.logFraudRejection(ctx, req, score)
			return reject(billingdomain.ReasonClickRejected), nil
		}

		distinctAds, err := s.clicks.CountDistinctAdsByIP(ctx, req.IP, today)
		if err != nil {
			return billingdomain.ChargeResult{}, err
		}
		if distinctAds >= s.ipDailyAdLimit {
			s.events.Record(ctx, req.AdID, adeventsdomain.EventIPCapRejected, req.IP)
			s.metrics.ChargesTotal.WithLabelValues("click", "rejected").Inc()
			return reject(billingdomain.ReasonIPDailyLimit), nil
		}

		chargedToday, err := s.clicks.CountByAdIP(ctx, req.AdID, req.IP, today)
		if err != nil {
			return billingdomain.ChargeResult{}, err
		}
		if chargedToday > 0 {
			s.metrics.ChargesTotal.WithLabelValues("click", "rejected").Inc()
			return reject(billingdomain.ReasonAlreadyChargedToday), nil
		}
	}

	var (
		result      billingdomain.ChargeResult
		pauseStatus addomain.AdStatus
		pauseReason string
		pausedAd    *addomain.Ad
	)

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ad, err := lockAd(ctx, tx, req.AdID)
		if err != nil {
			return err
		}
		if ad == nil {
			result = reject(billingdomain.ReasonAdNotFound)
			return nil
		}
		pausedAd = ad

		addomain.ResetIfStale(ad, today)

		if ad.Status != addomain.StatusActive || ad.AutoPaused {
			result = reject(billingdomain.ReasonAdNotActive)
			return nil
		}

		// The pre-transaction once-per-day read can go stale between two
		// concurrent clicks for the same pair; the row lock serializes them
		// here, so this re-check is authoritative.
		if s.fraudMode == frauddomain.ModeEnforcing {
			chargedToday, err := s.clicks.CountByAdIPTx(ctx, tx, req.AdID, req.IP, today)
			if err != nil {
				return err
			}
			if chargedToday > 0 {
				result = reject(billingdomain.ReasonAlreadyChargedToday)
				return nil
			}
		}

		if ad.RemainingClicks <= 0 {
			pauseStatus, pauseReason = addomain.StatusInactive, billingdomain.ReasonNoClicksRemaining
			return errAutoPause
		}

		charge := s.clickRate(ad)
		_, err = s.wallet.Debit(ctx, tx, walletdomain.MutationRequest{
			SellerID:    ad.SellerID,
			Amount:      charge,
			Description: fmt.Sprintf("ad click charge (ad %s)", ad.ID.String()),
			AdID:        &ad.ID,
		})
		if errors.Is(err, walletdomain.ErrInsufficientBalance) || errors.Is(err, walletdomain.ErrWalletNotFound) {
			pauseStatus, pauseReason = addomain.StatusInactive, billingdomain.ReasonInsufficientBalance
			return errAutoPause
		}
		if err != nil {
			return err
		}

		ad.RemainingClicks--
		if ad.RemainingClicks == 0 {
			ad.AutoPaused = true
			ad.Status = addomain.StatusInactive
			pauseReason = billingdomain.ReasonNoClicksRemaining
		}
		updates := map[string]any{
			"remaining_clicks":      ad.RemainingClicks,
			"click":                 gorm.Expr("click + 1"),
			"current_daily_spend":   ad.CurrentDailySpend,
			"last_spend_reset_date": ad.LastSpendResetDate,
			"status":                ad.Status,
			"auto_paused":           ad.AutoPaused,
			"updated_at":            time.Now().UTC(),
		}
		if err := tx.WithContext(ctx).Model(&addomain.Ad{}).Where("id = ?", ad.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := s.clicks.Append(ctx, tx, clickdomain.ClickEvent{
			AdID:      ad.ID,
			IP:        req.IP,
			SessionID: req.SessionID,
			ClickedAt: now,
		}); err != nil {
			return err
		}

		if err := s.clicks.UpsertDailySpend(ctx, tx, ad.ID, today, charge, 1); err != nil {
			return err
		}

		result = billingdomain.ChargeResult{Success: true, Charged: charge, Message: billingdomain.ReasonCharged}
		return nil
	})

	switch {
	case errors.Is(txErr, errAutoPause):
		s.pause(ctx, pausedAd, pauseStatus, pauseReason)
		s.metrics.ChargesTotal.WithLabelValues("click", "rejected").Inc()
		return reject(pauseReason), nil
	case txErr != nil:
		s.log.Error("click charge failed",
			zap.String("ad_id", req.AdID.String()),
			zap.String("ip", req.IP),
			zap.Error(txErr),
		)
		s.metrics.ChargesTotal.WithLabelValues("click", "failed").Inc()
		return reject("persistence_failure"), txErr
	}

	if result.Success {
		s.fraud.MarkClickCharged(ctx, req.AdID, req.IP)
		if pauseReason != "" {
			s.metrics.AutoPausesTotal.WithLabelValues(pauseReason).Inc()
			s.events.Record(ctx, req.AdID, adeventsdomain.EventAutoPaused, pauseReason)
		}
		s.metrics.ChargesTotal.WithLabelValues("click", "charged").Inc()
	} else {
		s.metrics.ChargesTotal.WithLabelValues("click", "rejected").Inc()
	}
	return result, nil
}

func (s *Service) logFraudRejection(ctx context.Context, req billingdomain.ClickRequest, score frauddomain.Score) {
	for _, indicator := range score.Indicators {
		s.metrics.FraudRejectionsTotal.WithLabelValues(indicator).Inc()
	}
	s.events.Record(ctx, req.AdID, adeventsdomain.EventFraudRejected, fmt.Sprintf("ip=%s score=%d", req.IP, score.FraudScore))
	s.log.Info("click dropped by fraud gate",
		zap.String("ad_id", req.AdID.String()),
		zap.String("ip", req.IP),
		zap.Int("fraud_score", score.FraudScore),
		zap.Strings("indicators", score.Indicators),
	)
}

func impressionOutcome(result billingdomain.ChargeResult) string {
	switch {
	case !result.Success:
		return "rejected"
	case result.Charged.Sign() > 0:
		return "charged"
	default:
		return "free"
	}
}
