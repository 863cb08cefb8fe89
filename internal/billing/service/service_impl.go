package service

import (
	"context"
	"errors"
	"time"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	adeventsdomain "github.com/adlanelabs/adlane/internal/adevents/domain"
	billingdomain "github.com/adlanelabs/adlane/internal/billing/domain"
	clickdomain "github.com/adlanelabs/adlane/internal/clickevent/domain"
	"github.com/adlanelabs/adlane/internal/clock"
	"github.com/adlanelabs/adlane/internal/config"
	frauddomain "github.com/adlanelabs/adlane/internal/fraud/domain"
	"github.com/adlanelabs/adlane/internal/notification"
	"github.com/adlanelabs/adlane/internal/observability"
	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"github.com/adlanelabs/adlane/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// budgetRatio is both the per-impression increment of a daily budget and the
// wallet safety floor: an ad keeps serving only while at least 1% of its
// budget is payable. minImpressionCharge floors the increment so tiny budgets
// still meter in billable units.
var (
	budgetRatio         = decimal.New(1, -2) // 0.01
	minImpressionCharge = decimal.New(1, -2) // 0.01
)

// errAutoPause aborts a charge transaction; the pause itself is applied in a
// follow-up update so it survives the rollback.
var errAutoPause = errors.New("auto_pause_required")

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clk     clock.Clock
	cfg     config.Config
	wallet  walletdomain.Service
	clicks  clickdomain.Repository
	fraud   frauddomain.Service
	events  adeventsdomain.Recorder
	notify  notification.Dispatcher
	metrics *observability.Metrics

	fraudMode        frauddomain.Mode
	defaultClickRate decimal.Decimal
	ipDailyAdLimit   int64
	rejectScore      int
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	Wallet  walletdomain.Service
	Clicks  clickdomain.Repository
	Fraud   frauddomain.Service
	Events  adeventsdomain.Recorder
	Notify  notification.Dispatcher
	Metrics *observability.Metrics
}

func NewService(p ServiceParam) (billingdomain.Service, error) {
	mode, err := frauddomain.ParseMode(p.Config.Fraud.Mode)
	if err != nil {
		return nil, err
	}
	defaultRate, err := decimal.NewFromString(p.Config.Billing.DefaultClickRate)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billing.service"),
		clk:     p.Clock,
		cfg:     p.Config,
		wallet:  p.Wallet,
		clicks:  p.Clicks,
		fraud:   p.Fraud,
		events:  p.Events,
		notify:  p.Notify,
		metrics: p.Metrics,

		fraudMode:        mode,
		defaultClickRate: defaultRate,
		ipDailyAdLimit:   int64(p.Config.Billing.IPDailyAdLimit),
		rejectScore:      p.Config.Fraud.RejectScore,
	}, nil
}

// CanShow reports whether the ad may currently serve. It is evaluated outside
// any charging transaction; the gap between this check and a later charge is
// an accepted race because the charge re-validates everything under a lock.
func (s *Service) CanShow(ctx context.Context, adID snowflake.ID) (billingdomain.ShowDecision, error) {
	ad, err := s.getAd(ctx, adID)
	if err != nil {
		return billingdomain.ShowDecision{}, err
	}
	if ad == nil {
		return billingdomain.ShowDecision{Reason: billingdomain.ReasonAdNotFound}, nil
	}

	today := clock.Today(s.clk.Now(ctx))
	if ad.BillingType == addomain.BillingDailyBudget && addomain.ResetIfStale(ad, today) {
		if err := s.persistReset(ctx, ad); err != nil {
			return billingdomain.ShowDecision{}, err
		}
	}

	if ad.Status != addomain.StatusActive {
		return billingdomain.ShowDecision{Reason: billingdomain.ReasonAdNotActive}, nil
	}
	if ad.AutoPaused {
		return billingdomain.ShowDecision{Reason: billingdomain.ReasonAdAutoPaused}, nil
	}

	balance, err := s.balanceOf(ctx, ad.SellerID)
	if err != nil {
		return billingdomain.ShowDecision{}, err
	}

	decision := billingdomain.ShowDecision{Balance: balance}

	switch ad.BillingType {
	case addomain.BillingDailyBudget:
		if ad.DailyBudget.Sign() <= 0 {
			decision.Reason = billingdomain.ReasonBudgetNotSet
			return decision, nil
		}
		if ad.CurrentDailySpend.GreaterThanOrEqual(ad.DailyBudget) {
			s.pause(ctx, ad, addomain.StatusPausedDailyLimit, billingdomain.ReasonBudgetExhausted)
			decision.Reason = billingdomain.ReasonBudgetExhausted
			return decision, nil
		}
		if balance.LessThan(ad.DailyBudget.Mul(budgetRatio)) {
			s.pause(ctx, ad, addomain.StatusInactive, billingdomain.ReasonBalanceBelowFloor)
			decision.Reason = billingdomain.ReasonBalanceBelowFloor
			return decision, nil
		}
	case addomain.BillingPerClick:
		if balance.LessThan(s.clickRate(ad)) {
			s.pause(ctx, ad, addomain.StatusInactive, billingdomain.ReasonInsufficientBalance)
			decision.Reason = billingdomain.ReasonInsufficientBalance
			return decision, nil
		}
	case addomain.BillingPerImpression:
		if balance.LessThan(ad.PerImpressionRate) {
			s.pause(ctx, ad, addomain.StatusInactive, billingdomain.ReasonInsufficientBalance)
			decision.Reason = billingdomain.ReasonInsufficientBalance
			return decision, nil
		}
	}

	decision.CanShow = true
	return decision, nil
}

// Resume re-checks the billing-type minimum balance before lifting an
// auto-pause; a still-broke wallet keeps the ad paused.
func (s *Service) Resume(ctx context.Context, adID snowflake.ID) (billingdomain.ResumeResult, error) {
	ad, err := s.getAd(ctx, adID)
	if err != nil {
		return billingdomain.ResumeResult{}, err
	}
	if ad == nil {
		return billingdomain.ResumeResult{Message: billingdomain.ReasonAdNotFound}, nil
	}
	if !ad.AutoPaused {
		return billingdomain.ResumeResult{Success: true, Message: "ad_not_paused"}, nil
	}

	balance, err := s.balanceOf(ctx, ad.SellerID)
	if err != nil {
		return billingdomain.ResumeResult{}, err
	}

	switch ad.BillingType {
	case addomain.BillingDailyBudget:
		if ad.DailyBudget.Sign() <= 0 {
			return billingdomain.ResumeResult{Message: billingdomain.ReasonBudgetNotSet}, nil
		}
		if ad.CurrentDailySpend.GreaterThanOrEqual(ad.DailyBudget) {
			return billingdomain.ResumeResult{Message: billingdomain.ReasonBudgetExhausted}, nil
		}
		if balance.LessThan(ad.DailyBudget.Mul(budgetRatio)) {
			return billingdomain.ResumeResult{Message: billingdomain.ReasonBalanceBelowFloor}, nil
		}
	case addomain.BillingPerClick:
		if balance.LessThan(s.clickRate(ad)) {
			return billingdomain.ResumeResult{Message: billingdomain.ReasonInsufficientBalance}, nil
		}
	case addomain.BillingPerImpression:
		if balance.LessThan(ad.PerImpressionRate) {
			return billingdomain.ResumeResult{Message: billingdomain.ReasonInsufficientBalance}, nil
		}
	}

	err = s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("id = ?", ad.ID).
		Updates(map[string]any{
			"auto_paused": false,
			"status":      addomain.StatusActive,
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return billingdomain.ResumeResult{}, err
	}

	s.events.Record(ctx, ad.ID, adeventsdomain.EventResumed, "balance re-checked")
	go s.notify.Notify(context.WithoutCancel(ctx), ad.SellerID, notification.KindAdResumed, map[string]string{
		"ad_id": ad.ID.String(),
	})
	return billingdomain.ResumeResult{Success: true, Message: "resumed"}, nil
}

func (s *Service) clickRate(ad *addomain.Ad) decimal.Decimal {
	if ad.PerClickRate.Sign() > 0 {
		return ad.PerClickRate
	}
	return s.defaultClickRate
}

func (s *Service) balanceOf(ctx context.Context, sellerID snowflake.ID) (decimal.Decimal, error) {
	balance, err := s.wallet.GetBalance(ctx, sellerID)
	if errors.Is(err, walletdomain.ErrWalletNotFound) {
		return decimal.Zero, nil
	}
	return balance, err
}

func (s *Service) getAd(ctx context.Context, adID snowflake.ID) (*addomain.Ad, error) {
	var ad addomain.Ad
	err := s.db.WithContext(ctx).First(&ad, "id = ?", adID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &ad, nil
}

func lockAd(ctx context.Context, tx *gorm.DB, adID snowflake.ID) (*addomain.Ad, error) {
	var ad addomain.Ad
	err := db.ForUpdate(tx.WithContext(ctx)).
		First(&ad, "id = ?", adID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &ad, nil
}

func (s *Service) persistReset(ctx context.Context, ad *addomain.Ad) error {
	return s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("id = ?", ad.ID).
		Updates(map[string]any{
			"current_daily_spend":   ad.CurrentDailySpend,
			"last_spend_reset_date": ad.LastSpendResetDate,
			"status":                ad.Status,
			"auto_paused":           ad.AutoPaused,
			"updated_at":            time.Now().UTC(),
		}).Error
}

// pause is the single auto-pause helper every exhaustion path goes through.
// It runs outside any charge transaction so the pause commits even when the
// charge itself rolled back.
func (s *Service) pause(ctx context.Context, ad *addomain.Ad, status addomain.AdStatus, reason string) {
	err := s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("id = ?", ad.ID).
		Updates(map[string]any{
			"auto_paused": true,
			"status":      status,
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		s.log.Error("auto-pause update failed",
			zap.String("ad_id", ad.ID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}

	ad.AutoPaused = true
	ad.Status = status

	s.metrics.AutoPausesTotal.WithLabelValues(reason).Inc()
	s.events.Record(ctx, ad.ID, adeventsdomain.EventAutoPaused, reason)
	s.log.Info("ad auto-paused",
		zap.String("ad_id", ad.ID.String()),
		zap.String("reason", reason),
	)
	go s.notify.Notify(context.WithoutCancel(ctx), ad.SellerID, notification.KindAdAutoPaused, map[string]string{
		"ad_id":  ad.ID.String(),
		"reason": reason,
	})
}
