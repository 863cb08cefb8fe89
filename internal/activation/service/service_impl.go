package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	activationdomain "github.com/adlanelabs/adlane/internal/activation/domain"
	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	adeventsdomain "github.com/adlanelabs/adlane/internal/adevents/domain"
	"github.com/adlanelabs/adlane/internal/clock"
	"github.com/adlanelabs/adlane/internal/config"
	"github.com/adlanelabs/adlane/internal/notification"
	productdomain "github.com/adlanelabs/adlane/internal/product/domain"
	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clk      clock.Clock
	wallet   walletdomain.Service
	products productdomain.Repository
	events   adeventsdomain.Recorder
	notify   notification.Dispatcher

	minClickRate      decimal.Decimal
	blockedProducts   []string
	blockedCategories []string
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	Wallet   walletdomain.Service
	Products productdomain.Repository
	Events   adeventsdomain.Recorder
	Notify   notification.Dispatcher
}

func NewService(p ServiceParam) (activationdomain.Service, error) {
	minRate, err := decimal.NewFromString(p.Config.Billing.MinClickRate)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("activation.service"),
		clk:      p.Clock,
		wallet:   p.Wallet,
		products: p.Products,
		events:   p.Events,
		notify:   p.Notify,

		minClickRate:      minRate,
		blockedProducts:   p.Config.Blocklist.BlockedProductIDs(),
		blockedCategories: p.Config.Blocklist.BlockedCategoryNames(),
	}, nil
}

func (s *Service) Validate(ctx context.Context, adID snowflake.ID) (activationdomain.ValidationResult, error) {
	var ad addomain.Ad
	err := s.db.WithContext(ctx).First(&ad, "id = ?", adID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return activationdomain.ValidationResult{Errors: []string{activationdomain.ErrAdMissing}}, nil
		}
		return activationdomain.ValidationResult{}, err
	}

	var failures []string

	if ad.TotalClicks <= 0 {
		failures = append(failures, activationdomain.ErrTotalClicks)
	}

	balance, err := s.wallet.GetBalance(ctx, ad.SellerID)
	if err != nil && !errors.Is(err, walletdomain.ErrWalletNotFound) {
		return activationdomain.ValidationResult{}, err
	}
	if balance.LessThan(s.minClickRate) {
		failures = append(failures, activationdomain.ErrBalanceBelowMinCPC)
	}

	today := clock.Today(s.clk.Now(ctx))
	if ad.StartDate.After(ad.EndDate) {
		failures = append(failures, activationdomain.ErrDateRange)
	}
	if ad.EndDate.Before(today) {
		failures = append(failures, activationdomain.ErrWindowEnded)
	}

	if strings.TrimSpace(ad.AdsType) == "" {
		failures = append(failures, activationdomain.ErrAdsTypeMissing)
	}

	product, err := s.products.GetByID(ctx, ad.ProductID)
	if err != nil {
		return activationdomain.ValidationResult{}, err
	}
	switch {
	case product == nil:
		failures = append(failures, activationdomain.ErrProductMissing)
	default:
		if product.Status != productdomain.ProductActive {
			failures = append(failures, activationdomain.ErrProductInactive)
		}
		if !product.Approved {
			failures = append(failures, activationdomain.ErrProductUnapproved)
		}
		if slices.Contains(s.blockedProducts, product.ID.String()) {
			failures = append(failures, activationdomain.ErrProductBlocked)
		}
		if product.CategoryName != "" && slices.Contains(s.blockedCategories, product.CategoryName) {
			failures = append(failures, activationdomain.ErrCategoryBlocked)
		}
	}

	return activationdomain.ValidationResult{
		Valid:  len(failures) == 0,
		Errors: failures,
	}, nil
}

func (s *Service) Activate(ctx context.Context, adID snowflake.ID) (activationdomain.ActivationResult, error) {
	validation, err := s.Validate(ctx, adID)
	if err != nil {
		return activationdomain.ActivationResult{}, err
	}
	if !validation.Valid {
		return activationdomain.ActivationResult{
			Message: strings.Join(validation.Errors, "; "),
		}, nil
	}

	today := clock.Today(s.clk.Now(ctx))
	var sellerID snowflake.ID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ad addomain.Ad
		if err := tx.WithContext(ctx).First(&ad, "id = ?", adID).Error; err != nil {
			return err
		}
		sellerID = ad.SellerID

		return tx.WithContext(ctx).Model(&addomain.Ad{}).
			Where("id = ?", ad.ID).
			Updates(map[string]any{
				"status":                addomain.StatusActive,
				"remaining_clicks":      ad.TotalClicks,
				"current_daily_spend":   decimal.Zero,
				"last_spend_reset_date": today,
				"auto_paused":           false,
				"updated_at":            time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return activationdomain.ActivationResult{}, err
	}

	s.events.Record(ctx, adID, adeventsdomain.EventActivated, "")
	go s.notify.Notify(context.WithoutCancel(ctx), sellerID, notification.KindAdActivated, map[string]string{
		"ad_id": adID.String(),
	})
	return activationdomain.ActivationResult{Success: true, Message: "activated"}, nil
}

func (s *Service) MarkUpfrontPaid(ctx context.Context, adID snowflake.ID) error {
	res := s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("id = ?", adID).
		Updates(map[string]any{
			"upfront_paid": true,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return addomain.ErrAdNotFound
	}
	s.events.Record(ctx, adID, adeventsdomain.EventUpfrontPaid, "")
	return nil
}
