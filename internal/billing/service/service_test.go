package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	adeventsservice "github.com/adlanelabs/adlane/internal/adevents/service"
	billingdomain "github.com/adlanelabs/adlane/internal/billing/domain"
	"github.com/adlanelabs/adlane/internal/billing/service"
	clickdomain "github.com/adlanelabs/adlane/internal/clickevent/domain"
	clickrepository "github.com/adlanelabs/adlane/internal/clickevent/repository"
	"github.com/adlanelabs/adlane/internal/clock"
	"github.com/adlanelabs/adlane/internal/config"
	fraudservice "github.com/adlanelabs/adlane/internal/fraud/service"
	"github.com/adlanelabs/adlane/internal/migration"
	"github.com/adlanelabs/adlane/internal/notification"
	"github.com/adlanelabs/adlane/internal/observability"
	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	walletservice "github.com/adlanelabs/adlane/internal/wallet/service"
	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type harness struct {
	db     *gorm.DB
	node   *snowflake.Node
	svc    billingdomain.Service
	wallet walletdomain.Service
	clicks clickdomain.Repository
}

func newHarness(t *testing.T, fraudMode string) *harness {
	return newHarnessWith(t, fraudMode, nil)
}

// newHarnessWith lets a test interpose on the click repository the billing and
// fraud services read from.
func newHarnessWith(t *testing.T, fraudMode string, wrapClicks func(clickdomain.Repository) clickdomain.Repository) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(migration.Models()...))

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := zap.NewNop()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		Fraud: config.FraudConfig{Mode: fraudMode, RejectScore: 50},
		Billing: config.BillingConfig{
			MinClickRate:     "1.00",
			DefaultClickRate: "1.00",
			IPDailyAdLimit:   10,
		},
	}

	walletSvc := walletservice.NewService(walletservice.ServiceParam{
		DB: db, Log: log, GenID: node,
	})
	clicksRepo := clickrepository.NewRepository(db, node)
	if wrapClicks != nil {
		clicksRepo = wrapClicks(clicksRepo)
	}
	events := adeventsservice.NewRecorder(adeventsservice.RecorderParam{
		DB: db, Log: log, GenID: node,
	})
	notify := notification.NewLogDispatcher(log)

	fraudSvc, err := fraudservice.NewService(fraudservice.ServiceParam{
		DB: db, Redis: rdb, Log: log, Clock: clock.SystemClock{}, Config: cfg,
		Clicks: clicksRepo, Events: events, Notify: notify,
	})
	require.NoError(t, err)

	billingSvc, err := service.NewService(service.ServiceParam{
		DB: db, Log: log, Clock: clock.SystemClock{}, Config: cfg,
		Wallet: walletSvc, Clicks: clicksRepo, Fraud: fraudSvc,
		Events: events, Notify: notify, Metrics: observability.NewMetrics(),
	})
	require.NoError(t, err)

	return &harness{
		db:     db,
		node:   node,
		svc:    billingSvc,
		wallet: walletSvc,
		clicks: clicksRepo,
	}
}

func (h *harness) seedWallet(t *testing.T, balance string) snowflake.ID {
	t.Helper()
	sellerID := h.node.Generate()
	now := time.Now().UTC()
	require.NoError(t, h.db.Create(&walletdomain.Wallet{
		ID:        h.node.Generate(),
		SellerID:  sellerID,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)
	return sellerID
}

func (h *harness) seedAd(t *testing.T, sellerID snowflake.ID, mutate func(*addomain.Ad)) *addomain.Ad {
	t.Helper()
	now := time.Now().UTC()
	today := clock.Today(now)
	ad := addomain.Ad{
		ID:                 h.node.Generate(),
		SellerID:           sellerID,
		ProductID:          h.node.Generate(),
		AdsType:            "product",
		BillingType:        addomain.BillingPerClick,
		PerClickRate:       decimal.RequireFromString("2.00"),
		TotalClicks:        3,
		RemainingClicks:    3,
		CurrentDailySpend:  decimal.Zero,
		LastSpendResetDate: &today,
		Status:             addomain.StatusActive,
		ApprovalStatus:     addomain.ApprovalApproved,
		StartDate:          today.AddDate(0, 0, -1),
		EndDate:            today.AddDate(0, 0, 7),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if mutate != nil {
		mutate(&ad)
	}
	require.NoError(t, h.db.Create(&ad).Error)
	return &ad
}

func (h *harness) reloadAd(t *testing.T, id snowflake.ID) *addomain.Ad {
	t.Helper()
	var ad addomain.Ad
	require.NoError(t, h.db.First(&ad, "id = ?", id).Error)
	return &ad
}

func TestChargeClickThenDuplicate(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	sellerID := h.seedWallet(t, "5.00")
	ad := h.seedAd(t, sellerID, nil)

	result, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{
		AdID: ad.ID, IP: "203.0.113.7",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Charged.Equal(decimal.RequireFromString("2.00")))

	balance, err := h.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("3.00")), "balance = %s", balance)

	reloaded := h.reloadAd(t, ad.ID)
	assert.Equal(t, 2, reloaded.RemainingClicks)
	assert.EqualValues(t, 1, reloaded.Click)

	// Same IP again inside the duplicate window: nothing charged, redirect
	// still succeeds from the caller's point of view.
	dup, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{
		AdID: ad.ID, IP: "203.0.113.7",
	})
	require.NoError(t, err)
	assert.False(t, dup.Success)
	assert.Equal(t, billingdomain.ReasonClickRejected, dup.Message)
	assert.True(t, dup.Charged.IsZero())

	balance, err = h.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("3.00")))
	assert.Equal(t, 2, h.reloadAd(t, ad.ID).RemainingClicks)
}

func TestChargeClickExhaustsAllotment(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	sellerID := h.seedWallet(t, "10.00")
	ad := h.seedAd(t, sellerID, func(a *addomain.Ad) {
		a.TotalClicks = 1
		a.RemainingClicks = 1
	})

	result, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: "198.51.100.1"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	reloaded := h.reloadAd(t, ad.ID)
	assert.Zero(t, reloaded.RemainingClicks)
	assert.True(t, reloaded.AutoPaused)
	assert.Equal(t, addomain.StatusInactive, reloaded.Status)

	// Next click from another IP bounces off the pause.
	next, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: "198.51.100.2"})
	require.NoError(t, err)
	assert.False(t, next.Success)
	assert.Equal(t, billingdomain.ReasonAdNotActive, next.Message)
}

func TestChargeClickInsufficientBalancePausesWithoutDebit(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	sellerID := h.seedWallet(t, "1.50")
	ad := h.seedAd(t, sellerID, nil) // rate 2.00

	result, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: "198.51.100.9"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, billingdomain.ReasonInsufficientBalance, result.Message)

	// The charge rolled back, the pause did not.
	balance, err := h.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.50")))

	reloaded := h.reloadAd(t, ad.ID)
	assert.True(t, reloaded.AutoPaused)
	assert.Equal(t, 3, reloaded.RemainingClicks)

	var clickRows int64
	require.NoError(t, h.db.Model(&clickdomain.ClickEvent{}).Count(&clickRows).Error)
	assert.Zero(t, clickRows)
}

func TestChargeClickIPDailyAdCap(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()
	ip := "192.0.2.44"
	now := time.Now().UTC()

	// The IP was already charged for 10 distinct ads today.
	for i := 0; i < 10; i++ {
		require.NoError(t, h.db.Create(&clickdomain.ClickEvent{
			ID:        h.node.Generate(),
			AdID:      h.node.Generate(),
			IP:        ip,
			ClickedAt: now,
		}).Error)
	}

	sellerID := h.seedWallet(t, "10.00")
	ad := h.seedAd(t, sellerID, nil)

	result, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: ip})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, billingdomain.ReasonIPDailyLimit, result.Message)

	balance, err := h.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10.00")))

	// No click-log row was added for the rejected ad.
	count, err := h.clicks.CountByAdIP(ctx, ad.ID, ip, clock.Today(now))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChargeClickOncePerAdIPDay(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()
	ip := "192.0.2.80"

	sellerID := h.seedWallet(t, "10.00")
	ad := h.seedAd(t, sellerID, nil)

	// A charged click from this IP earlier today, outside every fraud window.
	require.NoError(t, h.db.Create(&clickdomain.ClickEvent{
		ID:        h.node.Generate(),
		AdID:      ad.ID,
		IP:        ip,
		ClickedAt: clock.Today(time.Now().UTC()),
	}).Error)

	result, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: ip})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, billingdomain.ReasonAlreadyChargedToday, result.Message)
}

// staleCountClicks serves zero for every plain pair count, the way a read
// taken before a concurrent commit would; the tx-scoped re-check still sees
// the real rows.
type staleCountClicks struct {
	clickdomain.Repository
}

func (s *staleCountClicks) CountByAdIP(ctx context.Context, adID snowflake.ID, ip string, since time.Time) (int64, error) {
	return 0, nil
}

func TestChargeClickOncePerDayRecheckedUnderLock(t *testing.T) {
	h := newHarnessWith(t, "enforcing", func(r clickdomain.Repository) clickdomain.Repository {
		return &staleCountClicks{Repository: r}
	})
	ctx := context.Background()
	ip := "192.0.2.81"

	sellerID := h.seedWallet(t, "10.00")
	ad := h.seedAd(t, sellerID, nil)

	// A click for the pair already committed today, invisible to the stale
	// pre-transaction reads. Two simultaneous clicks race exactly like this
	// on postgres: both pre-checks see zero, the row lock serializes them,
	// and the loser must be caught inside the transaction.
	require.NoError(t, h.db.Create(&clickdomain.ClickEvent{
		ID:        h.node.Generate(),
		AdID:      ad.ID,
		IP:        ip,
		ClickedAt: clock.Today(time.Now().UTC()),
	}).Error)

	result, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: ip})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, billingdomain.ReasonAlreadyChargedToday, result.Message)

	// No second debit, no second click row.
	balance, err := h.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10.00")))

	var rows int64
	require.NoError(t, h.db.Model(&clickdomain.ClickEvent{}).Where("ad_id = ?", ad.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestChargeClickLiftsStaleBudgetPause(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	sellerID := h.seedWallet(t, "10.00")
	yesterday := clock.Today(time.Now().UTC()).AddDate(0, 0, -1)
	ad := h.seedAd(t, sellerID, func(a *addomain.Ad) {
		a.BillingType = addomain.BillingDailyBudget
		a.DailyBudget = decimal.RequireFromString("50.00")
		a.CurrentDailySpend = decimal.RequireFromString("50.00")
		a.Status = addomain.StatusPausedDailyLimit
		a.AutoPaused = true
		a.LastSpendResetDate = &yesterday
	})

	// Yesterday's budget pause must not reject today's first click.
	result, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: "192.0.2.13"})
	require.NoError(t, err)
	assert.True(t, result.Success, "message: %s", result.Message)

	reloaded := h.reloadAd(t, ad.ID)
	assert.Equal(t, addomain.StatusActive, reloaded.Status)
	assert.False(t, reloaded.AutoPaused)
	assert.True(t, reloaded.CurrentDailySpend.IsZero())
	require.NotNil(t, reloaded.LastSpendResetDate)
	assert.True(t, reloaded.LastSpendResetDate.Equal(clock.Today(time.Now().UTC())))
}

func TestChargeImpressionCapsAtRemainingBudgetAndPauses(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	sellerID := h.seedWallet(t, "20.00")
	ad := h.seedAd(t, sellerID, func(a *addomain.Ad) {
		a.BillingType = addomain.BillingDailyBudget
		a.DailyBudget = decimal.RequireFromString("100.00")
		a.CurrentDailySpend = decimal.RequireFromString("99.995")
	})

	result, err := h.svc.ChargeImpression(ctx, ad.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Charged.Equal(decimal.RequireFromString("0.005")),
		"charged = %s", result.Charged)

	reloaded := h.reloadAd(t, ad.ID)
	assert.True(t, reloaded.CurrentDailySpend.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, reloaded.AutoPaused)
	assert.Equal(t, addomain.StatusPausedDailyLimit, reloaded.Status)

	balance, err := h.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("19.995")))
}

func TestChargeImpressionFreeForPerClickPlans(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	sellerID := h.seedWallet(t, "5.00")
	ad := h.seedAd(t, sellerID, nil)

	result, err := h.svc.ChargeImpression(ctx, ad.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Charged.IsZero())
	assert.Equal(t, billingdomain.ReasonImpressionsFree, result.Message)
}

func TestChargeImpressionExhaustedBudgetPauses(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	sellerID := h.seedWallet(t, "20.00")
	ad := h.seedAd(t, sellerID, func(a *addomain.Ad) {
		a.BillingType = addomain.BillingDailyBudget
		a.DailyBudget = decimal.RequireFromString("10.00")
		a.CurrentDailySpend = decimal.RequireFromString("10.00")
	})

	result, err := h.svc.ChargeImpression(ctx, ad.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, billingdomain.ReasonBudgetExhausted, result.Message)

	reloaded := h.reloadAd(t, ad.ID)
	assert.True(t, reloaded.AutoPaused)
	assert.Equal(t, addomain.StatusPausedDailyLimit, reloaded.Status)
}

func TestCanShow(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	t.Run("active funded ad", func(t *testing.T) {
		sellerID := h.seedWallet(t, "5.00")
		ad := h.seedAd(t, sellerID, nil)

		decision, err := h.svc.CanShow(ctx, ad.ID)
		require.NoError(t, err)
		assert.True(t, decision.CanShow)
	})

	t.Run("expired ad regardless of balance", func(t *testing.T) {
		sellerID := h.seedWallet(t, "1000.00")
		ad := h.seedAd(t, sellerID, func(a *addomain.Ad) {
			a.Status = addomain.StatusExpired
		})

		decision, err := h.svc.CanShow(ctx, ad.ID)
		require.NoError(t, err)
		assert.False(t, decision.CanShow)
		assert.Equal(t, billingdomain.ReasonAdNotActive, decision.Reason)
	})

	t.Run("per-click ad with broke wallet is paused", func(t *testing.T) {
		sellerID := h.seedWallet(t, "0.50")
		ad := h.seedAd(t, sellerID, nil) // rate 2.00

		decision, err := h.svc.CanShow(ctx, ad.ID)
		require.NoError(t, err)
		assert.False(t, decision.CanShow)
		assert.Equal(t, billingdomain.ReasonInsufficientBalance, decision.Reason)
		assert.True(t, h.reloadAd(t, ad.ID).AutoPaused)
	})

	t.Run("daily-budget ad below balance floor", func(t *testing.T) {
		sellerID := h.seedWallet(t, "0.50")
		ad := h.seedAd(t, sellerID, func(a *addomain.Ad) {
			a.BillingType = addomain.BillingDailyBudget
			a.DailyBudget = decimal.RequireFromString("100.00")
		})

		decision, err := h.svc.CanShow(ctx, ad.ID)
		require.NoError(t, err)
		assert.False(t, decision.CanShow)
		assert.Equal(t, billingdomain.ReasonBalanceBelowFloor, decision.Reason)
	})

	t.Run("unknown ad", func(t *testing.T) {
		decision, err := h.svc.CanShow(ctx, h.node.Generate())
		require.NoError(t, err)
		assert.False(t, decision.CanShow)
		assert.Equal(t, billingdomain.ReasonAdNotFound, decision.Reason)
	})
}

func TestResume(t *testing.T) {
	h := newHarness(t, "enforcing")
	ctx := context.Background()

	t.Run("funded wallet lifts pause", func(t *testing.T) {
		sellerID := h.seedWallet(t, "10.00")
		ad := h.seedAd(t, sellerID, func(a *addomain.Ad) {
			a.Status = addomain.StatusInactive
			a.AutoPaused = true
		})

		result, err := h.svc.Resume(ctx, ad.ID)
		require.NoError(t, err)
		assert.True(t, result.Success)

		reloaded := h.reloadAd(t, ad.ID)
		assert.Equal(t, addomain.StatusActive, reloaded.Status)
		assert.False(t, reloaded.AutoPaused)
	})

	t.Run("still-broke wallet keeps pause", func(t *testing.T) {
		sellerID := h.seedWallet(t, "0.10")
		ad := h.seedAd(t, sellerID, func(a *addomain.Ad) {
			a.Status = addomain.StatusInactive
			a.AutoPaused = true
		})

		result, err := h.svc.Resume(ctx, ad.ID)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, billingdomain.ReasonInsufficientBalance, result.Message)
		assert.True(t, h.reloadAd(t, ad.ID).AutoPaused)
	})
}

func TestChargeClickFraudDisabledSkipsGates(t *testing.T) {
	h := newHarness(t, "disabled")
	ctx := context.Background()
	ip := "192.0.2.200"

	sellerID := h.seedWallet(t, "10.00")
	ad := h.seedAd(t, sellerID, nil)

	first, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: ip})
	require.NoError(t, err)
	assert.True(t, first.Success)

	// With the gate off, even an immediate repeat charges again.
	second, err := h.svc.ChargeClick(ctx, billingdomain.ClickRequest{AdID: ad.ID, IP: ip})
	require.NoError(t, err)
	assert.True(t, second.Success)

	balance, err := h.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("6.00")))
}
