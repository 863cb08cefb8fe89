package service

import (
	"context"
	"fmt"
	"time"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	adeventsdomain "github.com/adlanelabs/adlane/internal/adevents/domain"
	clickdomain "github.com/adlanelabs/adlane/internal/clickevent/domain"
	"github.com/adlanelabs/adlane/internal/clock"
	"github.com/adlanelabs/adlane/internal/config"
	frauddomain "github.com/adlanelabs/adlane/internal/fraud/domain"
	"github.com/adlanelabs/adlane/internal/notification"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Window thresholds, evaluated in order. The first two reject outright; the
// rest accumulate a weighted score.
//
// The click log holds charged clicks only, and the charging path allows one
// charge per (ad, IP) per day — so pairHourlyLimit cannot be reached from
// enforcing-mode traffic alone. It still gates the standalone fraud-check
// endpoint and clicks charged while enforcement was disabled.
const (
	pairHourlyLimit  = 3
	duplicateWindow  = 30 * time.Second
	ipVelocityLimit  = 10 // same-IP clicks in 60s
	sessionLimit     = 5  // session clicks in an hour
	hotIPThreshold   = 10 // clicks/hour marking an IP as hot
	adClickStormMin  = 50 // total clicks on the ad in an hour
	scoreHourlyLimit = 80
	scoreDuplicate   = 100
	weightIPVelocity = 30
	weightSession    = 40
	weightHotIPs     = 20
	weightStorm      = 50
)

type Service struct {
	db     *gorm.DB
	redis  *redis.Client
	log    *zap.Logger
	clk    clock.Clock
	mode   frauddomain.Mode
	clicks clickdomain.Repository
	events adeventsdomain.Recorder
	notify notification.Dispatcher
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Redis  *redis.Client
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Clicks clickdomain.Repository
	Events adeventsdomain.Recorder
	Notify notification.Dispatcher
}

func NewService(p ServiceParam) (frauddomain.Service, error) {
	mode, err := frauddomain.ParseMode(p.Config.Fraud.Mode)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:     p.DB,
		redis:  p.Redis,
		log:    p.Log.Named("fraud.service"),
		clk:    p.Clock,
		mode:   mode,
		clicks: p.Clicks,
		events: p.Events,
		notify: p.Notify,
	}, nil
}

func (s *Service) Score(ctx context.Context, req frauddomain.ScoreRequest) (frauddomain.Score, error) {
	if s.mode == frauddomain.ModeDisabled {
		return frauddomain.Score{}, nil
	}

	now := s.clk.Now(ctx)

	pairHour, err := s.clicks.CountByAdIP(ctx, req.AdID, req.IP, now.Add(-time.Hour))
	if err != nil {
		return frauddomain.Score{}, err
	}
	if pairHour >= pairHourlyLimit {
		return frauddomain.Score{
			IsFraud:    true,
			FraudScore: scoreHourlyLimit,
			Indicators: []string{frauddomain.IndicatorHourlyLimit},
			ClickCount: pairHour,
		}, nil
	}

	dup, err := s.seenWithinDuplicateWindow(ctx, req.AdID, req.IP, now)
	if err != nil {
		return frauddomain.Score{}, err
	}
	if dup {
		return frauddomain.Score{
			IsFraud:     true,
			IsDuplicate: true,
			FraudScore:  scoreDuplicate,
			Indicators:  []string{frauddomain.IndicatorRapidDuplicate},
			ClickCount:  pairHour,
		}, nil
	}

	score := frauddomain.Score{ClickCount: pairHour}

	ipMinute, err := s.clicks.CountByIP(ctx, req.IP, now.Add(-60*time.Second))
	if err != nil {
		return frauddomain.Score{}, err
	}
	if ipMinute >= ipVelocityLimit {
		score.FraudScore += weightIPVelocity
		score.Indicators = append(score.Indicators, frauddomain.IndicatorIPVelocity)
	}

	if req.SessionID != "" {
		sessionHour, err := s.clicks.CountBySession(ctx, req.SessionID, now.Add(-time.Hour))
		if err != nil {
			return frauddomain.Score{}, err
		}
		if sessionHour >= sessionLimit {
			score.FraudScore += weightSession
			score.Indicators = append(score.Indicators, frauddomain.IndicatorSessionVelocity)
		}
	}

	hotIPs, err := s.clicks.CountHotIPs(ctx, req.AdID, now.Add(-time.Hour), hotIPThreshold)
	if err != nil {
		return frauddomain.Score{}, err
	}
	if hotIPs > 0 {
		score.FraudScore += weightHotIPs
		score.Indicators = append(score.Indicators, frauddomain.IndicatorDistributedIPs)
	}

	adHour, err := s.clicks.CountByAd(ctx, req.AdID, now.Add(-time.Hour))
	if err != nil {
		return frauddomain.Score{}, err
	}
	if adHour >= adClickStormMin {
		score.FraudScore += weightStorm
		score.ShouldSuspend = true
		score.Indicators = append(score.Indicators, frauddomain.IndicatorClickStorm)
	}

	score.IsFraud = len(score.Indicators) > 0
	return score, nil
}

func (s *Service) MarkClickCharged(ctx context.Context, adID snowflake.ID, ip string) {
	if s.mode == frauddomain.ModeDisabled {
		return
	}
	key := pairKey(adID, ip)
	if err := s.redis.Set(ctx, key, 1, duplicateWindow).Err(); err != nil {
		// The click log still covers the duplicate window; redis is a fast path.
		s.log.Warn("duplicate marker write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) AutoSuspend(ctx context.Context, adID snowflake.ID, reason string) error {
	err := s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("id = ?", adID).
		Updates(map[string]any{
			"status":      addomain.StatusSuspended,
			"auto_paused": true,
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return err
	}

	s.events.Record(ctx, adID, adeventsdomain.EventSuspended, reason)
	s.log.Warn("ad auto-suspended", zap.String("ad_id", adID.String()), zap.String("reason", reason))

	var ad addomain.Ad
	if err := s.db.WithContext(ctx).First(&ad, "id = ?", adID).Error; err == nil {
		go s.notify.Notify(context.WithoutCancel(ctx), ad.SellerID, notification.KindAdSuspended, map[string]string{
			"ad_id":  adID.String(),
			"reason": reason,
		})
	}
	return nil
}

// seenWithinDuplicateWindow consults the redis marker first and falls back to
// the click log when redis is unavailable, so an outage degrades to a slower
// query instead of letting duplicates through.
func (s *Service) seenWithinDuplicateWindow(ctx context.Context, adID snowflake.ID, ip string, now time.Time) (bool, error) {
	exists, err := s.redis.Exists(ctx, pairKey(adID, ip)).Result()
	if err == nil {
		return exists > 0, nil
	}
	s.log.Warn("duplicate marker read failed, falling back to click log", zap.Error(err))

	recent, err := s.clicks.CountByAdIP(ctx, adID, ip, now.Add(-duplicateWindow))
	if err != nil {
		return false, err
	}
	return recent > 0, nil
}

func pairKey(adID snowflake.ID, ip string) string {
	return fmt.Sprintf("fraud:pair:%s:%s", adID.String(), ip)
}
