package service

import (
	"context"
	"sort"
	"strings"
	"time"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	billingdomain "github.com/adlanelabs/adlane/internal/billing/domain"
	"github.com/adlanelabs/adlane/internal/clock"
	productdomain "github.com/adlanelabs/adlane/internal/product/domain"
	rankingdomain "github.com/adlanelabs/adlane/internal/ranking/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clk     clock.Clock
	billing billingdomain.Service
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Billing billingdomain.Service
}

func NewService(p ServiceParam) rankingdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ranking.service"),
		clk:     p.Clock,
		billing: p.Billing,
	}
}

func (s *Service) GetSponsoredCandidates(ctx context.Context, req rankingdomain.PlacementRequest) ([]rankingdomain.Candidate, error) {
	today := clock.Today(s.clk.Now(ctx))

	products, err := s.matchProducts(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}

	productIDs := make([]snowflake.ID, 0, len(products))
	byID := make(map[snowflake.ID]*productdomain.Product, len(products))
	for i := range products {
		productIDs = append(productIDs, products[i].ID)
		byID[products[i].ID] = &products[i]
	}

	ads, err := s.eligibleAds(ctx, productIDs, today)
	if err != nil {
		return nil, err
	}

	candidates := make([]rankingdomain.Candidate, 0, len(ads))
	for i := range ads {
		ad := &ads[i]
		product, ok := byID[ad.ProductID]
		if !ok {
			continue
		}

		// A candidate that cannot pay is dropped outright, not down-ranked.
		decision, err := s.billing.CanShow(ctx, ad.ID)
		if err != nil {
			return nil, err
		}
		if !decision.CanShow {
			continue
		}

		score := productScore(product, ad)
		bid := bidAmount(ad)
		candidates = append(candidates, rankingdomain.Candidate{
			Ad:           *ad,
			Product:      *product,
			ProductScore: score,
			BidAmount:    bid,
			AdRank:       adRank(bid, score),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.AdRank != b.AdRank {
			return a.AdRank > b.AdRank
		}
		if a.ProductScore != b.ProductScore {
			return a.ProductScore > b.ProductScore
		}
		return a.Ad.CreatedAt.After(b.Ad.CreatedAt)
	})

	if req.Limit > 0 && len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}
	return candidates, nil
}

func (s *Service) matchProducts(ctx context.Context, req rankingdomain.PlacementRequest) ([]productdomain.Product, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND approved = ?", productdomain.ProductActive, true)

	switch req.Placement {
	case addomain.PlacementCategory:
		q = q.Where("category_id = ?", req.CategoryID)
	default:
		keyword := strings.TrimSpace(req.Keyword)
		if keyword == "" {
			return nil, nil
		}
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(keyword)+"%")
	}

	var products []productdomain.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Service) eligibleAds(ctx context.Context, productIDs []snowflake.ID, today time.Time) ([]addomain.Ad, error) {
	var ads []addomain.Ad
	err := s.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Where("status = ? AND approval_status = ? AND auto_paused = ?",
			addomain.StatusActive, addomain.ApprovalApproved, false).
		Where("start_date <= ? AND end_date >= ?", today, today).
		Find(&ads).Error
	if err != nil {
		return nil, err
	}
	return ads, nil
}

func (s *Service) InsertSponsored(organic []rankingdomain.ResultItem, candidates []rankingdomain.Candidate, placement addomain.PlacementType) []rankingdomain.ResultItem {
	seen := make(map[snowflake.ID]bool, len(organic))
	for _, item := range organic {
		seen[item.ProductID] = true
	}

	queue := make([]rankingdomain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.Product.ID] {
			continue
		}
		seen[c.Product.ID] = true
		queue = append(queue, c)
	}

	slots := slotsFor(placement)
	out := make([]rankingdomain.ResultItem, 0, len(organic)+len(queue))
	oi := 0

	for oi < len(organic) || len(queue) > 0 {
		if len(queue) > 0 && len(out) == slots.current() {
			c := queue[0]
			queue = queue[1:]
			slots.advance()

			adID := c.Ad.ID
			out = append(out, rankingdomain.ResultItem{
				ProductID: c.Product.ID,
				AdID:      &adID,
				Sponsored: true,
			})
			continue
		}
		if oi < len(organic) {
			out = append(out, organic[oi])
			oi++
			continue
		}
		// Organic items ran out before the next slot position; remaining
		// candidates are dropped rather than stacked at the tail.
		break
	}
	return out
}

func (s *Service) LogAdView(ctx context.Context, adID snowflake.ID, placement addomain.PlacementType) error {
	res := s.db.WithContext(ctx).Model(&addomain.Ad{}).
		Where("id = ?", adID).
		Updates(map[string]any{
			"reach":      gorm.Expr("reach + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return addomain.ErrAdNotFound
	}

	if placement == addomain.PlacementBanner {
		return nil
	}

	result, err := s.billing.ChargeImpression(ctx, adID)
	if err != nil {
		// Reach is already counted; the failed charge is billing's problem.
		s.log.Error("impression charge failed after view",
			zap.String("ad_id", adID.String()),
			zap.Error(err),
		)
		return nil
	}
	if !result.Success {
		s.log.Debug("impression not charged",
			zap.String("ad_id", adID.String()),
			zap.String("reason", result.Message),
		)
	}
	return nil
}

func (s *Service) LogAdClick(ctx context.Context, req rankingdomain.ClickLogRequest) (billingdomain.ChargeResult, error) {
	if req.Placement == addomain.PlacementBanner {
		res := s.db.WithContext(ctx).Model(&addomain.Ad{}).
			Where("id = ?", req.AdID).
			Updates(map[string]any{
				"click":      gorm.Expr("click + 1"),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return billingdomain.ChargeResult{}, res.Error
		}
		if res.RowsAffected == 0 {
			return billingdomain.ChargeResult{Message: billingdomain.ReasonAdNotFound}, nil
		}
		return billingdomain.ChargeResult{Success: true, Charged: decimal.Zero, Message: "banner_click_logged"}, nil
	}

	return s.billing.ChargeClick(ctx, billingdomain.ClickRequest{
		AdID:      req.AdID,
		IP:        req.IP,
		SessionID: req.SessionID,
	})
}
