package service

import (
	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	productdomain "github.com/adlanelabs/adlane/internal/product/domain"
)

const (
	ratingWeight = 0.6
	salesWeight  = 0.3
	ctrWeight    = 0.1

	salesCap = 10.0
	ctrCap   = 10.0

	// qualityWeight is the share of productScore mixed into adRank on top of
	// the raw bid.
	qualityWeight = 0.3

	// perClickBidScale puts per-click rates on the same order of magnitude as
	// daily budgets when comparing bids across billing plans.
	perClickBidScale = 10.0
)

func productScore(p *productdomain.Product, ad *addomain.Ad) float64 {
	sales := float64(p.MonthlySales) / 100.0
	if sales > salesCap {
		sales = salesCap
	}

	var ctr float64
	if ad.Reach > 0 {
		ctr = float64(ad.Click) / float64(ad.Reach) * 10.0
		if ctr > ctrCap {
			ctr = ctrCap
		}
	}

	return p.Rating*ratingWeight + sales*salesWeight + ctr*ctrWeight
}

func bidAmount(ad *addomain.Ad) float64 {
	switch ad.BillingType {
	case addomain.BillingDailyBudget:
		return ad.DailyBudget.InexactFloat64()
	case addomain.BillingPerClick:
		return ad.PerClickRate.InexactFloat64() * perClickBidScale
	default:
		return ad.CostAmount.InexactFloat64()
	}
}

func adRank(bid, score float64) float64 {
	return bid + score*qualityWeight
}

// slotSequence yields the insertion indexes for sponsored entries: a short
// fixed prefix followed by a periodic tail. Search listings front-load three
// slots; category listings space evenly from the top.
type slotSequence struct {
	fixed []int
	next  int
	step  int
}

func slotsFor(placement addomain.PlacementType) *slotSequence {
	if placement == addomain.PlacementSearch {
		return &slotSequence{fixed: []int{0, 2, 5}, next: 15, step: 10}
	}
	return &slotSequence{next: 0, step: 10}
}

func (s *slotSequence) current() int {
	if len(s.fixed) > 0 {
		return s.fixed[0]
	}
	return s.next
}

func (s *slotSequence) advance() {
	if len(s.fixed) > 0 {
		s.fixed = s.fixed[1:]
		return
	}
	s.next += s.step
}
