// Package domain defines sponsored-placement selection: scoring, ordering,
// and interleaving sponsored entries into organic result lists.
package domain

import (
	"context"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	billingdomain "github.com/adlanelabs/adlane/internal/billing/domain"
	productdomain "github.com/adlanelabs/adlane/internal/product/domain"
	"github.com/bwmarrin/snowflake"
)

type PlacementRequest struct {
	Placement  addomain.PlacementType
	Keyword    string
	CategoryID snowflake.ID
	Limit      int
}

type Candidate struct {
	Ad      addomain.Ad
	Product productdomain.Product

	// ProductScore blends rating, sales velocity, and click-through rate.
	ProductScore float64
	// BidAmount normalizes the different billing plans onto one scale.
	BidAmount float64
	// AdRank orders candidates: bid plus a weighted quality component.
	AdRank float64
}

// ResultItem is one entry of a placement's result list. Sponsored entries
// carry the ad id so downstream impression/click charging can reference it.
type ResultItem struct {
	ProductID snowflake.ID  `json:"product_id"`
	AdID      *snowflake.ID `json:"ad_id,omitempty"`
	Sponsored bool          `json:"sponsored"`
}

type ClickLogRequest struct {
	AdID      snowflake.ID
	Placement addomain.PlacementType
	IP        string
	SessionID string
}

type Service interface {
	// GetSponsoredCandidates returns serve-eligible candidates in rank order.
	GetSponsoredCandidates(ctx context.Context, req PlacementRequest) ([]Candidate, error)

	// InsertSponsored interleaves ranked candidates into the organic list at
	// the placement's slot positions, skipping products already present.
	InsertSponsored(organic []ResultItem, candidates []Candidate, placement addomain.PlacementType) []ResultItem

	// LogAdView records reach; product placements also meter an impression.
	// Banner placements are never billed.
	LogAdView(ctx context.Context, adID snowflake.ID, placement addomain.PlacementType) error

	// LogAdClick records a click; product placements go through the ledger.
	LogAdClick(ctx context.Context, req ClickLogRequest) (billingdomain.ChargeResult, error)
}
