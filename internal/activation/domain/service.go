// Package domain defines pre-activation validation and the activation flip.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Validation failure codes. All failing checks are collected so the seller
// sees the complete list, not just the first problem.
const (
	ErrTotalClicks        = "total_clicks_must_be_positive"
	ErrBalanceBelowMinCPC = "wallet_balance_below_minimum_cpc"
	ErrDateRange          = "start_date_after_end_date"
	ErrWindowEnded        = "end_date_in_the_past"
	ErrProductMissing     = "product_not_found"
	ErrProductInactive    = "product_not_active"
	ErrProductUnapproved  = "product_not_approved"
	ErrAdsTypeMissing     = "ads_type_required"
	ErrProductBlocked     = "product_blocklisted"
	ErrCategoryBlocked    = "category_blocklisted"
	ErrAdMissing          = "ad_not_found"
)

type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

type ActivationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type Service interface {
	// Validate runs every pre-activation check and returns the full error set.
	Validate(ctx context.Context, adID snowflake.ID) (ValidationResult, error)

	// Activate re-validates and atomically flips the campaign live:
	// status active, click allotment restored, daily counters zeroed.
	Activate(ctx context.Context, adID snowflake.ID) (ActivationResult, error)

	// MarkUpfrontPaid records that the out-of-band upfront payment cleared;
	// the status sweep promotes the ad once its date window opens.
	MarkUpfrontPaid(ctx context.Context, adID snowflake.ID) error
}
