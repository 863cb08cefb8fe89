// Package domain defines the real-time billing ledger contract: serve-time
// eligibility plus atomic impression and click charging.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Structured reasons returned with eligibility and charge decisions.
const (
	ReasonAdNotFound          = "ad_not_found"
	ReasonAdNotActive         = "ad_not_active"
	ReasonAdAutoPaused        = "ad_auto_paused"
	ReasonBudgetNotSet        = "daily_budget_not_set"
	ReasonBudgetExhausted     = "daily_budget_exhausted"
	ReasonBalanceBelowFloor   = "balance_below_floor"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonNoClicksRemaining   = "no_clicks_remaining"
	ReasonClickRejected       = "click_rejected"
	ReasonIPDailyLimit        = "ip_daily_limit_reached"
	ReasonAlreadyChargedToday = "already_charged_today"
	ReasonImpressionsFree     = "impressions_free_for_plan"
	ReasonCharged             = "charged"
)

// ShowDecision is advisory: it keeps doomed-to-fail ads out of a placement
// but never authorizes a charge. Every charge re-validates under a row lock.
type ShowDecision struct {
	CanShow bool            `json:"can_show"`
	Reason  string          `json:"reason,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

type ChargeResult struct {
	Success bool            `json:"success"`
	Charged decimal.Decimal `json:"charged"`
	Message string          `json:"message,omitempty"`
}

type ResumeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ClickRequest struct {
	AdID      snowflake.ID
	IP        string
	SessionID string
}

type Service interface {
	CanShow(ctx context.Context, adID snowflake.ID) (ShowDecision, error)
	ChargeImpression(ctx context.Context, adID snowflake.ID) (ChargeResult, error)
	ChargeClick(ctx context.Context, req ClickRequest) (ChargeResult, error)
	Resume(ctx context.Context, adID snowflake.ID) (ResumeResult, error)
}
