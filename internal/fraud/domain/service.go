// Package domain defines the click-fraud scoring contract. Scoring is a
// read-only decision: it never charges and never blocks a page render.
package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Mode gates the whole detector. Disabled mode accepts every click and exists
// for dev and trusted test traffic; the two modes are distinct types rather
// than an ad hoc string comparison so misconfiguration fails at startup.
type Mode string

const (
	ModeDisabled  Mode = "disabled"
	ModeEnforcing Mode = "enforcing"
)

var ErrInvalidMode = errors.New("invalid_fraud_mode")

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeDisabled:
		return ModeDisabled, nil
	case ModeEnforcing, "":
		return ModeEnforcing, nil
	}
	return "", ErrInvalidMode
}

// Indicator names the individual click-pattern signals.
const (
	IndicatorHourlyLimit     = "hourly_limit_exceeded"
	IndicatorRapidDuplicate  = "rapid_duplicate"
	IndicatorIPVelocity      = "ip_velocity"
	IndicatorSessionVelocity = "session_velocity"
	IndicatorDistributedIPs  = "distributed_ips"
	IndicatorClickStorm      = "click_storm"
)

type ScoreRequest struct {
	AdID snowflake.ID
	IP   string

	// SessionID is passed explicitly by the serving layer; when the caller
	// has no session the session-velocity signal is skipped.
	SessionID string
}

type Score struct {
	IsFraud       bool     `json:"is_fraud"`
	IsDuplicate   bool     `json:"is_duplicate"`
	FraudScore    int      `json:"fraud_score"`
	Indicators    []string `json:"indicators"`
	ClickCount    int64    `json:"click_count"`
	ShouldSuspend bool     `json:"should_suspend"`
}

type Service interface {
	Score(ctx context.Context, req ScoreRequest) (Score, error)

	// MarkClickCharged records a successfully charged (ad, IP) pair so the
	// rapid-duplicate window can reject the next click without a log scan.
	MarkClickCharged(ctx context.Context, adID snowflake.ID, ip string)

	// AutoSuspend takes the ad out of rotation independent of billing.
	AutoSuspend(ctx context.Context, adID snowflake.ID, reason string) error
}
