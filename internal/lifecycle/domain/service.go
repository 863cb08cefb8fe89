// Package domain defines the periodic state-machine driver for campaigns.
// All sweeps are idempotent and safe to re-run or overlap with serving.
package domain

import "context"

type SweepResult struct {
	Expired  int64 `json:"expired,omitempty"`
	Reverted int64 `json:"reverted,omitempty"`
	Promoted int64 `json:"promoted,omitempty"`
	Reset    int64 `json:"reset,omitempty"`
	Reopened int64 `json:"reopened,omitempty"`
}

type Service interface {
	// RunStatusSweep reverts not-yet-started actives, expires ended
	// campaigns, and promotes paid campaigns whose window has opened.
	RunStatusSweep(ctx context.Context) (SweepResult, error)

	// RunDailyReset zeroes stale daily spend counters and lifts budget pauses.
	RunDailyReset(ctx context.Context) (SweepResult, error)

	// RunExpirySweep unconditionally expires every campaign past its end date.
	RunExpirySweep(ctx context.Context) (SweepResult, error)
}
