// Package campaign implements the quota-driven interaction campaign engine:
// a bounded state machine that works one device-class quota to completion,
// partial completion, timeout, or abort. The orchestrator owns the attempt
// history and never raises past its boundary except for fatal driver loss.
package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/pacing"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/queries"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

// State is the orchestrator's current position in the machine.
type State string

const (
	StateInit           State = "init"
	StatePlanning       State = "planning"
	StateExecuting      State = "executing"
	StateRecovering     State = "recovering"
	StateExtraSearching State = "extra_searching"
	StateComplete       State = "complete"
)

// ErrDriverGone is the one error the orchestrator propagates: the browser
// session is unusable and the caller must re-provision before retrying.
var ErrDriverGone = errors.New("campaign: driver session unusable")

// Planner is the query planning capability the orchestrator consumes.
type Planner interface {
	Plan(ctx context.Context, target int) ([]queries.Query, error)
	Supplement(ctx context.Context, n int) ([]queries.Query, error)
}

// Tracker reads quota counters and computes the outstanding deficit.
type Tracker interface {
	Refresh(ctx context.Context) ([]types.ProgressSnapshot, error)
	Deficit(device types.DeviceClass) int
	Stale() bool
}

// Pacer computes inter-attempt delays and stall signals.
type Pacer interface {
	Observe(outcome types.Outcome)
	NextDelay(history []types.AttemptRecord, device types.DeviceClass) time.Duration
	Signal(history []types.AttemptRecord, device types.DeviceClass) pacing.StallSignal
	ExtraWait() time.Duration
}

// Attempter executes one query against the driver. The returned record's
// outcome is provisional NoChange on success; the orchestrator upgrades it
// to Gained once the delta is measured.
type Attempter interface {
	Attempt(ctx context.Context, q queries.Query) (types.AttemptRecord, error)
}

// Options bounds one campaign run. Zero values fall back to the defaults
// the engine was tuned with.
type Options struct {
	Account string
	Device  types.DeviceClass

	WallClockBudget      time.Duration // default 25m
	CompletionRecheck    time.Duration // delay before the second completion check, default 10s
	ExtraAttemptsMobile  int           // default 20
	ExtraAttemptsDesktop int           // default 50
	MaxSupplementBatches int           // hard cap on supplementary planner calls, default 3
	// PointsPerQuery sizes the initial plan from the observed deficit.
	PointsPerQuery int // default 3
}

func (o *Options) fillDefaults() {
	if o.WallClockBudget <= 0 {
		o.WallClockBudget = 25 * time.Minute
	}
	if o.CompletionRecheck <= 0 {
		o.CompletionRecheck = 10 * time.Second
	}
	if o.ExtraAttemptsMobile <= 0 {
		o.ExtraAttemptsMobile = 20
	}
	if o.ExtraAttemptsDesktop <= 0 {
		o.ExtraAttemptsDesktop = 50
	}
	if o.MaxSupplementBatches <= 0 {
		o.MaxSupplementBatches = 3
	}
	if o.PointsPerQuery <= 0 {
		o.PointsPerQuery = 3
	}
}

// extraBudget is the supplementary attempt cap for the device class.
// Desktop quotas run larger, so it gets the wider margin.
func (o *Options) extraBudget() int {
	if o.Device == types.DeviceMobile {
		return o.ExtraAttemptsMobile
	}
	return o.ExtraAttemptsDesktop
}
