// Package pacing computes inter-attempt delays and watches for stalls.
//
// The delay model: a uniform draw from the device-class base window, scaled
// by a failure multiplier derived from trailing consecutive failures and by
// an adaptive multiplier the controller owns. The adaptive state lives in
// explicit fields updated through Observe, never in globals, so the delay
// computation stays a pure function of (history, device, rng draw).
package pacing

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/config"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/logging"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

const (
	failureStep    = 0.5
	failureCeiling = 3.0
	adaptiveStep   = 0.2
	adaptiveDecay  = 0.1
	adaptiveFloor  = 1.0
	adaptiveCap    = 2.0
)

// StallSignal is the ladder rung a stall run has reached.
type StallSignal int

const (
	// StallNone: keep executing.
	StallNone StallSignal = iota
	// StallRecheck: force an out-of-band progress re-check to rule out
	// reporting lag before trusting the zero deltas.
	StallRecheck
	// StallExtraWait: add a fixed extra wait on top of the normal delay.
	StallExtraWait
	// StallHardLimit: the run is real; the orchestrator should recover.
	StallHardLimit
)

// Controller owns the adaptive multiplier and the RNG for delay draws.
type Controller struct {
	cfg      config.PacingConfig
	rng      *rand.Rand
	adaptive float64
	logger   *zap.Logger
}

// NewController builds a controller. A fixed seed makes delay draws
// reproducible in tests.
func NewController(cfg config.PacingConfig, seed int64) *Controller {
	return &Controller{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		adaptive: adaptiveFloor,
		logger:   logging.Get(logging.CategoryPacing),
	}
}

// Observe folds one attempt outcome into the adaptive multiplier: failures
// push it up toward the cap, gains walk it back down to the floor.
func (c *Controller) Observe(outcome types.Outcome) {
	switch outcome {
	case types.OutcomeFailed:
		c.adaptive += adaptiveStep
		if c.adaptive > adaptiveCap {
			c.adaptive = adaptiveCap
		}
	case types.OutcomeGained:
		if c.adaptive > adaptiveFloor {
			c.adaptive -= adaptiveDecay
			if c.adaptive < adaptiveFloor {
				c.adaptive = adaptiveFloor
			}
		}
	}
}

// AdaptiveMultiplier exposes the current adaptive state.
func (c *Controller) AdaptiveMultiplier() float64 { return c.adaptive }

// NextDelay draws the delay before the next attempt. The result always falls
// within [base.min, base.max * 3.0 * 2.0] for the device class.
func (c *Controller) NextDelay(history []types.AttemptRecord, device types.DeviceClass) time.Duration {
	minSec, maxSec := c.baseWindow(device)

	failures := ConsecutiveFailures(history)
	failureMult := 1.0 + failureStep*float64(failures)
	if failureMult > failureCeiling {
		failureMult = failureCeiling
	}

	base := float64(minSec)
	if maxSec > minSec {
		base += c.rng.Float64() * float64(maxSec-minSec)
	}

	delay := time.Duration(base*failureMult*c.adaptive) * time.Second
	c.logger.Debug("delay computed",
		zap.Duration("delay", delay),
		zap.Int("consecutive_failures", failures),
		zap.Float64("failure_mult", failureMult),
		zap.Float64("adaptive_mult", c.adaptive))
	return delay
}

func (c *Controller) baseWindow(device types.DeviceClass) (int, int) {
	if device == types.DeviceMobile {
		return c.cfg.MobileDelayMinSec, c.cfg.MobileDelayMaxSec
	}
	return c.cfg.DesktopDelayMinSec, c.cfg.DesktopDelayMaxSec
}

// ExtraWait is the fixed penalty applied at the StallExtraWait rung.
func (c *Controller) ExtraWait() time.Duration {
	return time.Duration(c.cfg.StallExtraSec) * time.Second
}

// Stalled reports whether the history has hit the device-class hard limit.
func (c *Controller) Stalled(history []types.AttemptRecord, device types.DeviceClass) bool {
	return c.Signal(history, device) == StallHardLimit
}

// Signal maps the current stall count onto the ladder. Recheck and extra
// wait fire exactly once, on the attempt that crosses their threshold; the
// hard limit holds from its threshold onward. Desktop counters historically
// lag, so its hard limit sits higher than mobile's.
func (c *Controller) Signal(history []types.AttemptRecord, device types.DeviceClass) StallSignal {
	count := StallCount(history)

	hardLimit := c.cfg.StallHardLimitDesktop
	if device == types.DeviceMobile {
		hardLimit = c.cfg.StallHardLimitMobile
	}

	switch {
	case count >= hardLimit:
		return StallHardLimit
	case count == c.cfg.StallExtraWaitAt:
		return StallExtraWait
	case count == c.cfg.StallRecheckAt:
		return StallRecheck
	default:
		return StallNone
	}
}

// StallCount is the trailing run of NoChange records. Any Gained (or Failed)
// record ends the run, so the counter drops to zero immediately after a gain
// whatever its prior value.
func StallCount(history []types.AttemptRecord) int {
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Outcome != types.OutcomeNoChange {
			break
		}
		count++
	}
	return count
}

// ConsecutiveFailures is the trailing run of Failed records.
func ConsecutiveFailures(history []types.AttemptRecord) int {
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Outcome != types.OutcomeFailed {
			break
		}
		count++
	}
	return count
}
