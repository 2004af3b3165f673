package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/logging"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/pacing"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/queries"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

// Recoverer is the slice of the driver the orchestrator touches directly
// for recovery actions. browser.Driver satisfies it.
type Recoverer interface {
	Reload(ctx context.Context) error
	LatestSurface(ctx context.Context) error
	IsClosed() bool
}

// Orchestrator composes planner, tracker, pacer and executor into one
// campaign run. It owns the append-only attempt history and the stall
// bookkeeping; everything runs on the caller's goroutine.
type Orchestrator struct {
	planner  Planner
	tracker  Tracker
	pacer    Pacer
	executor Attempter
	driver   Recoverer
	opts     Options
	logger   *zap.Logger

	id      string
	state   State
	history []types.AttemptRecord
	// stallFloor marks where the current stall window starts; a recovery
	// action moves it forward so one stall run triggers one recovery.
	stallFloor int

	queue       []queries.Query
	earned      int
	lastDeficit int
	extraUsed   int
	batchesUsed int
	recoveries  int
	startedAt   time.Time
	deadline    time.Time
}

// New builds an orchestrator over already-constructed collaborators.
func New(planner Planner, tracker Tracker, pacer Pacer, executor Attempter, driver Recoverer, opts Options) *Orchestrator {
	opts.fillDefaults()
	return &Orchestrator{
		planner:  planner,
		tracker:  tracker,
		pacer:    pacer,
		executor: executor,
		driver:   driver,
		opts:     opts,
		state:    StateInit,
		id:       uuid.NewString(),
		logger: logging.Get(logging.CategoryCampaign).With(
			zap.String("account", opts.Account),
			zap.String("device", string(opts.Device))),
	}
}

// History returns the attempt history so far. Read-only for callers.
func (o *Orchestrator) History() []types.AttemptRecord { return o.history }

// Run drives the campaign to a terminal state. The result is always
// populated; the error is non-nil only when the driver session became
// unusable (ErrDriverGone), which the caller handles by re-provisioning.
func (o *Orchestrator) Run(ctx context.Context) (types.CampaignResult, error) {
	o.startedAt = time.Now()
	o.deadline = o.startedAt.Add(o.opts.WallClockBudget)

	// PLANNING: confirm there is a deficit to work before spending any
	// interaction budget.
	o.transition(StatePlanning)
	if _, err := o.tracker.Refresh(ctx); err != nil {
		o.logger.Error("initial progress read failed", zap.Error(err))
		return o.finish(types.StatusAborted), nil
	}
	o.lastDeficit = o.tracker.Deficit(o.opts.Device)
	if o.lastDeficit == 0 {
		o.logger.Info("quota already satisfied, nothing to do")
		return o.finish(types.StatusCompleted), nil
	}

	target := o.lastDeficit/o.opts.PointsPerQuery + 5
	plan, err := o.planner.Plan(ctx, target)
	if err != nil {
		o.logger.Error("query planning failed", zap.Error(err))
		return o.finish(types.StatusAborted), nil
	}
	o.queue = plan
	o.logger.Info("campaign planned",
		zap.String("campaign", o.id),
		zap.Int("deficit", o.lastDeficit),
		zap.Int("queries", len(plan)),
		zap.Duration("budget", o.opts.WallClockBudget))

	o.transition(StateExecuting)
	for {
		// The wall-clock budget is checked once per iteration; an in-flight
		// attempt always completes first, bounding overrun by one attempt.
		if time.Now().After(o.deadline) {
			o.logger.Warn("wall-clock budget elapsed", zap.Int("earned", o.earned))
			return o.finish(types.StatusTimedOut), nil
		}
		if ctx.Err() != nil {
			return o.finish(types.StatusAborted), nil
		}

		if len(o.queue) == 0 {
			if res, err := o.refillSupplementary(ctx); res != nil {
				return *res, err
			}
			continue
		}

		if o.state == StateExtraSearching {
			if o.extraUsed >= o.opts.extraBudget() {
				o.logger.Info("supplementary attempt budget exhausted",
					zap.Int("extra_attempts", o.extraUsed))
				return o.finish(types.StatusPartiallyCompleted), nil
			}
			o.extraUsed++
		}

		q := o.queue[0]
		o.queue = o.queue[1:]

		if res, err := o.runAttempt(ctx, q); res != nil {
			return *res, err
		}

		if o.lastDeficit == 0 && o.verifyComplete(ctx) {
			return o.finish(types.StatusCompleted), nil
		}

		if res, err := o.applyStallLadder(ctx); res != nil {
			return *res, err
		}

		delay := o.pacer.NextDelay(o.history, o.opts.Device)
		if remaining := time.Until(o.deadline); delay > remaining {
			delay = remaining + time.Second
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return o.finish(types.StatusAborted), nil
		}
	}
}

// runAttempt executes one query, measures its delta and appends the record.
// A non-nil result means the campaign must end now.
func (o *Orchestrator) runAttempt(ctx context.Context, q queries.Query) (*types.CampaignResult, error) {
	prevDeficit := o.lastDeficit

	rec, err := o.executor.Attempt(ctx, q)
	if err != nil {
		if errors.Is(err, ErrDriverGone) {
			o.append(rec)
			o.logger.Error("fatal driver failure", zap.String("query", q.Text), zap.Error(err))
			return o.recoverOnce(ctx)
		}
		if ctx.Err() != nil {
			o.append(rec)
			if time.Now().After(o.deadline) {
				return resultPtr(o.finish(types.StatusTimedOut)), nil
			}
			return resultPtr(o.finish(types.StatusAborted)), nil
		}
		rec.Outcome = types.OutcomeFailed
		o.logger.Warn("attempt failed", zap.String("query", q.Text), zap.Error(err))
		o.append(rec)
		return nil, nil
	}

	delta, merr := o.measure(ctx, prevDeficit)
	switch {
	case merr != nil:
		// Stale progress data is tolerated for one iteration inside the
		// tracker; past that the attempt counts as a transient failure.
		o.logger.Warn("progress unverifiable past cache tolerance", zap.Error(merr))
		rec.Outcome = types.OutcomeFailed
	case delta > 0:
		rec.Outcome = types.OutcomeGained
		rec.DeltaPoints = delta
		o.earned += delta
	default:
		rec.Outcome = types.OutcomeNoChange
	}
	o.append(rec)
	return nil, nil
}

// measure refreshes the tracker and returns how much the deficit shrank. A
// snapshot reporting a larger deficit than before is a data-source anomaly:
// it is logged and flattened to zero, never negative progress.
func (o *Orchestrator) measure(ctx context.Context, prevDeficit int) (int, error) {
	if _, err := o.tracker.Refresh(ctx); err != nil {
		return 0, err
	}
	current := o.tracker.Deficit(o.opts.Device)
	delta := prevDeficit - current
	if delta < 0 {
		o.logger.Warn("progress source anomaly: deficit grew, treating as no change",
			zap.Int("previous", prevDeficit), zap.Int("reported", current))
		return 0, nil
	}
	o.lastDeficit = current
	return delta, nil
}

// append records the attempt, feeds the pacer and logs the transition the
// telemetry consumers key off.
func (o *Orchestrator) append(rec types.AttemptRecord) {
	o.history = append(o.history, rec)
	o.pacer.Observe(rec.Outcome)
	o.logger.Info("attempt recorded",
		zap.String("query", rec.Query),
		zap.String("outcome", string(rec.Outcome)),
		zap.Int("delta", rec.DeltaPoints),
		zap.Int("stall", pacing.StallCount(o.history[o.stallFloor:])),
		zap.Int("deficit", o.lastDeficit))
}

// verifyComplete guards against progress sources transiently reporting a
// zero deficit before settling: the zero must hold across a delayed second
// read before the campaign completes.
func (o *Orchestrator) verifyComplete(ctx context.Context) bool {
	if err := sleepCtx(ctx, o.opts.CompletionRecheck); err != nil {
		return false
	}
	if _, err := o.tracker.Refresh(ctx); err != nil {
		o.logger.Warn("completion re-check failed, continuing", zap.Error(err))
		return false
	}
	if o.tracker.Stale() {
		o.logger.Warn("completion re-check served cached data, not trusting it")
		return false
	}
	current := o.tracker.Deficit(o.opts.Device)
	if current != 0 {
		o.logger.Info("completion re-check contradicted first read",
			zap.Int("deficit", current))
		o.lastDeficit = current
		return false
	}
	return true
}

// applyStallLadder reacts to the current stall signal. A non-nil result
// means the campaign must end (recovery failed irrecoverably).
func (o *Orchestrator) applyStallLadder(ctx context.Context) (*types.CampaignResult, error) {
	window := o.history[o.stallFloor:]
	switch o.pacer.Signal(window, o.opts.Device) {
	case pacing.StallRecheck:
		o.forcedRecheck(ctx)
	case pacing.StallExtraWait:
		wait := o.pacer.ExtraWait()
		o.logger.Info("stall persists, extra wait", zap.Duration("wait", wait))
		if err := sleepCtx(ctx, wait); err != nil {
			return resultPtr(o.finish(types.StatusAborted)), nil
		}
	case pacing.StallHardLimit:
		o.logger.Warn("stall hard limit reached",
			zap.Int("stall", pacing.StallCount(window)))
		return o.recoverOnce(ctx)
	}
	return nil, nil
}

// forcedRecheck rules out counter reporting lag: it refreshes out of band
// and, when points did land late, upgrades the latest record so the stall
// counter resets.
func (o *Orchestrator) forcedRecheck(ctx context.Context) {
	prev := o.lastDeficit
	delta, err := o.measure(ctx, prev)
	if err != nil {
		o.logger.Warn("forced progress re-check failed", zap.Error(err))
		return
	}
	if delta > 0 && len(o.history) > 0 {
		o.logger.Info("reporting lag resolved on forced re-check", zap.Int("delta", delta))
		last := &o.history[len(o.history)-1]
		last.Outcome = types.OutcomeGained
		last.DeltaPoints += delta
		o.earned += delta
		o.pacer.Observe(types.OutcomeGained)
	}
}

// recoverOnce runs a single recovery action, escalating per recovery:
// reload first, then an extended wait, then a fresh surface. An action that
// itself fails irrecoverably aborts the campaign.
func (o *Orchestrator) recoverOnce(ctx context.Context) (*types.CampaignResult, error) {
	o.transition(StateRecovering)

	if o.driver.IsClosed() {
		o.logger.Error("driver session closed, aborting")
		return resultPtr(o.finish(types.StatusAborted)), fmt.Errorf("%w: session closed during recovery", ErrDriverGone)
	}

	var err error
	switch o.recoveries {
	case 0:
		o.logger.Info("recovery: reloading page")
		err = o.driver.Reload(ctx)
	case 1:
		wait := 2 * o.pacer.ExtraWait()
		o.logger.Info("recovery: extended wait", zap.Duration("wait", wait))
		err = sleepCtx(ctx, wait)
	default:
		o.logger.Info("recovery: acquiring fresh surface")
		err = o.driver.LatestSurface(ctx)
	}
	o.recoveries++

	if err != nil {
		if ctx.Err() != nil {
			return resultPtr(o.finish(types.StatusAborted)), nil
		}
		if Classify(err) == FailureFatal || o.driver.IsClosed() {
			o.logger.Error("recovery action failed irrecoverably", zap.Error(err))
			return resultPtr(o.finish(types.StatusAborted)), fmt.Errorf("%w: %w", ErrDriverGone, err)
		}
		o.logger.Warn("recovery action failed, continuing", zap.Error(err))
	}

	// One stall run triggers one recovery; start counting afresh.
	o.stallFloor = len(o.history)
	o.transition(StateExecuting)
	return nil, nil
}

// refillSupplementary draws the next supplementary batch when the primary
// sequence is exhausted with deficit outstanding. A non-nil result means the
// campaign should finish instead.
func (o *Orchestrator) refillSupplementary(ctx context.Context) (*types.CampaignResult, error) {
	if o.lastDeficit == 0 {
		if o.verifyComplete(ctx) {
			return resultPtr(o.finish(types.StatusCompleted)), nil
		}
		// Deficit reappeared on the re-check; fall through and keep searching.
	}

	if o.state != StateExtraSearching {
		o.transition(StateExtraSearching)
	}
	if o.extraUsed >= o.opts.extraBudget() || o.batchesUsed >= o.opts.MaxSupplementBatches {
		o.logger.Info("supplementary budget exhausted",
			zap.Int("extra_attempts", o.extraUsed),
			zap.Int("batches", o.batchesUsed))
		return resultPtr(o.finish(types.StatusPartiallyCompleted)), nil
	}

	n := o.opts.extraBudget() - o.extraUsed
	if n > 15 {
		n = 15
	}
	batch, err := o.planner.Supplement(ctx, n)
	if err != nil {
		o.logger.Warn("supplementary planning failed", zap.Error(err))
		return resultPtr(o.finish(types.StatusPartiallyCompleted)), nil
	}
	o.batchesUsed++
	o.queue = batch
	o.logger.Info("supplementary batch queued",
		zap.Int("queries", len(batch)),
		zap.Int("batch", o.batchesUsed))
	return nil, nil
}

func resultPtr(r types.CampaignResult) *types.CampaignResult { return &r }

func (o *Orchestrator) transition(next State) {
	if o.state == next {
		return
	}
	o.logger.Info("state transition",
		zap.String("from", string(o.state)),
		zap.String("to", string(next)))
	o.state = next
}

// finish freezes the terminal result. Deficit comes from the last verified
// reading so an aborted campaign still reports what it knew.
func (o *Orchestrator) finish(status types.Status) types.CampaignResult {
	o.transition(StateComplete)
	deficit := o.lastDeficit
	if status == types.StatusCompleted {
		deficit = 0
	}
	res := types.CampaignResult{
		CampaignID:       o.id,
		Account:          o.opts.Account,
		Device:           o.opts.Device,
		EarnedPoints:     o.earned,
		DeficitRemaining: deficit,
		Status:           status,
		Attempts:         len(o.history),
		StartedAt:        o.startedAt,
		FinishedAt:       time.Now(),
	}
	o.logger.Info("campaign finished",
		zap.String("campaign", o.id),
		zap.String("status", string(status)),
		zap.Int("earned", res.EarnedPoints),
		zap.Int("deficit_remaining", res.DeficitRemaining),
		zap.Int("attempts", res.Attempts),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res
}
