// Package progress reads quota counters from the rewards progress source and
// turns them into per-device deficits. The tracker fails open: a source
// outage serves the cached reading once before errors start surfacing.
package progress

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/logging"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

// Source fetches the raw counters. May time out; the tracker handles that.
type Source interface {
	FetchCounters(ctx context.Context) (map[types.CounterKind]types.ProgressSnapshot, error)
}

// Tracker caches the latest snapshots and computes deficits per device
// class. It is owned by a single campaign goroutine; no locking.
type Tracker struct {
	source Source
	logger *zap.Logger

	cache      map[types.CounterKind]types.ProgressSnapshot
	failStreak int
}

// NewTracker wraps a source.
func NewTracker(source Source) *Tracker {
	return &Tracker{
		source: source,
		logger: logging.Get(logging.CategoryProgress),
	}
}

// Refresh fetches fresh counters. On the first consecutive failure it logs a
// warning and serves the cached snapshots; from the second consecutive
// failure on, the error surfaces so the orchestrator can treat the attempt
// as transient. Reads never mutate the source, so back-to-back refreshes
// with no intervening interaction report the same deficit.
func (t *Tracker) Refresh(ctx context.Context) ([]types.ProgressSnapshot, error) {
	counters, err := t.source.FetchCounters(ctx)
	if err != nil {
		t.failStreak++
		if t.cache != nil && t.failStreak <= 1 {
			t.logger.Warn("progress source unreachable, serving cached snapshot",
				zap.Error(err))
			return t.snapshots(), nil
		}
		return nil, fmt.Errorf("progress fetch: %w", err)
	}
	t.failStreak = 0
	t.cache = counters
	return t.snapshots(), nil
}

// Stale reports whether the last refresh served cached data.
func (t *Tracker) Stale() bool { return t.failStreak > 0 }

// Deficit returns the outstanding points for a device class from the cached
// snapshots: the mobile counter alone, or primary plus secondary browser for
// desktop. Unknown counters count as zero deficit.
func (t *Tracker) Deficit(device types.DeviceClass) int {
	if t.cache == nil {
		return 0
	}
	switch device {
	case types.DeviceMobile:
		return t.cache[types.CounterMobile].Deficit()
	case types.DeviceDesktop:
		return t.cache[types.CounterDesktop].Deficit() + t.cache[types.CounterSecondary].Deficit()
	default:
		return 0
	}
}

func (t *Tracker) snapshots() []types.ProgressSnapshot {
	order := []types.CounterKind{types.CounterMobile, types.CounterDesktop, types.CounterSecondary}
	out := make([]types.ProgressSnapshot, 0, len(order))
	for _, k := range order {
		if s, ok := t.cache[k]; ok {
			out = append(out, s)
		}
	}
	return out
}

// staticSnapshot is a convenience for sources constructing snapshots.
func staticSnapshot(kind types.CounterKind, earned, max int) types.ProgressSnapshot {
	return types.ProgressSnapshot{
		Counter:   kind,
		Earned:    earned,
		Max:       max,
		FetchedAt: time.Now(),
	}
}
