package campaign

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/browser"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/logging"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/queries"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

const (
	searchHome     = "https://www.bing.com"
	searchBox      = "#sb_form_q"
	searchSubmit   = "#search_icon, #sb_form_go"
	resultsPane    = "#b_results"
	resultsTimeout = 15 * time.Second
	// interTermPause spaces the follow-up terms of one query. Full pacing
	// between queries is the controller's job, not ours.
	interTermPause = 4 * time.Second
)

// Executor runs one query attempt against the driver, absorbing transient
// trouble with a bounded local retry budget. Side effects are strictly local
// to the attempt: the only thing that escapes is the returned record.
type Executor struct {
	driver  browser.Driver
	device  types.DeviceClass
	retries int
	logger  *zap.Logger
}

// NewExecutor builds an executor. retries bounds local retries per query;
// zero means the tuned default of 5.
func NewExecutor(driver browser.Driver, device types.DeviceClass, retries int) *Executor {
	if retries <= 0 {
		retries = 5
	}
	return &Executor{
		driver:  driver,
		device:  device,
		retries: retries,
		logger:  logging.Get(logging.CategoryCampaign).Named("executor"),
	}
}

// Attempt submits every term of the query. On success the record carries a
// provisional NoChange outcome for the orchestrator to upgrade once the
// delta is measured. The returned error is non-nil only when the attempt
// failed outright; a fatal driver loss is wrapped in ErrDriverGone.
func (e *Executor) Attempt(ctx context.Context, q queries.Query) (types.AttemptRecord, error) {
	rec := types.AttemptRecord{
		Query:     q.Text,
		Timestamp: time.Now(),
		Outcome:   types.OutcomeNoChange,
	}

	var lastErr error
	for try := 0; try < e.retries; try++ {
		if err := ctx.Err(); err != nil {
			rec.Outcome = types.OutcomeFailed
			return rec, err
		}

		err := e.runTerms(ctx, q)
		if err == nil {
			return rec, nil
		}
		lastErr = err

		switch kind := Classify(err); kind {
		case FailureTransientUI:
			e.logger.Debug("transient UI failure, retrying",
				zap.String("query", q.Text), zap.Int("try", try+1), zap.Error(err))
			continue
		case FailureSessionCrashed:
			e.logger.Warn("surface lost, acquiring a fresh one",
				zap.String("query", q.Text), zap.Error(err))
			if serr := e.driver.LatestSurface(ctx); serr != nil {
				if Classify(serr) == FailureFatal {
					rec.Outcome = types.OutcomeFailed
					return rec, fmt.Errorf("%w: %w", ErrDriverGone, serr)
				}
				lastErr = serr
			}
			continue
		case FailureUnverifiable:
			// The interaction itself may well have landed; report NoChange
			// rather than Failed and let the next progress reading decide.
			e.logger.Warn("attempt unverifiable, counting as no change",
				zap.String("query", q.Text), zap.Error(err))
			return rec, nil
		case FailureFatal:
			rec.Outcome = types.OutcomeFailed
			return rec, fmt.Errorf("%w: %w", ErrDriverGone, err)
		default:
			e.logger.Debug("unclassified failure, retrying",
				zap.String("query", q.Text), zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
	}

	rec.Outcome = types.OutcomeFailed
	return rec, fmt.Errorf("attempt exhausted %d retries: %w", e.retries, lastErr)
}

// runTerms drives the browser through the query's flattened terms. The
// first term navigates from the search home and types; follow-ups reuse the
// results page's search box.
func (e *Executor) runTerms(ctx context.Context, q queries.Query) error {
	terms := queries.FlattenFor(q, e.device)
	for i, term := range terms {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runSearch(ctx, term, i == 0); err != nil {
			return fmt.Errorf("term %q: %w", term, err)
		}
		if i < len(terms)-1 {
			if err := sleepCtx(ctx, interTermPause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) runSearch(ctx context.Context, term string, first bool) error {
	if first {
		if err := e.driver.Navigate(ctx, searchHome); err != nil {
			return err
		}
	}
	if err := e.driver.WaitFor(ctx, searchBox, 0); err != nil {
		// Some interstitials drop the box; a direct query URL still works.
		return e.driver.Navigate(ctx, searchHome+"/search?q="+url.QueryEscape(term))
	}
	if err := e.driver.Type(ctx, searchBox, term); err != nil {
		return err
	}
	if err := e.driver.Click(ctx, searchSubmit); err != nil {
		return err
	}
	return e.driver.WaitFor(ctx, resultsPane, resultsTimeout)
}

// sleepCtx waits d or until the context ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
