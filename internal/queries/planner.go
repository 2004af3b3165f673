// Package queries plans the de-duplicated, shuffled query sequence a
// campaign works through. Sources are weighted and independently failable;
// losing one shifts its share onto the next tier instead of failing the plan.
package queries

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/logging"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

// Query is one topic plus optional related follow-up terms. Ordering within
// a query matters (topic first); ordering across queries is randomized once
// per campaign.
type Query struct {
	Text      string
	FollowUps []string
}

// WeightedSource yields candidate queries and declares its approximate share
// of the final mix. Fetch failures are non-fatal to planning.
type WeightedSource interface {
	Name() string
	Weight() float64
	Fetch(ctx context.Context) ([]Query, error)
}

// ErrExhausted is returned when no source can produce a query that has not
// already been planned this campaign.
var ErrExhausted = errors.New("queries: all sources exhausted")

// Planner owns the source list and remembers every text it has issued so a
// supplementary batch never repeats a consumed query.
type Planner struct {
	sources []WeightedSource
	rng     *rand.Rand
	logger  *zap.Logger

	used    map[string]struct{}
	reserve []Query // fetched but not yet issued, kept for supplements
}

// NewPlanner builds a planner over the given sources. The seed drives the
// one-time shuffle; tests pass a fixed seed for determinism.
func NewPlanner(sources []WeightedSource, seed int64) *Planner {
	return &Planner{
		sources: sources,
		rng:     rand.New(rand.NewSource(seed)),
		logger:  logging.Get(logging.CategoryQueries),
		used:    make(map[string]struct{}),
	}
}

// Plan fetches from every source, takes each source's weighted share of the
// target count, de-duplicates by exact text and shuffles once. A failing
// source is skipped and its share redistributed to the next tier. Plan only
// fails when every source fails and nothing was collected.
func (p *Planner) Plan(ctx context.Context, target int) ([]Query, error) {
	if target <= 0 {
		target = 30
	}

	total := 0.0
	for _, s := range p.sources {
		total += s.Weight()
	}
	if total <= 0 {
		return nil, fmt.Errorf("queries: no weighted sources configured")
	}

	var picked []Query
	carry := 0 // share inherited from failed earlier tiers
	failures := 0

	for _, src := range p.sources {
		want := int(float64(target)*src.Weight()/total+0.5) + carry
		carry = 0
		if want == 0 {
			want = 1
		}

		fetched, err := src.Fetch(ctx)
		if err != nil {
			failures++
			carry = want
			p.logger.Warn("source failed, redistributing share",
				zap.String("source", src.Name()),
				zap.Int("share", want),
				zap.Error(err))
			continue
		}

		taken := 0
		for _, q := range fetched {
			if q.Text == "" {
				continue
			}
			if _, dup := p.used[q.Text]; dup {
				continue
			}
			p.used[q.Text] = struct{}{}
			if taken < want {
				picked = append(picked, q)
				taken++
			} else {
				p.reserve = append(p.reserve, q)
			}
		}
		if taken < want {
			// Source came up short; let the next tier absorb the rest.
			carry = want - taken
		}
		p.logger.Debug("source contributed",
			zap.String("source", src.Name()),
			zap.Int("taken", taken),
			zap.Int("reserved", len(fetched)-taken))
	}

	if len(picked) == 0 {
		if failures == len(p.sources) {
			return nil, fmt.Errorf("queries: all %d sources failed", failures)
		}
		return nil, ErrExhausted
	}

	p.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	p.logger.Info("query plan built",
		zap.Int("queries", len(picked)),
		zap.Int("reserve", len(p.reserve)),
		zap.Int("failed_sources", failures))
	return picked, nil
}

// Supplement returns up to n fresh queries for the extra-search phase. It
// drains the reserve first and only re-fetches sources when the reserve runs
// dry. Texts already issued this campaign are never reused.
func (p *Planner) Supplement(ctx context.Context, n int) ([]Query, error) {
	if n <= 0 {
		n = 10
	}

	var batch []Query
	for len(batch) < n && len(p.reserve) > 0 {
		batch = append(batch, p.reserve[0])
		p.reserve = p.reserve[1:]
	}

	if len(batch) < n {
		for _, src := range p.sources {
			if len(batch) >= n {
				break
			}
			fetched, err := src.Fetch(ctx)
			if err != nil {
				p.logger.Warn("supplement fetch failed",
					zap.String("source", src.Name()), zap.Error(err))
				continue
			}
			for _, q := range fetched {
				if q.Text == "" {
					continue
				}
				if _, dup := p.used[q.Text]; dup {
					continue
				}
				p.used[q.Text] = struct{}{}
				if len(batch) < n {
					batch = append(batch, q)
				} else {
					p.reserve = append(p.reserve, q)
				}
			}
		}
	}

	if len(batch) == 0 {
		return nil, ErrExhausted
	}

	p.rng.Shuffle(len(batch), func(i, j int) {
		batch[i], batch[j] = batch[j], batch[i]
	})
	p.logger.Info("supplementary batch drawn", zap.Int("queries", len(batch)))
	return batch, nil
}

// FlattenFor expands a query into the terms actually submitted. Desktop runs
// the topic plus its follow-ups; mobile submits the topic only to keep
// request volume per query down. The density divergence between device
// classes is deliberate.
func FlattenFor(q Query, device types.DeviceClass) []string {
	if device == types.DeviceMobile {
		return []string{q.Text}
	}
	terms := make([]string, 0, 1+len(q.FollowUps))
	terms = append(terms, q.Text)
	terms = append(terms, q.FollowUps...)
	return terms
}
