package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/queries"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

// --- mockPlanner ---

type mockPlanner struct {
	PlanFunc       func(ctx context.Context, target int) ([]queries.Query, error)
	SupplementFunc func(ctx context.Context, n int) ([]queries.Query, error)

	PlanCalls       int
	SupplementCalls int
}

func (m *mockPlanner) Plan(ctx context.Context, target int) ([]queries.Query, error) {
	m.PlanCalls++
	if m.PlanFunc != nil {
		return m.PlanFunc(ctx, target)
	}
	return nil, queries.ErrExhausted
}

func (m *mockPlanner) Supplement(ctx context.Context, n int) ([]queries.Query, error) {
	m.SupplementCalls++
	if m.SupplementFunc != nil {
		return m.SupplementFunc(ctx, n)
	}
	return nil, queries.ErrExhausted
}

// --- mockTracker ---

// mockTracker serves a scripted deficit sequence: each Refresh consumes the
// next value, the last one sticks. Errors interleave via the errs slice.
type mockTracker struct {
	deficits []int
	errs     []error

	RefreshCalls int
	current      int
	stale        bool
}

func newMockTracker(deficits ...int) *mockTracker {
	return &mockTracker{deficits: deficits}
}

func (m *mockTracker) Refresh(ctx context.Context) ([]types.ProgressSnapshot, error) {
	i := m.RefreshCalls
	m.RefreshCalls++
	if m.errs != nil && i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.deficits) {
		i = len(m.deficits) - 1
	}
	m.current = m.deficits[i]
	return []types.ProgressSnapshot{{Counter: types.CounterMobile, Max: m.current, FetchedAt: time.Now()}}, nil
}

func (m *mockTracker) Deficit(device types.DeviceClass) int { return m.current }
func (m *mockTracker) Stale() bool                          { return m.stale }

// --- mockAttempter ---

// mockAttempter succeeds with a provisional NoChange record unless a
// scripted error is set for the call index.
type mockAttempter struct {
	errs map[int]error

	Calls   int
	Queries []string
}

func (m *mockAttempter) Attempt(ctx context.Context, q queries.Query) (types.AttemptRecord, error) {
	i := m.Calls
	m.Calls++
	m.Queries = append(m.Queries, q.Text)
	rec := types.AttemptRecord{Query: q.Text, Timestamp: time.Now(), Outcome: types.OutcomeNoChange}
	if err, ok := m.errs[i]; ok {
		rec.Outcome = types.OutcomeFailed
		return rec, err
	}
	return rec, nil
}

// --- mockRecoverer ---

type mockRecoverer struct {
	ReloadErr  error
	SurfaceErr error
	Closed     bool

	ReloadCalls  int
	SurfaceCalls int
}

func (m *mockRecoverer) Reload(ctx context.Context) error {
	m.ReloadCalls++
	return m.ReloadErr
}

func (m *mockRecoverer) LatestSurface(ctx context.Context) error {
	m.SurfaceCalls++
	return m.SurfaceErr
}

func (m *mockRecoverer) IsClosed() bool { return m.Closed }

// --- mockDriver ---

// mockDriver implements browser.Driver with per-method hooks and call logs.
type mockDriver struct {
	NavigateFunc func(ctx context.Context, url string) error
	TypeFunc     func(ctx context.Context, selector, text string) error
	ClickFunc    func(ctx context.Context, selector string) error
	WaitForFunc  func(ctx context.Context, selector string, timeout time.Duration) error
	SurfaceFunc  func(ctx context.Context) error
	ReloadFunc   func(ctx context.Context) error
	Closed       bool

	Navigations  []string
	Typed        []string
	ClickCalls   int
	SurfaceCalls int
}

func (m *mockDriver) Navigate(ctx context.Context, url string) error {
	m.Navigations = append(m.Navigations, url)
	if m.NavigateFunc != nil {
		return m.NavigateFunc(ctx, url)
	}
	return nil
}

func (m *mockDriver) Type(ctx context.Context, selector, text string) error {
	m.Typed = append(m.Typed, text)
	if m.TypeFunc != nil {
		return m.TypeFunc(ctx, selector, text)
	}
	return nil
}

func (m *mockDriver) Click(ctx context.Context, selector string) error {
	m.ClickCalls++
	if m.ClickFunc != nil {
		return m.ClickFunc(ctx, selector)
	}
	return nil
}

func (m *mockDriver) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if m.WaitForFunc != nil {
		return m.WaitForFunc(ctx, selector, timeout)
	}
	return nil
}

func (m *mockDriver) Evaluate(ctx context.Context, js string) (string, error) { return "", nil }

func (m *mockDriver) LatestSurface(ctx context.Context) error {
	m.SurfaceCalls++
	if m.SurfaceFunc != nil {
		return m.SurfaceFunc(ctx)
	}
	return nil
}

func (m *mockDriver) Reload(ctx context.Context) error {
	if m.ReloadFunc != nil {
		return m.ReloadFunc(ctx)
	}
	return nil
}

func (m *mockDriver) IsClosed() bool { return m.Closed }

// --- helpers ---

func plannedQueries(n int) []queries.Query {
	out := make([]queries.Query, n)
	for i := range out {
		out[i] = queries.Query{Text: fmt.Sprintf("query %d", i)}
	}
	return out
}
