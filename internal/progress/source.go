package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/browser"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

// counterScript pulls the search counters out of the dashboard object the
// points breakdown page embeds. Returns a JSON string; empty when the page
// has no dashboard (not signed in, layout change).
const counterScript = `
() => {
	const dash = window.dashboard || (window._w && window._w.dashboard);
	if (!dash || !dash.userStatus || !dash.userStatus.counters) return "";
	const c = dash.userStatus.counters;
	const pick = (arr) => (arr && arr.length) ? { earned: arr[0].pointProgress|0, max: arr[0].pointProgressMax|0 } : null;
	const out = {
		desktop: pick(c.pcSearch),
		secondary: (c.pcSearch && c.pcSearch.length > 1) ? { earned: c.pcSearch[1].pointProgress|0, max: c.pcSearch[1].pointProgressMax|0 } : null,
		mobile: pick(c.mobileSearch)
	};
	return JSON.stringify(out);
}
`

// BrowserSource reads counters by navigating a Driver to the points
// breakdown page and evaluating a small script against the embedded
// dashboard object.
type BrowserSource struct {
	driver  browser.Driver
	url     string
	timeout time.Duration
}

// NewBrowserSource builds a source over an authenticated driver.
func NewBrowserSource(driver browser.Driver, url string, timeout time.Duration) *BrowserSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserSource{driver: driver, url: url, timeout: timeout}
}

type counterPayload struct {
	Desktop   *counterEntry `json:"desktop"`
	Secondary *counterEntry `json:"secondary"`
	Mobile    *counterEntry `json:"mobile"`
}

type counterEntry struct {
	Earned int `json:"earned"`
	Max    int `json:"max"`
}

// FetchCounters navigates to the progress page and extracts the counters.
func (s *BrowserSource) FetchCounters(ctx context.Context) (map[types.CounterKind]types.ProgressSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.driver.Navigate(ctx, s.url); err != nil {
		return nil, fmt.Errorf("navigate progress page: %w", err)
	}

	raw, err := s.driver.Evaluate(ctx, counterScript)
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}
	if raw == "" {
		return nil, fmt.Errorf("progress page exposed no counters")
	}

	var payload counterPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode counters: %w", err)
	}

	out := make(map[types.CounterKind]types.ProgressSnapshot, 3)
	if payload.Mobile != nil {
		out[types.CounterMobile] = staticSnapshot(types.CounterMobile, payload.Mobile.Earned, payload.Mobile.Max)
	}
	if payload.Desktop != nil {
		out[types.CounterDesktop] = staticSnapshot(types.CounterDesktop, payload.Desktop.Earned, payload.Desktop.Max)
	}
	if payload.Secondary != nil {
		out[types.CounterSecondary] = staticSnapshot(types.CounterSecondary, payload.Secondary.Earned, payload.Secondary.Max)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no known counters in payload")
	}
	return out, nil
}
