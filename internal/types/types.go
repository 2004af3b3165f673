// Package types holds the shared domain types for the rewards pilot.
// It has no dependencies on other internal packages so that every layer
// (planner, tracker, pacing, campaign) can exchange values without cycles.
package types

import "time"

// DeviceClass selects which quota counters a campaign works against.
type DeviceClass string

const (
	// DeviceMobile earns against the mobile search counter only.
	DeviceMobile DeviceClass = "mobile"
	// DeviceDesktop earns against the desktop counter plus the
	// secondary-browser (Edge) bonus counter.
	DeviceDesktop DeviceClass = "desktop"
)

// Valid reports whether the device class is one of the known values.
func (d DeviceClass) Valid() bool {
	return d == DeviceMobile || d == DeviceDesktop
}

// CounterKind identifies one quota counter reported by the progress source.
type CounterKind string

const (
	CounterMobile    CounterKind = "mobile"
	CounterDesktop   CounterKind = "desktop"
	CounterSecondary CounterKind = "secondary" // Edge / secondary browser bonus
)

// ProgressSnapshot is one counter reading. Deficit is clamped at zero by
// construction: a counter can never owe negative points.
type ProgressSnapshot struct {
	Counter   CounterKind `json:"counter"`
	Earned    int         `json:"earned"`
	Max       int         `json:"max"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// Deficit returns max-earned, floored at zero.
func (s ProgressSnapshot) Deficit() int {
	d := s.Max - s.Earned
	if d < 0 {
		return 0
	}
	return d
}

// Outcome classifies a single attempt after its delta is known.
type Outcome string

const (
	OutcomeGained   Outcome = "gained"    // deficit shrank
	OutcomeNoChange Outcome = "no_change" // attempt ran, deficit unchanged
	OutcomeFailed   Outcome = "failed"    // attempt never completed
)

// AttemptRecord is one entry of the campaign's append-only history. The
// orchestrator is the only writer; everything else receives read-only slices.
type AttemptRecord struct {
	Query       string    `json:"query"`
	Timestamp   time.Time `json:"timestamp"`
	DeltaPoints int       `json:"delta_points"`
	Outcome     Outcome   `json:"outcome"`
}

// Status is the terminal disposition of a campaign.
type Status string

const (
	StatusCompleted          Status = "completed"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusTimedOut           Status = "timed_out"
	StatusAborted            Status = "aborted"
)

// CampaignResult is what a campaign always produces, whatever happened.
// Callers branch on Status; they never see an error from the engine except
// for fatal driver loss.
type CampaignResult struct {
	CampaignID       string      `json:"campaign_id"`
	Account          string      `json:"account"`
	Device           DeviceClass `json:"device"`
	EarnedPoints     int         `json:"earned_points"`
	DeficitRemaining int         `json:"deficit_remaining"`
	Status           Status      `json:"status"`
	Attempts         int         `json:"attempts"`
	StartedAt        time.Time   `json:"started_at"`
	FinishedAt       time.Time   `json:"finished_at"`
}
