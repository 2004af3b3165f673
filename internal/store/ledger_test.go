package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleResult(account string, earned int, finished time.Time) types.CampaignResult {
	return types.CampaignResult{
		CampaignID:       "c-" + account,
		Account:          account,
		Device:           types.DeviceMobile,
		EarnedPoints:     earned,
		DeficitRemaining: 0,
		Status:           types.StatusCompleted,
		Attempts:         7,
		StartedAt:        finished.Add(-10 * time.Minute),
		FinishedAt:       finished,
	}
}

func TestRecordAndRecentResults(t *testing.T) {
	l := openTestLedger(t)

	now := time.Now()
	if err := l.Record(sampleResult("a@example.com", 30, now.Add(-2*time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(sampleResult("b@example.com", 50, now)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	results, err := l.RecentResults(10)
	if err != nil {
		t.Fatalf("RecentResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	// Most recent first.
	if results[0].Account != "b@example.com" {
		t.Errorf("first result = %s, want the newest", results[0].Account)
	}
	if results[0].EarnedPoints != 50 || results[0].Attempts != 7 {
		t.Errorf("result row = %+v", results[0])
	}
	if results[0].Device != types.DeviceMobile || results[0].Status != types.StatusCompleted {
		t.Errorf("enum columns mangled: %+v", results[0])
	}
}

func TestRecentResultsLimit(t *testing.T) {
	l := openTestLedger(t)

	for i := 0; i < 5; i++ {
		res := sampleResult("a@example.com", 10, time.Now().Add(time.Duration(i)*time.Minute))
		if err := l.Record(res); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	results, err := l.RecentResults(3)
	if err != nil {
		t.Fatalf("RecentResults: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("results = %d, want limit 3", len(results))
	}
}

func TestPointsEarnedSince(t *testing.T) {
	l := openTestLedger(t)

	now := time.Now()
	l.Record(sampleResult("a@example.com", 30, now.Add(-48*time.Hour)))
	l.Record(sampleResult("a@example.com", 50, now.Add(-time.Hour)))
	l.Record(sampleResult("a@example.com", 20, now))
	l.Record(sampleResult("b@example.com", 999, now))

	got, err := l.PointsEarnedSince("a@example.com", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PointsEarnedSince: %v", err)
	}
	if got != 70 {
		t.Errorf("points = %d, want 70 (old rows and other accounts excluded)", got)
	}
}

func TestPointsEarnedSinceEmpty(t *testing.T) {
	l := openTestLedger(t)
	got, err := l.PointsEarnedSince("ghost@example.com", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PointsEarnedSince: %v", err)
	}
	if got != 0 {
		t.Errorf("points = %d, want 0 with no rows", got)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "results.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open with missing parents: %v", err)
	}
	defer l.Close()
	if err := l.Record(sampleResult("a@example.com", 1, time.Now())); err != nil {
		t.Errorf("Record into fresh db: %v", err)
	}
}
