// Package store persists terminal campaign results to SQLite. Campaign
// state itself is never persisted; only what a finished run reported, so
// daily totals and give-up patterns survive process restarts.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

// Ledger is the append-mostly results store.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open initializes the SQLite database at the given path.
func Open(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &Ledger{db: db, dbPath: path}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initialize() error {
	if _, err := l.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS campaign_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id TEXT NOT NULL,
		account TEXT NOT NULL,
		device TEXT NOT NULL,
		earned_points INTEGER NOT NULL,
		deficit_remaining INTEGER NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_account ON campaign_results(account);
	CREATE INDEX IF NOT EXISTS idx_results_finished ON campaign_results(finished_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Record appends one terminal campaign result.
func (l *Ledger) Record(res types.CampaignResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`
		INSERT INTO campaign_results
			(campaign_id, account, device, earned_points, deficit_remaining, status, attempts, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.CampaignID, res.Account, string(res.Device),
		res.EarnedPoints, res.DeficitRemaining, string(res.Status),
		res.Attempts, res.StartedAt.UTC(), res.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// RecentResults returns the newest results, most recent first.
func (l *Ledger) RecentResults(limit int) ([]types.CampaignResult, error) {
	if limit <= 0 {
		limit = 20
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`
		SELECT campaign_id, account, device, earned_points, deficit_remaining, status, attempts, started_at, finished_at
		FROM campaign_results
		ORDER BY finished_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []types.CampaignResult
	for rows.Next() {
		var r types.CampaignResult
		var device, status string
		if err := rows.Scan(&r.CampaignID, &r.Account, &device, &r.EarnedPoints,
			&r.DeficitRemaining, &status, &r.Attempts, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Device = types.DeviceClass(device)
		r.Status = types.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PointsEarnedSince sums the points an account earned at or after the cutoff.
func (l *Ledger) PointsEarnedSince(account string, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total sql.NullInt64
	err := l.db.QueryRow(`
		SELECT SUM(earned_points) FROM campaign_results
		WHERE account = ? AND finished_at >= ?`, account, since.UTC()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return int(total.Int64), nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}
