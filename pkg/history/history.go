// Package history keeps a SQLite ledger of capacity snapshots.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/headroom/pkg/models"
)

// Recorder records and queries snapshot history.
type Recorder interface {
	// Record appends an entry for the snapshot unless it matches the latest
	// entry. It reports whether a row was written.
	Record(ctx context.Context, snap models.CapacitySnapshot) (bool, error)
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// SQLiteRecorder implements Recorder with a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	recorded_at DATETIME NOT NULL,
	plan TEXT NOT NULL,
	provenance TEXT NOT NULL,
	tier TEXT NOT NULL,
	five_hour_pct REAL NOT NULL,
	seven_day_pct REAL NOT NULL,
	five_hour_used INTEGER NOT NULL,
	seven_day_used INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(recorded_at);
`

// New opens the ledger at dbPath and runs auto-migration. The CLI and the
// daemon may write concurrently, so the database runs in WAL mode with a
// busy timeout.
func New(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &SQLiteRecorder{db: db}, nil
}

// Record stores a snapshot. No-data snapshots are never recorded.
func (r *SQLiteRecorder) Record(ctx context.Context, snap models.CapacitySnapshot) (bool, error) {
	if snap.NoData {
		return false, nil
	}
	e := models.HistoryEntryFrom(snap)

	last, err := r.latest(ctx)
	if err != nil {
		return false, err
	}
	if last != nil && sameReading(*last, e) {
		return false, nil
	}

	e.ID = uuid.NewString()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, recorded_at, plan, provenance, tier, five_hour_pct, seven_day_pct, five_hour_used, seven_day_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RecordedAt.UTC(), string(e.Plan), string(e.Provenance), e.Tier.String(),
		e.FiveHourPct, e.SevenDayPct, e.FiveHourUsed, e.SevenDayUsed,
	)
	if err != nil {
		return false, fmt.Errorf("record snapshot: %w", err)
	}
	return true, nil
}

// Recent returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	query := `SELECT id, recorded_at, plan, provenance, tier, five_hour_pct, seven_day_pct, five_hour_used, seven_day_used
		 FROM snapshots ORDER BY recorded_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes every entry.
func (r *SQLiteRecorder) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) latest(ctx context.Context) (*models.HistoryEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, recorded_at, plan, provenance, tier, five_hour_pct, seven_day_pct, five_hour_used, seven_day_used
		 FROM snapshots ORDER BY recorded_at DESC, rowid DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.HistoryEntry, error) {
	var (
		e                      models.HistoryEntry
		plan, provenance, tier string
		recordedAt             time.Time
	)
	if err := s.Scan(&e.ID, &recordedAt, &plan, &provenance, &tier,
		&e.FiveHourPct, &e.SevenDayPct, &e.FiveHourUsed, &e.SevenDayUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan history: %w", err)
	}
	e.RecordedAt = recordedAt.UTC()
	e.Plan = models.PlanID(plan)
	e.Provenance = models.Provenance(provenance)
	if err := e.Tier.UnmarshalText([]byte(tier)); err != nil {
		return e, fmt.Errorf("scan history: %w", err)
	}
	return e, nil
}

func sameReading(a, b models.HistoryEntry) bool {
	return a.Plan == b.Plan &&
		a.Provenance == b.Provenance &&
		a.Tier == b.Tier &&
		a.FiveHourUsed == b.FiveHourUsed &&
		a.SevenDayUsed == b.SevenDayUsed &&
		a.FiveHourPct == b.FiveHourPct &&
		a.SevenDayPct == b.SevenDayPct
}
