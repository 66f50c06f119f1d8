// Package meter computes a capacity snapshot directly from session logs.
package meter

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/headroom/pkg/capacity"
	"github.com/pario-ai/headroom/pkg/credits"
	"github.com/pario-ai/headroom/pkg/ingest"
	"github.com/pario-ai/headroom/pkg/models"
	"github.com/pario-ai/headroom/pkg/window"
)

// Result is the outcome of one pass over the logs.
type Result struct {
	// Snapshot is nil when the logs held no usage events at all.
	Snapshot *models.CapacitySnapshot
	// Latest is the newest event timestamp not after now, zero when there
	// were none. Future-dated events from a skewed clock are excluded.
	Latest time.Time
	Stats  ingest.Stats
}

// Meter runs ingest, pricing and window aggregation.
type Meter struct {
	reader *ingest.Reader
	calc   *credits.Calculator
	logger zerolog.Logger
}

// New creates a Meter.
func New(reader *ingest.Reader, calc *credits.Calculator, logger zerolog.Logger) *Meter {
	return &Meter{reader: reader, calc: calc, logger: logger}
}

// Compute reads every session log under dirs and returns the log-derived
// snapshot at now for the given plan.
func (m *Meter) Compute(dirs []string, plan models.PlanID, limits models.PlanLimits, now time.Time) Result {
	files := ingest.Discover(dirs)
	weekStart := now.Add(-window.SevenDay)
	fiveStart := now.Add(-window.FiveHour)

	var (
		points    []window.Point
		details   models.Details
		estimated int
		events    int
		future    int
		latest    time.Time
		unknown   = map[string]bool{}
	)
	for ev := range m.reader.Events(files) {
		events++
		if ev.Timestamp.After(now) {
			future++
			continue
		}
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
		if ev.Timestamp.Before(weekStart) {
			continue
		}
		c, est := m.calc.Credits(ev)
		if est {
			estimated++
			if !unknown[ev.RawModel] {
				unknown[ev.RawModel] = true
				m.logger.Warn().Str("model", ev.RawModel).Msg("unknown model, using fallback rate")
			}
		}
		points = append(points, window.Point{At: ev.Timestamp, Credits: c})

		if !ev.Timestamp.Before(fiveStart) {
			details.Messages++
			details.InputTokens += ev.InputTokens
			if m.calc.CacheCreationAsInput {
				details.InputTokens += ev.CacheCreationTokens
			}
			details.OutputTokens += ev.OutputTokens
			details.CacheReadTokens += ev.CacheReadTokens
		}
	}

	stats := m.reader.Stats()
	res := Result{Latest: latest, Stats: stats}
	if future > 0 {
		m.logger.Warn().Int("events", future).Time("now", now).Msg("ignoring future-dated log events")
	}
	m.logger.Debug().
		Int("files", stats.Files).
		Int("lines", stats.Lines).
		Int("events", events).
		Int("malformed", stats.Malformed).
		Int("skipped", stats.Skipped).
		Msg("read session logs")
	if events == 0 {
		return res
	}

	totals := window.Aggregate(points, now, limits)
	snap := &models.CapacitySnapshot{
		Plan:       plan,
		FiveHour:   totals.FiveHour,
		SevenDay:   totals.SevenDay,
		ComputedAt: now.UTC(),
		Provenance: models.ProvenanceLogs,
		Details:    details,
		Diagnostics: models.Diagnostics{
			FilesRead:  stats.Files,
			FileErrors: stats.FileErrors,
			Lines:      stats.Lines,
			Malformed:  stats.Malformed,
			Skipped:    stats.Skipped,
			Duplicates: stats.Duplicates,
			Estimated:  estimated,
			ZeroLimit:  totals.ZeroLimit,
		},
	}
	capacity.Apply(snap)
	res.Snapshot = snap
	return res
}
