// Package reconcile decides which source of usage information answers a query
// and merges concurrent pushes.
package reconcile

import (
	"math"
	"time"

	"github.com/pario-ai/headroom/pkg/capacity"
	"github.com/pario-ai/headroom/pkg/models"
	"github.com/pario-ai/headroom/pkg/state"
)

// Policy holds the staleness thresholds.
type Policy struct {
	// DaemonMaxAge is how old a daemon snapshot may be and still win.
	DaemonMaxAge time.Duration
	// PushedMaxAge is how old a push may be before it is ignored. Zero means
	// pushes never expire by age; their windows still reset at resets_at.
	PushedMaxAge time.Duration
	// CacheMaxAge is how old the cached snapshot may be when it is the only source.
	CacheMaxAge time.Duration
}

// Inputs is everything available to one query.
type Inputs struct {
	Now    time.Time
	Plan   models.PlanID
	Limits models.PlanLimits
	// Logs is the log-derived snapshot, nil when no log data was readable.
	Logs *models.CapacitySnapshot
	// LatestEvent is the newest event timestamp seen in the logs.
	LatestEvent time.Time
	State       state.State
	// Daemon is the daemon composite, nil when absent.
	Daemon *models.CapacitySnapshot
}

// Resolve picks the answering source with precedence daemon > logs > pushed,
// falling back to the next source when a higher one is missing or stale, then
// to the cached snapshot, and finally to a no-data snapshot.
func Resolve(p Policy, in Inputs) models.CapacitySnapshot {
	var notes []string

	latest := in.LatestEvent
	if latest.After(in.Now) {
		latest = in.Now
	}
	if d := in.Daemon; d != nil {
		switch {
		case p.DaemonMaxAge > 0 && in.Now.Sub(d.ComputedAt) > p.DaemonMaxAge:
			notes = append(notes, "daemon snapshot stale")
		case d.ComputedAt.Before(latest):
			notes = append(notes, "daemon snapshot behind local logs")
		default:
			return fromDaemon(*d, notes)
		}
	}

	pushed := in.State.Pushed
	if pushed != nil && p.PushedMaxAge > 0 && in.Now.Sub(pushed.UpdatedAt) > p.PushedMaxAge {
		notes = append(notes, "pushed usage stale")
		pushed = nil
	}

	if pushed != nil && pushed.Force {
		return fromPushed(*pushed, in, notes)
	}
	if in.Logs != nil {
		snap := *in.Logs
		snap.Diagnostics.Fallback = join(snap.Diagnostics.Fallback, notes)
		return snap
	}
	if pushed != nil {
		return fromPushed(*pushed, in, append(notes, "logs unavailable"))
	}

	if c := in.State.Snapshot; c != nil && c.Plan == in.Plan && p.CacheMaxAge > 0 && in.Now.Sub(c.ComputedAt) <= p.CacheMaxAge {
		snap := *c
		snap.FromCache = true
		snap.Diagnostics.Fallback = join(snap.Diagnostics.Fallback, append(notes, "using cached snapshot"))
		return snap
	}

	return NoData(in.Plan, in.Limits, in.Now, notes)
}

// NoData returns the zero-utilization snapshot used when no source is available.
func NoData(plan models.PlanID, limits models.PlanLimits, now time.Time, notes []string) models.CapacitySnapshot {
	snap := models.CapacitySnapshot{
		Plan:       plan,
		FiveHour:   models.WindowUsage{Limit: limits.FiveHour},
		SevenDay:   models.WindowUsage{Limit: limits.SevenDay},
		ComputedAt: now.UTC(),
		Provenance: models.ProvenanceNone,
		NoData:     true,
	}
	snap.Diagnostics.Fallback = join("", notes)
	capacity.Apply(&snap)
	return snap
}

// ApplyPush merges incoming into current by last-writer-wins on UpdatedAt.
// Equal timestamps go to the higher provenance rank; an exact tie keeps
// current. It returns the winner and whether incoming was taken.
func ApplyPush(current *models.PushedUsage, incoming models.PushedUsage) (models.PushedUsage, bool) {
	if current == nil {
		return incoming, true
	}
	switch {
	case incoming.UpdatedAt.After(current.UpdatedAt):
		return incoming, true
	case incoming.UpdatedAt.Equal(current.UpdatedAt) && incoming.Provenance.Rank() > current.Provenance.Rank():
		return incoming, true
	default:
		return *current, false
	}
}

func fromDaemon(d models.CapacitySnapshot, notes []string) models.CapacitySnapshot {
	d.Provenance = models.ProvenanceDaemon
	d.FromCache = false
	d.NoData = false
	capacity.Apply(&d)
	d.Diagnostics.Fallback = join(d.Diagnostics.Fallback, notes)
	return d
}

func fromPushed(p models.PushedUsage, in Inputs, notes []string) models.CapacitySnapshot {
	snap := models.CapacitySnapshot{
		Plan:       in.Plan,
		ComputedAt: in.Now.UTC(),
		Provenance: p.Provenance,
	}
	if !snap.Provenance.IsPushed() {
		snap.Provenance = models.ProvenancePushedManual
	}

	var stale []string
	snap.FiveHour, stale = pushedWindow("five_hour", p.FiveHourPct, p.FiveHourResetsAt, in.Limits.FiveHour, in.Now, stale)
	snap.SevenDay, stale = pushedWindow("seven_day", p.SevenDayPct, p.SevenDayResetsAt, in.Limits.SevenDay, in.Now, stale)
	snap.Diagnostics.StalePushed = stale
	snap.Diagnostics.ZeroLimit = in.Limits.FiveHour <= 0 || in.Limits.SevenDay <= 0
	snap.Diagnostics.Fallback = join("", notes)
	capacity.Apply(&snap)
	return snap
}

// pushedWindow converts a pushed percentage into window usage. Once the
// window's reset instant has passed the usage is treated as zero.
func pushedWindow(name string, pct float64, resetsAt *time.Time, limit int64, now time.Time, stale []string) (models.WindowUsage, []string) {
	u := models.WindowUsage{Limit: limit, Pct: pct}
	if resetsAt != nil {
		if !now.Before(*resetsAt) {
			u.Pct = 0
			stale = append(stale, name)
		} else {
			r := *resetsAt
			u.ResetsAt = &r
		}
	}
	if limit > 0 {
		u.Used = int64(math.Round(u.Pct / 100 * float64(limit)))
	}
	return u, stale
}

func join(existing string, notes []string) string {
	out := existing
	for _, n := range notes {
		if out != "" {
			out += "; "
		}
		out += n
	}
	return out
}
