// Package window sums credits over rolling time windows.
package window

import (
	"time"

	"github.com/pario-ai/headroom/pkg/models"
)

const (
	FiveHour = 5 * time.Hour
	SevenDay = 7 * 24 * time.Hour
)

// Point is the credit cost of one event at one instant.
type Point struct {
	At      time.Time
	Credits int64
}

// Sum returns the credits of points with now-d <= At <= now.
func Sum(points []Point, now time.Time, d time.Duration) int64 {
	start := now.Add(-d)
	var used int64
	for _, p := range points {
		if p.At.Before(start) || p.At.After(now) {
			continue
		}
		used += p.Credits
	}
	return used
}

// Prune returns the points that fall inside the window ending at now.
// The result shares no storage with points.
func Prune(points []Point, now time.Time, d time.Duration) []Point {
	start := now.Add(-d)
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.At.Before(start) || p.At.After(now) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Usage builds a WindowUsage. A non-positive limit yields pct 0 and
// zeroLimit true instead of dividing by zero. pct is clamped to [0, 100].
func Usage(used, limit int64) (u models.WindowUsage, zeroLimit bool) {
	u = models.WindowUsage{Used: used, Limit: limit}
	if limit <= 0 {
		return u, true
	}
	u.Pct = clampPct(100 * float64(used) / float64(limit))
	return u, false
}

// Totals is the result of aggregating both windows.
type Totals struct {
	FiveHour models.WindowUsage
	SevenDay models.WindowUsage
	// ZeroLimit is set when either window had no usable limit.
	ZeroLimit bool
}

// Aggregate sums points over both windows against limits.
func Aggregate(points []Point, now time.Time, limits models.PlanLimits) Totals {
	week := Prune(points, now, SevenDay)
	five, z5 := Usage(Sum(week, now, FiveHour), limits.FiveHour)
	seven, z7 := Usage(Sum(week, now, SevenDay), limits.SevenDay)
	return Totals{FiveHour: five, SevenDay: seven, ZeroLimit: z5 || z7}
}

func clampPct(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
