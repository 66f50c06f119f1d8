package advisor

import (
	"fmt"
	"strings"

	"github.com/pario-ai/headroom/pkg/capacity"
	"github.com/pario-ai/headroom/pkg/models"
)

// FormatStatus renders a snapshot for humans.
func FormatStatus(s models.CapacitySnapshot) string {
	var b strings.Builder
	b.WriteString("Claude Usage Limits\n")
	b.WriteString(strings.Repeat("=", 55) + "\n")
	fmt.Fprintf(&b, "Plan: %s\n", s.Plan)
	fmt.Fprintf(&b, "Source: %s\n", source(s))
	b.WriteString("\n")

	if s.NoData {
		b.WriteString("No usage data available\n\n")
	}

	writeWindow(&b, "5-hour window:", s.FiveHour)
	writeWindow(&b, "7-day window:", s.SevenDay)

	if s.Provenance == models.ProvenanceLogs || s.Provenance == models.ProvenanceDaemon {
		b.WriteString("Session details (last 5h):\n")
		fmt.Fprintf(&b, "  Messages:     %d\n", s.Details.Messages)
		fmt.Fprintf(&b, "  Input:        %s tokens\n", FormatNumber(s.Details.InputTokens))
		fmt.Fprintf(&b, "  Output:       %s tokens\n", FormatNumber(s.Details.OutputTokens))
		fmt.Fprintf(&b, "  Cache reads:  %s tokens (FREE)\n", FormatNumber(s.Details.CacheReadTokens))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(s.Tier.String()))
	fmt.Fprintf(&b, "Explore: %s (p=%.2f)\n", capacity.Decide(s.Tier), s.PExplore)
	fmt.Fprintf(&b, "Advice: %s\n", capacity.Advice(s.Tier))

	if notes := diagnostics(s.Diagnostics); len(notes) > 0 {
		b.WriteString("\nNotes:\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}
	return b.String()
}

func writeWindow(b *strings.Builder, title string, u models.WindowUsage) {
	fmt.Fprintf(b, "%-15s %.1f%%\n", title, u.Pct)
	fmt.Fprintf(b, "  Credits:      %s / %s\n", FormatNumber(u.Used), FormatNumber(u.Limit))
	if u.ResetsAt != nil {
		fmt.Fprintf(b, "  Resets at:    %s\n", u.ResetsAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	b.WriteString("\n")
}

func source(s models.CapacitySnapshot) string {
	src := string(s.Provenance)
	if s.FromCache {
		src += " (cached " + s.ComputedAt.UTC().Format("15:04:05") + ")"
	}
	return src
}

func diagnostics(d models.Diagnostics) []string {
	var notes []string
	if d.UnknownPlan {
		notes = append(notes, "configured plan is unknown, using default limits")
	}
	if d.ZeroLimit {
		notes = append(notes, "plan has a zero limit")
	}
	if d.Estimated > 0 {
		notes = append(notes, fmt.Sprintf("%d events from unknown models priced at the fallback rate", d.Estimated))
	}
	if n := d.Malformed + d.Skipped; n > 0 {
		notes = append(notes, fmt.Sprintf("%d log lines skipped", n))
	}
	if d.FileErrors > 0 {
		notes = append(notes, fmt.Sprintf("%d log files unreadable", d.FileErrors))
	}
	if len(d.StalePushed) > 0 {
		notes = append(notes, "pushed values reset for "+strings.Join(d.StalePushed, ", "))
	}
	if d.Fallback != "" {
		notes = append(notes, d.Fallback)
	}
	return notes
}

// FormatHistory renders history entries as a text table.
func FormatHistory(entries []models.HistoryEntry) string {
	if len(entries) == 0 {
		return "No history recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-8s %-14s %-10s %8s %8s %10s %10s\n",
		"Recorded", "Plan", "Source", "Tier", "5h%", "7d%", "5h Used", "7d Used")
	b.WriteString(strings.Repeat("-", 95) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-20s %-8s %-14s %-10s %7.1f%% %7.1f%% %10s %10s\n",
			e.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
			e.Plan, e.Provenance, e.Tier,
			e.FiveHourPct, e.SevenDayPct,
			FormatNumber(e.FiveHourUsed), FormatNumber(e.SevenDayUsed))
	}
	return b.String()
}

// FormatNumber abbreviates large counts with a K or M suffix.
func FormatNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
