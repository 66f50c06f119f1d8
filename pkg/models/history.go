package models

import "time"

// HistoryEntry is one recorded snapshot in the history ledger.
type HistoryEntry struct {
	ID           string       `json:"id"`
	RecordedAt   time.Time    `json:"recorded_at"`
	Plan         PlanID       `json:"plan"`
	Provenance   Provenance   `json:"provenance"`
	Tier         CapacityTier `json:"tier"`
	FiveHourPct  float64      `json:"five_hour_pct"`
	SevenDayPct  float64      `json:"seven_day_pct"`
	FiveHourUsed int64        `json:"five_hour_used"`
	SevenDayUsed int64        `json:"seven_day_used"`
}

// HistoryEntryFrom flattens a snapshot for the ledger.
func HistoryEntryFrom(s CapacitySnapshot) HistoryEntry {
	return HistoryEntry{
		RecordedAt:   s.ComputedAt,
		Plan:         s.Plan,
		Provenance:   s.Provenance,
		Tier:         s.Tier,
		FiveHourPct:  s.FiveHour.Pct,
		SevenDayPct:  s.SevenDay.Pct,
		FiveHourUsed: s.FiveHour.Used,
		SevenDayUsed: s.SevenDay.Used,
	}
}
