package models

import (
	"fmt"
	"time"
)

// PlanID names a subscription plan.
type PlanID string

const (
	PlanPro    PlanID = "pro"
	PlanMax5x  PlanID = "max5x"
	PlanMax20x PlanID = "max20x"
)

// PlanLimits holds the credit budget of each window for a plan.
type PlanLimits struct {
	FiveHour int64 `json:"five_hour" yaml:"five_hour"`
	SevenDay int64 `json:"seven_day" yaml:"seven_day"`
}

// CapacityTier is an ordered capacity level. Higher values are more severe.
type CapacityTier int

const (
	TierAvailable CapacityTier = iota
	TierModerate
	TierConserve
	TierCritical
)

var tierNames = [...]string{"available", "moderate", "conserve", "critical"}

func (t CapacityTier) String() string {
	if t < TierAvailable || t > TierCritical {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText encodes the tier by name.
func (t CapacityTier) MarshalText() ([]byte, error) {
	if t < TierAvailable || t > TierCritical {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(tierNames[t]), nil
}

// UnmarshalText decodes a tier name.
func (t *CapacityTier) UnmarshalText(b []byte) error {
	for i, name := range tierNames {
		if string(b) == name {
			*t = CapacityTier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", string(b))
}

// Worse returns the more severe of two tiers.
func Worse(a, b CapacityTier) CapacityTier {
	if a > b {
		return a
	}
	return b
}

// Provenance records which source produced a snapshot.
type Provenance string

const (
	ProvenanceNone         Provenance = "none"
	ProvenanceLogs         Provenance = "logs"
	ProvenancePushedManual Provenance = "pushed-manual"
	ProvenancePushedJSON   Provenance = "pushed-json"
	ProvenanceDaemon       Provenance = "daemon"
)

// Rank orders provenances for precedence: daemon > logs > pushed-json >
// pushed-manual > none.
func (p Provenance) Rank() int {
	switch p {
	case ProvenanceDaemon:
		return 4
	case ProvenanceLogs:
		return 3
	case ProvenancePushedJSON:
		return 2
	case ProvenancePushedManual:
		return 1
	default:
		return 0
	}
}

// IsPushed reports whether p is one of the externally pushed provenances.
func (p Provenance) IsPushed() bool {
	return p == ProvenancePushedManual || p == ProvenancePushedJSON
}

// CapacitySnapshot is the result of one capacity computation.
type CapacitySnapshot struct {
	Plan        PlanID       `json:"plan"`
	FiveHour    WindowUsage  `json:"five_hour"`
	SevenDay    WindowUsage  `json:"seven_day"`
	Tier        CapacityTier `json:"tier"`
	PExplore    float64      `json:"p_explore"`
	ComputedAt  time.Time    `json:"computed_at"`
	Provenance  Provenance   `json:"provenance"`
	NoData      bool         `json:"no_data,omitempty"`
	FromCache   bool         `json:"from_cache,omitempty"`
	Details     Details      `json:"details"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}

// Decision is the tri-state answer to "should the agent explore?".
type Decision string

const (
	DecisionYes   Decision = "yes"
	DecisionMaybe Decision = "maybe"
	DecisionNo    Decision = "no"
)

// ExitCode encodes the decision as a process exit status.
func (d Decision) ExitCode() int {
	switch d {
	case DecisionYes:
		return 0
	case DecisionMaybe:
		return 1
	default:
		return 2
	}
}

// PushedUsage is a utilization report supplied by an external observer.
type PushedUsage struct {
	FiveHourPct      float64    `json:"five_hour_pct"`
	SevenDayPct      float64    `json:"seven_day_pct"`
	FiveHourResetsAt *time.Time `json:"five_hour_resets_at,omitempty"`
	SevenDayResetsAt *time.Time `json:"seven_day_resets_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Provenance       Provenance `json:"provenance"`
	Force            bool       `json:"force,omitempty"`
}
