package capacity

import (
	"math"

	"github.com/pario-ai/headroom/pkg/models"
)

// Axis identifies one of the two rolling windows.
type Axis int

const (
	FiveHour Axis = iota
	SevenDay
)

func (a Axis) String() string {
	if a == SevenDay {
		return "seven_day"
	}
	return "five_hour"
}

// bounds are the inclusive lower edges of moderate, conserve and critical.
type bounds [3]float64

var axisBounds = map[Axis]bounds{
	FiveHour: {50, 70, 90},
	SevenDay: {60, 80, 95},
}

// pRange is the exploration probability at the bottom and top of each tier.
var pRange = [...][2]float64{
	models.TierAvailable: {1.0, 0.75},
	models.TierModerate:  {0.75, 0.40},
	models.TierConserve:  {0.40, 0.10},
	models.TierCritical:  {0.10, 0.0},
}

// Tier classifies a utilization percentage on this axis.
func (a Axis) Tier(pct float64) models.CapacityTier {
	b := axisBounds[a]
	switch {
	case pct >= b[2]:
		return models.TierCritical
	case pct >= b[1]:
		return models.TierConserve
	case pct >= b[0]:
		return models.TierModerate
	default:
		return models.TierAvailable
	}
}

// band returns the [lo, hi) percentage range of tier on this axis.
func (a Axis) band(tier models.CapacityTier) (lo, hi float64) {
	b := axisBounds[a]
	switch tier {
	case models.TierAvailable:
		return 0, b[0]
	case models.TierModerate:
		return b[0], b[1]
	case models.TierConserve:
		return b[1], b[2]
	default:
		return b[2], 100
	}
}

// PExplore interpolates an exploration probability for pct inside tier's band.
// It decreases from the tier's upper probability at the band's lower edge to
// its lower probability at the band's upper edge.
func (a Axis) PExplore(tier models.CapacityTier, pct float64) float64 {
	if tier < models.TierAvailable || tier > models.TierCritical {
		return 0
	}
	lo, hi := a.band(tier)
	frac := 0.0
	if hi > lo {
		frac = math.Min(1, math.Max(0, (pct-lo)/(hi-lo)))
	}
	r := pRange[tier]
	return r[0] - frac*(r[0]-r[1])
}

// Classify returns the combined tier: the worse of the two window tiers.
func Classify(fiveHourPct, sevenDayPct float64) models.CapacityTier {
	return models.Worse(FiveHour.Tier(fiveHourPct), SevenDay.Tier(sevenDayPct))
}

// Explore returns the graduated exploration probability, the lower of the
// two windows' values.
func Explore(fiveHourPct, sevenDayPct float64) float64 {
	p5 := FiveHour.PExplore(FiveHour.Tier(fiveHourPct), fiveHourPct)
	p7 := SevenDay.PExplore(SevenDay.Tier(sevenDayPct), sevenDayPct)
	return math.Min(p5, p7)
}

// Decide maps a tier to the step-function answer.
func Decide(tier models.CapacityTier) models.Decision {
	switch tier {
	case models.TierAvailable:
		return models.DecisionYes
	case models.TierModerate:
		return models.DecisionMaybe
	default:
		return models.DecisionNo
	}
}

// Apply sets the tier and exploration probability of s from its windows.
func Apply(s *models.CapacitySnapshot) {
	s.Tier = Classify(s.FiveHour.Pct, s.SevenDay.Pct)
	s.PExplore = Explore(s.FiveHour.Pct, s.SevenDay.Pct)
}

// Advice is the human guidance shown for a tier.
func Advice(tier models.CapacityTier) string {
	switch tier {
	case models.TierCritical:
		return "Avoid non-essential work. Focus on completing current task only."
	case models.TierConserve:
		return "Limit exploration. Prioritize user requests over autonomous actions."
	case models.TierModerate:
		return "Light exploration OK. Avoid expensive operations."
	default:
		return "Capacity available. Exploration and autonomous work are fine."
	}
}
