// Package capacity holds plan limits and turns window utilization into
// capacity tiers and exploration advice.
package capacity

import (
	"fmt"
	"sort"

	"github.com/pario-ai/headroom/pkg/models"
)

// DefaultPlan is used when no plan is configured or the configured one is unknown.
const DefaultPlan = models.PlanMax5x

// DefaultLimits returns the credit budgets of the known subscription plans.
func DefaultLimits() map[models.PlanID]models.PlanLimits {
	return map[models.PlanID]models.PlanLimits{
		models.PlanPro:    {FiveHour: 550_000, SevenDay: 5_000_000},
		models.PlanMax5x:  {FiveHour: 3_300_000, SevenDay: 41_666_700},
		models.PlanMax20x: {FiveHour: 11_000_000, SevenDay: 83_333_300},
	}
}

// Plans resolves plan identifiers to limits.
type Plans struct {
	limits map[models.PlanID]models.PlanLimits
}

// NewPlans creates Plans from the defaults plus overrides. Overrides may
// replace a default plan or add a new one.
func NewPlans(overrides map[string]models.PlanLimits) (*Plans, error) {
	limits := DefaultLimits()
	for name, l := range overrides {
		if l.FiveHour < 0 || l.SevenDay < 0 {
			return nil, fmt.Errorf("plan %s: negative limit", name)
		}
		limits[models.PlanID(name)] = l
	}
	return &Plans{limits: limits}, nil
}

// Has reports whether id is a known plan.
func (p *Plans) Has(id models.PlanID) bool {
	_, ok := p.limits[id]
	return ok
}

// Lookup returns the limits for id. An unknown or empty id falls back to
// DefaultPlan; the returned plan is the one actually used. unknown is set only
// for a non-empty id that names no plan.
func (p *Plans) Lookup(id models.PlanID) (plan models.PlanID, limits models.PlanLimits, unknown bool) {
	if l, ok := p.limits[id]; ok {
		return id, l, false
	}
	return DefaultPlan, p.limits[DefaultPlan], id != ""
}

// Names returns the known plan identifiers, sorted.
func (p *Plans) Names() []string {
	names := make([]string, 0, len(p.limits))
	for id := range p.limits {
		names = append(names, string(id))
	}
	sort.Strings(names)
	return names
}
