package capacity

import (
	"testing"

	"github.com/pario-ai/headroom/pkg/models"
)

func TestLookupKnownPlan(t *testing.T) {
	p, err := NewPlans(nil)
	if err != nil {
		t.Fatal(err)
	}
	plan, limits, unknown := p.Lookup(models.PlanMax5x)
	if unknown || plan != models.PlanMax5x {
		t.Fatalf("unexpected plan %s unknown=%v", plan, unknown)
	}
	if limits.FiveHour != 3_300_000 || limits.SevenDay != 41_666_700 {
		t.Errorf("unexpected limits %+v", limits)
	}
}

func TestLookupUnknownPlanFallsBack(t *testing.T) {
	p, _ := NewPlans(nil)
	plan, limits, unknown := p.Lookup("enterprise")
	if !unknown {
		t.Error("expected unknown flag")
	}
	if plan != DefaultPlan {
		t.Errorf("expected fallback to %s, got %s", DefaultPlan, plan)
	}
	if limits != DefaultLimits()[DefaultPlan] {
		t.Errorf("unexpected limits %+v", limits)
	}

	_, _, unknown = p.Lookup("")
	if unknown {
		t.Error("empty plan should not be flagged unknown")
	}
}

func TestPlanOverrides(t *testing.T) {
	p, err := NewPlans(map[string]models.PlanLimits{
		"team": {FiveHour: 1000, SevenDay: 9000},
		"pro":  {FiveHour: 1, SevenDay: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Has("team") {
		t.Error("expected team plan")
	}
	_, l, _ := p.Lookup(models.PlanPro)
	if l.FiveHour != 1 {
		t.Errorf("override not applied: %+v", l)
	}
	if got := p.Names(); len(got) != 4 || got[0] != "max20x" {
		t.Errorf("unexpected names %v", got)
	}

	if _, err := NewPlans(map[string]models.PlanLimits{"bad": {FiveHour: -1}}); err == nil {
		t.Error("expected error for negative limit")
	}
}
