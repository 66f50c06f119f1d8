package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/headroom/pkg/models"
	"github.com/pario-ai/headroom/pkg/reconcile"
	"github.com/pario-ai/headroom/pkg/state"
)

// errSuperseded aborts a state update whose push lost to a newer one.
var errSuperseded = errors.New("push superseded")

// SetPlan stores the plan used by later queries.
func (a *Advisor) SetPlan(id string) error {
	plan := models.PlanID(strings.TrimSpace(id))
	if !a.plans.Has(plan) {
		return fmt.Errorf("%w: %q (valid plans: %s)", ErrUnknownPlan, id, strings.Join(a.plans.Names(), ", "))
	}
	if a.cfg.PlanOverride != "" && a.cfg.PlanOverride != string(plan) {
		a.logger.Warn().Str("override", a.cfg.PlanOverride).Msg("plan override still takes precedence")
	}
	return a.store.Update(func(st *state.State) error {
		st.Plan = plan
		st.Snapshot = nil
		return nil
	})
}

// Update records a manual utilization push. resetsAt applies to the 5-hour
// window. It reports whether the push replaced the stored one.
func (a *Advisor) Update(fivePct, sevenPct float64, resetsAt *time.Time, force bool) (bool, error) {
	p, err := reconcile.ManualPush(fivePct, sevenPct, resetsAt, a.now())
	if err != nil {
		return false, err
	}
	p.Force = force
	return a.push(p)
}

// UpdateJSON records a push decoded from a structured payload.
func (a *Advisor) UpdateJSON(payload []byte, force bool) (bool, error) {
	p, err := reconcile.ParsePayload(payload, a.now())
	if err != nil {
		return false, err
	}
	p.Force = force
	return a.push(p)
}

func (a *Advisor) push(p models.PushedUsage) (bool, error) {
	err := a.store.Update(func(st *state.State) error {
		merged, applied := reconcile.ApplyPush(st.Pushed, p)
		if !applied {
			return errSuperseded
		}
		st.Pushed = &merged
		return nil
	})
	if errors.Is(err, errSuperseded) {
		a.logger.Info().Time("updated_at", p.UpdatedAt).Msg("ignoring push older than stored value")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reset removes the state file, the daemon snapshot and the history ledger.
// It is safe to call repeatedly.
func (a *Advisor) Reset(ctx context.Context) error {
	var errs []error
	if err := a.store.Remove(); err != nil {
		errs = append(errs, err)
	}
	if a.cfg.DaemonFile != "" {
		if err := state.RemoveSnapshot(a.cfg.DaemonFile); err != nil {
			errs = append(errs, err)
		}
	}
	if a.history != nil {
		if err := a.history.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
