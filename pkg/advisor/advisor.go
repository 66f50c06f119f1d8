// Package advisor answers capacity queries and applies state changes.
// It wires the meter, the reconciler and the persisted stores together.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/headroom/pkg/capacity"
	"github.com/pario-ai/headroom/pkg/config"
	"github.com/pario-ai/headroom/pkg/credits"
	"github.com/pario-ai/headroom/pkg/history"
	"github.com/pario-ai/headroom/pkg/ingest"
	"github.com/pario-ai/headroom/pkg/meter"
	"github.com/pario-ai/headroom/pkg/models"
	"github.com/pario-ai/headroom/pkg/reconcile"
	"github.com/pario-ai/headroom/pkg/state"
)

// ErrUnknownPlan is returned by SetPlan for a plan that is not configured.
var ErrUnknownPlan = errors.New("unknown plan")

// Advisor serves status, should-explore and the state-changing commands.
type Advisor struct {
	cfg     *config.Config
	plans   *capacity.Plans
	meter   *meter.Meter
	store   *state.Store
	history history.Recorder
	policy  reconcile.Policy
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Advisor) { a.now = now }
}

// WithHistory uses rec instead of opening cfg.HistoryDB.
func WithHistory(rec history.Recorder) Option {
	return func(a *Advisor) { a.history = rec }
}

// New builds an Advisor from cfg. The history ledger is optional: when it
// cannot be opened the advisor runs without it.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Advisor, error) {
	plans, err := capacity.NewPlans(cfg.Plans)
	if err != nil {
		return nil, err
	}
	table, err := cfg.RateTable()
	if err != nil {
		return nil, err
	}
	fallback, err := cfg.FallbackRate(table)
	if err != nil {
		return nil, err
	}

	calc := credits.NewCalculator(table, fallback)
	calc.CacheCreationAsInput = cfg.Credits.CacheCreationAsInput
	reader := ingest.NewReader(logger)
	reader.Dedupe = cfg.Ingest.Dedupe

	a := &Advisor{
		cfg:    cfg,
		plans:  plans,
		meter:  meter.New(reader, calc, logger),
		store:  state.NewStore(cfg.StateFile),
		logger: logger,
		now:    time.Now,
		policy: reconcile.Policy{
			DaemonMaxAge: cfg.State.DaemonMaxAge,
			PushedMaxAge: cfg.State.PushedMaxAge,
			CacheMaxAge:  cfg.State.CacheMaxAge,
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.history == nil && cfg.HistoryDB != "" {
		a.history = openHistory(cfg.HistoryDB, logger)
	}
	return a, nil
}

func openHistory(path string, logger zerolog.Logger) history.Recorder {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("history disabled")
		return nil
	}
	rec, err := history.New(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("history disabled")
		return nil
	}
	return rec
}

// Close releases the history ledger.
func (a *Advisor) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

// Plans returns the configured plan table.
func (a *Advisor) Plans() *capacity.Plans {
	return a.plans
}

// Status computes the current snapshot. The result is cached in the state
// file and appended to history; failures to do so are only logged.
func (a *Advisor) Status(ctx context.Context) (models.CapacitySnapshot, error) {
	snap, err := a.resolve(ctx, true)
	if err != nil {
		return snap, err
	}

	if !snap.NoData && !snap.FromCache {
		err := a.store.Update(func(st *state.State) error {
			c := snap
			st.Snapshot = &c
			return nil
		})
		if err != nil {
			a.logger.Warn().Err(err).Str("path", a.store.Path()).Msg("snapshot cache not written")
		}
		a.record(ctx, snap)
	}
	return snap, nil
}

// Composite computes a snapshot from the logs and pushed values only, ignoring
// any daemon file. The daemon publishes this value.
func (a *Advisor) Composite(ctx context.Context) (models.CapacitySnapshot, error) {
	snap, err := a.resolve(ctx, false)
	if err != nil {
		return snap, err
	}
	if !snap.NoData {
		a.record(ctx, snap)
	}
	return snap, nil
}

// ShouldExplore returns the step-function decision for the current snapshot.
func (a *Advisor) ShouldExplore(ctx context.Context) (models.Decision, models.CapacitySnapshot, error) {
	snap, err := a.Status(ctx)
	if err != nil {
		return models.DecisionNo, snap, err
	}
	if snap.NoData {
		a.logger.Warn().Msg("no usage data available, answering from an empty window")
	}
	return capacity.Decide(snap.Tier), snap, nil
}

// Raw returns the current snapshot as indented JSON.
func (a *Advisor) Raw(ctx context.Context) ([]byte, error) {
	snap, err := a.Status(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// History returns up to limit recorded snapshots, newest first.
func (a *Advisor) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.Recent(ctx, limit)
}

func (a *Advisor) resolve(ctx context.Context, useDaemon bool) (models.CapacitySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.CapacitySnapshot{}, err
	}
	now := a.now()

	st, err := a.store.Load()
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.store.Path()).Msg("ignoring unreadable state file")
		st = state.State{}
	}

	plan, limits, unknown := a.plans.Lookup(a.selectedPlan(st))
	if unknown {
		a.logger.Warn().Str("plan", string(a.selectedPlan(st))).Str("fallback", string(plan)).Msg("unknown plan")
	}

	res := a.meter.Compute(a.cfg.LogDirs, plan, limits, now)

	var daemon *models.CapacitySnapshot
	if useDaemon && a.cfg.DaemonFile != "" {
		daemon, err = state.ReadSnapshot(a.cfg.DaemonFile)
		if err != nil {
			a.logger.Warn().Err(err).Str("path", a.cfg.DaemonFile).Msg("ignoring unreadable daemon snapshot")
			daemon = nil
		}
		if daemon != nil && daemon.Plan != plan {
			a.logger.Debug().Str("daemon_plan", string(daemon.Plan)).Msg("ignoring daemon snapshot for another plan")
			daemon = nil
		}
	}

	snap := reconcile.Resolve(a.policy, reconcile.Inputs{
		Now:         now,
		Plan:        plan,
		Limits:      limits,
		Logs:        res.Snapshot,
		LatestEvent: res.Latest,
		State:       st,
		Daemon:      daemon,
	})
	snap.Diagnostics.UnknownPlan = snap.Diagnostics.UnknownPlan || unknown

	if len(snap.Diagnostics.StalePushed) > 0 {
		a.logger.Info().Strs("windows", snap.Diagnostics.StalePushed).Msg("pushed windows past reset")
	}
	if snap.Diagnostics.ZeroLimit {
		a.logger.Warn().Str("plan", string(plan)).Msg("plan has a zero limit")
	}
	return snap, nil
}

// selectedPlan applies plan precedence: override, then the stored plan,
// then the configured plan.
func (a *Advisor) selectedPlan(st state.State) models.PlanID {
	switch {
	case a.cfg.PlanOverride != "":
		return models.PlanID(a.cfg.PlanOverride)
	case st.Plan != "":
		return st.Plan
	default:
		return models.PlanID(strings.TrimSpace(a.cfg.Plan))
	}
}

func (a *Advisor) record(ctx context.Context, snap models.CapacitySnapshot) {
	if a.history == nil {
		return
	}
	if _, err := a.history.Record(ctx, snap); err != nil {
		a.logger.Warn().Err(err).Msg("history not recorded")
	}
}
