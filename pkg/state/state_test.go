package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/headroom/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "nested", "usage.json"))
	s.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestLoadMissingIsZero(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	reset := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	in := State{
		Plan: models.PlanPro,
		Pushed: &models.PushedUsage{
			FiveHourPct:      42,
			SevenDayPct:      7,
			FiveHourResetsAt: &reset,
			UpdatedAt:        time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC),
			Provenance:       models.ProvenancePushedManual,
		},
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, out.Plan)
	require.NotNil(t, out.Pushed)
	assert.Equal(t, 42.0, out.Pushed.FiveHourPct)
	assert.True(t, reset.Equal(*out.Pushed.FiveHourResetsAt))
	assert.True(t, s.now().Equal(out.UpdatedAt))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Update(func(st *State) error {
		st.Plan = models.PlanMax20x
		return nil
	}))
	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.PlanMax20x, st.Plan)

	boom := assert.AnError
	err = s.Update(func(st *State) error {
		st.Plan = models.PlanPro
		return boom
	})
	assert.ErrorIs(t, err, boom)
	st, _ = s.Load()
	assert.Equal(t, models.PlanMax20x, st.Plan)
}

func TestLoadCorrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{"), 0o644))
	_, err := s.Load()
	assert.Error(t, err)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(State{Plan: models.PlanPro}))
	require.NoError(t, s.Remove())
	require.NoError(t, s.Remove())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.json")
	snap, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Nil(t, snap)

	in := models.CapacitySnapshot{
		Plan:       models.PlanMax5x,
		FiveHour:   models.WindowUsage{Used: 10, Limit: 100, Pct: 10},
		Tier:       models.TierConserve,
		ComputedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Provenance: models.ProvenanceDaemon,
	}
	require.NoError(t, WriteSnapshot(path, in))
	snap, err = ReadSnapshot(path)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, models.TierConserve, snap.Tier)
	assert.Equal(t, models.ProvenanceDaemon, snap.Provenance)

	require.NoError(t, RemoveSnapshot(path))
	require.NoError(t, RemoveSnapshot(path))
}

func TestSaveUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	s := NewStore(filepath.Join(blocker, "usage.json"))
	assert.Error(t, s.Save(State{}))
}
