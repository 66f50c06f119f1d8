package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/headroom/pkg/metrics"
	"github.com/pario-ai/headroom/pkg/models"
	"github.com/pario-ai/headroom/pkg/state"
)

func testSnapshot() models.CapacitySnapshot {
	return models.CapacitySnapshot{
		Plan:       models.PlanMax5x,
		FiveHour:   models.WindowUsage{Used: 2_475_000, Limit: 3_300_000, Pct: 75},
		SevenDay:   models.WindowUsage{Used: 1_000, Limit: 41_666_700, Pct: 0.1},
		Tier:       models.TierConserve,
		PExplore:   0.35,
		ComputedAt: time.Now().UTC(),
		Provenance: models.ProvenanceLogs,
	}
}

func runDaemon(t *testing.T, d *Daemon) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	}
}

func TestDaemonPublishesOnInterval(t *testing.T) {
	dir := t.TempDir()
	var count atomic.Int32
	d := &Daemon{
		Compute: func(context.Context) (models.CapacitySnapshot, error) {
			count.Add(1)
			return testSnapshot(), nil
		},
		SnapshotPath: filepath.Join(dir, "usage-daemon.json"),
		Interval:     50 * time.Millisecond,
		Metrics:      metrics.New(),
		MetricsPath:  filepath.Join(dir, "headroom.prom"),
		Logger:       zerolog.Nop(),
	}

	stop := runDaemon(t, d)
	require.Eventually(t, func() bool { return count.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
	stop()

	snap, err := state.ReadSnapshot(d.SnapshotPath)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, models.ProvenanceDaemon, snap.Provenance)
	assert.Equal(t, models.TierConserve, snap.Tier)

	data, err := os.ReadFile(d.MetricsPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `headroom_utilization_percent{window="five_hour"} 75`))
}

func TestDaemonRecomputesOnLogChange(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "projects")
	require.NoError(t, os.MkdirAll(logDir, 0755))

	var count atomic.Int32
	d := &Daemon{
		Compute: func(context.Context) (models.CapacitySnapshot, error) {
			count.Add(1)
			return testSnapshot(), nil
		},
		SnapshotPath: filepath.Join(dir, "usage-daemon.json"),
		LogDirs:      []string{logDir},
		Logger:       zerolog.Nop(),
	}

	stop := runDaemon(t, d)
	defer stop()
	require.Eventually(t, func() bool { return count.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "session.jsonl"), []byte("{}\n"), 0644))
	require.Eventually(t, func() bool { return count.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestDaemonIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "projects")
	require.NoError(t, os.MkdirAll(logDir, 0755))

	var count atomic.Int32
	d := &Daemon{
		Compute: func(context.Context) (models.CapacitySnapshot, error) {
			count.Add(1)
			return testSnapshot(), nil
		},
		SnapshotPath: filepath.Join(dir, "usage-daemon.json"),
		LogDirs:      []string{logDir},
		Logger:       zerolog.Nop(),
	}

	stop := runDaemon(t, d)
	defer stop()
	require.Eventually(t, func() bool { return count.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "notes.txt"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
}

func TestDaemonSkipsNoDataAndErrors(t *testing.T) {
	dir := t.TempDir()
	var count atomic.Int32
	d := &Daemon{
		Compute: func(context.Context) (models.CapacitySnapshot, error) {
			if count.Add(1)%2 == 0 {
				return models.CapacitySnapshot{}, errors.New("boom")
			}
			return models.CapacitySnapshot{NoData: true}, nil
		},
		SnapshotPath: filepath.Join(dir, "usage-daemon.json"),
		Interval:     20 * time.Millisecond,
		Logger:       zerolog.Nop(),
	}

	stop := runDaemon(t, d)
	require.Eventually(t, func() bool { return count.Load() >= 4 }, 5*time.Second, 10*time.Millisecond)
	stop()

	snap, err := state.ReadSnapshot(d.SnapshotPath)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestDaemonRequiresCompute(t *testing.T) {
	d := &Daemon{Logger: zerolog.Nop()}
	assert.Error(t, d.Run(context.Background()))
}
