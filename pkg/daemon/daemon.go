// Package daemon keeps a composite capacity snapshot fresh on disk.
package daemon

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pario-ai/headroom/pkg/metrics"
	"github.com/pario-ai/headroom/pkg/models"
	"github.com/pario-ai/headroom/pkg/state"
)

// ComputeFunc produces the snapshot published on each cycle.
type ComputeFunc func(ctx context.Context) (models.CapacitySnapshot, error)

// Daemon recomputes on a ticker and whenever a watched file changes, and
// publishes the result to SnapshotPath and optionally a metrics textfile.
type Daemon struct {
	Compute      ComputeFunc
	SnapshotPath string
	// Interval between unconditional recomputes. Zero disables the ticker.
	Interval time.Duration
	// MinGap is the minimum spacing of change-triggered recomputes.
	MinGap time.Duration
	// LogDirs are watched recursively for session log changes.
	LogDirs []string
	// StateFile changes (pushes, plan changes) also trigger a recompute.
	StateFile   string
	Metrics     *metrics.Collector
	MetricsPath string
	Logger      zerolog.Logger
}

// Run publishes immediately and then keeps publishing until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.Compute == nil {
		return errors.New("daemon: no compute function")
	}
	logger := d.Logger.With().Str("run_id", uuid.NewString()).Logger()
	logger.Info().Dur("interval", d.Interval).Strs("log_dirs", d.LogDirs).Msg("daemon started")

	d.runOnce(ctx, logger)

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := d.watch(logger)
	if err != nil {
		logger.Warn().Err(err).Msg("file watching disabled, relying on the interval")
	} else {
		defer watcher.Close()
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	var tick <-chan time.Time
	if d.Interval > 0 {
		ticker := time.NewTicker(d.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	limiter := rate.NewLimiter(rate.Every(d.MinGap), 1)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("daemon stopped")
			return nil

		case <-tick:
			d.runOnce(ctx, logger)

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				d.addIfDir(watcher, event.Name, logger)
			}
			if !d.relevant(event) {
				continue
			}
			logger.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("change detected")
			if pending == nil {
				pending = time.After(limiter.Reserve().Delay())
			}

		case <-pending:
			pending = nil
			d.runOnce(ctx, logger)

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Error().Err(err).Msg("file watcher error")
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context, logger zerolog.Logger) {
	snap, err := d.Compute(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("recompute failed")
		return
	}
	if snap.NoData {
		logger.Debug().Msg("no usage data, snapshot not published")
		return
	}

	snap.Provenance = models.ProvenanceDaemon
	if err := state.WriteSnapshot(d.SnapshotPath, snap); err != nil {
		logger.Error().Err(err).Str("path", d.SnapshotPath).Msg("publish snapshot")
		return
	}
	logger.Debug().
		Str("tier", snap.Tier.String()).
		Float64("five_hour_pct", snap.FiveHour.Pct).
		Float64("seven_day_pct", snap.SevenDay.Pct).
		Msg("snapshot published")

	if d.Metrics == nil {
		return
	}
	d.Metrics.Observe(snap)
	if d.MetricsPath != "" {
		if err := d.Metrics.WriteTextfile(d.MetricsPath); err != nil {
			logger.Error().Err(err).Str("path", d.MetricsPath).Msg("write metrics")
		}
	}
}

// watch registers every log directory tree and the state file's directory.
func (d *Daemon) watch(logger zerolog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	added := 0
	for _, root := range d.LogDirs {
		err := filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if e.IsDir() {
				if err := watcher.Add(path); err != nil {
					logger.Warn().Err(err).Str("dir", path).Msg("cannot watch directory")
					return nil
				}
				added++
			}
			return nil
		})
		if err != nil {
			logger.Warn().Err(err).Str("dir", root).Msg("cannot walk log directory")
		}
	}
	if d.StateFile != "" {
		if err := watcher.Add(filepath.Dir(d.StateFile)); err == nil {
			added++
		}
	}

	if added == 0 {
		watcher.Close()
		return nil, errors.New("nothing to watch")
	}
	return watcher, nil
}

func (d *Daemon) addIfDir(watcher *fsnotify.Watcher, path string, logger zerolog.Logger) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := watcher.Add(path); err != nil {
		logger.Warn().Err(err).Str("dir", path).Msg("cannot watch directory")
	}
}

func (d *Daemon) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	if strings.HasSuffix(event.Name, ".jsonl") {
		return true
	}
	return d.StateFile != "" && filepath.Clean(event.Name) == filepath.Clean(d.StateFile)
}
