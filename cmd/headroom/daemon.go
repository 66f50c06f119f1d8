package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/headroom/pkg/daemon"
	"github.com/pario-ai/headroom/pkg/metrics"
)

func newDaemonCmd(opts *globalOptions) *cobra.Command {
	var (
		interval    time.Duration
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Keep a fresh composite snapshot on disk until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, logger, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if cmd.Flags().Changed("interval") {
				cfg.Daemon.Interval = interval
			}
			if metricsFile != "" {
				cfg.Daemon.MetricsFile = metricsFile
			}

			d := &daemon.Daemon{
				Compute:      a.Composite,
				SnapshotPath: cfg.DaemonFile,
				Interval:     cfg.Daemon.Interval,
				MinGap:       cfg.Daemon.MinGap,
				LogDirs:      cfg.LogDirs,
				StateFile:    cfg.StateFile,
				MetricsPath:  cfg.Daemon.MetricsFile,
				Logger:       logger,
			}
			if d.MetricsPath != "" {
				d.Metrics = metrics.New()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "recompute interval")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "also write Prometheus metrics to this textfile")
	return cmd
}

func newMetricsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <path>",
		Short: "Write the current snapshot as a Prometheus textfile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			snap, err := a.Status(cmd.Context())
			if err != nil {
				return err
			}
			c := metrics.New()
			c.Observe(snap)
			if err := c.WriteTextfile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Metrics written to %s\n", args[0])
			return nil
		},
	}
}
