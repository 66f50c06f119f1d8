package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/headroom/pkg/reconcile"
)

func newSetPlanCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-plan <plan>",
		Short: "Set the subscription plan (pro, max5x, max20x or a configured plan)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.SetPlan(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan set to: %s\n", args[0])
			return nil
		},
	}
}

func newUpdateCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "update <5h_pct> <7d_pct> [resets_at]",
		Short: "Record utilization percentages observed elsewhere",
		Long: "Record utilization percentages observed elsewhere, for example on the account usage page.\n" +
			"resets_at is an RFC 3339 instant at which the 5-hour window resets.\n" +
			"Pushed values are used when session logs are unavailable, or always with --force.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			five, err := parsePct("5h_pct", args[0])
			if err != nil {
				return err
			}
			seven, err := parsePct("7d_pct", args[1])
			if err != nil {
				return err
			}
			var resetsAt *time.Time
			if len(args) == 3 {
				ts, err := reconcile.ParseInstant(args[2])
				if err != nil {
					return err
				}
				resetsAt = &ts
			}

			a, _, _, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			applied, err := a.Update(five, seven, resetsAt, force)
			if err != nil {
				return err
			}
			reportPush(cmd.OutOrStdout(), applied)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "prefer these values over session logs")
	return cmd
}

func newUpdateJSONCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "update-json <payload|->",
		Short: "Record utilization from a JSON payload ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := []byte(args[0])
			if args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read payload: %w", err)
				}
				payload = data
			}

			a, _, _, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			applied, err := a.UpdateJSON(payload, force)
			if err != nil {
				return err
			}
			reportPush(cmd.OutOrStdout(), applied)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "prefer these values over session logs")
	return cmd
}

func newResetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear stored state, the daemon snapshot and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Usage state cleared.")
			return nil
		},
	}
}

func parsePct(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, errors.Unwrap(err))
	}
	return v, nil
}

func reportPush(w io.Writer, applied bool) {
	if applied {
		fmt.Fprintln(w, "Usage updated.")
		return
	}
	fmt.Fprintln(w, "A newer update is already stored; nothing changed.")
}
