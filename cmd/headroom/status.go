package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/headroom/pkg/advisor"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current usage, capacity tier and advice",
		Args:  cobra.NoArgs,
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
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			fmt.Fprint(cmd.OutOrStdout(), advisor.FormatStatus(snap))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func newShouldExploreCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "should-explore",
		Short: "Print yes, maybe or no and exit 0, 1 or 2",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := opts.open()
			if err != nil {
				return &exitError{code: 3, err: err}
			}
			defer func() { _ = a.Close() }()

			d, _, err := a.ShouldExplore(cmd.Context())
			if err != nil {
				return &exitError{code: 3, err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), d)
			if code := d.ExitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
}

func newJSONCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "json",
		Aliases: []string{"raw"},
		Short:   "Print the full capacity snapshot as JSON",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			data, err := a.Raw(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded capacity snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entries, err := a.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			fmt.Fprintln(cmd.OutOrStdout(), advisor.FormatHistory(entries))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}
