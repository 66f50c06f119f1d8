package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pario-ai/headroom/pkg/advisor"
	"github.com/pario-ai/headroom/pkg/config"
	"github.com/pario-ai/headroom/pkg/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitError carries a specific process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	plan       string
	logDirs    []string
	stateFile  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "headroom",
		Short:         "Headroom: rolling-window usage metering for Claude subscriptions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to config file (default ~/.config/headroom/headroom.yaml)")
	flags.StringVar(&opts.plan, "plan", "", "plan to evaluate against, overriding the stored plan")
	flags.StringArrayVar(&opts.logDirs, "log-dir", nil, "session log directory (repeatable)")
	flags.StringVar(&opts.stateFile, "state-file", "", "path to the usage state file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newStatusCmd(opts),
		newShouldExploreCmd(opts),
		newJSONCmd(opts),
		newHistoryCmd(opts),
		newSetPlanCmd(opts),
		newUpdateCmd(opts),
		newUpdateJSONCmd(opts),
		newResetCmd(opts),
		newDaemonCmd(opts),
		newMetricsCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

// loadConfig reads the config file and applies the global flags on top.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.plan != "" {
		cfg.PlanOverride = o.plan
	}
	if len(o.logDirs) > 0 {
		cfg.LogDirs = o.logDirs
	}
	if o.stateFile != "" {
		cfg.StateFile = o.stateFile
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// open builds the advisor for a command. The caller must Close it.
func (o *globalOptions) open() (*advisor.Advisor, *config.Config, zerolog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	a, err := advisor.New(cfg, logger)
	if err != nil {
		return nil, nil, logger, err
	}
	return a, cfg, logger, nil
}
