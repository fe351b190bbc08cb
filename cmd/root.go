package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/rewrite/rewrite"
	"github.com/gnoswap-labs/rewrite/rules"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile string
	timeout time.Duration
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:              "rewrite [root]",
	Short:            "rewrite - find and rewrite code with tree patterns",
	SilenceUsage:     true,
	TraverseChildren: true, // Prioritize subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// no subcommand
		if len(args) == 0 {
			return cmd.Help()
		}
		// Format: rewrite [root] => behaves like the run subcommand
		return runCmd.RunE(cmd, args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is ./"+rewrite.DefaultConfigFile+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Overall time limit")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable development logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(listCmd)
}

// loadConfig reads the configuration and builds the registry of built-in
// and configured YAML rules.
func loadConfig(path string) (rewrite.Config, *rewrite.Registry, error) {
	cfg, err := rewrite.LoadConfig(path)
	if err != nil {
		return rewrite.Config{}, nil, err
	}
	reg := rewrite.NewRegistry()
	if err := rules.Register(reg); err != nil {
		return rewrite.Config{}, nil, err
	}
	for _, path := range cfg.RuleFiles {
		loaded, err := rewrite.LoadRules(path)
		if err != nil {
			return rewrite.Config{}, nil, err
		}
		if err := reg.Register(loaded...); err != nil {
			return rewrite.Config{}, nil, err
		}
	}
	return cfg, reg, nil
}
