package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/rewrite/formatter"
	"github.com/gnoswap-labs/rewrite/internal/tree"
	"github.com/gnoswap-labs/rewrite/internal/tree/ruby"
	"github.com/gnoswap-labs/rewrite/rewrite"
	"github.com/gnoswap-labs/rewrite/scanner"
)

// variable for flags
var (
	ruleNames  []string
	dryRun     bool
	showDiff   bool
	workers    int
	noProgress bool
)

var errNoRules = errors.New("no rules selected: pass --rule or list rules in the config file")

var runCmd = &cobra.Command{
	Use:   "run [root]",
	Short: "Run rules over a project",
	Long: `Runs the selected rules over every matching file under root (default ".").
Example) rewrite run --rule minitest/assert_nil --dry-run .`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		// timeout is a global variable declared in root.go
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		report, err := runRewrite(ctx, logger, ruby.New(), cmd.OutOrStdout(), runOptions{
			config:   cfgFile,
			root:     root,
			rules:    ruleNames,
			dryRun:   dryRun,
			diff:     showDiff,
			workers:  workers,
			progress: !noProgress,
		})
		if err != nil {
			return err
		}
		if err := report.Err(); err != nil {
			return fmt.Errorf("%d files could not be rewritten", len(errorFiles(report)))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&ruleNames, "rule", "r", nil, "Rules to run, overriding the config file")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show rewrites without writing files")
	runCmd.Flags().BoolVar(&showDiff, "diff", false, "Print a diff of every rewritten file")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Files processed in parallel (default: number of CPUs)")
	runCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")
}

type runOptions struct {
	config   string
	root     string
	rules    []string
	dryRun   bool
	diff     bool
	workers  int
	progress bool
}

func runRewrite(ctx context.Context, logger *zap.Logger, parser tree.Parser, out io.Writer, opts runOptions) (*rewrite.Report, error) {
	cfg, reg, err := loadConfig(opts.config)
	if err != nil {
		return nil, err
	}
	if len(opts.rules) > 0 {
		cfg.Rules = opts.rules
	}
	if opts.dryRun {
		cfg.DryRun = true
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if len(cfg.Rules) == 0 {
		return nil, errNoRules
	}

	env, err := cfg.Env(opts.root)
	if err != nil {
		return nil, err
	}
	plan, err := rewrite.NewPlan(reg, cfg.Rules, env)
	if err != nil {
		return nil, err
	}
	for _, s := range plan.Skipped {
		logger.Info("rule skipped", zap.String("rule", s.Name), zap.String("guard", s.Guard))
	}

	files, err := scanner.New(opts.root, cfg.Extensions...).Scan()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.root, err)
	}

	runner, err := rewrite.NewRunner(parser, cfg, logger)
	if err != nil {
		return nil, err
	}
	if opts.progress {
		p := newProgress(os.Stderr)
		runner.OnStage = p.stage
		runner.OnFile = p.file
		defer p.finish()
	}

	report, err := runner.Run(ctx, plan, files)
	if err != nil {
		return report, err
	}
	err = formatter.WriteReport(out, report, formatter.ReportOptions{
		DryRun: cfg.DryRun,
		Diff:   opts.diff || cfg.DryRun,
	})
	return report, err
}

func errorFiles(report *rewrite.Report) []string {
	var out []string
	for _, f := range report.Files {
		if f.Err != nil {
			out = append(out, f.Rel)
		}
	}
	return out
}
