package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/slo-reporter/internal/engine"
)

func runCmd() *cobra.Command {
	var (
		classes []string
		open    bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one report for the evaluation window ending now",
		Long: "Collect every indicator class, store the snapshots, push the values and\n" +
			"mail the report on the configured send day. With --dry-run the report is\n" +
			"written to a local file and nothing is stored, pushed or mailed.",
		Example: `  slo-reporter run
  slo-reporter run --dry-run --open
  DRY_RUN=1 slo-reporter run --class kebechet --class user_api`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := setupLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := buildComponents(ctx, cfg, log, buildOptions{classes: classes, open: open})
			if err != nil {
				return err
			}

			result, runErr := c.engine.Run(ctx)
			if result != nil {
				if err := printResult(cmd.OutOrStdout(), output, result); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("report run failed: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&classes, "class", nil, "only run the named indicator classes (repeatable)")
	cmd.Flags().BoolVar(&open, "open", false, "open the dry-run report in a browser")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")

	return cmd
}

func printResult(w io.Writer, format string, r *engine.RunResult) error {
	switch format {
	case "json":
		return outputJSON(w, r)
	case "table":
		return printRunResult(w, r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
