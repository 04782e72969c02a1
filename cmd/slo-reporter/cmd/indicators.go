package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/slo-reporter/internal/api/handlers"
	"github.com/donaldgifford/slo-reporter/internal/config"
	"github.com/donaldgifford/slo-reporter/internal/sli"
)

func indicatorsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "indicators [class]",
		Short: "List indicator classes, or the queries of one class",
		Args:  cobra.MaximumNArgs(1),
		Example: `  slo-reporter indicators
  slo-reporter indicators component_latency -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, config.Offline())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			registry := sli.NewRegistry(sli.ParamsFromConfig(cfg))
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				indicators := handlers.DescribeIndicators(registry)
				if output == "json" {
					return outputJSON(w, indicators)
				}
				return printIndicatorTable(w, indicators)
			}

			selected, err := registry.Select(args)
			if err != nil {
				return fmt.Errorf("%w (known: %v)", err, registry.Names())
			}
			ind := handlers.DescribeIndicators(selected)[0]
			if output == "json" {
				return outputJSON(w, ind)
			}
			return printIndicatorQueries(w, &ind)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	return cmd
}
