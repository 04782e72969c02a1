package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/donaldgifford/slo-reporter/internal/api/client"
)

const keyServer = "server"

func remoteCmd() *cobra.Command {
	remoteRoot := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running slo-reporter serve instance",
		Long: "Trigger runs and inspect results on a slo-reporter started with\n" +
			"'serve'. The server address comes from --server or SLO_REPORTER_SERVER.",
	}

	remoteRoot.PersistentFlags().String("server", "http://localhost:8080", "API server URL")
	remoteRoot.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
	cobra.CheckErr(viper.BindPFlag(keyServer, remoteRoot.PersistentFlags().Lookup("server")))
	cobra.CheckErr(viper.BindEnv(keyServer, "SLO_REPORTER_SERVER"))

	remoteRoot.AddCommand(
		remoteTriggerCmd(),
		remoteLatestCmd(),
		remoteIndicatorsCmd(),
	)

	return remoteRoot
}

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString(keyServer), apiclient.WithUserAgent("slo-reporter/"+Version))
}

func remoteTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Run a report now and wait for the result",
		Example: `  slo-reporter remote trigger
  slo-reporter remote trigger --server http://slo-reporter:8080 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := newClient().TriggerRun(cmd.Context())
			if err != nil {
				var apiErr *apiclient.APIError
				if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
					return errors.New("a run is already in progress on the server")
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), outputFlag(cmd), result)
		},
	}
}

func remoteLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the result of the most recent run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := newClient().LatestRun(cmd.Context())
			if err != nil {
				var apiErr *apiclient.APIError
				if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
					fmt.Fprintln(cmd.OutOrStdout(), "No run has completed yet.")
					return nil
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), outputFlag(cmd), result)
		},
	}
}

func remoteIndicatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indicators",
		Short: "List the indicator classes the server runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			indicators, err := newClient().ListIndicators(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outputFlag(cmd) == "json" {
				return outputJSON(w, indicators)
			}
			return printIndicatorTable(w, indicators)
		},
	}
}

func outputFlag(cmd *cobra.Command) string {
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return "table"
	}
	return out
}
