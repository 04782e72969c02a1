// Package cmd implements the CLI commands for slo-reporter.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/slo-reporter/internal/config"
	"github.com/donaldgifford/slo-reporter/pkg/logger"
)

// Viper keys of the run mode switches. They are read from the flags of the
// same name and from the DRY_RUN and STORE_ONLY environment variables.
const (
	keyDryRun    = "dry_run"
	keyStoreOnly = "store_only"
	keyLogLevel  = "log_level"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "slo-reporter",
		Short: "Report Thoth service level indicators",
		Long: "slo-reporter queries Thanos for the Thoth service level indicators of the\n" +
			"last evaluation window, stores a snapshot per indicator class in Ceph,\n" +
			"pushes the values to a Pushgateway and mails an HTML report.",
		SilenceUsage: true,
	}
)

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default: built-in, driven by environment variables)")
	rootCmd.PersistentFlags().
		String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.PersistentFlags().
		Bool("dry-run", false, "write the report to a local file instead of storing, pushing and mailing")
	rootCmd.PersistentFlags().
		Bool("store-only", false, "store and push indicator values without rendering or mailing the report")

	cobra.CheckErr(viper.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag(keyDryRun, rootCmd.PersistentFlags().Lookup("dry-run")))
	cobra.CheckErr(viper.BindPFlag(keyStoreOnly, rootCmd.PersistentFlags().Lookup("store-only")))
	cobra.CheckErr(viper.BindEnv(keyDryRun, "DRY_RUN"))
	cobra.CheckErr(viper.BindEnv(keyStoreOnly, "STORE_ONLY"))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(indicatorsCmd())
	rootCmd.AddCommand(remoteCmd())
	rootCmd.AddCommand(versionCommand())
}

// loadConfig loads the configuration file and applies the flag and
// environment overrides bound in viper.
func loadConfig() (*config.Config, error) {
	var overrides []config.Override
	if viper.IsSet(keyDryRun) {
		overrides = append(overrides, config.WithDryRun(viper.GetBool(keyDryRun)))
	}
	if viper.IsSet(keyStoreOnly) {
		overrides = append(overrides, config.WithStoreOnly(viper.GetBool(keyStoreOnly)))
	}
	if level := viper.GetString(keyLogLevel); level != "" {
		overrides = append(overrides, config.WithLogLevel(level))
	}

	cfg, err := config.Load(cfgFile, overrides...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the process logger and installs it as the default.
func setupLogger(cfg *config.Config) *slog.Logger {
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return log
}
