package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"powertrust/internal/cli"
	"powertrust/internal/config"
	"powertrust/internal/core"
	"powertrust/internal/log"
)

var (
	cfgFile  string
	logLevel string

	filterCountries  []string
	filterDevelopers []string
	filterYears      []int
)

var rootCmd = &cobra.Command{
	Use:   "powertrustctl",
	Short: "Manage Powertrust renewable generation data",
	Long: `powertrustctl works on the same dataset as the dashboard.
It can import the cleaned CSV into SQLite, print the KPIs, export chart
PNGs and publish the KPI snapshot to MQTT.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
}

// addFilterFlags registers the three multi-select filters on cmd.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&filterCountries, "country", nil, "keep only these countries (repeatable)")
	cmd.Flags().StringSliceVar(&filterDevelopers, "developer", nil, "keep only these developers (repeatable)")
	cmd.Flags().IntSliceVar(&filterYears, "year", nil, "keep only these years (repeatable)")
}

func selectedFilters() core.Filters {
	return core.Filters{
		Countries:  filterCountries,
		Developers: filterDevelopers,
		Years:      filterYears,
	}.Normalize()
}

// loadConfig reads .env, the environment and the optional YAML file.
func loadConfig() (*config.Config, error) {
	cli.LoadEnvFile()
	if cfgFile != "" {
		if err := os.Setenv("CONFIG_FILE", cfgFile); err != nil {
			return nil, fmt.Errorf("set config file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *log.Logger {
	return cli.SetupLogger(cfg.LogLevel, log.ComponentCLI)
}
