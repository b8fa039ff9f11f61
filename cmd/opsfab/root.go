package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/config"
	"github.com/opsfab/opsfab/telemetry"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "opsfab",
		Short: "Provision EC2 instances and deploy applications over SSH",
		Long: `Opsfab - EC2 provisioning and deployment

Opsfab launches and tracks EC2 instances, then deploys Python
applications onto them over SSH: directory layout, virtualenvs,
config templates, supervisord/nginx wiring and DNS cutover.

Every run is journaled, so what happened on which host stays
answerable.`,
		Version: version,
	}

	flagConfig string
	flagEnv    string
	flagDebug  bool
	flagJSON   bool
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Opsfab {{.Version}} - EC2 provisioning and deployment
`)

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default ./opsfab.yaml, or $OPSFAB_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&flagEnv, "env", "e", "", "Target environment (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json-logs", false, "Log JSON instead of console output")
}

// newLogger builds the CLI logger per the global flags
func newLogger() *telemetry.Logger {
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if flagJSON {
		return telemetry.NewLogger("opsfab")
	}
	return telemetry.NewConsoleLogger("opsfab")
}

// loadConfig reads the config named by --config or its defaults
func loadConfig() (*config.Config, error) {
	return config.Load(config.Path(flagConfig))
}

// loadEnv reads config and selects the environment named by --env
func loadEnv() (*config.Config, *config.Environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	env, err := cfg.Env(flagEnv)
	if err != nil {
		return nil, nil, err
	}
	return cfg, env, nil
}
