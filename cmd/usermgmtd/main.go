package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agrilink/usermgmt/internal/config"
	"github.com/agrilink/usermgmt/internal/logger"
)

var (
	envFile    string
	configFile string
)

var mainCmd = &cobra.Command{
	Use:   "usermgmtd",
	Short: "User management service for farmers, experts and admins.",

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func main() {
	mainCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	mainCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML/JSON/TOML config file")

	mainCmd.AddCommand(serveCmd)
	mainCmd.AddCommand(createAdminCmd)
	mainCmd.AddCommand(openapiCmd)
	mainCmd.AddCommand(versionCmd)

	if err := mainCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and prepares logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile, configFile)
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.LogDir); err != nil {
		return nil, fmt.Errorf("init file logging: %w", err)
	}
	return cfg, nil
}
