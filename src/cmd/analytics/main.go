package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/analytics-sim/src/analytics/services"
	"github.com/jiaming2012/analytics-sim/src/utils"
)

var rootCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Replays historical bars through trading strategy runners against a mock broker",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envDir, err := cmd.Flags().GetString("env-dir")
		if err != nil {
			return fmt.Errorf("error getting env-dir: %w", err)
		}

		if err := utils.InitEnvironmentVariables(envDir); err != nil {
			return fmt.Errorf("error initializing environment variables: %w", err)
		}

		return setupLogging(os.Getenv("LOG_LEVEL"))
	},
}

func setupLogging(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if level == "" {
		return nil
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	log.SetLevel(lvl)
	return nil
}

func loadConfig(cmd *cobra.Command) (*services.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("error getting config: %w", err)
	}

	return services.LoadConfig(path)
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file.")
	rootCmd.PersistentFlags().String("env-dir", ".", "Directory holding the .env.<GO_ENV> files.")

	rootCmd.AddCommand(newServeCmd(), newRunCmd())

	cobra.CheckErr(rootCmd.Execute())
}
