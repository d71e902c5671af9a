package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/lychee-technology/catalogue"
	"github.com/lychee-technology/catalogue/factory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const envPrefix = "CATALOGUE"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := newRootCommand().Execute(); err != nil {
		zap.S().Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogue-tools",
		Short:         "Maintenance commands for the product catalogue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().String("env-file", ".env", "dotenv file read before the environment")

	root.AddCommand(newInitDBCommand())
	root.AddCommand(newHealthCommand())
	root.AddCommand(newExportSchemaCommand())
	root.AddCommand(newReservedWordsCommand())
	return root
}

// loadConfig reads the configuration and replaces the global logger with
// one built from it.
func loadConfig() (*catalogue.Config, error) {
	cfg, err := catalogue.LoadConfig(envPrefix)
	if err != nil {
		return nil, err
	}
	logger, err := factory.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, nil
}
