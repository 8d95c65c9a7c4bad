package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jrossi/koffeelint"
)

var (
	verbosity  int
	configFile string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "koffeelint",
		Short:         "Run coffeelint over CoffeeScript buffers and files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogging(verbosity)
		},
	}

	root.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 1, "Log verbosity (0 errors only, 4 debug)")
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to a koffeelint config file (skips the layered search)")

	root.AddCommand(
		newLintCmd(),
		newWhichCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// loadAppConfig loads the explicit --config file or the layered config files.
func loadAppConfig() (*koffeelint.AppConfig, error) {
	loader, err := koffeelint.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
		cfg, err := loader.LoadConfigWithPaths([]string{configFile})
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
		return cfg, nil
	}
	return loader.LoadConfig()
}

// buildAPI creates the library API for the loaded config.
func buildAPI(cfg *koffeelint.AppConfig) (*koffeelint.API, error) {
	return koffeelint.NewBuilder().WithAppConfig(cfg).Build()
}
