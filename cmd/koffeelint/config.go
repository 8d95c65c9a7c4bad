package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/jrossi/koffeelint/linters/coffeescript"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigFindCmd(), newConfigShowCmd())
	return cmd
}

func newConfigFindCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "find [dir]",
		Short: "Print the coffeelint.json that applies to dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			api, err := buildAPI(cfg)
			if err != nil {
				return err
			}

			path, found := api.CoffeeScript().FindConfig(dir)
			if !found {
				return fmt.Errorf("no %s found from %s", coffeescript.ConfigFileName, dir)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)

			if check {
				problem, err := coffeescript.CheckConfigFile(path)
				if err != nil {
					return err
				}
				if problem != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), problem)
					return errLintFailed
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Also validate the file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged koffeelint configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
