package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "which",
		Short: "Show the coffeelint executable and version that would be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			api, err := buildAPI(cfg)
			if err != nil {
				return err
			}

			tool, inv, err := api.CoffeeScript().Tool(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", tool.Path)
			if len(inv.PrefixArgs) > 0 {
				fmt.Fprintf(out, "  args: %v\n", inv.PrefixArgs)
			}
			if tool.Version != "" {
				fmt.Fprintf(out, "  version: %s\n", tool.Version)
			}
			fmt.Fprintf(out, "  source: %s\n", tool.Source)
			return nil
		},
	}
}
