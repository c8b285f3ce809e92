package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools enabled by the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		registry, err := a.registry()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), registry.Describe())
		return nil
	},
}
