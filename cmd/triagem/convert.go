package main

import (
	"fmt"
	"os"

	"github.com/aretw0/triagem/internal/cli"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <flow>",
	Short: "Print a flow as a visual graph, JSON or YAML",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		to, _ := cmd.Flags().GetString("to")
		if err := cli.Convert(cmd.OutOrStdout(), args[0], to); err != nil {
			fmt.Fprintf(os.Stderr, "Conversion failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().String("to", "visual", "Target shape: visual, document, json or yaml")
}
