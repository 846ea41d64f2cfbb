package main

import (
	"fmt"
	"os"

	"github.com/aretw0/triagem/internal/cli"
	"github.com/spf13/cobra"
)

var fixCmd = &cobra.Command{
	Use:   "fix <flow>",
	Short: "Break the loops of a flow",
	Long: `Removes the back edges that close each loop, preferring options labelled
as "back" or "menu". The fixed flow is printed as JSON unless -o is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := cmd.Flags().GetString("output")
		result, err := cli.Fix(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fix failed: %v\n", err)
			os.Exit(1)
		}
		if len(result.UnresolvedCycles) > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().StringP("output", "o", "", "Write the fixed flow to this file (.json, .yaml)")
}
