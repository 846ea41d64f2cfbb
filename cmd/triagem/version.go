package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/triagem"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of triagem",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "triagem version %s\n", strings.TrimSpace(triagem.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
