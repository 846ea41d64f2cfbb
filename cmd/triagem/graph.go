package main

import (
	"fmt"
	"os"

	"github.com/aretw0/triagem/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export the flow as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) of the flow. With --session, the
steps visited by that session are highlighted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID, _ := cmd.Flags().GetString("session")
		redisAddr, _ := cmd.Flags().GetString("redis")

		err := cli.Graph(cmd.Context(), cmd.OutOrStdout(), cli.GraphOptions{
			FlowPath:  args[0],
			SessionID: sessionID,
			RedisAddr: redisAddr,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating graph: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight the path of this session")
	graphCmd.Flags().String("redis", "", "Redis address holding the session")
}
