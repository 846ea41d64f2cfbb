package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/triagem/internal/cli"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp [flow...]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts Triagem as an MCP server so AI agents can validate flows and drive
sessions as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		sc := cli.NewSignalContext(context.Background())
		defer sc.Cancel()

		err := cli.ServeMCP(sc, cli.MCPOptions{
			ConfigPath: configPath,
			Transport:  transport,
			Port:       port,
			Flows:      args,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "MCP server failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().IntP("port", "p", 0, "Port for the sse transport (overrides server.port)")
}
