package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/triagem/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flow...]",
	Short: "Start the HTTP server",
	Long: `Exposes flow tooling and session endpoints as a JSON API. Flow files given
as arguments are registered under their base name at startup.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		port, _ := cmd.Flags().GetInt("port")

		sc := cli.NewSignalContext(context.Background())
		defer sc.Cancel()

		err := cli.Serve(sc, cli.ServeOptions{ConfigPath: configPath, Port: port, Flows: args})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides server.port)")
}
