package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/triagem/internal/cli"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:     "simulate <flow>",
	Aliases: []string{"run"},
	Short:   "Play a flow in the terminal",
	Long: `Runs the flow interactively. Answer menus with the option number, value
or label. With --session and --redis the conversation is saved after every
turn and resumed on the next run.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := cli.SimulateOptions{FlowPath: args[0]}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Context, _ = cmd.Flags().GetString("context")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.RedisAddr, _ = cmd.Flags().GetString("redis")
		opts.Handlers, _ = cmd.Flags().GetString("handlers")
		opts.MaxInput, _ = cmd.Flags().GetInt("max-input")

		sc := cli.NewSignalContext(context.Background())
		defer sc.Cancel()

		if _, err := cli.Simulate(sc, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if sig := sc.Signal(); sig != nil {
			fmt.Fprintf(os.Stderr, "\nInterrupted (%v).\n", sig)
			os.Exit(130)
		}
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringP("session", "s", "", "Session ID to save and resume")
	simulateCmd.Flags().String("context", "", "JSON object merged into the initial context")
	simulateCmd.Flags().Bool("json", false, "Speak JSON Lines on stdin/stdout")
	simulateCmd.Flags().Bool("debug", false, "Log engine events to stderr")
	simulateCmd.Flags().Bool("fresh", false, "Discard the saved session and start over")
	simulateCmd.Flags().String("redis", "", "Redis address for saved sessions")
	simulateCmd.Flags().String("handlers", "", "Hand-off handler file (YAML or JSON)")
	simulateCmd.Flags().Int("max-input", 0, "Maximum answer size in bytes (default from TRIAGEM_MAX_INPUT_SIZE or 4096)")
}
