package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/footyoracle/footyoracle/internal/agent"
)

var agentJSON bool

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the autonomous prediction agent",
}

var agentRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a single prediction cycle and exit",
	Long: `Execute one full cycle: fetch the upcoming fixture slate for every
configured league, predict each fixture not already predicted, then
resolve pending predictions whose matches have finished.

Example usage:
  footyoracle agent run                # one cycle, mock mode by default
  footyoracle agent run --live         # one cycle against real providers
  footyoracle agent run --json         # machine-readable cycle summary`,
	RunE: runAgentOnce,
}

var agentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run prediction cycles continuously",
	Long: `Run cycles on the configured interval until interrupted. SIGINT or
SIGTERM stops the loop after the in-flight cycle completes, so no cycle
is abandoned half-recorded.`,
	RunE: runAgentLoop,
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentRunCmd)
	agentCmd.AddCommand(agentStartCmd)

	addJSONFlag(agentRunCmd.Flags(), &agentJSON)
}

func runAgentOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	controller := agent.New(a.cfg, a.fetcher, a.engine, a.recorder, a.metrics)
	summary := controller.RunCycle(ctx)

	if agentJSON {
		return json.NewEncoder(os.Stdout).Encode(summary)
	}
	fmt.Printf("Cycle complete: %d fixtures seen, %d predicted, %d duplicate, %d errored, %d submission failures, %d resolved\n",
		summary.FixturesSeen, summary.Predicted, summary.SkippedDuplicate,
		summary.SkippedError, summary.SubmissionFailures, summary.Resolved)
	return nil
}

func runAgentLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	controller := agent.New(a.cfg, a.fetcher, a.engine, a.recorder, a.metrics)
	controller.Run(ctx)
	return nil
}
