package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/footyoracle/footyoracle/internal/model"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <match-id> <outcome>",
	Short: "Record the actual outcome of a predicted match",
	Long: `Resolve one prediction by hand. The outcome is HOME_WIN, AWAY_WIN or
DRAW. A prediction resolves exactly once; repeats are rejected.

Example usage:
  footyoracle resolve EPL-ARS-CHE-2026-02-12 HOME_WIN`,
	Args: cobra.ExactArgs(2),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	matchID := args[0]
	actual := model.Outcome(args[1])
	if !actual.Valid() {
		return fmt.Errorf("invalid outcome %q: want HOME_WIN, AWAY_WIN or DRAW", args[1])
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.recorder.RecordResolution(ctx, matchID, actual, time.Now().UTC())
	if err != nil {
		return err
	}

	verdict := "incorrect"
	if p.Resolution.Correct {
		verdict = "correct"
	}
	fmt.Printf("%s resolved: predicted %s, actual %s (%s)\n",
		matchID, p.Outcome, actual, verdict)
	return nil
}
