package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/footyoracle/footyoracle/internal/config"
	"github.com/footyoracle/footyoracle/internal/store"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats [league]",
	Short: "Show the prediction track record",
	Long: `Show accuracy statistics, overall or for one league.

Example usage:
  footyoracle stats
  footyoracle stats EPL
  footyoracle stats --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addJSONFlag(statsCmd.Flags(), &statsJSON)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	league := ""
	if len(args) == 1 {
		league = args[0]
		if _, ok := config.LeagueByCode(league); !ok {
			return fmt.Errorf("unknown league %q", league)
		}
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(ctx, league)
	if err != nil {
		return err
	}

	if statsJSON {
		return json.NewEncoder(os.Stdout).Encode(stats)
	}
	return printStats(league, stats)
}

func printStats(league string, s store.Stats) error {
	scope := "all leagues"
	if league != "" {
		scope = league
	}
	fmt.Printf("Prediction record (%s):\n", scope)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "  total\t%d\n", s.Total)
	fmt.Fprintf(w, "  resolved\t%d\n", s.Resolved)
	fmt.Fprintf(w, "  pending\t%d\n", s.Pending)
	fmt.Fprintf(w, "  correct\t%d\n", s.Correct)
	fmt.Fprintf(w, "  incorrect\t%d\n", s.Incorrect)
	fmt.Fprintf(w, "  accuracy\t%.1f%%\n", s.Accuracy*100)
	return w.Flush()
}
