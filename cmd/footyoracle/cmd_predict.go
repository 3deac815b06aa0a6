package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/footyoracle/footyoracle/internal/model"
)

var (
	predictDate string
	predictJSON bool
)

var predictCmd = &cobra.Command{
	Use:   "predict <league> <home-team> <away-team>",
	Short: "Predict the outcome of a single match",
	Long: `Score one fixture on demand and print the outcome call with its
factor breakdown. The prediction is recorded, so repeating the command
for the same fixture returns the original call.

Example usage:
  footyoracle predict EPL Arsenal Chelsea
  footyoracle predict EPL Arsenal Chelsea --date=2026-02-12
  footyoracle predict LaLiga "Real Madrid" Barcelona --json`,
	Args: cobra.ExactArgs(3),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&predictDate, "date", "", "Match date (YYYY-MM-DD, default tomorrow)")
	addJSONFlag(predictCmd.Flags(), &predictJSON)
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	kickoff := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour).Add(15 * time.Hour)
	if predictDate != "" {
		day, err := time.Parse("2006-01-02", predictDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", predictDate, err)
		}
		kickoff = day.Add(15 * time.Hour)
	}

	fixture := model.Fixture{
		League:   args[0],
		HomeTeam: args[1],
		AwayTeam: args[2],
		Kickoff:  kickoff,
	}

	if existing, found, err := a.recorder.LookupPrediction(ctx, fixture.MatchID()); err != nil {
		return err
	} else if found {
		return printPrediction(existing, true)
	}

	bundle := a.fetcher.BuildBundle(ctx, fixture)
	if err := bundle.Validate(); err != nil {
		return fmt.Errorf("signals unavailable for %s: %w", fixture.MatchID(), err)
	}

	prediction := a.engine.Predict(bundle)
	prediction.CreatedAt = time.Now().UTC()
	if err := a.recorder.RecordPrediction(ctx, &prediction); err != nil {
		return err
	}
	return printPrediction(prediction, false)
}

func printPrediction(p model.Prediction, existing bool) error {
	if predictJSON {
		return json.NewEncoder(os.Stdout).Encode(p)
	}

	if existing {
		fmt.Println("Already predicted:")
	}
	fmt.Printf("%s vs %s (%s, kickoff %s)\n",
		p.Fixture.HomeTeam, p.Fixture.AwayTeam, p.Fixture.League,
		p.Fixture.Kickoff.Format("2006-01-02 15:04 MST"))
	fmt.Printf("  Prediction: %s (confidence %.1f%%)\n", p.Outcome, p.Confidence*100)
	fmt.Printf("  Match ID:   %s\n", p.MatchID)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "  Factor\tScore\n")
	fmt.Fprintf(w, "  form\t%+.3f\n", p.Factors.FormScore)
	fmt.Fprintf(w, "  injuries\t%+.3f\n", p.Factors.InjuryImpact)
	fmt.Fprintf(w, "  head-to-head\t%+.3f\n", p.Factors.H2HScore)
	fmt.Fprintf(w, "  table position\t%+.3f\n", p.Factors.TablePositionScore)
	return w.Flush()
}
