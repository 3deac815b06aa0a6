// Package agent runs the autonomous prediction loop: discover upcoming
// fixtures, build signal bundles, score them, record predictions exactly
// once per match, and reconcile pending predictions against final results.
package agent

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/footyoracle/footyoracle/internal/config"
	"github.com/footyoracle/footyoracle/internal/engine"
	"github.com/footyoracle/footyoracle/internal/model"
	"github.com/footyoracle/footyoracle/internal/recorder"
	"github.com/footyoracle/footyoracle/internal/store"
	"github.com/footyoracle/footyoracle/internal/telemetry"
)

// SignalSource is the slice of the fetcher the controller consumes.
type SignalSource interface {
	Fixtures(ctx context.Context, league config.League, from, to time.Time) ([]model.Fixture, model.Provenance)
	BuildBundle(ctx context.Context, fixture model.Fixture) model.SignalBundle
	MatchResult(ctx context.Context, fixture model.Fixture) (model.Outcome, bool)
}

// CycleSummary accounts for every fixture a cycle saw. FixturesSeen equals
// Predicted + SkippedDuplicate + SkippedError + SubmissionFailures.
type CycleSummary struct {
	FixturesSeen       int
	Predicted          int
	SkippedDuplicate   int
	SkippedError       int
	SubmissionFailures int
	Resolved           int
}

// Controller drives prediction cycles over the configured leagues.
type Controller struct {
	cfg      config.Config
	source   SignalSource
	engine   *engine.Engine
	recorder recorder.Recorder
	metrics  *telemetry.Metrics

	now func() time.Time
}

// New wires a Controller.
func New(cfg config.Config, source SignalSource, eng *engine.Engine, rec recorder.Recorder, metrics *telemetry.Metrics) *Controller {
	return &Controller{
		cfg:      cfg,
		source:   source,
		engine:   eng,
		recorder: rec,
		metrics:  metrics,
		now:      time.Now,
	}
}

// RunCycle executes one full cycle: a prediction pass over every
// configured league, then a resolution pass over the pending backlog.
// Per-fixture failures are absorbed into the summary; the cycle itself
// does not fail.
func (c *Controller) RunCycle(ctx context.Context) CycleSummary {
	start := c.now()
	var summary CycleSummary

	for _, code := range c.cfg.Agent.Leagues {
		league, ok := config.LeagueByCode(code)
		if !ok {
			log.Error().Str("league", code).Msg("unknown league in cycle, skipping")
			continue
		}
		c.predictLeague(ctx, league, &summary)
	}

	c.resolvePending(ctx, &summary)

	elapsed := time.Since(start)
	c.metrics.CyclesTotal.Inc()
	c.metrics.CycleDuration.Observe(elapsed.Seconds())
	log.Info().
		Int("fixtures", summary.FixturesSeen).
		Int("predicted", summary.Predicted).
		Int("skipped_duplicate", summary.SkippedDuplicate).
		Int("skipped_error", summary.SkippedError).
		Int("submission_failures", summary.SubmissionFailures).
		Int("resolved", summary.Resolved).
		Dur("elapsed", elapsed).
		Msg("cycle complete")
	return summary
}

func (c *Controller) predictLeague(ctx context.Context, league config.League, summary *CycleSummary) {
	from := c.now()
	to := from.AddDate(0, 0, c.cfg.Agent.LookaheadDays)

	fixtures, prov := c.source.Fixtures(ctx, league, from, to)
	// Stable processing order regardless of provider ordering quirks.
	sort.SliceStable(fixtures, func(i, j int) bool {
		if !fixtures[i].Kickoff.Equal(fixtures[j].Kickoff) {
			return fixtures[i].Kickoff.Before(fixtures[j].Kickoff)
		}
		return fixtures[i].MatchID() < fixtures[j].MatchID()
	})
	log.Debug().Str("league", league.Code).Int("fixtures", len(fixtures)).
		Str("provenance", string(prov)).Msg("fixture slate fetched")

	for _, fixture := range fixtures {
		summary.FixturesSeen++
		c.predictFixture(ctx, fixture, summary)
	}
}

func (c *Controller) predictFixture(ctx context.Context, fixture model.Fixture, summary *CycleSummary) {
	matchID := fixture.MatchID()
	logger := log.With().Str("match", matchID).Logger()

	_, exists, err := c.recorder.LookupPrediction(ctx, matchID)
	if err != nil {
		logger.Warn().Err(err).Msg("dedup lookup failed, skipping fixture")
		summary.SkippedError++
		c.metrics.FixturesSkipped.WithLabelValues("error").Inc()
		return
	}
	if exists {
		summary.SkippedDuplicate++
		c.metrics.FixturesSkipped.WithLabelValues("duplicate").Inc()
		return
	}

	bundle := c.source.BuildBundle(ctx, fixture)
	if err := bundle.Validate(); err != nil {
		logger.Warn().Err(err).Msg("signal bundle invalid, skipping fixture")
		summary.SkippedError++
		c.metrics.FixturesSkipped.WithLabelValues("error").Inc()
		return
	}

	prediction := c.engine.Predict(bundle)
	prediction.CreatedAt = c.now().UTC()

	if err := c.recorder.RecordPrediction(ctx, &prediction); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Raced with another writer between lookup and insert.
			summary.SkippedDuplicate++
			c.metrics.FixturesSkipped.WithLabelValues("duplicate").Inc()
			return
		}
		logger.Warn().Err(err).Msg("prediction submission failed")
		summary.SubmissionFailures++
		c.metrics.SubmissionFailures.Inc()
		return
	}

	summary.Predicted++
	c.metrics.PredictionsMade.Inc()
	logger.Info().
		Str("outcome", string(prediction.Outcome)).
		Float64("confidence", prediction.Confidence).
		Time("kickoff", fixture.Kickoff).
		Msg("prediction recorded")
}

// resolvePending reconciles unresolved predictions whose fixture finished
// at least the grace period ago. A match without a definitive result stays
// pending for the next cycle.
func (c *Controller) resolvePending(ctx context.Context, summary *CycleSummary) {
	cutoff := c.now().Add(-c.cfg.Agent.ResolutionGrace.Std())
	pending, err := c.recorder.PendingResolutions(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("pending resolution query failed")
		return
	}

	for _, p := range pending {
		actual, ok := c.source.MatchResult(ctx, p.Fixture)
		if !ok {
			continue
		}
		resolved, err := c.recorder.RecordResolution(ctx, p.MatchID, actual, c.now().UTC())
		if err != nil {
			if errors.Is(err, store.ErrAlreadyResolved) {
				continue
			}
			log.Warn().Err(err).Str("match", p.MatchID).Msg("resolution submission failed")
			continue
		}
		summary.Resolved++
		c.metrics.ResolutionsMade.Inc()
		log.Info().
			Str("match", p.MatchID).
			Str("predicted", string(resolved.Outcome)).
			Str("actual", string(actual)).
			Bool("correct", resolved.Resolution.Correct).
			Msg("prediction resolved")
	}
}

// Run executes cycles until ctx is cancelled: one immediately, then one
// per configured interval. Cancellation cuts the inter-cycle wait short
// while the in-flight cycle body finishes on a detached context, so a
// cycle is never abandoned half-recorded.
func (c *Controller) Run(ctx context.Context) {
	log.Info().
		Strs("leagues", c.cfg.Agent.Leagues).
		Dur("interval", c.cfg.Agent.CycleInterval.Std()).
		Bool("mock_mode", c.cfg.MockMode).
		Msg("agent starting")

	ticker := time.NewTicker(c.cfg.Agent.CycleInterval.Std())
	defer ticker.Stop()

	c.RunCycle(context.WithoutCancel(ctx))
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("agent stopping")
			return
		case <-ticker.C:
			c.RunCycle(context.WithoutCancel(ctx))
		}
	}
}

// SetClock replaces the controller clock, for tests.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }
