// Package fetch orchestrates the signal providers behind a rate budget, a
// time-bounded cache and an ordered fallback chain. A fetch never fails
// outward: every call returns a usable value tagged with its provenance.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/footyoracle/footyoracle/internal/config"
	"github.com/footyoracle/footyoracle/internal/model"
	"github.com/footyoracle/footyoracle/internal/telemetry"
)

// formWindow is the fixed number of recent results per team.
const formWindow = 5

// h2hWindow is the number of past meetings considered for head-to-head.
const h2hWindow = 10

// Fetcher owns the cache and rate budgets (process-wide state, injected
// explicitly so tests can use isolated instances) and evaluates the
// fallback policy per signal.
type Fetcher struct {
	cfg      config.Config
	primary  PrimaryProvider
	injuries InjuryProvider
	synth    *SyntheticProvider
	cache    Cache
	budget   *RateBudget
	breakers map[string]*gobreaker.CircuitBreaker
	metrics  *telemetry.Metrics
}

// New wires a Fetcher from configuration and its collaborators. cache and
// metrics must be non-nil; providers may be nil only in mock mode.
func New(cfg config.Config, primary PrimaryProvider, injuries InjuryProvider, cache Cache, metrics *telemetry.Metrics) *Fetcher {
	budget := NewRateBudget()
	breakers := make(map[string]*gobreaker.CircuitBreaker)

	for name, pc := range map[string]config.ProviderConfig{
		"football-data": cfg.FootballData,
		"sports-api":    cfg.SportsAPI,
	} {
		budget.AddProvider(name, pc.RequestsPerMinute, pc.Burst)
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A match without a definitive result yet is a healthy
			// response, not a provider failure.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFinished)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("provider", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		})
	}

	return &Fetcher{
		cfg:      cfg,
		primary:  primary,
		injuries: injuries,
		synth:    NewSyntheticProvider(),
		cache:    cache,
		budget:   budget,
		breakers: breakers,
		metrics:  metrics,
	}
}

// SetClock replaces the synthetic provider's clock, for tests.
func (f *Fetcher) SetClock(now func() time.Time) {
	f.synth = NewSyntheticProviderAt(now)
}

// strategy is one step of the ordered fallback policy. ok=false means
// "try next".
type strategy[T any] struct {
	provenance model.Provenance
	fetch      func(ctx context.Context) (T, bool)
}

// chain evaluates strategies in order; policy as data rather than nested
// conditionals. The synthetic terminal strategy always succeeds, so the
// zero return is unreachable for well-formed chains.
func runChain[T any](ctx context.Context, signal string, metrics *telemetry.Metrics, strategies []strategy[T]) (T, model.Provenance) {
	for _, s := range strategies {
		if value, ok := s.fetch(ctx); ok {
			metrics.FetchOutcomes.WithLabelValues(signal, string(s.provenance)).Inc()
			return value, s.provenance
		}
	}
	var zero T
	return zero, model.ProvenanceSynthetic
}

// signalChain assembles the standard real -> cached -> synthetic policy for
// one signal. disabled short-circuits straight to synthetic (provider class
// switched off, or mock mode).
func signalChain[T any](f *Fetcher, provider, cacheKey string, disabled bool, real func(ctx context.Context) (T, error), synthetic func(ctx context.Context) (T, error)) []strategy[T] {
	synth := strategy[T]{
		provenance: model.ProvenanceSynthetic,
		fetch: func(ctx context.Context) (T, bool) {
			value, err := synthetic(ctx)
			if err != nil {
				// Synthetic generation cannot reasonably fail; a zero
				// value here indicates a programming error upstream.
				log.Error().Err(err).Str("key", cacheKey).Msg("synthetic fallback failed")
				var zero T
				return zero, true
			}
			return value, true
		},
	}
	if disabled {
		return []strategy[T]{synth}
	}

	realStrategy := strategy[T]{
		provenance: model.ProvenanceReal,
		fetch: func(ctx context.Context) (T, bool) {
			var zero T
			breaker := f.breakers[provider]
			if breaker != nil && breaker.State() == gobreaker.StateOpen {
				return zero, false
			}
			if !f.budget.Allow(provider) {
				f.metrics.RateExhausted.WithLabelValues(provider).Inc()
				log.Debug().Str("provider", provider).Str("key", cacheKey).Msg("rate budget exhausted")
				return zero, false
			}

			timeout := f.providerTimeout(provider)
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			run := func() (interface{}, error) { return real(callCtx) }
			var raw interface{}
			var err error
			if breaker != nil {
				raw, err = breaker.Execute(run)
			} else {
				raw, err = run()
			}
			f.metrics.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

			if err != nil {
				f.metrics.ProviderErrors.WithLabelValues(provider).Inc()
				log.Warn().Err(err).Str("provider", provider).Str("key", cacheKey).Msg("provider call failed, falling back")
				return zero, false
			}

			value := raw.(T)
			if cacheErr := f.cache.Set(ctx, cacheKey, value, f.cfg.Cache.TTL.Std()); cacheErr != nil {
				log.Warn().Err(cacheErr).Str("key", cacheKey).Msg("cache write failed")
			}
			return value, true
		},
	}

	cachedStrategy := strategy[T]{
		provenance: model.ProvenanceCached,
		fetch: func(ctx context.Context) (T, bool) {
			var value T
			ok, err := f.cache.Get(ctx, cacheKey, &value)
			if err != nil {
				log.Warn().Err(err).Str("key", cacheKey).Msg("cache read failed")
				f.metrics.CacheMisses.Inc()
				return value, false
			}
			if !ok {
				f.metrics.CacheMisses.Inc()
				return value, false
			}
			f.metrics.CacheHits.Inc()
			return value, true
		},
	}

	return []strategy[T]{realStrategy, cachedStrategy, synth}
}

func (f *Fetcher) providerTimeout(provider string) time.Duration {
	var timeout time.Duration
	switch provider {
	case "sports-api":
		timeout = f.cfg.SportsAPI.Timeout.Std()
	default:
		timeout = f.cfg.FootballData.Timeout.Std()
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

// Fixtures returns the league's upcoming fixtures inside the look-ahead
// window, sorted by kickoff.
func (f *Fetcher) Fixtures(ctx context.Context, league config.League, from, to time.Time) ([]model.Fixture, model.Provenance) {
	chain := signalChain(f, "football-data", "fixtures|"+league.Code, f.cfg.MockMode,
		func(ctx context.Context) ([]model.Fixture, error) {
			return f.primary.Fixtures(ctx, league, from, to)
		},
		func(ctx context.Context) ([]model.Fixture, error) {
			return f.synth.Fixtures(ctx, league, from, to)
		})
	return runChain(ctx, "fixtures", f.metrics, chain)
}

// TeamForm returns the team's recent results, most recent first, always a
// valid sequence of exactly formWindow results.
func (f *Fetcher) TeamForm(ctx context.Context, league config.League, team string) ([]model.Result, model.Provenance) {
	chain := signalChain(f, "football-data", "form|"+league.Code+"|"+team, f.cfg.MockMode,
		func(ctx context.Context) ([]model.Result, error) {
			return f.primary.TeamForm(ctx, league, team, formWindow)
		},
		func(ctx context.Context) ([]model.Result, error) {
			return f.synth.TeamForm(ctx, league, team, formWindow)
		})
	return runChain(ctx, "form", f.metrics, chain)
}

// Injuries returns the team's current injury list. When the injury provider
// class is disabled the synthetic value is returned immediately; the
// scoring engine separately zeroes the factor in that case.
func (f *Fetcher) Injuries(ctx context.Context, league config.League, team string) ([]model.Injury, model.Provenance) {
	disabled := f.cfg.MockMode || !f.cfg.InjuriesEnabled
	chain := signalChain(f, "sports-api", "injuries|"+league.Code+"|"+team, disabled,
		func(ctx context.Context) ([]model.Injury, error) {
			return f.injuries.Injuries(ctx, league, team)
		},
		func(ctx context.Context) ([]model.Injury, error) {
			return f.synth.Injuries(ctx, league, team)
		})
	return runChain(ctx, "injuries", f.metrics, chain)
}

// HeadToHead returns past meetings, most recent first, home perspective.
func (f *Fetcher) HeadToHead(ctx context.Context, league config.League, home, away string) ([]model.H2HResult, model.Provenance) {
	chain := signalChain(f, "football-data", "h2h|"+league.Code+"|"+home+"|"+away, f.cfg.MockMode,
		func(ctx context.Context) ([]model.H2HResult, error) {
			return f.primary.HeadToHead(ctx, league, home, away, h2hWindow)
		},
		func(ctx context.Context) ([]model.H2HResult, error) {
			return f.synth.HeadToHead(ctx, league, home, away, h2hWindow)
		})
	return runChain(ctx, "h2h", f.metrics, chain)
}

// TablePosition returns the team's current league-table position, always
// within [1, league.TableSize].
func (f *Fetcher) TablePosition(ctx context.Context, league config.League, team string) (int, model.Provenance) {
	chain := signalChain(f, "football-data", "position|"+league.Code+"|"+team, f.cfg.MockMode,
		func(ctx context.Context) (int, error) {
			return f.primary.TablePosition(ctx, league, team)
		},
		func(ctx context.Context) (int, error) {
			return f.synth.TablePosition(ctx, league, team)
		})
	pos, prov := runChain(ctx, "position", f.metrics, chain)
	if pos < 1 {
		pos = 1
	}
	if pos > league.TableSize {
		pos = league.TableSize
	}
	return pos, prov
}

// MatchResult queries the outcome source for a definitive final result.
// Unlike the signal fetches there is no synthetic terminal in live mode:
// a fabricated result would corrupt the resolution record, so an
// unavailable source simply reports not-finished and the prediction stays
// pending for a later cycle. Mock mode fabricates results so resolution
// can be exercised end to end.
func (f *Fetcher) MatchResult(ctx context.Context, fixture model.Fixture) (model.Outcome, bool) {
	if f.cfg.MockMode {
		outcome, err := f.synth.MatchResult(ctx, fixture)
		if err != nil {
			return "", false
		}
		f.metrics.FetchOutcomes.WithLabelValues("result", string(model.ProvenanceSynthetic)).Inc()
		return outcome, true
	}

	provider := "football-data"
	breaker := f.breakers[provider]
	if breaker != nil && breaker.State() == gobreaker.StateOpen {
		return "", false
	}
	if !f.budget.Allow(provider) {
		f.metrics.RateExhausted.WithLabelValues(provider).Inc()
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, f.providerTimeout(provider))
	defer cancel()

	start := time.Now()
	raw, err := breaker.Execute(func() (interface{}, error) {
		return f.primary.MatchResult(callCtx, fixture)
	})
	f.metrics.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		if !errors.Is(err, ErrNotFinished) {
			f.metrics.ProviderErrors.WithLabelValues(provider).Inc()
			log.Warn().Err(err).Str("match", fixture.MatchID()).Msg("result lookup failed")
		}
		return "", false
	}
	f.metrics.FetchOutcomes.WithLabelValues("result", string(model.ProvenanceReal)).Inc()
	return raw.(model.Outcome), true
}

// BuildBundle assembles the full signal bundle for one fixture: form for
// both teams, injuries for both teams (when enabled), head-to-head, and
// table position for both teams.
func (f *Fetcher) BuildBundle(ctx context.Context, fixture model.Fixture) model.SignalBundle {
	league, _ := config.LeagueByCode(fixture.League)
	if league.TableSize == 0 {
		league = config.League{Code: fixture.League, TableSize: 20}
	}

	bundle := model.SignalBundle{
		Fixture:         fixture,
		LeagueSize:      league.TableSize,
		InjuriesEnabled: f.cfg.InjuriesEnabled,
	}

	bundle.Home.Form, bundle.Home.FormProv = f.TeamForm(ctx, league, fixture.HomeTeam)
	bundle.Away.Form, bundle.Away.FormProv = f.TeamForm(ctx, league, fixture.AwayTeam)
	bundle.H2H, bundle.H2HProv = f.HeadToHead(ctx, league, fixture.HomeTeam, fixture.AwayTeam)
	bundle.Home.TablePosition, bundle.Home.TablePosProv = f.TablePosition(ctx, league, fixture.HomeTeam)
	bundle.Away.TablePosition, bundle.Away.TablePosProv = f.TablePosition(ctx, league, fixture.AwayTeam)
	bundle.Home.Injuries, bundle.Home.InjuriesProv = f.Injuries(ctx, league, fixture.HomeTeam)
	bundle.Away.Injuries, bundle.Away.InjuriesProv = f.Injuries(ctx, league, fixture.AwayTeam)

	return bundle
}
