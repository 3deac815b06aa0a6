// Command footyoracle predicts football match outcomes: an autonomous
// agent scans upcoming fixtures across the configured leagues, scores
// them from form, injuries, head-to-head history and table position, and
// keeps a resolved track record of how its calls fared.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/footyoracle/footyoracle/internal/config"
	"github.com/footyoracle/footyoracle/internal/engine"
	"github.com/footyoracle/footyoracle/internal/fetch"
	"github.com/footyoracle/footyoracle/internal/recorder"
	"github.com/footyoracle/footyoracle/internal/store"
	"github.com/footyoracle/footyoracle/internal/telemetry"
)

var (
	flagConfig  string
	flagMock    bool
	flagLive    bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "footyoracle",
	Short: "Football match outcome prediction agent",
	Long: `FootyOracle scans upcoming fixtures in the top European leagues,
scores each match from recent form, injuries, head-to-head history and
league position, and records one prediction per fixture. Once matches
finish, predictions are resolved against the final result so the track
record stays honest.

Runs fully offline in mock mode (the default without API keys).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&flagMock, "mock", false, "Force mock mode (synthetic data only)")
	rootCmd.PersistentFlags().BoolVar(&flagLive, "live", false, "Force live mode (requires API keys)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// addJSONFlag registers the shared machine-readable output flag.
func addJSONFlag(fs *pflag.FlagSet, dest *bool) {
	fs.BoolVar(dest, "json", false, "Machine-readable JSON output")
}

func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if flagVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// app holds the wired process components shared by the subcommands.
type app struct {
	cfg      config.Config
	metrics  *telemetry.Metrics
	store    store.PredictionStore
	fetcher  *fetch.Fetcher
	engine   *engine.Engine
	recorder recorder.Recorder

	cleanups []func() error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if flagMock && flagLive {
		return config.Config{}, fmt.Errorf("--mock and --live are mutually exclusive")
	}
	if flagMock {
		cfg.MockMode = true
	}
	if flagLive {
		cfg.MockMode = false
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, metrics: telemetry.New()}

	var cache fetch.Cache
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := fetch.NewRedisCache(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.cleanups = append(a.cleanups, redisCache.Close)
		cache = redisCache
	} else {
		ttlCache := fetch.NewTTLCache(cfg.Cache.MaxEntries)
		a.cleanups = append(a.cleanups, func() error { ttlCache.Stop(); return nil })
		cache = ttlCache
	}

	var primary fetch.PrimaryProvider
	var injuries fetch.InjuryProvider
	if !cfg.MockMode {
		primary = fetch.NewFootballDataClient(cfg.FootballData)
		injuries = fetch.NewSportsAPIClient(cfg.SportsAPI)
	}
	a.fetcher = fetch.New(cfg, primary, injuries, cache, a.metrics)

	a.engine, err = engine.New(engine.DefaultWeights())
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		a.store = pg
	} else {
		a.store = store.NewMemoryStore()
	}
	a.cleanups = append(a.cleanups, a.store.Close)

	if cfg.BackendURL != "" {
		a.recorder = recorder.NewHTTPRecorder(cfg.BackendURL)
	} else {
		a.recorder = recorder.NewStoreRecorder(a.store)
	}

	log.Debug().
		Bool("mock_mode", cfg.MockMode).
		Bool("redis", cfg.Cache.RedisAddr != "").
		Bool("postgres", cfg.DatabaseURL != "").
		Bool("remote_backend", cfg.BackendURL != "").
		Msg("components wired")
	return a, nil
}

func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			log.Warn().Err(err).Msg("cleanup failed")
		}
	}
}
