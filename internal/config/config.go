// Package config loads and validates the process configuration from a YAML
// file with environment overrides for credentials and endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// League holds the fixed per-competition metadata: the upstream identifiers
// of each provider and the table size used to normalize position scores.
type League struct {
	Code            string // internal code, e.g. "EPL"
	FootballDataID  string // football-data.org competition code
	SportsAPIID     int    // api-sports league id
	TableSize       int
}

// Leagues is the supported competition set, in cycle processing order.
var Leagues = []League{
	{Code: "EPL", FootballDataID: "PL", SportsAPIID: 39, TableSize: 20},
	{Code: "LaLiga", FootballDataID: "PD", SportsAPIID: 140, TableSize: 20},
	{Code: "SerieA", FootballDataID: "SA", SportsAPIID: 135, TableSize: 20},
	{Code: "Bundesliga", FootballDataID: "BL1", SportsAPIID: 78, TableSize: 18},
	{Code: "Ligue1", FootballDataID: "FL1", SportsAPIID: 61, TableSize: 18},
}

// LeagueByCode returns the league metadata for an internal code.
func LeagueByCode(code string) (League, bool) {
	for _, l := range Leagues {
		if l.Code == code {
			return l, true
		}
	}
	return League{}, false
}

// ProviderConfig configures one upstream data source.
type ProviderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
	Timeout           Duration `yaml:"timeout"`
}

// CacheConfig configures the signal cache.
type CacheConfig struct {
	TTL        Duration `yaml:"ttl"`
	MaxEntries int64    `yaml:"max_entries"`
	RedisAddr  string   `yaml:"redis_addr"` // empty selects the in-memory cache
}

// AgentConfig configures the autonomous cycle controller.
type AgentConfig struct {
	Leagues         []string `yaml:"leagues"`
	LookaheadDays   int      `yaml:"lookahead_days"`
	CycleInterval   Duration `yaml:"cycle_interval"`
	ResolutionGrace Duration `yaml:"resolution_grace"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// Config is the full process configuration.
type Config struct {
	MockMode        bool           `yaml:"mock_mode"`
	InjuriesEnabled bool           `yaml:"injuries_enabled"`
	FootballData    ProviderConfig `yaml:"football_data"`
	SportsAPI       ProviderConfig `yaml:"sports_api"`
	Cache           CacheConfig    `yaml:"cache"`
	Agent           AgentConfig    `yaml:"agent"`
	Server          ServerConfig   `yaml:"server"`
	DatabaseURL     string         `yaml:"database_url"` // empty selects the in-memory store
	BackendURL      string         `yaml:"backend_url"`  // empty records through the local store
}

// Default returns the configuration used when no file is given: mock mode,
// all leagues, hourly cycles.
func Default() Config {
	return Config{
		MockMode:        true,
		InjuriesEnabled: true,
		FootballData: ProviderConfig{
			BaseURL:           "https://api.football-data.org/v4",
			RequestsPerMinute: 10,
			Burst:             5,
			Timeout:           Duration(10 * time.Second),
		},
		SportsAPI: ProviderConfig{
			BaseURL:           "https://v3.football.api-sports.io",
			RequestsPerMinute: 10,
			Burst:             5,
			Timeout:           Duration(10 * time.Second),
		},
		Cache: CacheConfig{
			TTL:        Duration(5 * time.Minute),
			MaxEntries: 4096,
		},
		Agent: AgentConfig{
			Leagues:         leagueCodes(),
			LookaheadDays:   7,
			CycleInterval:   Duration(time.Hour),
			ResolutionGrace: Duration(2 * time.Hour),
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:5000",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(10 * time.Second),
		},
	}
}

func leagueCodes() []string {
	codes := make([]string, len(Leagues))
	for i, l := range Leagues {
		codes[i] = l.Code
	}
	return codes
}

// Load reads the configuration from path (optional), applies environment
// overrides and validates the result. An invalid configuration is fatal at
// startup: the process must not enter a cycle guaranteed to fail.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays credentials and endpoints from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("FOOTBALL_API_KEY"); v != "" {
		cfg.FootballData.APIKey = v
	}
	if v := os.Getenv("SPORTS_API_KEY"); v != "" {
		cfg.SportsAPI.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
}

// Validate rejects configurations that would guarantee cycle failure.
func (c Config) Validate() error {
	if !c.MockMode && c.FootballData.APIKey == "" {
		return fmt.Errorf("config: live mode requires FOOTBALL_API_KEY")
	}
	if !c.MockMode && c.InjuriesEnabled && c.SportsAPI.APIKey == "" {
		return fmt.Errorf("config: live mode with injuries enabled requires SPORTS_API_KEY")
	}
	for _, code := range c.Agent.Leagues {
		if _, ok := LeagueByCode(code); !ok {
			return fmt.Errorf("config: unknown league %q", code)
		}
	}
	if len(c.Agent.Leagues) == 0 {
		return fmt.Errorf("config: at least one league must be configured")
	}
	if c.Agent.LookaheadDays <= 0 {
		return fmt.Errorf("config: lookahead_days must be positive, got %d", c.Agent.LookaheadDays)
	}
	if c.Agent.CycleInterval <= 0 {
		return fmt.Errorf("config: cycle_interval must be positive, got %s", c.Agent.CycleInterval.Std())
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive, got %s", c.Cache.TTL.Std())
	}
	if c.FootballData.RequestsPerMinute <= 0 || c.SportsAPI.RequestsPerMinute <= 0 {
		return fmt.Errorf("config: requests_per_minute must be positive")
	}
	return nil
}
