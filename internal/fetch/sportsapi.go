package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/footyoracle/footyoracle/internal/config"
	"github.com/footyoracle/footyoracle/internal/model"
)

// SportsAPIClient is the api-sports.io adapter serving current injury lists
// per team. The season parameter follows the European calendar: a season is
// labeled by the year it starts in.
type SportsAPIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	teamsMu  sync.Mutex
	teams    map[string]roster // league code -> roster
	teamsTTL time.Duration

	now func() time.Time
}

// NewSportsAPIClient builds a client from provider configuration.
func NewSportsAPIClient(cfg config.ProviderConfig) *SportsAPIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://v3.football.api-sports.io"
	}
	timeout := cfg.Timeout.Std()
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &SportsAPIClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		teams:      make(map[string]roster),
		teamsTTL:   24 * time.Hour,
		now:        time.Now,
	}
}

func (c *SportsAPIClient) Name() string { return "sports-api" }

func (c *SportsAPIClient) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("sports-api: build request: %w", err)
	}
	req.Header.Set("x-apisports-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sports-api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sports-api: %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("sports-api: decode %s: %w", path, err)
	}
	return nil
}

type saInjuriesResponse struct {
	Response []struct {
		Player struct {
			Name   string `json:"name"`
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"player"`
	} `json:"response"`
}

// Injuries implements InjuryProvider.
func (c *SportsAPIClient) Injuries(ctx context.Context, league config.League, team string) ([]model.Injury, error) {
	teamID, err := c.teamID(ctx, league, team)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("team", fmt.Sprintf("%d", teamID))
	query.Set("season", fmt.Sprintf("%d", c.season()))

	var resp saInjuriesResponse
	if err := c.get(ctx, "/injuries", query, &resp); err != nil {
		return nil, err
	}

	injuries := make([]model.Injury, 0, len(resp.Response))
	for _, entry := range resp.Response {
		injuries = append(injuries, model.Injury{
			Player:   entry.Player.Name,
			Position: entry.Player.Type,
			Severity: severityFromReason(entry.Player.Reason),
			Reason:   entry.Player.Reason,
		})
	}
	return injuries, nil
}

// severityFromReason classifies an injury description into the impact tiers
// used by the scoring engine.
func severityFromReason(reason string) model.Severity {
	lower := strings.ToLower(reason)
	for _, word := range []string{"fracture", "torn", "rupture", "acl", "surgery"} {
		if strings.Contains(lower, word) {
			return model.SeveritySevere
		}
	}
	for _, word := range []string{"strain", "sprain", "knock", "hamstring", "muscle"} {
		if strings.Contains(lower, word) {
			return model.SeverityModerate
		}
	}
	return model.SeverityMinor
}

// season returns the starting year of the current European season.
func (c *SportsAPIClient) season() int {
	now := c.now().UTC()
	if now.Month() >= time.July {
		return now.Year()
	}
	return now.Year() - 1
}

type saTeamsResponse struct {
	Response []struct {
		Team struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"team"`
	} `json:"response"`
}

func (c *SportsAPIClient) teamID(ctx context.Context, league config.League, team string) (int64, error) {
	c.teamsMu.Lock()
	cached, ok := c.teams[league.Code]
	c.teamsMu.Unlock()

	if !ok || time.Since(cached.fetchedAt) > c.teamsTTL {
		query := url.Values{}
		query.Set("league", fmt.Sprintf("%d", league.SportsAPIID))
		query.Set("season", fmt.Sprintf("%d", c.season()))

		var resp saTeamsResponse
		if err := c.get(ctx, "/teams", query, &resp); err != nil {
			return 0, err
		}
		cached = roster{byName: make(map[string]int64, len(resp.Response)), fetchedAt: time.Now()}
		for _, entry := range resp.Response {
			cached.byName[strings.ToLower(entry.Team.Name)] = entry.Team.ID
		}
		c.teamsMu.Lock()
		c.teams[league.Code] = cached
		c.teamsMu.Unlock()
	}

	needle := strings.ToLower(team)
	if id, ok := cached.byName[needle]; ok {
		return id, nil
	}
	for name, id := range cached.byName {
		if strings.Contains(name, needle) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("sports-api: %s in %s: %w", team, league.Code, ErrTeamNotFound)
}
