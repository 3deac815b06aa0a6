package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/footyoracle/footyoracle/internal/config"
	"github.com/footyoracle/footyoracle/internal/model"
)

// FootballDataClient is the football-data.org adapter: fixtures, standings,
// recent form and head-to-head per competition.
type FootballDataClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// Team IDs rarely change; memoized per competition so form and h2h
	// lookups do not re-fetch the roster on every call.
	rosterMu  sync.Mutex
	rosters   map[string]roster
	rosterTTL time.Duration
}

type roster struct {
	byName    map[string]int64 // lowercased team name -> upstream id
	fetchedAt time.Time
}

// NewFootballDataClient builds a client from provider configuration,
// filling defaults for anything unset.
func NewFootballDataClient(cfg config.ProviderConfig) *FootballDataClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.football-data.org/v4"
	}
	timeout := cfg.Timeout.Std()
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &FootballDataClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		rosters:    make(map[string]roster),
		rosterTTL:  24 * time.Hour,
	}
}

func (c *FootballDataClient) Name() string { return "football-data" }

// get issues one authenticated request and decodes the JSON body into dest.
func (c *FootballDataClient) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("football-data: build request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("football-data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("football-data: %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("football-data: decode %s: %w", path, err)
	}
	return nil
}

type fdMatch struct {
	ID       int64  `json:"id"`
	UTCDate  string `json:"utcDate"`
	Status   string `json:"status"`
	HomeTeam struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"homeTeam"`
	AwayTeam struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"awayTeam"`
	Score struct {
		FullTime struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"fullTime"`
	} `json:"score"`
}

type fdMatchesResponse struct {
	Matches []fdMatch `json:"matches"`
}

// Fixtures implements PrimaryProvider.
func (c *FootballDataClient) Fixtures(ctx context.Context, league config.League, from, to time.Time) ([]model.Fixture, error) {
	query := url.Values{}
	query.Set("dateFrom", from.UTC().Format("2006-01-02"))
	query.Set("dateTo", to.UTC().Format("2006-01-02"))

	var resp fdMatchesResponse
	if err := c.get(ctx, "/competitions/"+league.FootballDataID+"/matches", query, &resp); err != nil {
		return nil, err
	}

	fixtures := make([]model.Fixture, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Status != "SCHEDULED" && m.Status != "TIMED" {
			continue
		}
		kickoff, err := time.Parse(time.RFC3339, m.UTCDate)
		if err != nil {
			return nil, fmt.Errorf("football-data: bad utcDate %q: %w", m.UTCDate, err)
		}
		fixtures = append(fixtures, model.Fixture{
			League:     league.Code,
			HomeTeam:   m.HomeTeam.Name,
			AwayTeam:   m.AwayTeam.Name,
			Kickoff:    kickoff,
			ExternalID: m.ID,
		})
	}
	sort.Slice(fixtures, func(i, j int) bool { return fixtures[i].Kickoff.Before(fixtures[j].Kickoff) })
	return fixtures, nil
}

// TeamForm implements PrimaryProvider: the team's last n finished results,
// most recent first.
func (c *FootballDataClient) TeamForm(ctx context.Context, league config.League, team string, n int) ([]model.Result, error) {
	teamID, err := c.teamID(ctx, league, team)
	if err != nil {
		return nil, err
	}

	matches, err := c.finishedMatches(ctx, teamID, n)
	if err != nil {
		return nil, err
	}

	form := make([]model.Result, 0, n)
	for _, m := range matches {
		if m.Score.FullTime.Home == nil || m.Score.FullTime.Away == nil {
			continue
		}
		home, away := *m.Score.FullTime.Home, *m.Score.FullTime.Away
		playedHome := m.HomeTeam.ID == teamID
		switch {
		case home == away:
			form = append(form, model.ResultDraw)
		case (playedHome && home > away) || (!playedHome && away > home):
			form = append(form, model.ResultWin)
		default:
			form = append(form, model.ResultLoss)
		}
		if len(form) == n {
			break
		}
	}
	return form, nil
}

// HeadToHead implements PrimaryProvider: recent meetings between the two
// teams, most recent first, from the home team's perspective.
func (c *FootballDataClient) HeadToHead(ctx context.Context, league config.League, home, away string, n int) ([]model.H2HResult, error) {
	homeID, err := c.teamID(ctx, league, home)
	if err != nil {
		return nil, err
	}
	awayID, err := c.teamID(ctx, league, away)
	if err != nil {
		return nil, err
	}

	matches, err := c.finishedMatches(ctx, homeID, 50)
	if err != nil {
		return nil, err
	}

	results := make([]model.H2HResult, 0, n)
	for _, m := range matches {
		pair := (m.HomeTeam.ID == homeID && m.AwayTeam.ID == awayID) ||
			(m.HomeTeam.ID == awayID && m.AwayTeam.ID == homeID)
		if !pair || m.Score.FullTime.Home == nil || m.Score.FullTime.Away == nil {
			continue
		}
		hs, as := *m.Score.FullTime.Home, *m.Score.FullTime.Away
		// Normalize to the perspective of the requested home team.
		if m.HomeTeam.ID == awayID {
			hs, as = as, hs
		}
		switch {
		case hs > as:
			results = append(results, model.H2HHome)
		case as > hs:
			results = append(results, model.H2HAway)
		default:
			results = append(results, model.H2HDraw)
		}
		if len(results) == n {
			break
		}
	}
	return results, nil
}

type fdStandingsResponse struct {
	Standings []struct {
		Type  string `json:"type"`
		Table []struct {
			Position int `json:"position"`
			Team     struct {
				Name string `json:"name"`
			} `json:"team"`
		} `json:"table"`
	} `json:"standings"`
}

// TablePosition implements PrimaryProvider.
func (c *FootballDataClient) TablePosition(ctx context.Context, league config.League, team string) (int, error) {
	var resp fdStandingsResponse
	if err := c.get(ctx, "/competitions/"+league.FootballDataID+"/standings", nil, &resp); err != nil {
		return 0, err
	}
	if len(resp.Standings) == 0 {
		return 0, fmt.Errorf("football-data: empty standings for %s", league.Code)
	}
	needle := strings.ToLower(team)
	for _, entry := range resp.Standings[0].Table {
		if strings.Contains(strings.ToLower(entry.Team.Name), needle) {
			return entry.Position, nil
		}
	}
	return 0, fmt.Errorf("football-data: %s in %s: %w", team, league.Code, ErrTeamNotFound)
}

// MatchResult implements PrimaryProvider. Returns ErrNotFinished until the
// upstream reports a FINISHED status with a full-time score.
func (c *FootballDataClient) MatchResult(ctx context.Context, fixture model.Fixture) (model.Outcome, error) {
	league, ok := config.LeagueByCode(fixture.League)
	if !ok {
		return "", fmt.Errorf("football-data: unknown league %q", fixture.League)
	}

	day := fixture.Kickoff.UTC().Format("2006-01-02")
	query := url.Values{}
	query.Set("dateFrom", day)
	query.Set("dateTo", day)

	var resp fdMatchesResponse
	if err := c.get(ctx, "/competitions/"+league.FootballDataID+"/matches", query, &resp); err != nil {
		return "", err
	}

	for _, m := range resp.Matches {
		if fixture.ExternalID != 0 && m.ID != fixture.ExternalID {
			continue
		}
		if fixture.ExternalID == 0 &&
			(!strings.EqualFold(m.HomeTeam.Name, fixture.HomeTeam) ||
				!strings.EqualFold(m.AwayTeam.Name, fixture.AwayTeam)) {
			continue
		}
		if m.Status != "FINISHED" || m.Score.FullTime.Home == nil || m.Score.FullTime.Away == nil {
			return "", ErrNotFinished
		}
		switch {
		case *m.Score.FullTime.Home > *m.Score.FullTime.Away:
			return model.HomeWin, nil
		case *m.Score.FullTime.Away > *m.Score.FullTime.Home:
			return model.AwayWin, nil
		default:
			return model.Draw, nil
		}
	}
	return "", ErrNotFinished
}

// finishedMatches fetches a team's finished matches, most recent first.
func (c *FootballDataClient) finishedMatches(ctx context.Context, teamID int64, limit int) ([]fdMatch, error) {
	query := url.Values{}
	query.Set("status", "FINISHED")
	query.Set("limit", fmt.Sprintf("%d", limit))

	var resp fdMatchesResponse
	if err := c.get(ctx, fmt.Sprintf("/teams/%d/matches", teamID), query, &resp); err != nil {
		return nil, err
	}
	sort.Slice(resp.Matches, func(i, j int) bool { return resp.Matches[i].UTCDate > resp.Matches[j].UTCDate })
	return resp.Matches, nil
}

type fdTeamsResponse struct {
	Teams []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"teams"`
}

// teamID resolves a team name against the competition roster, memoized.
func (c *FootballDataClient) teamID(ctx context.Context, league config.League, team string) (int64, error) {
	c.rosterMu.Lock()
	cached, ok := c.rosters[league.Code]
	c.rosterMu.Unlock()

	if !ok || time.Since(cached.fetchedAt) > c.rosterTTL {
		var resp fdTeamsResponse
		if err := c.get(ctx, "/competitions/"+league.FootballDataID+"/teams", nil, &resp); err != nil {
			return 0, err
		}
		cached = roster{byName: make(map[string]int64, len(resp.Teams)), fetchedAt: time.Now()}
		for _, t := range resp.Teams {
			cached.byName[strings.ToLower(t.Name)] = t.ID
		}
		c.rosterMu.Lock()
		c.rosters[league.Code] = cached
		c.rosterMu.Unlock()
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
	return 0, fmt.Errorf("football-data: %s in %s: %w", team, league.Code, ErrTeamNotFound)
}
