package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/footyoracle/footyoracle/internal/config"
	"github.com/footyoracle/footyoracle/internal/model"
)

// ErrTeamNotFound is returned by providers when a team name cannot be
// resolved against the upstream competition roster.
var ErrTeamNotFound = errors.New("team not found")

// ErrNotFinished is returned by result lookups when the match has no
// definitive result yet.
var ErrNotFinished = errors.New("match not finished")

// PrimaryProvider serves fixtures, standings, form and head-to-head data
// from the main sports-data source.
type PrimaryProvider interface {
	Name() string
	Fixtures(ctx context.Context, league config.League, from, to time.Time) ([]model.Fixture, error)
	TeamForm(ctx context.Context, league config.League, team string, n int) ([]model.Result, error)
	HeadToHead(ctx context.Context, league config.League, home, away string, n int) ([]model.H2HResult, error)
	TablePosition(ctx context.Context, league config.League, team string) (int, error)
	// MatchResult returns ErrNotFinished when no definitive result exists.
	MatchResult(ctx context.Context, fixture model.Fixture) (model.Outcome, error)
}

// InjuryProvider serves current injury lists from the secondary source.
// The provider class is independently disable-able by configuration.
type InjuryProvider interface {
	Name() string
	Injuries(ctx context.Context, league config.League, team string) ([]model.Injury, error)
}
