// Package model defines the core domain types shared across the fetcher,
// scoring engine, cycle controller and storage layers.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Outcome is the predicted or actual result of a match.
type Outcome string

const (
	HomeWin Outcome = "HOME_WIN"
	AwayWin Outcome = "AWAY_WIN"
	Draw    Outcome = "DRAW"
)

// Valid reports whether o is one of the three recognized outcome tags.
func (o Outcome) Valid() bool {
	return o == HomeWin || o == AwayWin || o == Draw
}

// Provenance tags how a fetched value was obtained.
type Provenance string

const (
	ProvenanceReal      Provenance = "real"
	ProvenanceCached    Provenance = "cached"
	ProvenanceSynthetic Provenance = "synthetic"
)

// Result is a single past match result from one team's perspective.
type Result string

const (
	ResultWin  Result = "W"
	ResultDraw Result = "D"
	ResultLoss Result = "L"
)

// H2HResult is a head-to-head outcome from the home team's perspective.
type H2HResult string

const (
	H2HHome H2HResult = "HOME"
	H2HAway H2HResult = "AWAY"
	H2HDraw H2HResult = "DRAW"
)

// Severity classifies how badly an injury affects a player's availability.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Injury is one unavailable player and the weight of the absence.
type Injury struct {
	Player   string   `json:"player"`
	Position string   `json:"position"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason,omitempty"`
}

// Impact returns the per-player weight used by the scoring engine.
func (i Injury) Impact() float64 {
	switch i.Severity {
	case SeveritySevere:
		return 0.20
	case SeverityModerate:
		return 0.10
	default:
		return 0.05
	}
}

// Fixture identifies one scheduled match. Immutable once fetched within a cycle.
type Fixture struct {
	League     string    `json:"league"`
	HomeTeam   string    `json:"homeTeam"`
	AwayTeam   string    `json:"awayTeam"`
	Kickoff    time.Time `json:"kickoff"`
	ExternalID int64     `json:"externalId,omitempty"`
}

// MatchID derives the deterministic deduplication key for the fixture:
// league plus the stable upstream ID when present, otherwise league plus
// normalized team abbreviations and the UTC kickoff date. Identical
// (league, fixture identity) always yields the same key.
func (f Fixture) MatchID() string {
	if f.ExternalID != 0 {
		return fmt.Sprintf("%s-F%d", f.League, f.ExternalID)
	}
	return fmt.Sprintf("%s-%s-%s-%s",
		f.League,
		teamAbbrev(f.HomeTeam),
		teamAbbrev(f.AwayTeam),
		f.Kickoff.UTC().Format("2006-01-02"))
}

// teamAbbrev normalizes a team name to a three-letter uppercase tag.
func teamAbbrev(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() >= 3 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "UNK"
	}
	return b.String()
}

// TeamSignals bundles the per-team raw inputs with their provenance.
type TeamSignals struct {
	Form           []Result   `json:"form"` // most-recent-first, window of 5
	FormProv       Provenance `json:"formProvenance"`
	Injuries       []Injury   `json:"injuries"`
	InjuriesProv   Provenance `json:"injuriesProvenance"`
	TablePosition  int        `json:"tablePosition"`
	TablePosProv   Provenance `json:"tablePositionProvenance"`
}

// SignalBundle aggregates every raw input needed to score one fixture.
// Rebuilt from scratch each cycle.
type SignalBundle struct {
	Fixture    Fixture     `json:"fixture"`
	LeagueSize int         `json:"leagueSize"`
	Home       TeamSignals `json:"home"`
	Away       TeamSignals `json:"away"`
	H2H        []H2HResult `json:"h2h"` // most-recent-first, home perspective
	H2HProv    Provenance  `json:"h2hProvenance"`

	// InjuriesEnabled mirrors the fetcher configuration so the engine can
	// zero the injury factor when the provider class is switched off.
	InjuriesEnabled bool `json:"injuriesEnabled"`
}

// Validate checks that every required sub-signal is present. Fallback
// guarantees make violations unlikely; the cycle controller still checks
// before scoring and skips the fixture on failure.
func (b SignalBundle) Validate() error {
	if len(b.Home.Form) == 0 || len(b.Away.Form) == 0 {
		return fmt.Errorf("signal bundle for %s: missing form sequence", b.Fixture.MatchID())
	}
	if b.LeagueSize <= 0 {
		return fmt.Errorf("signal bundle for %s: invalid league size %d", b.Fixture.MatchID(), b.LeagueSize)
	}
	if b.Home.TablePosition < 1 || b.Home.TablePosition > b.LeagueSize ||
		b.Away.TablePosition < 1 || b.Away.TablePosition > b.LeagueSize {
		return fmt.Errorf("signal bundle for %s: table position out of range [1,%d]",
			b.Fixture.MatchID(), b.LeagueSize)
	}
	return nil
}

// Factors are the four bounded scalar contributions feeding the composite
// score, each in [-1, 1].
type Factors struct {
	FormScore          float64 `json:"formScore"`
	InjuryImpact       float64 `json:"injuryImpact"`
	H2HScore           float64 `json:"h2hScore"`
	TablePositionScore float64 `json:"tablePositionScore"`
}

// Resolution is the write-once record of how a prediction fared.
type Resolution struct {
	Resolved      bool      `json:"resolved"`
	ActualOutcome Outcome   `json:"actualOutcome,omitempty"`
	Correct       bool      `json:"correct"`
	ResolvedAt    time.Time `json:"resolvedAt,omitempty"`
}

// Prediction is the externally visible contract of the system: one scored
// fixture with its outcome call, confidence and factor breakdown.
type Prediction struct {
	ID         string     `json:"predictionId,omitempty"`
	MatchID    string     `json:"matchId"`
	Fixture    Fixture    `json:"fixture"`
	Outcome    Outcome    `json:"prediction"`
	Confidence float64    `json:"confidence"`
	Factors    Factors    `json:"factors"`
	CreatedAt  time.Time  `json:"timestamp"`
	Resolution Resolution `json:"resolution"`
}

// Resolve fills the resolution sub-record. It returns an error if the
// prediction is already resolved; the record transitions at most once and
// never silently overwrites Correct.
func (p *Prediction) Resolve(actual Outcome, at time.Time) error {
	if p.Resolution.Resolved {
		return fmt.Errorf("prediction %s already resolved", p.MatchID)
	}
	if !actual.Valid() {
		return fmt.Errorf("prediction %s: invalid actual outcome %q", p.MatchID, actual)
	}
	p.Resolution = Resolution{
		Resolved:      true,
		ActualOutcome: actual,
		Correct:       p.Outcome == actual,
		ResolvedAt:    at,
	}
	return nil
}
