package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixtureMatchID_Deterministic(t *testing.T) {
	kickoff := time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC)
	f := Fixture{League: "EPL", HomeTeam: "Arsenal", AwayTeam: "Chelsea", Kickoff: kickoff}

	assert.Equal(t, "EPL-ARS-CHE-2026-02-12", f.MatchID())
	assert.Equal(t, f.MatchID(), f.MatchID(), "same fixture must yield same key")

	// Kickoff time of day must not change the identity, only the date.
	later := f
	later.Kickoff = kickoff.Add(3 * time.Hour)
	assert.Equal(t, f.MatchID(), later.MatchID())
}

func TestFixtureMatchID_ExternalIDWins(t *testing.T) {
	f := Fixture{
		League:     "LaLiga",
		HomeTeam:   "Real Madrid",
		AwayTeam:   "Barcelona",
		Kickoff:    time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		ExternalID: 442211,
	}
	assert.Equal(t, "LaLiga-F442211", f.MatchID())
}

func TestFixtureMatchID_NormalizesTeamNames(t *testing.T) {
	kickoff := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	a := Fixture{League: "EPL", HomeTeam: "Manchester City", AwayTeam: "A.C. Milan", Kickoff: kickoff}
	b := Fixture{League: "EPL", HomeTeam: "manchester city", AwayTeam: "AC Milan", Kickoff: kickoff}
	assert.Equal(t, a.MatchID(), b.MatchID(), "casing and punctuation must not split identities")
}

func TestPredictionResolve_WriteOnce(t *testing.T) {
	p := Prediction{MatchID: "EPL-ARS-CHE-2026-02-12", Outcome: HomeWin}

	require.NoError(t, p.Resolve(HomeWin, time.Now()))
	assert.True(t, p.Resolution.Resolved)
	assert.True(t, p.Resolution.Correct)

	err := p.Resolve(AwayWin, time.Now())
	require.Error(t, err, "second resolve must be rejected")
	assert.True(t, p.Resolution.Correct, "first resolution must not be overwritten")
	assert.Equal(t, HomeWin, p.Resolution.ActualOutcome)
}

func TestPredictionResolve_RejectsInvalidOutcome(t *testing.T) {
	p := Prediction{MatchID: "x", Outcome: Draw}
	require.Error(t, p.Resolve(Outcome("POSTPONED"), time.Now()))
	assert.False(t, p.Resolution.Resolved)
}

func TestInjuryImpactWeights(t *testing.T) {
	assert.Equal(t, 0.05, Injury{Severity: SeverityMinor}.Impact())
	assert.Equal(t, 0.10, Injury{Severity: SeverityModerate}.Impact())
	assert.Equal(t, 0.20, Injury{Severity: SeveritySevere}.Impact())
}

func TestSignalBundleValidate(t *testing.T) {
	base := SignalBundle{
		Fixture:    Fixture{League: "EPL", HomeTeam: "Arsenal", AwayTeam: "Chelsea", Kickoff: time.Now()},
		LeagueSize: 20,
		Home:       TeamSignals{Form: []Result{ResultWin}, TablePosition: 2},
		Away:       TeamSignals{Form: []Result{ResultLoss}, TablePosition: 9},
	}
	assert.NoError(t, base.Validate())

	noForm := base
	noForm.Home.Form = nil
	assert.Error(t, noForm.Validate())

	badPos := base
	badPos.Away.TablePosition = 21
	assert.Error(t, badPos.Validate())
}
