package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/footyoracle/footyoracle/internal/model"
)

func testFixture() model.Fixture {
	return model.Fixture{
		League:   "EPL",
		HomeTeam: "Arsenal",
		AwayTeam: "Chelsea",
		Kickoff:  time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC),
	}
}

// symmetricBundle builds a bundle where both sides have identical signals,
// so only the home-advantage term separates them.
func symmetricBundle() model.SignalBundle {
	form := []model.Result{"W", "D", "L", "W", "D"}
	return model.SignalBundle{
		Fixture:         testFixture(),
		LeagueSize:      20,
		InjuriesEnabled: true,
		Home:            model.TeamSignals{Form: form, TablePosition: 10},
		Away:            model.TeamSignals{Form: form, TablePosition: 10},
	}
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"default", DefaultWeights(), false},
		{"single factor", Weights{H2H: 1.0}, false},
		{"sum below one", Weights{Form: 0.35, Injury: 0.15, H2H: 0.25, Position: 0.20}, true},
		{"sum above one", Weights{Form: 0.5, Injury: 0.25, H2H: 0.25, Position: 0.25}, true},
		{"negative component", Weights{Form: 1.2, Injury: -0.2, H2H: 0.0, Position: 0.0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewRejectsInvalidWeights(t *testing.T) {
	_, err := New(Weights{Form: 0.9})
	assert.Error(t, err)
}

func TestFormNorm(t *testing.T) {
	tests := []struct {
		name    string
		results []model.Result
		want    float64
	}{
		{"all wins", []model.Result{"W", "W", "W", "W", "W"}, 1.0},
		{"all losses", []model.Result{"L", "L", "L", "L", "L"}, -1.0},
		{"all draws", []model.Result{"D", "D", "D", "D", "D"}, -1.0 / 3.0},
		{"mixed", []model.Result{"W", "W", "D", "D", "D"}, 0.2},
		{"empty", nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, formNorm(tt.results), 1e-12)
		})
	}
}

func TestFormScoreIncludesHomeAdvantage(t *testing.T) {
	equal := []model.Result{"W", "D", "L", "W", "D"}
	assert.InDelta(t, 0.1, formScore(equal, equal), 1e-12)
}

func TestFormScoreClamped(t *testing.T) {
	wins := []model.Result{"W", "W", "W", "W", "W"}
	losses := []model.Result{"L", "L", "L", "L", "L"}
	assert.Equal(t, 1.0, formScore(wins, losses))
	assert.Equal(t, -1.0, formScore(losses, wins))
}

func TestInjuryImpactDirection(t *testing.T) {
	bundle := symmetricBundle()
	bundle.Away.Injuries = []model.Injury{
		{Player: "A", Severity: model.SeveritySevere},
		{Player: "B", Severity: model.SeverityModerate},
	}
	bundle.Home.Injuries = []model.Injury{
		{Player: "C", Severity: model.SeverityMinor},
	}

	// Away burden 0.30 minus home burden 0.05 favors the home side.
	assert.InDelta(t, 0.25, injuryImpact(bundle), 1e-12)
}

func TestInjuryImpactZeroWhenDisabled(t *testing.T) {
	bundle := symmetricBundle()
	bundle.InjuriesEnabled = false
	bundle.Away.Injuries = []model.Injury{{Player: "A", Severity: model.SeveritySevere}}

	assert.Zero(t, injuryImpact(bundle))
}

func TestH2HScore(t *testing.T) {
	tests := []struct {
		name     string
		meetings []model.H2HResult
		want     float64
	}{
		{"empty history neutral", nil, 0.0},
		{"all home", []model.H2HResult{"HOME", "HOME", "HOME"}, 1.0},
		{"all away", []model.H2HResult{"AWAY", "AWAY"}, -1.0},
		{"mixed", []model.H2HResult{"HOME", "HOME", "HOME", "HOME", "HOME", "HOME", "AWAY", "AWAY", "DRAW", "DRAW"}, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, h2hScore(tt.meetings), 1e-12)
		})
	}
}

func TestPositionScoreNormalizedBySize(t *testing.T) {
	// The same five-place gap scores higher in a smaller table.
	in20 := positionScore(5, 10, 20)
	in18 := positionScore(5, 10, 18)
	assert.InDelta(t, 0.5, in20, 1e-12)
	assert.Greater(t, in18, in20)

	// Extremes clamp.
	assert.Equal(t, 1.0, positionScore(1, 20, 20))
	assert.Equal(t, -1.0, positionScore(20, 1, 20))
}

func TestPredictHomeWin(t *testing.T) {
	engine, err := New(DefaultWeights())
	require.NoError(t, err)

	bundle := model.SignalBundle{
		Fixture:         testFixture(),
		LeagueSize:      20,
		InjuriesEnabled: true,
		Home: model.TeamSignals{
			Form:          []model.Result{"W", "W", "W", "W", "W"},
			TablePosition: 2,
			Injuries:      []model.Injury{{Player: "C", Severity: model.SeverityMinor}},
		},
		Away: model.TeamSignals{
			Form:          []model.Result{"W", "W", "D", "D", "D"},
			TablePosition: 10,
			Injuries: []model.Injury{
				{Player: "A", Severity: model.SeveritySevere},
				{Player: "B", Severity: model.SeverityModerate},
			},
		},
		H2H: []model.H2HResult{"HOME", "HOME", "HOME", "HOME", "HOME", "HOME", "AWAY", "AWAY", "DRAW", "DRAW"},
	}

	p := engine.Predict(bundle)

	// form 0.9, injury 0.25, h2h 0.4, position 0.8 under default weights.
	assert.Equal(t, model.HomeWin, p.Outcome)
	assert.InDelta(t, 0.82625, p.Confidence, 1e-9)
	assert.InDelta(t, 0.9, p.Factors.FormScore, 1e-12)
	assert.InDelta(t, 0.25, p.Factors.InjuryImpact, 1e-12)
	assert.InDelta(t, 0.4, p.Factors.H2HScore, 1e-12)
	assert.InDelta(t, 0.8, p.Factors.TablePositionScore, 1e-12)
	assert.Equal(t, bundle.Fixture.MatchID(), p.MatchID)
}

func TestPredictAwayWin(t *testing.T) {
	engine, err := New(DefaultWeights())
	require.NoError(t, err)

	bundle := symmetricBundle()
	bundle.Home.Form = []model.Result{"L", "L", "L", "L", "L"}
	bundle.Away.Form = []model.Result{"W", "W", "W", "W", "W"}
	bundle.H2H = []model.H2HResult{"AWAY", "AWAY", "AWAY", "AWAY"}
	bundle.Home.TablePosition = 18
	bundle.Away.TablePosition = 3

	p := engine.Predict(bundle)
	assert.Equal(t, model.AwayWin, p.Outcome)
}

func TestPredictSymmetricBundleIsDraw(t *testing.T) {
	engine, err := New(DefaultWeights())
	require.NoError(t, err)

	// Only the home-advantage term separates the sides: raw = 0.035,
	// inside the draw band.
	p := engine.Predict(symmetricBundle())
	assert.Equal(t, model.Draw, p.Outcome)
	assert.InDelta(t, 0.5175, p.Confidence, 1e-9)
}

func TestPredictZeroScoreIsDraw(t *testing.T) {
	engine, err := New(Weights{H2H: 1.0})
	require.NoError(t, err)

	bundle := symmetricBundle()
	bundle.H2H = nil

	p := engine.Predict(bundle)
	assert.Equal(t, model.Draw, p.Outcome)
	assert.Equal(t, 0.5, p.Confidence)
}

func TestPredictConfidenceCapped(t *testing.T) {
	engine, err := New(DefaultWeights())
	require.NoError(t, err)

	bundle := symmetricBundle()
	bundle.Home.Form = []model.Result{"W", "W", "W", "W", "W"}
	bundle.Away.Form = []model.Result{"L", "L", "L", "L", "L"}
	bundle.H2H = []model.H2HResult{"HOME", "HOME", "HOME", "HOME"}
	bundle.Home.TablePosition = 1
	bundle.Away.TablePosition = 20
	bundle.Away.Injuries = []model.Injury{
		{Severity: model.SeveritySevere}, {Severity: model.SeveritySevere},
		{Severity: model.SeveritySevere}, {Severity: model.SeveritySevere},
		{Severity: model.SeveritySevere}, {Severity: model.SeveritySevere},
	}

	p := engine.Predict(bundle)
	assert.Equal(t, model.HomeWin, p.Outcome)
	assert.Equal(t, 0.95, p.Confidence)
}

func TestPredictDeterministic(t *testing.T) {
	engine, err := New(DefaultWeights())
	require.NoError(t, err)

	bundle := symmetricBundle()
	bundle.H2H = []model.H2HResult{"HOME", "DRAW", "AWAY"}

	first := engine.Predict(bundle)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.Predict(bundle))
	}
}
