// Package engine turns a signal bundle into an outcome call. Scoring is a
// pure function of the bundle and the weights: no I/O, no clock, no
// randomness, so identical bundles always produce identical predictions.
package engine

import (
	"fmt"
	"math"

	"github.com/footyoracle/footyoracle/internal/model"
)

// drawThreshold is the band of composite scores mapped to DRAW.
const drawThreshold = 0.10

// homeAdvantage is the fixed bump applied to the form differential.
const homeAdvantage = 0.10

// Weights distribute the composite score across the four factors.
type Weights struct {
	Form     float64 `yaml:"form"`
	Injury   float64 `yaml:"injury"`
	H2H      float64 `yaml:"h2h"`
	Position float64 `yaml:"position"`
}

// DefaultWeights returns the production weight set.
func DefaultWeights() Weights {
	return Weights{Form: 0.35, Injury: 0.15, H2H: 0.25, Position: 0.25}
}

// Validate rejects weight sets that do not sum to 1.0 or carry a negative
// component. Rejected at construction so a skewed composite can never be
// produced silently.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"form": w.Form, "injury": w.Injury, "h2h": w.H2H, "position": w.Position,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s is negative: %f", name, v)
		}
	}
	sum := w.Form + w.Injury + w.H2H + w.Position
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights sum to %f, want 1.0", sum)
	}
	return nil
}

// Engine scores fixtures with a fixed, validated weight set.
type Engine struct {
	weights Weights
}

// New creates an Engine, failing on an invalid weight set.
func New(weights Weights) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights}, nil
}

// Weights returns the weight set the engine was built with.
func (e *Engine) Weights() Weights { return e.weights }

// Score computes the four factors and the composite for one bundle.
// The composite is sum(weight_i * factor_i); every factor lies in [-1, 1]
// so the composite does too. Positive favors the home side.
func (e *Engine) Score(bundle model.SignalBundle) (model.Factors, float64) {
	factors := model.Factors{
		FormScore:          formScore(bundle.Home.Form, bundle.Away.Form),
		InjuryImpact:       injuryImpact(bundle),
		H2HScore:           h2hScore(bundle.H2H),
		TablePositionScore: positionScore(bundle.Home.TablePosition, bundle.Away.TablePosition, bundle.LeagueSize),
	}
	raw := e.weights.Form*factors.FormScore +
		e.weights.Injury*factors.InjuryImpact +
		e.weights.H2H*factors.H2HScore +
		e.weights.Position*factors.TablePositionScore
	return factors, clamp(raw)
}

// Predict maps the composite score to an outcome call with confidence.
// Scores inside the draw band, including exactly zero, read as DRAW.
func (e *Engine) Predict(bundle model.SignalBundle) model.Prediction {
	factors, raw := e.Score(bundle)

	var outcome model.Outcome
	switch {
	case raw > drawThreshold:
		outcome = model.HomeWin
	case raw < -drawThreshold:
		outcome = model.AwayWin
	default:
		outcome = model.Draw
	}

	confidence := 0.5 + math.Abs(raw)*0.5
	if confidence > 0.95 {
		confidence = 0.95
	}

	return model.Prediction{
		MatchID:    bundle.Fixture.MatchID(),
		Fixture:    bundle.Fixture,
		Outcome:    outcome,
		Confidence: confidence,
		Factors:    factors,
	}
}

// formScore compares recent form. Each team's last results earn 3/1/0
// points per win/draw/loss, normalized onto [-1, 1]; the differential gets
// the home-advantage bump and is clamped back to [-1, 1].
func formScore(home, away []model.Result) float64 {
	return clamp(formNorm(home) - formNorm(away) + homeAdvantage)
}

func formNorm(results []model.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	points := 0
	for _, r := range results {
		switch r {
		case model.ResultWin:
			points += 3
		case model.ResultDraw:
			points++
		}
	}
	// points/(3n) is in [0,1]; stretch to [-1,1].
	return float64(points)/float64(3*len(results))*2 - 1
}

// injuryImpact sums severity-weighted absences per side. More away
// injuries push the score toward the home side. Zero when the injury
// provider class is disabled so the factor drops out of the composite.
func injuryImpact(bundle model.SignalBundle) float64 {
	if !bundle.InjuriesEnabled {
		return 0
	}
	return clamp(injuryBurden(bundle.Away.Injuries) - injuryBurden(bundle.Home.Injuries))
}

func injuryBurden(injuries []model.Injury) float64 {
	total := 0.0
	for _, inj := range injuries {
		total += inj.Impact()
	}
	return total
}

// h2hScore is the historical win differential over the meetings window,
// home perspective. An empty history is neutral.
func h2hScore(meetings []model.H2HResult) float64 {
	if len(meetings) == 0 {
		return 0
	}
	diff := 0
	for _, m := range meetings {
		switch m {
		case model.H2HHome:
			diff++
		case model.H2HAway:
			diff--
		}
	}
	return clamp(float64(diff) / float64(len(meetings)))
}

// positionScore compares league standing, normalized by table size so a
// five-place gap means the same in an 18-team table as a 20-team one.
func positionScore(home, away, size int) float64 {
	if size <= 0 {
		return 0
	}
	homeStrength := 1 - float64(home)/float64(size)
	awayStrength := 1 - float64(away)/float64(size)
	return clamp((homeStrength - awayStrength) * 2)
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
