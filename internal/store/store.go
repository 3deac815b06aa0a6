// Package store persists predictions and their resolutions. Two backends
// implement the same contract: an in-memory store for mock mode and tests,
// and a Postgres store for durable deployments. Both enforce the
// one-prediction-per-match rule at the storage layer.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/footyoracle/footyoracle/internal/model"
)

var (
	// ErrDuplicate is returned by Insert when a prediction already exists
	// for the match.
	ErrDuplicate = errors.New("prediction already exists for match")
	// ErrNotFound is returned when no prediction exists for the match.
	ErrNotFound = errors.New("prediction not found")
	// ErrAlreadyResolved is returned by Resolve on a second resolution
	// attempt; the first resolution is never overwritten.
	ErrAlreadyResolved = errors.New("prediction already resolved")
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	League   string
	Resolved *bool
	Limit    int
}

// Stats aggregates the track record, overall or for one league.
type Stats struct {
	Total     int     `json:"total"`
	Resolved  int     `json:"resolved"`
	Pending   int     `json:"pending"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Accuracy  float64 `json:"accuracy"`
}

// PredictionStore is the storage contract shared by both backends.
type PredictionStore interface {
	// Insert stores a new prediction, assigning its ID. ErrDuplicate if a
	// prediction for the same match already exists.
	Insert(ctx context.Context, p *model.Prediction) error
	// Get returns the prediction for a match. ErrNotFound when absent.
	Get(ctx context.Context, matchID string) (model.Prediction, error)
	// List returns predictions matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]model.Prediction, error)
	// Unresolved returns pending predictions whose fixture kicked off at or
	// before the cutoff, oldest kickoff first.
	Unresolved(ctx context.Context, cutoff time.Time) ([]model.Prediction, error)
	// Resolve records the actual outcome for a match, at most once.
	Resolve(ctx context.Context, matchID string, actual model.Outcome, at time.Time) (model.Prediction, error)
	// Stats aggregates the track record; empty league means overall.
	Stats(ctx context.Context, league string) (Stats, error)
	// Close releases backend resources.
	Close() error
}

func statsFrom(predictions []model.Prediction) Stats {
	var s Stats
	for _, p := range predictions {
		s.Total++
		if !p.Resolution.Resolved {
			s.Pending++
			continue
		}
		s.Resolved++
		if p.Resolution.Correct {
			s.Correct++
		} else {
			s.Incorrect++
		}
	}
	if s.Resolved > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Resolved)
	}
	return s
}
