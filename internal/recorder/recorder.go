// Package recorder is the boundary the cycle controller records through.
// The local variant writes straight to the prediction store; the HTTP
// variant submits to a remote backend exposing the same API surface.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/footyoracle/footyoracle/internal/model"
	"github.com/footyoracle/footyoracle/internal/store"
)

// Recorder accepts predictions and resolutions and answers the
// deduplication lookup.
type Recorder interface {
	// RecordPrediction submits a new prediction. store.ErrDuplicate when a
	// prediction for the match already exists.
	RecordPrediction(ctx context.Context, p *model.Prediction) error
	// LookupPrediction reports whether a prediction exists for the match.
	LookupPrediction(ctx context.Context, matchID string) (model.Prediction, bool, error)
	// RecordResolution submits the actual outcome for a match.
	// store.ErrAlreadyResolved on a repeat.
	RecordResolution(ctx context.Context, matchID string, actual model.Outcome, at time.Time) (model.Prediction, error)
	// PendingResolutions returns unresolved predictions whose fixture
	// kicked off at or before the cutoff.
	PendingResolutions(ctx context.Context, cutoff time.Time) ([]model.Prediction, error)
}

// StoreRecorder records into the local prediction store.
type StoreRecorder struct {
	store store.PredictionStore
}

// NewStoreRecorder wraps a prediction store.
func NewStoreRecorder(s store.PredictionStore) *StoreRecorder {
	return &StoreRecorder{store: s}
}

// RecordPrediction implements Recorder.
func (r *StoreRecorder) RecordPrediction(ctx context.Context, p *model.Prediction) error {
	return r.store.Insert(ctx, p)
}

// LookupPrediction implements Recorder.
func (r *StoreRecorder) LookupPrediction(ctx context.Context, matchID string) (model.Prediction, bool, error) {
	p, err := r.store.Get(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Prediction{}, false, nil
	}
	if err != nil {
		return model.Prediction{}, false, err
	}
	return p, true, nil
}

// RecordResolution implements Recorder.
func (r *StoreRecorder) RecordResolution(ctx context.Context, matchID string, actual model.Outcome, at time.Time) (model.Prediction, error) {
	return r.store.Resolve(ctx, matchID, actual, at)
}

// PendingResolutions implements Recorder.
func (r *StoreRecorder) PendingResolutions(ctx context.Context, cutoff time.Time) ([]model.Prediction, error) {
	return r.store.Unresolved(ctx, cutoff)
}
