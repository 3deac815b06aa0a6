package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/footyoracle/footyoracle/internal/model"
)

// MemoryStore is the in-memory PredictionStore backend.
type MemoryStore struct {
	mu          sync.RWMutex
	byMatch     map[string]*model.Prediction
	insertOrder []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byMatch: make(map[string]*model.Prediction)}
}

// Insert implements PredictionStore.
func (s *MemoryStore) Insert(_ context.Context, p *model.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMatch[p.MatchID]; exists {
		return fmt.Errorf("insert %s: %w", p.MatchID, ErrDuplicate)
	}
	if p.ID == "" {
		p.ID = "offchain-" + uuid.NewString()
	}
	copied := *p
	s.byMatch[p.MatchID] = &copied
	s.insertOrder = append(s.insertOrder, p.MatchID)
	return nil
}

// Get implements PredictionStore.
func (s *MemoryStore) Get(_ context.Context, matchID string) (model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byMatch[matchID]
	if !ok {
		return model.Prediction{}, fmt.Errorf("get %s: %w", matchID, ErrNotFound)
	}
	return *p, nil
}

// List implements PredictionStore.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Prediction, 0, len(s.insertOrder))
	for i := len(s.insertOrder) - 1; i >= 0; i-- {
		p := s.byMatch[s.insertOrder[i]]
		if f.League != "" && p.Fixture.League != f.League {
			continue
		}
		if f.Resolved != nil && p.Resolution.Resolved != *f.Resolved {
			continue
		}
		out = append(out, *p)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Unresolved implements PredictionStore.
func (s *MemoryStore) Unresolved(_ context.Context, cutoff time.Time) ([]model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Prediction
	for _, p := range s.byMatch {
		if !p.Resolution.Resolved && !p.Fixture.Kickoff.After(cutoff) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fixture.Kickoff.Before(out[j].Fixture.Kickoff) })
	return out, nil
}

// Resolve implements PredictionStore.
func (s *MemoryStore) Resolve(_ context.Context, matchID string, actual model.Outcome, at time.Time) (model.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byMatch[matchID]
	if !ok {
		return model.Prediction{}, fmt.Errorf("resolve %s: %w", matchID, ErrNotFound)
	}
	if p.Resolution.Resolved {
		return model.Prediction{}, fmt.Errorf("resolve %s: %w", matchID, ErrAlreadyResolved)
	}
	if err := p.Resolve(actual, at); err != nil {
		return model.Prediction{}, err
	}
	return *p, nil
}

// Stats implements PredictionStore.
func (s *MemoryStore) Stats(ctx context.Context, league string) (Stats, error) {
	predictions, err := s.List(ctx, Filter{League: league})
	if err != nil {
		return Stats{}, err
	}
	return statsFrom(predictions), nil
}

// Close implements PredictionStore.
func (s *MemoryStore) Close() error { return nil }
