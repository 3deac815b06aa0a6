package recorder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/footyoracle/footyoracle/internal/model"
	"github.com/footyoracle/footyoracle/internal/store"
)

func samplePrediction() model.Prediction {
	return model.Prediction{
		MatchID: "EPL-ARS-CHE-2026-02-12",
		Fixture: model.Fixture{
			League:   "EPL",
			HomeTeam: "Arsenal",
			AwayTeam: "Chelsea",
			Kickoff:  time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC),
		},
		Outcome:    model.HomeWin,
		Confidence: 0.74,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestStoreRecorderRoundTrip(t *testing.T) {
	r := NewStoreRecorder(store.NewMemoryStore())
	ctx := context.Background()
	p := samplePrediction()

	_, found, err := r.LookupPrediction(ctx, p.MatchID)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, r.RecordPrediction(ctx, &p))
	assert.NotEmpty(t, p.ID)

	got, found, err := r.LookupPrediction(ctx, p.MatchID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.MatchID, got.MatchID)

	dup := samplePrediction()
	assert.ErrorIs(t, r.RecordPrediction(ctx, &dup), store.ErrDuplicate)

	resolved, err := r.RecordResolution(ctx, p.MatchID, model.HomeWin, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, resolved.Resolution.Correct)

	_, err = r.RecordResolution(ctx, p.MatchID, model.AwayWin, time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrAlreadyResolved)
}

func TestHTTPRecorderRecordPrediction(t *testing.T) {
	var received model.Prediction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		received.ID = "offchain-abc"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(received)
	}))
	defer srv.Close()

	r := NewHTTPRecorder(srv.URL)
	p := samplePrediction()
	require.NoError(t, r.RecordPrediction(context.Background(), &p))

	assert.Equal(t, "offchain-abc", p.ID, "backend-assigned ID adopted")
	assert.Equal(t, "EPL-ARS-CHE-2026-02-12", received.MatchID)
}

func TestHTTPRecorderConflictMapsToDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	r := NewHTTPRecorder(srv.URL)
	p := samplePrediction()
	err := r.RecordPrediction(context.Background(), &p)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestHTTPRecorderLookup(t *testing.T) {
	known := samplePrediction()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/predictions/"+known.MatchID {
			json.NewEncoder(w).Encode(known)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := NewHTTPRecorder(srv.URL)
	ctx := context.Background()

	got, found, err := r.LookupPrediction(ctx, known.MatchID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, known.MatchID, got.MatchID)

	_, found, err = r.LookupPrediction(ctx, "EPL-XXX-YYY-2026-01-01")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHTTPRecorderResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/resolve", r.URL.Path)
		var req resolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.Draw, req.ActualOutcome)

		p := samplePrediction()
		require.NoError(t, p.Resolve(req.ActualOutcome, req.ResolvedAt))
		json.NewEncoder(w).Encode(p)
	}))
	defer srv.Close()

	r := NewHTTPRecorder(srv.URL)
	p, err := r.RecordResolution(context.Background(), "EPL-ARS-CHE-2026-02-12", model.Draw, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, p.Resolution.Resolved)
	assert.False(t, p.Resolution.Correct)
}

func TestHTTPRecorderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPRecorder(srv.URL)
	p := samplePrediction()
	err := r.RecordPrediction(context.Background(), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
