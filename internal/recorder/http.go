package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/footyoracle/footyoracle/internal/model"
	"github.com/footyoracle/footyoracle/internal/store"
)

// HTTPRecorder records through a remote backend exposing the prediction
// API. Conflict and not-found responses map onto the store sentinels so
// the cycle controller treats both recorder variants identically.
type HTTPRecorder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRecorder targets the backend at baseURL.
func NewHTTPRecorder(baseURL string) *HTTPRecorder {
	return &HTTPRecorder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type resolveRequest struct {
	MatchID       string        `json:"matchId"`
	ActualOutcome model.Outcome `json:"actualOutcome"`
	ResolvedAt    time.Time     `json:"resolvedAt"`
}

// RecordPrediction implements Recorder.
func (r *HTTPRecorder) RecordPrediction(ctx context.Context, p *model.Prediction) error {
	var submitted model.Prediction
	err := r.do(ctx, http.MethodPost, "/api/predict", p, &submitted)
	if err != nil {
		return fmt.Errorf("submit prediction %s: %w", p.MatchID, err)
	}
	if submitted.ID != "" {
		p.ID = submitted.ID
	}
	return nil
}

// LookupPrediction implements Recorder.
func (r *HTTPRecorder) LookupPrediction(ctx context.Context, matchID string) (model.Prediction, bool, error) {
	var p model.Prediction
	err := r.do(ctx, http.MethodGet, "/api/predictions/"+url.PathEscape(matchID), nil, &p)
	if errorsIsStatus(err, http.StatusNotFound) {
		return model.Prediction{}, false, nil
	}
	if err != nil {
		return model.Prediction{}, false, fmt.Errorf("lookup prediction %s: %w", matchID, err)
	}
	return p, true, nil
}

// RecordResolution implements Recorder.
func (r *HTTPRecorder) RecordResolution(ctx context.Context, matchID string, actual model.Outcome, at time.Time) (model.Prediction, error) {
	var p model.Prediction
	req := resolveRequest{MatchID: matchID, ActualOutcome: actual, ResolvedAt: at}
	if err := r.do(ctx, http.MethodPost, "/api/resolve", req, &p); err != nil {
		return model.Prediction{}, fmt.Errorf("submit resolution %s: %w", matchID, err)
	}
	return p, nil
}

// PendingResolutions implements Recorder. The backend filter is on the
// resolved flag only; the kickoff cutoff is applied here.
func (r *HTTPRecorder) PendingResolutions(ctx context.Context, cutoff time.Time) ([]model.Prediction, error) {
	var all []model.Prediction
	if err := r.do(ctx, http.MethodGet, "/api/predictions?resolved=false", nil, &all); err != nil {
		return nil, fmt.Errorf("list pending resolutions: %w", err)
	}
	pending := make([]model.Prediction, 0, len(all))
	for _, p := range all {
		if !p.Fixture.Kickoff.After(cutoff) {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// statusError carries a non-2xx backend response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.status, e.body)
}

func errorsIsStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (r *HTTPRecorder) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return store.ErrDuplicate
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return store.ErrAlreadyResolved
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
