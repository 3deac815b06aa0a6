// Package api exposes the prediction system over HTTP: on-demand
// predictions, the recorded history with its accuracy aggregates, the
// resolution endpoint the agent submits through, and operational health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/footyoracle/footyoracle/internal/config"
	"github.com/footyoracle/footyoracle/internal/engine"
	"github.com/footyoracle/footyoracle/internal/model"
	"github.com/footyoracle/footyoracle/internal/store"
	"github.com/footyoracle/footyoracle/internal/telemetry"
)

// SignalSource is the slice of the fetcher the API consumes.
type SignalSource interface {
	Fixtures(ctx context.Context, league config.League, from, to time.Time) ([]model.Fixture, model.Provenance)
	BuildBundle(ctx context.Context, fixture model.Fixture) model.SignalBundle
}

// Server is the HTTP API.
type Server struct {
	cfg     config.Config
	store   store.PredictionStore
	source  SignalSource
	engine  *engine.Engine
	metrics *telemetry.Metrics
	router  *mux.Router

	now func() time.Time
}

// New builds the API server and its routes.
func New(cfg config.Config, st store.PredictionStore, source SignalSource, eng *engine.Engine, metrics *telemetry.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		source:  source,
		engine:  eng,
		metrics: metrics,
		router:  mux.NewRouter(),
		now:     time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/predictions", s.handleListPredictions).Methods(http.MethodGet)
	api.HandleFunc("/predictions/{matchId}", s.handleGetPrediction).Methods(http.MethodGet)
	api.HandleFunc("/resolve", s.handleResolve).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/{league}", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/matches/{league}", s.handleMatches).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout.Std(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Server.Addr).Msg("api server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Warn().Err(err).Msg("response encoding failed")
		}
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"mock_mode": s.cfg.MockMode,
		"time":      s.now().UTC(),
	})
}

// predictRequest covers both callers of POST /api/predict: an interactive
// client naming a team pair with flat fields, and the agent submitting a
// precomputed prediction payload (Outcome set).
type predictRequest struct {
	model.Prediction

	League   string    `json:"league,omitempty"`
	HomeTeam string    `json:"homeTeam,omitempty"`
	AwayTeam string    `json:"awayTeam,omitempty"`
	Kickoff  time.Time `json:"kickoff,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Outcome != "" {
		s.acceptPrecomputed(w, r, req.Prediction)
		return
	}
	s.predictOnDemand(w, r, req)
}

// acceptPrecomputed stores a prediction the agent already scored.
func (s *Server) acceptPrecomputed(w http.ResponseWriter, r *http.Request, p model.Prediction) {
	if !p.Outcome.Valid() {
		respondError(w, http.StatusBadRequest, "invalid predicted outcome")
		return
	}
	if p.MatchID == "" {
		p.MatchID = p.Fixture.MatchID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}

	if err := s.store.Insert(r.Context(), &p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, http.StatusConflict, "prediction already exists for "+p.MatchID)
			return
		}
		log.Error().Err(err).Str("match", p.MatchID).Msg("prediction insert failed")
		respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// predictOnDemand scores a team pair right now. An existing prediction for
// the derived match is returned rather than duplicated.
func (s *Server) predictOnDemand(w http.ResponseWriter, r *http.Request, req predictRequest) {
	fixture := model.Fixture{
		League:   req.League,
		HomeTeam: req.HomeTeam,
		AwayTeam: req.AwayTeam,
		Kickoff:  req.Kickoff,
	}
	if fixture.League == "" || fixture.HomeTeam == "" || fixture.AwayTeam == "" {
		respondError(w, http.StatusBadRequest, "league, homeTeam and awayTeam are required")
		return
	}
	if _, ok := config.LeagueByCode(fixture.League); !ok {
		respondError(w, http.StatusBadRequest, "unknown league "+fixture.League)
		return
	}
	if fixture.Kickoff.IsZero() {
		fixture.Kickoff = s.now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour).Add(15 * time.Hour)
	}

	ctx := r.Context()
	matchID := fixture.MatchID()
	if existing, err := s.store.Get(ctx, matchID); err == nil {
		respondJSON(w, http.StatusOK, existing)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("match", matchID).Msg("prediction lookup failed")
		respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	bundle := s.source.BuildBundle(ctx, fixture)
	if err := bundle.Validate(); err != nil {
		respondError(w, http.StatusBadGateway, "signals unavailable: "+err.Error())
		return
	}

	prediction := s.engine.Predict(bundle)
	prediction.CreatedAt = s.now().UTC()
	if err := s.store.Insert(ctx, &prediction); err != nil && !errors.Is(err, store.ErrDuplicate) {
		log.Error().Err(err).Str("match", matchID).Msg("prediction insert failed")
		respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	s.metrics.PredictionsMade.Inc()
	respondJSON(w, http.StatusCreated, prediction)
}

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	filter := store.Filter{League: r.URL.Query().Get("league")}
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "resolved must be a boolean")
			return
		}
		filter.Resolved = &resolved
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	predictions, err := s.store.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("prediction list failed")
		respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	respondJSON(w, http.StatusOK, predictions)
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	p, err := s.store.Get(r.Context(), matchID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no prediction for "+matchID)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("match", matchID).Msg("prediction get failed")
		respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type resolveRequest struct {
	MatchID       string        `json:"matchId"`
	ActualOutcome model.Outcome `json:"actualOutcome"`
	ResolvedAt    time.Time     `json:"resolvedAt,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.MatchID == "" {
		respondError(w, http.StatusBadRequest, "matchId is required")
		return
	}
	if !req.ActualOutcome.Valid() {
		respondError(w, http.StatusBadRequest, "actualOutcome must be HOME_WIN, AWAY_WIN or DRAW")
		return
	}
	at := req.ResolvedAt
	if at.IsZero() {
		at = s.now().UTC()
	}

	p, err := s.store.Resolve(r.Context(), req.MatchID, req.ActualOutcome, at)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "no prediction for "+req.MatchID)
	case errors.Is(err, store.ErrAlreadyResolved):
		respondError(w, http.StatusUnprocessableEntity, req.MatchID+" is already resolved")
	case err != nil:
		log.Error().Err(err).Str("match", req.MatchID).Msg("resolve failed")
		respondError(w, http.StatusInternalServerError, "storage failure")
	default:
		s.metrics.ResolutionsMade.Inc()
		respondJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	league := mux.Vars(r)["league"]
	if league != "" {
		if _, ok := config.LeagueByCode(league); !ok {
			respondError(w, http.StatusNotFound, "unknown league "+league)
			return
		}
	}

	stats, err := s.store.Stats(r.Context(), league)
	if err != nil {
		log.Error().Err(err).Msg("stats query failed")
		respondError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["league"]
	league, ok := config.LeagueByCode(code)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown league "+code)
		return
	}

	from := s.now()
	to := from.AddDate(0, 0, s.cfg.Agent.LookaheadDays)
	fixtures, prov := s.source.Fixtures(r.Context(), league, from, to)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"league":     league.Code,
		"provenance": prov,
		"matches":    fixtures,
	})
}
