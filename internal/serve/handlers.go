package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"sportsml/internal/records"
)

// Server wraps the scoring service in an HTTP server.
type Server struct {
	svc    *Service
	server *http.Server

	mu        sync.Mutex
	isRunning bool
}

// NewServer builds the HTTP server and its routes.
func NewServer(svc *Service, port int) *Server {
	s := &Server{svc: svc}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/models/info", s.handleModelsInfo).Methods("GET")
	r.HandleFunc("/models/reload", s.handleReload).Methods("POST")
	r.HandleFunc("/predict", s.handlePredict).Methods("POST")
	r.HandleFunc("/predict/batch", s.handlePredictBatch).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the server in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return errors.New("scoring server is already running")
	}

	go func() {
		log.Info().Str("address", s.server.Addr).Msg("starting scoring server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("scoring server failed")
		}
	}()

	s.isRunning = true
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown scoring server")
		return err
	}
	s.isRunning = false
	log.Info().Msg("scoring server stopped")
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":       "sportsml scoring service",
		"status":        "running",
		"models_loaded": s.svc.Ready(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	winner := s.svc.Loaded(records.TargetWinner)
	spread := s.svc.Loaded(records.TargetSpread)

	trainedAt := "unknown"
	if winner != nil {
		trainedAt = winner.Meta.TrainedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"models": map[string]bool{
			"winner": winner != nil,
			"spread": spread != nil,
		},
		"trained_at": trainedAt,
	})
}

func (s *Server) handleModelsInfo(w http.ResponseWriter, r *http.Request) {
	winner := s.svc.Loaded(records.TargetWinner)
	if winner == nil {
		writeError(w, http.StatusServiceUnavailable, ErrModelsNotLoaded.Error())
		return
	}

	info := map[string]any{"winner": winner.Meta}
	if spread := s.svc.Loaded(records.TargetSpread); spread != nil {
		info["spread"] = spread.Meta
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.LoadLatest(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var game GameInput
	if err := json.NewDecoder(r.Body).Decode(&game); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out, err := s.svc.Predict(&game)
	if err != nil {
		writePredictError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var games []GameInput
	if err := json.NewDecoder(r.Body).Decode(&games); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !s.svc.Ready() {
		writeError(w, http.StatusServiceUnavailable, ErrModelsNotLoaded.Error())
		return
	}

	type batchEntry struct {
		*PredictionOutput
		Error string `json:"error,omitempty"`
		Game  string `json:"game,omitempty"`
	}

	predictions := make([]batchEntry, 0, len(games))
	successful := 0
	for i := range games {
		out, err := s.svc.Predict(&games[i])
		if err != nil {
			predictions = append(predictions, batchEntry{
				Error: err.Error(),
				Game:  fmt.Sprintf("%s @ %s", games[i].AwayTeam, games[i].HomeTeam),
			})
			continue
		}
		predictions = append(predictions, batchEntry{PredictionOutput: out})
		successful++
	}

	if m := s.svc.m; m != nil {
		m.BatchSize.Observe(float64(len(games)))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"predictions": predictions,
		"total":       len(games),
		"successful":  successful,
	})
}

func writePredictError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrModelsNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
