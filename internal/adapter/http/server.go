package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/windwatch/internal/domain"
)

// maxRequestBody bounds prediction request bodies.
const maxRequestBody = 1 << 20

// Forecaster resolves katabatic predictions through the daily lock.
type Forecaster interface {
	Predict(ctx context.Context, input domain.KatabaticInput) domain.LockResolution
	Lock(ctx context.Context) domain.PredictionLockState
}

// StationLookup returns the latest report for a station.
type StationLookup interface {
	Report(stationID string) (domain.StationReport, bool)
}

// Server exposes health, readiness, and metrics endpoints plus the JSON API.
type Server struct {
	httpServer *http.Server
	forecasts  Forecaster
	stations   StationLookup
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /v1 prediction and station routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, forecasts Forecaster, stations StationLookup, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		forecasts: forecasts,
		stations:  stations,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/katabatic/predict", s.handlePredict)
	mux.HandleFunc("GET /v1/katabatic/lock", s.handleLock)
	mux.HandleFunc("GET /v1/stations/{id}", s.handleStation)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	input, err := decodeInput(w, r)
	if err != nil {
		s.logger.Debug("rejecting prediction request", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.forecasts.Predict(r.Context(), input))
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.forecasts.Lock(r.Context()))
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, ok := s.stations.Report(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("station %q not tracked", id))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func decodeInput(w http.ResponseWriter, r *http.Request) (domain.KatabaticInput, error) {
	var input domain.KatabaticInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return input, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return input, fmt.Errorf("decode katabatic input: %w", err)
	}
	return input, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
