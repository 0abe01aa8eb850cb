// Package httpadapter serves the health probes, Prometheus metrics and the
// read-only region API.
package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/inmet-alerts/internal/config"
	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/couchcryptid/inmet-alerts/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Regions is the set of pollers the API reads from.
// *pipeline.Supervisor implements it.
type Regions interface {
	sharedobs.ReadinessChecker
	Pollers() []*pipeline.Poller
	Poller(region string) (*pipeline.Poller, bool)
}

// Server exposes health, readiness, metrics and region endpoints.
type Server struct {
	httpServer *http.Server
	regions    Regions
	home       *config.Point
	logger     *slog.Logger
}

// NewServer creates the HTTP server. home is optional; when set, alerts carry
// their distance from it.
func NewServer(addr string, regions Regions, home *config.Point, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // manual polls wait for the upstream fetch
			IdleTimeout:  60 * time.Second,
		},
		regions: regions,
		home:    home,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(regions))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/regions", s.handleRegions)
	mux.HandleFunc("GET /api/v1/regions/{code}/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/v1/regions/{code}/status", s.handleStatus)
	mux.HandleFunc("POST /api/v1/regions/{code}/poll", s.handlePoll)

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

type regionView struct {
	Code        string  `json:"code"`
	Name        string  `json:"name,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Interval    string  `json:"interval"`
	ActiveCount int     `json:"active_count"`
	Ready       bool    `json:"ready"`
}

// alertView is an active alert as served by the API: blank risks and
// instructions are dropped and the distance from home is attached when known.
type alertView struct {
	domain.AlertRecord
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	pollers := s.regions.Pollers()
	views := make([]regionView, 0, len(pollers))
	for _, p := range pollers {
		city := p.City()
		views = append(views, regionView{
			Code:        city.Code,
			Name:        city.Name,
			Latitude:    city.Latitude,
			Longitude:   city.Longitude,
			Interval:    p.Interval().String(),
			ActiveCount: len(p.Active()),
			Ready:       p.CheckReadiness(r.Context()) == nil,
		})
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"regions": views})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	p, ok := s.poller(w, r)
	if !ok {
		return
	}

	active := p.Active()
	views := make([]alertView, 0, len(active))
	for _, rec := range active {
		rec.Risks = domain.NonBlank(rec.Risks)
		rec.Instructions = domain.NonBlank(rec.Instructions)
		v := alertView{AlertRecord: rec}
		if s.home != nil {
			d := domain.DistanceKm(s.home.Latitude, s.home.Longitude, rec.Latitude, rec.Longitude)
			v.DistanceKm = &d
		}
		views = append(views, v)
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"region": p.Region(),
		"count":  len(views),
		"alerts": views,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := s.poller(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, p.Status())
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	p, ok := s.poller(w, r)
	if !ok {
		return
	}

	status, err := p.Poll(r.Context())
	switch {
	case err == nil:
		sharedobs.WriteJSON(w, http.StatusOK, status)
	case errors.Is(err, pipeline.ErrPollInFlight):
		writeError(w, http.StatusConflict, err)
	case domain.IsTransient(err):
		sharedobs.WriteJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "status": status})
	default:
		s.logger.WarnContext(r.Context(), "manual poll failed", "region", p.Region(), "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) poller(w http.ResponseWriter, r *http.Request) (*pipeline.Poller, bool) {
	code := r.PathValue("code")
	p, ok := s.regions.Poller(code)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown region "+code))
	}
	return p, ok
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
