// Package api provides the HTTP server for Nexus Pulse: the insight and
// synthesis read model, manual refresh, history, the player-state feed and
// a live websocket stream of new syntheses.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/nexus-quest/pulse/internal/app/playerstate"
	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/domain"
	"github.com/nexus-quest/pulse/internal/health"
)

// History paging bounds.
const (
	defaultHistoryLimit = 7
	maxHistoryLimit     = 365
)

// maxStateBody caps PUT /api/pulse/state payloads.
const maxStateBody = 8 << 20

// Server is the Nexus Pulse HTTP API server.
type Server struct {
	pulse          *pulse.Pulse
	state          *playerstate.Store
	live           *LiveHub
	health         *health.Checker
	corsOrigins    []string
	metricsEnabled bool
}

// NewServer creates a new API server over the engine and the state store.
func NewServer(p *pulse.Pulse, state *playerstate.Store) *Server {
	return &Server{pulse: p, state: state, corsOrigins: []string{"*"}}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetCORSOrigins replaces the allowed CORS origins. Empty keeps "*".
func (s *Server) SetCORSOrigins(origins []string) {
	if len(origins) > 0 {
		s.corsOrigins = origins
	}
}

// SetLiveHub mounts the live synthesis websocket feed.
func (s *Server) SetLiveHub(h *LiveHub) { s.live = h }

// SetHealth attaches the checker whose results /health reports.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/pulse", func(r chi.Router) {
		// The websocket route must not sit behind a write timeout.
		if s.live != nil {
			r.Get("/live", s.live.HandleLive)
		}
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/insights", s.handleInsights)
			r.Get("/synthesis", s.handleSynthesis)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/history", s.handleHistory)
			r.Get("/state", s.handleGetState)
			r.Put("/state", s.handlePutState)
			r.Post("/reflections", s.handlePostReflection)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// ─── Read Model ─────────────────────────────────────────────────────────────

type healthResponse struct {
	Status string          `json:"status"`
	Checks []health.Status `json:"checks,omitempty"`
}

// handleHealth stays 200 while degraded: local insights keep working
// without storage or synthesis.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.health != nil {
		resp.Checks = s.health.Statuses()
		if !s.health.IsHealthy() {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type insightsResponse struct {
	Insights []domain.Insight `json:"insights"`
	Count    int              `json:"count"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	d := domain.InsightDomain(r.URL.Query().Get("domain"))
	if d != "" && !domain.ValidDomain(d) {
		writeError(w, http.StatusBadRequest, "unknown domain: "+string(d))
		return
	}
	list := s.pulse.Insights(d)
	if list == nil {
		list = []domain.Insight{}
	}
	writeJSON(w, http.StatusOK, insightsResponse{Insights: list, Count: len(list)})
}

type synthesisResponse struct {
	Synthesis *domain.AISynthesis `json:"synthesis"`
	pulse.Status
}

func (s *Server) handleSynthesis(w http.ResponseWriter, r *http.Request) {
	resp := synthesisResponse{Status: s.pulse.Status()}
	if syn, ok := s.pulse.Synthesis(); ok {
		resp.Synthesis = &syn
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.pulse.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "accepted",
		"loading": s.pulse.Loading(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries := s.pulse.History(limit)
	if entries == nil {
		entries = []domain.PulseHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// ─── Player State ───────────────────────────────────────────────────────────

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	var next domain.State
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStateBody))
	if err := dec.Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.state.Apply(next); err != nil {
		writeStateError(w, err)
		return
	}
	s.writeInsights(w, http.StatusOK)
}

// handlePostReflection records the energy check-in for a day, replacing an
// earlier one for the same day. Day defaults to today.
func (s *Server) handlePostReflection(w http.ResponseWriter, r *http.Request) {
	var in domain.Reflection
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if in.Energy < 1 || in.Energy > 5 {
		writeError(w, http.StatusUnprocessableEntity, "energy must be between 1 and 5")
		return
	}
	if in.Day == "" {
		in.Day = domain.DayKey(s.pulse.Orchestrator().Now())
	}
	err := s.state.Update(func(st *domain.State) {
		for i := range st.Reflections {
			if st.Reflections[i].Day == in.Day {
				st.Reflections[i] = in
				return
			}
		}
		st.Reflections = append(st.Reflections, in)
	})
	if err != nil {
		writeStateError(w, err)
		return
	}
	s.writeInsights(w, http.StatusCreated)
}

func (s *Server) writeInsights(w http.ResponseWriter, status int) {
	list := s.pulse.Insights("")
	if list == nil {
		list = []domain.Insight{}
	}
	writeJSON(w, status, insightsResponse{Insights: list, Count: len(list)})
}

func writeStateError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrInvalidState) {
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, err.Error())
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}
