// Package api provides the HTTP control surface for a simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token and are rate limited.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talgya/rent-market/internal/economy"
	"github.com/talgya/rent-market/internal/engine"
	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/persistence"
	"github.com/talgya/rent-market/internal/telemetry"
	"github.com/talgya/rent-market/internal/tuning"
)

// Server serves a controller over HTTP.
type Server struct {
	Ctrl     *engine.Controller
	DB       *persistence.DB    // Optional; enables /runs
	Metrics  *telemetry.Metrics // Optional; enables /metrics
	Port     int
	AdminKey string   // Bearer token for POST endpoints. Empty = POST disabled.
	Origins  []string // Extra allowed CORS origins

	// Limiter throttles POST endpoints. Nil uses 60 per minute.
	Limiter *RateLimiter
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	if s.Limiter == nil {
		s.Limiter = NewRateLimiter(60, 10)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints.
		r.Get("/status", s.handleStatus)
		r.Get("/frames/latest", s.handleLatestFrame)
		r.Get("/frames/{step}", s.handleFrame)
		r.Get("/metrics", s.handleMetricsHistory)
		r.Get("/market", s.handleMarket)
		r.Get("/policy", s.handlePolicy)
		r.Get("/households", s.handleHouseholds)
		r.Get("/households/{id}", s.handleHousehold)
		r.Get("/units/{id}", s.handleUnit)
		r.Get("/landlords", s.handleLandlords)
		r.Get("/runs", s.handleRuns)

		// Admin endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Use(s.Limiter.Middleware)
			r.Post("/step", s.handleStep)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/reset", s.handleReset)
			r.Post("/seek", s.handleSeek)
		})
	})

	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}
	return r
}

// Serve listens on Port until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// cors adds CORS headers for allowed frontend origins. Localhost dev servers
// are always allowed.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, o := range s.Origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminOnly requires the admin bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no RENTSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.Ctrl.Params()
	status := map[string]any{
		"run_id":  s.Ctrl.RunID().String(),
		"step":    s.Ctrl.CurrentStep(),
		"horizon": p.Years * tuning.PeriodsPerYear,
		"paused":  s.Ctrl.Paused(),
		"done":    s.Ctrl.Done(),
		"seed":    p.Seed,
	}
	s.Ctrl.View(func(sim *engine.Simulation) {
		status["policy"] = sim.Policy.Kind.String()
		status["households"] = len(sim.Households)
		status["units"] = sim.Units.Len()
		status["landlords"] = len(sim.Landlords)
	})
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLatestFrame(w http.ResponseWriter, r *http.Request) {
	f, ok := s.Ctrl.Latest()
	if !ok {
		http.Error(w, "no frames yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, f.Wire())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		http.Error(w, "invalid step", http.StatusBadRequest)
		return
	}
	f, ok := s.Ctrl.Frame(step)
	if !ok {
		http.Error(w, "frame not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, f.Wire())
}

func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	frames := s.Ctrl.Frames()
	out := make([]engine.PeriodMetrics, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Metrics)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "history", 20)
	var resp struct {
		Current      economy.Conditions   `json:"current"`
		BaselineRent float64              `json:"baseline_rent"`
		History      []economy.Conditions `json:"history"`
	}
	s.Ctrl.View(func(sim *engine.Simulation) {
		resp.Current = sim.Market.Conditions()
		resp.BaselineRent = sim.Market.BaselineRent()
		h := sim.Market.History()
		if len(h) > limit {
			h = h[len(h)-limit:]
		}
		resp.History = h
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	var resp any
	s.Ctrl.View(func(sim *engine.Simulation) {
		resp = map[string]any{
			"summary":         sim.Policy.Summarize(),
			"rent_cap_ratio":  sim.Policy.RentCapRatio,
			"max_increase":    sim.Policy.MaxIncrease,
			"inspection_rate": sim.Policy.InspectionRate,
			"lvt_rate":        sim.Policy.LVTRate,
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHouseholds(w http.ResponseWriter, r *http.Request) {
	tenure := r.URL.Query().Get("tenure")
	limit := queryInt(r, "limit", 500)
	out := []engine.HouseholdSummary{}
	s.Ctrl.View(func(sim *engine.Simulation) {
		for _, h := range sim.Households {
			if tenure != "" && h.Tenure().String() != tenure {
				continue
			}
			out = append(out, engine.Summarize(h))
			if len(out) >= limit {
				break
			}
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHousehold(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid household id", http.StatusBadRequest)
		return
	}
	var resp map[string]any
	s.Ctrl.View(func(sim *engine.Simulation) {
		h := sim.Household(housing.HouseholdID(id))
		if h == nil {
			return
		}
		resp = map[string]any{
			"household":      engine.Summarize(h),
			"tenure":         h.Tenure().String(),
			"preferences":    h.Prefs,
			"rent_burden":    h.RentBurden(sim.Units),
			"stressed":       h.FinancialStress,
			"timeline":       h.Timeline(),
			"wealth_history": h.WealthHistory(),
		}
		if uid, ok := h.UnitID(); ok {
			resp["unit_id"] = uid
		}
		if h.Contract != nil {
			resp["contract"] = map[string]any{
				"start_rent": h.Contract.StartRent,
				"months":     h.Contract.Duration(),
				"long_term":  h.Contract.IsLongTerm(),
				"history":    h.Contract.History(),
			}
		}
		if h.Mortgage != nil {
			resp["mortgage"] = h.Mortgage
		}
	})
	if resp == nil {
		http.Error(w, "household not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid unit id", http.StatusBadRequest)
		return
	}
	var resp map[string]any
	s.Ctrl.View(func(sim *engine.Simulation) {
		u := sim.Units.Get(housing.UnitID(id))
		if u == nil {
			return
		}
		resp = map[string]any{
			"unit":         u,
			"occupancy":    u.Occupancy().String(),
			"district":     u.District.String(),
			"market_value": u.MarketValue(),
			"markdowns":    u.Markdowns(),
		}
	})
	if resp == nil {
		http.Error(w, "unit not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLandlords(w http.ResponseWriter, r *http.Request) {
	type landlordView struct {
		ID        housing.LandlordID     `json:"id"`
		Name      string                 `json:"name"`
		Compliant bool                   `json:"compliant"`
		Greed     float64                `json:"greed"`
		Stats     housing.PortfolioStats `json:"stats"`
	}
	var out []landlordView
	s.Ctrl.View(func(sim *engine.Simulation) {
		for _, l := range sim.Landlords {
			out = append(out, landlordView{
				ID:        l.ID,
				Name:      l.Name,
				Compliant: l.Compliant,
				Greed:     l.Greed,
				Stats:     l.Stats(sim.Units),
			})
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "storage disabled", http.StatusNotFound)
		return
	}
	runs, err := s.DB.Runs(queryInt(r, "limit", 20))
	if err != nil {
		slog.Error("listing runs", "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	f, err := s.Ctrl.Step()
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.ObserveFailure(err)
		}
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrTainted) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	if f == nil {
		http.Error(w, "horizon reached", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, f.Wire())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.Ctrl.Pause()
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.Ctrl.Resume()
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Ctrl.Reset(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.DB != nil {
		if err := s.DB.CreateRun(s.Ctrl.RunID(), s.Ctrl.Params()); err != nil {
			slog.Error("registering reset run", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": s.Ctrl.RunID().String(), "step": 0})
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step int `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := s.Ctrl.Seek(req.Step); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"step": s.Ctrl.CurrentStep()})
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("writing response", "error", err)
	}
}
