// Package api exposes the coin operations over HTTP for game and UI code.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"coin-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Coins is the public surface of a coin instance.
type Coins interface {
	Balance() int64
	SetBalance(n float64)
	Add(amount float64)
	Subtract(amount float64)
	Spend(amount float64)
	CanAfford(amount float64) bool
	TrySpend(amount float64) bool
	Format(n int64) string
	NextReset() (time.Time, bool)
	Wake()
}

// StoreStats reports on the persistent store behind the instance.
type StoreStats interface {
	CountEntries(ctx context.Context) (int64, error)
}

// Server is the coin HTTP API server.
type Server struct {
	coins          Coins
	stats          StoreStats
	metricsEnabled bool
}

func NewServer(coins Coins) *Server {
	return &Server{coins: coins}
}

// WithStoreStats makes /health check the store and report its entry count.
func (s *Server) WithStoreStats(stats StoreStats) *Server {
	s.stats = stats
	return s
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/coins", func(r chi.Router) {
		r.Get("/", s.handleState)
		r.Get("/afford", s.handleAfford)
		r.Post("/add", s.handleAdd)
		r.Post("/subtract", s.handleSubtract)
		r.Post("/set", s.handleSet)
		r.Post("/spend", s.handleSpend)
		r.Post("/try-spend", s.handleTrySpend)
		r.Post("/wake", s.handleWake)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

type stateResponse struct {
	Balance   int64  `json:"balance"`
	Formatted string `json:"formatted"`
	NextReset int64  `json:"next_reset,omitempty"`
}

type amountRequest struct {
	Amount *float64 `json:"amount"`
}

func (s *Server) state() stateResponse {
	n := s.coins.Balance()
	resp := stateResponse{Balance: n, Formatted: s.coins.Format(n)}
	if next, ok := s.coins.NextReset(); ok {
		resp.NextReset = next.UnixMilli()
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	n, err := s.stats.CountEntries(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	metrics.StoreEntries.Set(float64(n))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "entries": n})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleAfford(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount query parameter must be a number")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"affordable": s.coins.CanAfford(amount)})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	s.withAmount(w, r, s.coins.Add)
}

func (s *Server) handleSubtract(w http.ResponseWriter, r *http.Request) {
	s.withAmount(w, r, s.coins.Subtract)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	s.withAmount(w, r, s.coins.SetBalance)
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	s.withAmount(w, r, s.coins.Spend)
}

// handleTrySpend answers 409 when the balance does not cover the amount.
func (s *Server) handleTrySpend(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	spent := s.coins.TrySpend(amount)
	status := http.StatusOK
	if !spent {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{
		"spent":   spent,
		"balance": s.coins.Balance(),
	})
}

func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	s.coins.Wake()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) withAmount(w http.ResponseWriter, r *http.Request, op func(float64)) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	op(amount)
	writeJSON(w, http.StatusOK, s.state())
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return 0, false
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return 0, false
	}
	return *req.Amount, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
