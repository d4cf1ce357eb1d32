// Package http serves the budget JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/feeds"
	"presupuesto/internal/log"
	"presupuesto/internal/middleware/ratelimit"
	"presupuesto/internal/middleware/security"
	"presupuesto/internal/middleware/trace"
	"presupuesto/internal/services"
)

// Options carries everything the server needs. All fields are required
// except RequestsPerMinute, which falls back to the limiter default.
type Options struct {
	Addr        string
	JWTSecret   string
	Ledger      *services.LedgerService
	Config      *services.ConfigService
	Goals       *services.GoalService
	Reset       *services.ResetService
	Bus         *events.Bus
	Inflation   *feeds.InflationClient
	Investments *feeds.InvestmentsClient
	Clock       core.Clock
	Location    *time.Location
	Logger      *log.Logger

	RequestsPerMinute int
}

type Server struct {
	http.Server

	ledger      *services.LedgerService
	config      *services.ConfigService
	goals       *services.GoalService
	reset       *services.ResetService
	bus         *events.Bus
	inflation   *feeds.InflationClient
	investments *feeds.InvestmentsClient
	clock       core.Clock
	loc         *time.Location
	logger      *log.Logger

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer wires routes and the middleware chain: security headers, then
// tracing, then rate limiting, with auth only on the protected /api routes.
func NewServer(opts Options) *Server {
	s := &Server{
		ledger:      opts.Ledger,
		config:      opts.Config,
		goals:       opts.Goals,
		reset:       opts.Reset,
		bus:         opts.Bus,
		inflation:   opts.Inflation,
		investments: opts.Investments,
		clock:       opts.Clock,
		loc:         opts.Location,
		logger:      opts.Logger.WithComponent(log.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
		}),
	}

	resolver := security.NewIPResolver()
	auth := NewAuthenticator(opts.JWTSecret, opts.Logger)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/session", s.handleSession)
	protected.HandleFunc("GET /api/config", s.handleGetConfig)
	protected.HandleFunc("PUT /api/config", s.handlePutConfig)
	protected.HandleFunc("GET /api/transactions", s.handleListTransactions)
	protected.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	protected.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	protected.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	protected.HandleFunc("GET /api/goals", s.handleListGoals)
	protected.HandleFunc("POST /api/goals", s.handleCreateGoal)
	protected.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	protected.HandleFunc("POST /api/goals/{id}/movements", s.handleGoalMovement)
	protected.HandleFunc("GET /api/summary", s.handleSummary)
	protected.HandleFunc("POST /api/reset", s.handleManualReset)
	protected.HandleFunc("GET /api/events", s.handleEvents)

	mux := http.NewServeMux()
	mux.Handle("/api/", auth.Middleware(protected))
	mux.HandleFunc("GET /api/inflation", s.handleInflation)
	mux.HandleFunc("GET /api/investments", s.handleInvestments)
	mux.HandleFunc("GET /healthz", handleHealth)

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
	}
	handler := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(
		trace.NewMiddleware(resolver.ClientIP, opts.Logger).Middleware(
			s.limiter.Middleware(resolver.ClientIP, onLimit)(mux)))

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No global write timeout: /api/events streams indefinitely.
	}
	return s
}

// Shutdown stops the listener and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}
