package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultd/observability"
	"vaultd/vault"
)

// Server exposes the vault engine over HTTP: balance and cap queries,
// deposit/withdraw/swap operations, and the administrative surface.
type Server struct {
	engine  *vault.Engine
	logger  *slog.Logger
	metrics *observability.VaultMetrics
	limiter *RateLimiter
}

// New constructs a server around the provided engine.
func New(engine *vault.Engine, logger *slog.Logger, limiter *RateLimiter) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		logger:  logger,
		metrics: observability.Metrics(),
		limiter: limiter,
	}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/vault", func(vr chi.Router) {
		vr.Get("/balance/{asset}/{account}", s.handleBalance)
		vr.Get("/total/{asset}", s.handleTotal)
		vr.Get("/caps/{asset}", s.handleCaps)
		vr.Post("/deposit", s.handleDeposit)
		vr.Post("/withdraw", s.handleWithdraw)
		vr.Post("/swap", s.handleSwap)
	})
	r.Route("/v1/admin", func(ar chi.Router) {
		ar.Post("/caps", s.handleSetCaps)
		ar.Post("/usd-cap", s.handleSetUSDCap)
		ar.Post("/rescue", s.handleRescue)
	})
	return r
}
