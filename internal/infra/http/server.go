package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"docstream/internal/config"
	"docstream/internal/infra/api/apiv1"
	red "docstream/internal/infra/redis"
)

// Server is the operational HTTP surface: the v1 control-plane API plus
// health and metrics endpoints.
type Server struct {
	cfg    *config.Config
	api    *apiv1.Server
	pool   *pgxpool.Pool
	redis  red.RedisClient
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(cfg *config.Config, api *apiv1.Server, pool *pgxpool.Pool, redis red.RedisClient, log *zerolog.Logger) *Server {
	return &Server{cfg: cfg, api: api, pool: pool, redis: redis, log: log}
}

func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	s.api.RegisterRoutes(r)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Admin.Port),
		Handler: r,
	}

	s.log.Info().Int("port", s.cfg.Admin.Port).Msg("HTTP server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := s.redis.Ping(ctx); err != nil {
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
