// Package api serves the chat backend over HTTP: the bootstrap endpoints, the
// realtime upgrade, health and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"webchat/internal/api/middleware"
	"webchat/internal/queue"
	chatservice "webchat/internal/service/chat"
	"webchat/internal/websocket"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	// Registerer and Gatherer default to the prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *zerolog.Logger
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	chats               *chatservice.Service
	handler             *websocket.Handler
	routeRegistrars     []RouteRegistrar
	cors                middleware.CORSConfig
	metrics             *httpMetrics
	logger              zerolog.Logger
}

func NewAPIServer(cfg Config, rqm *queue.RequestQueueManager, chats *chatservice.Service, handler *websocket.Handler, registrars ...RouteRegistrar) *APIServer {
	reg, gatherer := cfg.Registerer, cfg.Gatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &APIServer{
		listenAddr:          cfg.ListenAddr,
		requestQueueManager: rqm,
		chats:               chats,
		handler:             handler,
		routeRegistrars:     registrars,
		cors: middleware.CORSConfig{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Requested-With", "X-Request-ID"},
		},
		metrics: newMetrics(reg, gatherer, cfg.ListenAddr, rqm),
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Routes builds the instrumented handler tree.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()
	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}
	mux.Handle("/metrics", s.metrics.metricsHandler())
	return s.metrics.instrument(mux)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.listenAddr).Msg("[api] server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("[api] server stopped")
	return nil
}

func (s *APIServer) Chats() *chatservice.Service {
	return s.chats
}

func (s *APIServer) Websocket() *websocket.Handler {
	return s.handler
}
