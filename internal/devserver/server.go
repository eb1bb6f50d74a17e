// Package devserver assembles the local chat backend used to exercise the
// session client end to end.
package devserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"webchat/internal/api"
	"webchat/internal/api/router"
	"webchat/internal/env"
	"webchat/internal/queue"
	chatservice "webchat/internal/service/chat"
	"webchat/internal/websocket"
)

type Options struct {
	// Registry receives the HTTP metrics; nil uses the default registry.
	Registry *prometheus.Registry
	Logger   *zerolog.Logger
	Now      func() time.Time
}

type Server struct {
	hub    *websocket.Hub
	chats  *chatservice.Service
	api    *api.APIServer
	rqm    *queue.RequestQueueManager
	redis  *websocket.RedisNotifier
	rdb    *redis.Client
	logger zerolog.Logger
}

func New(cfg env.Server, opts Options) (*Server, error) {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	s := &Server{
		hub:    websocket.NewHub(),
		logger: logger.With().Str("component", "devserver").Logger(),
	}

	var notifier chatservice.Notifier = websocket.NewLocalNotifier(s.hub)
	if cfg.RedisURL != "" {
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPass,
			DB:       0,
		})
		s.redis = websocket.NewRedisNotifier(s.rdb)
		notifier = s.redis
	}

	s.chats = chatservice.NewWithRepository(chatservice.NewMemoryRepository(), notifier, opts.Now, loc)
	s.rqm = queue.NewRequestQueueManager(cfg.QueueSize, cfg.Workers)

	apiCfg := api.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         &logger,
	}
	if opts.Registry != nil {
		apiCfg.Registerer = opts.Registry
		apiCfg.Gatherer = opts.Registry
	}
	ws := websocket.NewHandler(s.hub, s.chats, cfg.AllowedOrigins)
	s.api = api.NewAPIServer(apiCfg, s.rqm, s.chats, ws,
		router.ChatRoutes(""),
		router.UtilsRoutes(""),
	)
	return s, nil
}

// Start runs the hub and, with Redis configured, the room subscription.
// Both stop when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		go func() {
			if err := s.redis.Subscribe(ctx, s.hub); err != nil {
				s.logger.Error().Err(err).Msg("[devserver] redis subscription ended")
			}
		}()
	}
	go s.hub.Run(ctx)
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.api.Routes()
}

// Run starts the server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Close()
	return s.api.Run(ctx)
}

func (s *Server) Close() {
	s.rqm.Shutdown()
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("[devserver] close redis")
		}
	}
}
