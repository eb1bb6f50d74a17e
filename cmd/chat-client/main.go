package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"webchat/internal/env"
	"webchat/internal/history"
	"webchat/internal/model"
	"webchat/internal/realtime"
	"webchat/internal/render"
	"webchat/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "chat-client",
	Short: "Terminal client for customer and agent chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, ok := model.ParseRole(flagRole)
		if !ok {
			return fmt.Errorf("unknown role %q", flagRole)
		}
		return runClient(role, nil)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new chat as a customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(model.RoleCustomer, func(ctx context.Context, s *session.Client) error {
			_, err := s.StartChat(ctx, flagName, flagEmail)
			return err
		})
	},
}

var accessCmd = &cobra.Command{
	Use:   "access <ticket>",
	Short: "Open an existing chat by ticket id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, ok := model.ParseRole(flagRole)
		if !ok {
			return fmt.Errorf("unknown role %q", flagRole)
		}
		return runClient(role, func(ctx context.Context, s *session.Client) error {
			return s.AccessChat(ctx, args[0])
		})
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Open the agent dashboard of open chats",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(model.RoleAgent, func(ctx context.Context, s *session.Client) error {
			return s.OpenDashboard(ctx)
		})
	},
}

var (
	flagBackend     string
	flagRole        string
	flagLogLevel    string
	flagMetricsAddr string
	flagName        string
	flagEmail       string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagBackend, "backend", "", "backend origin (overrides CHAT_BACKEND_URL)")
	flags.StringVar(&flagRole, "role", "cliente", "session role: cliente|prestador (customer|agent)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (overrides CHAT_LOG_LEVEL)")
	flags.StringVar(&flagMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (overrides CHAT_METRICS_ADDR)")

	startCmd.Flags().StringVar(&flagName, "name", "", "customer name")
	startCmd.Flags().StringVar(&flagEmail, "email", "", "customer email")

	rootCmd.AddCommand(startCmd, accessCmd, agentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chat-client command")
	}
}

func loadConfig() (env.Client, error) {
	cfg, err := env.LoadClient()
	if err != nil {
		return env.Client{}, err
	}
	if flagBackend != "" {
		cfg.BackendURL = flagBackend
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagMetricsAddr != "" {
		cfg.MetricsAddr = flagMetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return env.Client{}, err
	}
	return cfg, nil
}

func runClient(role model.Role, first func(context.Context, *session.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: colorable.NewColorableStderr()}).
		Level(level).With().Timestamp().Logger()
	log.Logger = logger

	wsURL, err := cfg.RealtimeURL()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, logger)
	}

	view := render.Stdout(role)
	sess := session.New(session.Options{
		Role:    role,
		History: history.New(cfg.BackendURL, cfg.HTTPTimeout),
		Dial: session.RealtimeDialer(realtime.Options{
			ReconnectMin:      cfg.ReconnectMin,
			ReconnectMax:      cfg.ReconnectMax,
			ReconnectAttempts: cfg.ReconnectAttempts,
			Logger:            &logger,
		}),
		RealtimeURL: wsURL,
		View:        view,
		Logger:      &logger,
	})

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	if first != nil {
		if err := first(ctx, sess); err != nil {
			logger.Debug().Err(err).Msg("[chat-client] initial action failed")
		}
	} else {
		view.ShowEntryForms()
	}

	repl := newREPL(sess, view, logger)
	repl.Loop(ctx, os.Stdin)

	sess.Close()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info().Str("addr", addr).Msg("[chat-client] serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn().Err(err).Msg("[chat-client] metrics server stopped")
	}
}
