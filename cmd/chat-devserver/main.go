package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"webchat/internal/devserver"
	"webchat/internal/env"
)

var rootCmd = &cobra.Command{
	Use:   "chat-devserver",
	Short: "Local chat backend: bootstrap HTTP API plus realtime rooms",
	RunE:  runServer,
}

var (
	flagListen string
	flagRedis  string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagListen, "listen", "", "listen address (overrides CHAT_LISTEN_ADDR)")
	flags.StringVar(&flagRedis, "redis", "", "redis address for room fan-out (overrides CHAT_REDIS_URL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chat-devserver command")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := env.LoadServer()
	if err != nil {
		return err
	}
	if flagListen != "" {
		cfg.ListenAddr = flagListen
	}
	if flagRedis != "" {
		cfg.RedisURL = flagRedis
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: colorable.NewColorableStderr()}).
		Level(level).With().Timestamp().Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := devserver.New(cfg, devserver.Options{Logger: &logger})
	if err != nil {
		return err
	}
	logger.Info().Str("addr", cfg.ListenAddr).Bool("redis", cfg.RedisURL != "").Msg("[chat-devserver] starting")
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("[chat-devserver] shutdown complete")
	return nil
}
