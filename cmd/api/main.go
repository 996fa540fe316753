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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	goahttp "goa.design/goa/v3/http"

	"oikos/internal/config"
	"oikos/internal/dispatch"
	"oikos/internal/logger"
	"oikos/internal/services"
	"oikos/internal/validation"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 45 * time.Second
	idleTimeout     = 60 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("configuration validation failed")
	}

	log.Info().
		Str("version", cfg.App.Version).
		Str("env", cfg.App.Env).
		Str("host", cfg.App.Host).
		Str("port", cfg.App.Port).
		Msgf("starting %s", cfg.App.Name)

	// Create service instances
	chans := services.NewChannels(cfg, log)
	for _, ch := range chans {
		if !ch.Configured() {
			log.Warn().Str("channel", string(ch.Name())).Msg("channel not configured; submissions will skip it")
		}
	}

	dispatcher := dispatch.New(chans,
		dispatch.WithPolicy(dispatch.Policy{RequireAllChannels: cfg.Dispatch.RequireAllChannels}),
		dispatch.WithChannelTimeout(cfg.Dispatch.ChannelTimeout),
		dispatch.WithMaxConcurrent(cfg.Dispatch.MaxConcurrent),
		dispatch.WithLogger(log),
	)
	submissionSvc := services.NewSubmissionService(validation.New(), dispatcher, log)
	healthSvc := services.NewHealthService(cfg.App.Name, cfg.App.Version, dispatcher.Channels())

	// Mount HTTP handlers
	mux := goahttp.NewMuxer()
	server := services.NewServer(
		services.NewSubmitEndpoint(submissionSvc),
		services.NewHealthEndpoint(healthSvc),
		log,
	)
	server.Mount(mux)
	mux.Handle(http.MethodGet, "/metrics", promhttp.Handler().ServeHTTP)

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      services.Handler(mux, cfg, log),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal().Err(err).Msg("server failed to start")
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("starting graceful shutdown")
	}

	gracefulShutdown(httpServer, log)
}

func gracefulShutdown(httpServer *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Msg("shutdown timeout exceeded, forcing close")
			_ = httpServer.Close()
		}
	}

	log.Info().Msg("server shutdown complete")
}

// validateConfig validates critical configuration values
func validateConfig(cfg *config.Config) error {
	if cfg.App.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	if cfg.Dispatch.ChannelTimeout >= writeTimeout {
		return fmt.Errorf("CHANNEL_TIMEOUT (%s) must be shorter than the %s response deadline", cfg.Dispatch.ChannelTimeout, writeTimeout)
	}
	return nil
}
