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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/voicestate/internal/adapters/http"
	"github.com/dkeye/voicestate/internal/adapters/loopback"
	"github.com/dkeye/voicestate/internal/config"
	"github.com/dkeye/voicestate/internal/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	hub := loopback.NewHub(log.Logger, loopback.Options{
		APIKeys:        cfg.APIKeys,
		ProcessorDelay: cfg.ProcessorDelay,
	})
	metrics := observability.New()
	clients := router.NewClients(log.Logger, hub, cfg, metrics)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Log:     log.Logger,
		Hub:     hub,
		Clients: clients,
		Metrics: metrics,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("voicestate server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	clients.Close(shutdownCtx)
	hub.Wait()
	log.Info().Msg("Server exited gracefully")
}
