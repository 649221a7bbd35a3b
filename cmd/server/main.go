package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facturador/internal/afip"
	"facturador/internal/config"
	"facturador/internal/router"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	env, err := afip.ParseEnvironment(cfg.AFIPEnv)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid AFIP_ENV")
	}

	cred, err := afip.LoadCredential(cfg.AFIPCertPath, cfg.AFIPKeyPath, cfg.AFIPCUIT, env, cfg.AFIPPuntoVenta)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AFIP credential")
	}

	timeout := time.Duration(cfg.AFIPTimeoutSeconds) * time.Second
	endpoints := afip.EndpointsFor(env)
	auth := afip.NewAuthClient(endpoints.WSAA, timeout)
	padron := afip.NewPadronClient(endpoints.Padron, timeout)
	wsfe := afip.NewWSFEClient(endpoints.WSFE, timeout)

	r := router.New(cfg, cred, auth, padron, wsfe)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("entorno", string(env)).Msgf("facturador listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
