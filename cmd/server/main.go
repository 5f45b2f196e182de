package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speechgate/asr-gateway/internal/backend"
	"github.com/speechgate/asr-gateway/internal/config"
	"github.com/speechgate/asr-gateway/internal/gateway"
	"github.com/speechgate/asr-gateway/internal/observability"
	"github.com/speechgate/asr-gateway/internal/readiness"
	"github.com/speechgate/asr-gateway/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger("info", false)
		logger := observability.GetLogger()
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()
	logger.Info().
		Str("port", cfg.Port).
		Str("backend_http", cfg.BackendHTTPURL()).
		Str("backend_grpc", cfg.BackendGRPCAddr()).
		Msg("Starting ASR gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// When the gateway owns the engine process, launch it before probing and
	// give it its warmup window.
	var engine *supervisor.Supervisor
	if cfg.EngineCommand != "" {
		engine, err = supervisor.Start(ctx, cfg.EngineCommand, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to start engine process")
		}

		logger.Info().Int("seconds", cfg.EngineWarmupSeconds).Msg("Waiting for engine warmup")
		select {
		case <-time.After(time.Duration(cfg.EngineWarmupSeconds) * time.Second):
		case <-engine.Done():
			code, _ := engine.ExitCode()
			logger.Fatal().Int("exit_code", code).Msg("Engine exited during warmup")
		case <-ctx.Done():
			engine.Stop()
			return
		}
	}

	clients := backend.NewClients(cfg, logger)
	defer clients.Close()

	prober := &readiness.Prober{
		HTTPCheck:       readiness.HTTPHealthCheck(clients.HTTPClient(), cfg.BackendHTTPURL()+"/health"),
		GRPCCheck:       clients.EnsureGRPC,
		Interval:        time.Duration(cfg.ProbeIntervalSeconds) * time.Second,
		HTTPMaxAttempts: cfg.ProbeHTTPMaxAttempts,
		GRPCMaxAttempts: cfg.ProbeGRPCMaxAttempts,
		Logger:          logger,
	}
	if err := prober.Wait(ctx); err != nil {
		if engine != nil {
			engine.Stop()
		}
		logger.Fatal().Err(err).Msg("Backend engine never became ready")
	}

	mux := http.NewServeMux()
	gateway.NewHandler(cfg, clients).Register(mux)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		// No blanket read/write timeouts: streaming sessions are long-lived.
		IdleTimeout: 120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		serverErr <- server.ListenAndServe()
	}()

	engineDone := make(chan struct{})
	if engine != nil {
		go func() {
			<-engine.Done()
			close(engineDone)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server failed")
	case <-engineDone:
		code, _ := engine.ExitCode()
		logger.Error().Int("exit_code", code).Msg("Engine exited unexpectedly, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown was not clean")
	}

	if engine != nil {
		engine.Stop()
	}
	logger.Info().Msg("ASR gateway stopped")
}
