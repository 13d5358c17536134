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

	"go.uber.org/zap"

	"github.com/kjstillabower/storm-tracker-wx/internal/circuitbreaker"
	"github.com/kjstillabower/storm-tracker-wx/internal/client"
	"github.com/kjstillabower/storm-tracker-wx/internal/config"
	"github.com/kjstillabower/storm-tracker-wx/internal/forecast"
	httphandler "github.com/kjstillabower/storm-tracker-wx/internal/http"
	"github.com/kjstillabower/storm-tracker-wx/internal/lifecycle"
	"github.com/kjstillabower/storm-tracker-wx/internal/observability"
)

const breakerComponent = "nws"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	nwsClient, err := client.NewNWSClient(cfg.NWSBaseURL, cfg.UserAgent(), cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatal("nws client", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        breakerComponent,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(breakerComponent, from.String(), to.String())
				observability.SetCircuitBreakerStateGauge(breakerComponent, int(to))
				logger.Warn("circuit breaker transition", zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
		nwsClient.SetCircuitBreaker(cb)
		healthConfig.Breaker = cb
		observability.SetCircuitBreakerStateGauge(breakerComponent, int(circuitbreaker.StateClosed))
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	handler := httphandler.NewHandler(forecast.NewService(nwsClient), healthConfig, logger, cfg.EnforceCoordinateRange)
	observability.RegisterUpstreamGauges(cfg.DegradedWindow)

	static := httphandler.NewStaticHandler(httphandler.NewDirFs(cfg.StaticDir), httphandler.StaticConfig{
		EntryDocument: cfg.EntryDocument,
		CacheControl:  cfg.CacheControl,
	})
	router, err := httphandler.NewRouter(httphandler.RouterConfig{
		Handler:            handler,
		Static:             static,
		Logger:             logger,
		RequestTimeout:     cfg.RequestTimeout,
		CompressionMinSize: cfg.CompressionMinSize,
	})
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.String("nws_base_url", cfg.NWSBaseURL),
			zap.String("user_agent", cfg.UserAgent()),
			zap.String("static_dir", cfg.StaticDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
