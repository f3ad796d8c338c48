package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"powertrust/internal/cli"
	apphttp "powertrust/internal/http"
	"powertrust/internal/log"
	"powertrust/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	// The dataset is loaded exactly once; a failure here is fatal.
	handle, closeSource, err := cli.OpenDataset(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to load dataset", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeSource()

	opts := apphttp.Options{
		Addr:         ":" + cfg.Port,
		Data:         handle,
		Logger:       logger.WithComponent(log.ComponentHTTP),
		CacheSize:    cfg.CacheSize,
		CacheTTL:     cfg.CacheTTL,
		RawRowsLimit: cfg.RawRowsLimit,
		RateLimit:    ratelimit.DefaultConfig(),
	}

	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without exports", log.FieldError, err)
	}
	if amqpClient != nil {
		defer amqpClient.Close()
		opts.Exports = amqpClient
	}

	srv := apphttp.NewServer(opts)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting powertrust server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"records", handle.Table().Len(),
		"exports_enabled", opts.Exports != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
