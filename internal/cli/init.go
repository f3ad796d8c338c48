// Package cli provides the start-up steps shared by cmd/powertrust,
// cmd/powertrust-worker and cmd/powertrustctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"powertrust/internal/amqp"
	"powertrust/internal/backend"
	"powertrust/internal/config"
	"powertrust/internal/dataset"
	"powertrust/internal/log"
	"powertrust/internal/publisher"
)

// SetupLogger builds the text logger for component at the given LOG_LEVEL
// and makes it the slog default.
func SetupLogger(level, component string) *log.Logger {
	logger := log.New(log.Config{Level: log.ParseLevel(level), Component: component})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// OpenDataset builds the configured source and loads it once. The returned
// cleanup releases the source.
func OpenDataset(ctx context.Context, logger *log.Logger, cfg *config.Config) (*dataset.Handle, func(), error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateSource(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := res.Close(); err != nil {
			logger.Warn("Failed to release data source", log.FieldError, err)
		}
	}
	h, err := dataset.Open(ctx, res.Source)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return h, cleanup, nil
}

// ConnectAMQP returns nil when AMQP is not configured.
func ConnectAMQP(logger *log.Logger, cfg *config.Config) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// ConnectMQTT returns nil when MQTT is not configured.
func ConnectMQTT(logger *log.Logger, cfg *config.Config) (*publisher.Publisher, error) {
	if !cfg.MQTTEnabled() {
		logger.Info("MQTT disabled - no MQTT_BROKER provided")
		return nil, nil
	}
	p, err := publisher.New(publisher.Config{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to MQTT broker", "broker", cfg.MQTTBroker, "topic_prefix", cfg.MQTTTopicPrefix)
	return p, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has run.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
