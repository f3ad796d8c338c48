package main

import (
	"context"
	"errors"
	"os"
	"time"

	"powertrust/internal/amqp"
	"powertrust/internal/chart"
	"powertrust/internal/cli"
	"powertrust/internal/config"
	"powertrust/internal/export"
	"powertrust/internal/log"
	"powertrust/internal/worker"
)

const prefetch = 4

// consumer is the part of the AMQP client the worker drives.
type consumer interface {
	ConsumeExportRequests(ctx context.Context, prefetch int, handler amqp.Handler) error
	Close() error
}

type connectFunc func(logger *log.Logger, cfg *config.Config) (consumer, error)

func connectAMQP(logger *log.Logger, cfg *config.Config) (consumer, error) {
	c, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	logger.Info("Starting powertrust-worker")

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	if err := run(ctx, logger, cfg, connectAMQP); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	<-done
	logger.Info("Worker shutdown complete")
}

// run consumes export requests until ctx ends. Every resource it opens is
// released before it returns, including on failure.
func run(ctx context.Context, logger *log.Logger, cfg *config.Config, connect connectFunc) error {
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required for the export worker")
	}

	handle, closeSource, err := cli.OpenDataset(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to load dataset", log.FieldError, err, "backend", cfg.DataBackend)
		return err
	}
	defer closeSource()

	client, err := connect(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer client.Close()

	var kpi worker.KPIPublisher
	mqttPublisher, err := cli.ConnectMQTT(logger, cfg)
	if err != nil {
		// Exports still work without the broker.
		logger.Warn("Failed to connect to MQTT broker, continuing without KPI publishing", log.FieldError, err)
	}
	if mqttPublisher != nil {
		defer mqttPublisher.Close()
		kpi = mqttPublisher
	}

	processor := export.NewProcessor(handle, chart.NewRenderer(0, 0), cfg.ExportDir, cfg.ExportConcurrency)
	exportWorker := worker.NewExportWorker(processor, kpi)

	logger.Info("Worker ready",
		"queue", cfg.AMQPQueue,
		"export_dir", cfg.ExportDir,
		"concurrency", cfg.ExportConcurrency,
		"mqtt_enabled", kpi != nil)

	err = client.ConsumeExportRequests(ctx, prefetch, exportWorker.HandleExportRequest)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
