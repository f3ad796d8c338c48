package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"powertrust/internal/amqp"
	"powertrust/internal/core"
	"powertrust/internal/export"
)

// Exporter runs one export job.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (export.Manifest, error)
}

// KPIPublisher receives the summary of every finished export. It is optional.
type KPIPublisher interface {
	PublishExport(ctx context.Context, m export.Manifest) error
}

// ExportWorker turns queued export requests into files on disk.
type ExportWorker struct {
	exporter  Exporter
	publisher KPIPublisher
}

func NewExportWorker(exporter Exporter, publisher KPIPublisher) *ExportWorker {
	return &ExportWorker{exporter: exporter, publisher: publisher}
}

// HandleExportRequest processes a single export request from AMQP. Failures
// that would repeat on redelivery (bad id, unknown view, chart errors) are
// marked permanent; others, such as a full disk, are requeued. A failed
// publish is only logged since the files already exist.
func (w *ExportWorker) HandleExportRequest(ctx context.Context, msg *amqp.ExportRequest) error {
	views, err := msg.Views()
	if err != nil {
		return amqp.Permanent(fmt.Errorf("resolve views: %w", err))
	}

	m, err := w.exporter.Export(ctx, export.Request{ID: msg.ID, Views: views, Filters: msg.Filters})
	if err != nil {
		err = fmt.Errorf("export %s: %w", msg.ID, err)
		if isPermanent(err) {
			return amqp.Permanent(err)
		}
		return err
	}

	skipped := 0
	for _, f := range m.Files {
		if f.Skipped {
			skipped++
		}
	}
	slog.InfoContext(ctx, "Export request handled",
		"id", msg.ID,
		"files", len(m.Files)-skipped,
		"skipped", skipped,
		"queued_at", msg.RequestedAt)

	if w.publisher != nil {
		if err := w.publisher.PublishExport(ctx, m); err != nil {
			slog.WarnContext(ctx, "Failed to publish export summary", "id", msg.ID, "error", err)
		}
	}
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, export.ErrInvalidID) ||
		errors.Is(err, export.ErrRender) ||
		errors.Is(err, core.ErrUnknownView)
}
