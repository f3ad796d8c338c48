package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"powertrust/internal/amqp"
	"powertrust/internal/chart"
	"powertrust/internal/core"
	"powertrust/internal/dataset"
	"powertrust/internal/export"
)

type fakeExporter struct {
	got export.Request
	err error
}

func (f *fakeExporter) Export(_ context.Context, req export.Request) (export.Manifest, error) {
	f.got = req
	if f.err != nil {
		return export.Manifest{}, f.err
	}
	files := make([]export.File, len(req.Views))
	for i, v := range req.Views {
		files[i] = export.File{View: v.Slug(), Path: "/tmp/" + v.Slug() + ".png"}
	}
	return export.Manifest{ID: req.ID, Files: files}, nil
}

type fakePublisher struct {
	calls int
	err   error
}

func (f *fakePublisher) PublishExport(context.Context, export.Manifest) error {
	f.calls++
	return f.err
}

func TestHandleExportRequest(t *testing.T) {
	ex := &fakeExporter{}
	pub := &fakePublisher{err: errors.New("broker down")}
	w := NewExportWorker(ex, pub)

	msg := amqp.NewExportRequest("job", "developer", core.Filters{Countries: []string{"Kenya"}})
	if err := w.HandleExportRequest(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(ex.got.Views) != 1 || ex.got.Views[0] != core.ViewDeveloper {
		t.Fatalf("unexpected views %v", ex.got.Views)
	}
	if ex.got.Filters.Countries[0] != "Kenya" {
		t.Fatalf("filters not forwarded: %+v", ex.got.Filters)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher called %d times", pub.calls)
	}
}

func TestHandleExportRequestFailures(t *testing.T) {
	w := NewExportWorker(&fakeExporter{err: errors.New("disk full")}, nil)
	if err := w.HandleExportRequest(context.Background(), amqp.NewExportRequest("j", amqp.AllViews, core.Filters{})); err == nil {
		t.Fatal("expected export error to propagate")
	}
	bad := &amqp.ExportRequest{ID: "j", View: "pie"}
	if err := w.HandleExportRequest(context.Background(), bad); !errors.Is(err, core.ErrUnknownView) {
		t.Fatalf("expected ErrUnknownView, got %v", err)
	}
}

func TestHandleExportRequestMarksPermanentFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"invalid id", fmt.Errorf("%w: %q", export.ErrInvalidID, "../evil"), true},
		{"render error", fmt.Errorf("%w: monthly: %w", export.ErrRender, errors.New("bad axis")), true},
		{"disk full", errors.New("disk full"), false},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewExportWorker(&fakeExporter{err: tt.err}, nil)
			err := w.HandleExportRequest(context.Background(), amqp.NewExportRequest("j", amqp.AllViews, core.Filters{}))
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, amqp.ErrPermanent); got != tt.permanent {
				t.Fatalf("permanent = %v, want %v (err %v)", got, tt.permanent, err)
			}
		})
	}

	w := NewExportWorker(&fakeExporter{}, nil)
	if err := w.HandleExportRequest(context.Background(), &amqp.ExportRequest{ID: "j", View: "pie"}); !errors.Is(err, amqp.ErrPermanent) {
		t.Fatalf("unknown view should be permanent, got %v", err)
	}
}

func TestHandleExportRequestSingleMonth(t *testing.T) {
	d := time.Date(2022, time.May, 1, 0, 0, 0, 0, time.UTC)
	handle := dataset.NewHandle(core.NewTable([]core.GenerationRecord{
		core.NewRecord(core.GenerationRecord{SiteID: "a", Country: "Kenya", DevName: "Jua", SMRStartDt: d, ValueKWh: 40, CapacityKW: 5, IsCertified: "TRUE"}),
	}), "memory")
	w := NewExportWorker(export.NewProcessor(handle, chart.NewRenderer(400, 300), t.TempDir(), 2), nil)

	for _, view := range []string{"monthly", amqp.AllViews} {
		if err := w.HandleExportRequest(context.Background(), amqp.NewExportRequest("ok1", view, core.Filters{})); err != nil {
			t.Errorf("%s: %v", view, err)
		}
	}
	bad := &amqp.ExportRequest{ID: "../evil", View: "country"}
	if err := w.HandleExportRequest(context.Background(), bad); !errors.Is(err, amqp.ErrPermanent) {
		t.Errorf("unsafe id should be permanent, got %v", err)
	}
}
