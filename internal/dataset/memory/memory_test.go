package memory

import (
	"context"
	"testing"
	"time"

	"powertrust/internal/core"
	"powertrust/internal/dataset"
)

func TestMemoryStoreReplaceAndLoad(t *testing.T) {
	start := time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC)
	s := New("", core.NewRecord(core.GenerationRecord{SiteID: "a", SMRStartDt: start}))
	if s.Name() != "memory" {
		t.Fatalf("unexpected name %q", s.Name())
	}

	got, err := s.Load(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected load: %v err=%v", got, err)
	}
	got[0].SiteID = "mutated"

	again, _ := s.Load(context.Background())
	if again[0].SiteID != "a" {
		t.Fatalf("Load must return a copy, got %q", again[0].SiteID)
	}

	n, err := s.Replace(context.Background(), []core.GenerationRecord{{SiteID: "b"}, {SiteID: "c"}})
	if err != nil || n != 2 {
		t.Fatalf("unexpected replace: n=%d err=%v", n, err)
	}
}

func TestOpenBuildsHandle(t *testing.T) {
	start := time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)
	s := New("fixture",
		core.NewRecord(core.GenerationRecord{SiteID: "a", Country: "US", DevName: "Acme", SMRStartDt: start, ValueKWh: 10}),
		core.NewRecord(core.GenerationRecord{SiteID: "b", Country: "KE", DevName: "Jua", SMRStartDt: start, ValueKWh: 5}),
	)
	h, err := dataset.Open(context.Background(), s)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if h.Table().Len() != 2 || h.Source() != "fixture" {
		t.Fatalf("unexpected handle: len=%d source=%q", h.Table().Len(), h.Source())
	}
	if opts := h.Options(); len(opts.Countries) != 2 || opts.Years[0] != 2021 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	vm := h.Render(core.ViewCountry, core.Filters{Countries: []string{"KE"}})
	if vm.Summary.TotalKWh != 5 {
		t.Fatalf("unexpected total %v", vm.Summary.TotalKWh)
	}
}

func TestOpenPropagatesLoadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dataset.Open(ctx, New("x")); err == nil {
		t.Fatalf("expected error from cancelled load")
	}
}
