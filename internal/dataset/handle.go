package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"powertrust/internal/core"
)

// Handle is the once-initialised, read-only dataset shared by every consumer
// for the lifetime of the process. It is built by Open and passed by
// reference; there is no package-level cache.
type Handle struct {
	table    *core.Table
	options  core.FilterOptions
	source   string
	loadedAt time.Time
}

// Open loads src once and freezes the result. Load failures are returned
// unchanged to the caller; there is no retry or partial result.
func Open(ctx context.Context, src Source) (*Handle, error) {
	start := time.Now()
	records, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}
	table := core.NewTable(records)
	h := &Handle{
		table:    table,
		options:  core.Options(table),
		source:   src.Name(),
		loadedAt: time.Now(),
	}
	slog.InfoContext(ctx, "Dataset loaded",
		"source", h.source,
		"records", table.Len(),
		"countries", len(h.options.Countries),
		"developers", len(h.options.Developers),
		"duration_ms", time.Since(start).Milliseconds())
	return h, nil
}

// NewHandle wraps an already built table, mainly for tests.
func NewHandle(table *core.Table, source string) *Handle {
	return &Handle{
		table:    table,
		options:  core.Options(table),
		source:   source,
		loadedAt: time.Now(),
	}
}

// Table returns the full, unfiltered table.
func (h *Handle) Table() *core.Table { return h.table }

// Options returns the filter choices computed at load time.
func (h *Handle) Options() core.FilterOptions { return h.options }

// Source names where the data came from.
func (h *Handle) Source() string { return h.source }

// LoadedAt is when Open finished.
func (h *Handle) LoadedAt() time.Time { return h.loadedAt }

// Render is the per-interaction entry point: filter, aggregate, summarise.
func (h *Handle) Render(v core.View, f core.Filters) core.ViewModel {
	return core.Render(h.table, v, f)
}
