package dataset

import (
	"context"

	"powertrust/internal/core"
)

// Ports for inbound data adapters.
type (
	// Source loads every generation record from one backing store.
	Source interface {
		Load(ctx context.Context) ([]core.GenerationRecord, error)
		// Name identifies the source in logs, e.g. "csv:data/clean_powertrust_data.csv".
		Name() string
	}

	// Writer replaces the contents of a store with the given records.
	Writer interface {
		Replace(ctx context.Context, records []core.GenerationRecord) (int, error)
	}
)
