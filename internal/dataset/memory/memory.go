package memory

import (
	"context"
	"sync"

	"powertrust/internal/core"
	"powertrust/internal/dataset"
)

// Store keeps records in process memory. It serves as a Source for tests and
// as the target of an import dry-run.
type Store struct {
	mu    sync.Mutex
	name  string
	items []core.GenerationRecord
}

var (
	_ dataset.Source = (*Store)(nil)
	_ dataset.Writer = (*Store)(nil)
)

func New(name string, records ...core.GenerationRecord) *Store {
	if name == "" {
		name = "memory"
	}
	s := &Store{name: name}
	s.items = append(s.items, records...)
	return s
}

// Load returns a copy of the stored records.
func (s *Store) Load(ctx context.Context) ([]core.GenerationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.GenerationRecord(nil), s.items...), nil
}

// Replace swaps the stored records and returns how many were kept.
func (s *Store) Replace(_ context.Context, records []core.GenerationRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.GenerationRecord(nil), records...)
	return len(s.items), nil
}

func (s *Store) Name() string { return s.name }
