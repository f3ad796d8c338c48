// Package backend picks the dataset source named by the configuration.
package backend

import (
	"context"

	"powertrust/internal/dataset"
)

// CleanupFunc releases whatever the source holds open.
type CleanupFunc func() error

// Result contains the source and an optional cleanup function.
type Result struct {
	Source  dataset.Source
	Cleanup CleanupFunc
}

// Close runs Cleanup when one is set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates sources based on configuration.
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*Result, error)
}

// Config holds what any of the sources may need.
type Config struct {
	Type Type

	// CSV
	DataFile string

	// SQLite
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// Type names a source implementation.
type Type string

const (
	CSVBackend    Type = "csv"
	SQLiteBackend Type = "sqlite"
	SheetsBackend Type = "sheets"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case CSVBackend, SQLiteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
