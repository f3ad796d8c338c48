package backend

import (
	"context"
	"fmt"
	"log/slog"

	"powertrust/internal/dataset/csvfile"
	"powertrust/internal/dataset/sheets"
	"powertrust/internal/storage"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateSource implements Factory.CreateSource.
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		f.logger.Info("Initialized CSV backend", "data_file", config.DataFile)
		return &Result{Source: csvfile.New(config.DataFile)}, nil
	case SQLiteBackend:
		return f.createSQLiteSource(config)
	case SheetsBackend:
		return f.createSheetsSource(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteSource(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Source: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheetsSource(ctx context.Context, config Config) (*Result, error) {
	src, err := sheets.New(ctx, sheets.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		Range:           config.GoogleSheetRange,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "source", src.Name())
	return &Result{Source: src}, nil
}
