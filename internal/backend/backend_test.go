package backend

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"powertrust/internal/config"
	"powertrust/internal/dataset/csvfile"
	"powertrust/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Error("unknown backend should fail")
	}

	got, err := FromAppConfig(&config.Config{
		DataBackend:         "sheets",
		GoogleSpreadsheetID: "sheet-id",
		GoogleSheetRange:    "Data!A:H",
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if got.Type != SheetsBackend || got.GoogleSpreadsheetID != "sheet-id" || got.GoogleSheetRange != "Data!A:H" {
		t.Errorf("FromAppConfig() = %+v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"csv ok", Config{Type: CSVBackend, DataFile: "x.csv"}, ""},
		{"csv without file", Config{Type: CSVBackend}, "data file"},
		{"sqlite ok", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleServiceAccountJSON: "{}"}, "Spreadsheet ID"},
		{"sheets without creds", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id"}, "GoogleServiceAccount"},
		{"sheets ok", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleServiceAccountFile: "sa.json"}, ""},
		{"invalid", Config{Type: "memory"}, "invalid backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateCSVSource(t *testing.T) {
	res, err := NewFactory(nil).CreateSource(context.Background(), Config{Type: CSVBackend, DataFile: "data/x.csv"})
	if err != nil {
		t.Fatalf("CreateSource() error = %v", err)
	}
	if _, ok := res.Source.(*csvfile.Source); !ok {
		t.Errorf("source = %T, want *csvfile.Source", res.Source)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCreateSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powertrust.db")
	res, err := NewFactory(nil).CreateSource(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateSource() error = %v", err)
	}
	defer res.Close()

	if _, ok := res.Source.(*storage.SQLiteRepository); !ok {
		t.Fatalf("source = %T, want *storage.SQLiteRepository", res.Source)
	}
	recs, err := res.Source.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("fresh database returned %d records", len(recs))
	}
}

func TestCreateSheetsSourceMissingCredentials(t *testing.T) {
	_, err := NewFactory(nil).CreateSource(context.Background(), Config{Type: SheetsBackend, GoogleSpreadsheetID: "id"})
	if err == nil {
		t.Fatal("CreateSource() should fail without credentials")
	}
}

func TestResultCloseNil(t *testing.T) {
	var r *Result
	if err := r.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	called := false
	r = &Result{Cleanup: func() error { called = true; return errors.New("x") }}
	if err := r.Close(); err == nil || !called {
		t.Error("Close() should run cleanup and return its error")
	}
}
