package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"powertrust/internal/core"
	"powertrust/internal/dataset"
)

const dateLayout = "2006-01-02"

// SQLiteRepository stores a snapshot of the generation table. It is loaded
// like any other source and refreshed wholesale by Replace.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

var (
	_ dataset.Source = (*SQLiteRepository)(nil)
	_ dataset.Writer = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Name() string { return "sqlite:" + r.path }

// Load returns every stored record in insertion order. NULL numbers read back as NaN.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.GenerationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT site_id, country, dev_name, smr_start_dt, smr_end_dt, value_kwh, capacity_kw, is_certified
		FROM generation_records
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query generation records: %w", err)
	}
	defer rows.Close()

	var out []core.GenerationRecord
	for rows.Next() {
		var (
			rec          core.GenerationRecord
			start, end   string
			value, capKW sql.NullFloat64
		)
		if err := rows.Scan(&rec.SiteID, &rec.Country, &rec.DevName, &start, &end, &value, &capKW, &rec.IsCertified); err != nil {
			return nil, fmt.Errorf("scan generation record: %w", err)
		}
		if rec.SMRStartDt, err = time.Parse(dateLayout, start); err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", dataset.ColStart, start, err)
		}
		if rec.SMREndDt, err = time.Parse(dateLayout, end); err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", dataset.ColEnd, end, err)
		}
		rec.ValueKWh = fromNull(value)
		rec.CapacityKW = fromNull(capKW)
		out = append(out, core.NewRecord(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generation records: %w", err)
	}
	return out, nil
}

// Replace swaps the stored snapshot for records inside one transaction and
// logs the import.
func (r *SQLiteRepository) Replace(ctx context.Context, records []core.GenerationRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM generation_records`); err != nil {
		return 0, fmt.Errorf("clear generation records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO generation_records
			(site_id, country, dev_name, smr_start_dt, smr_end_dt, value_kwh, capacity_kw, is_certified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.SiteID, rec.Country, rec.DevName,
			rec.SMRStartDt.Format(dateLayout), rec.SMREndDt.Format(dateLayout),
			toNull(rec.ValueKWh), toNull(rec.CapacityKW), rec.IsCertified,
		); err != nil {
			return 0, fmt.Errorf("insert record %d: %w", i+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO imports (target, records, imported_at) VALUES (?, ?, ?)`,
		r.path, len(records), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, fmt.Errorf("record import: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot replaced in SQLite", "records", len(records), "path", r.path)
	return len(records), nil
}

// Count returns how many records the snapshot holds.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generation_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count generation records: %w", err)
	}
	return n, nil
}

// LastImport reports when the snapshot was last replaced. ok is false when
// nothing has been imported yet.
func (r *SQLiteRepository) LastImport(ctx context.Context) (at time.Time, ok bool, err error) {
	var ts string
	err = r.db.QueryRowContext(ctx, `SELECT imported_at FROM imports ORDER BY id DESC LIMIT 1`).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last import: %w", err)
	}
	at, err = time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse import time %q: %w", ts, err)
	}
	return at, true, nil
}

func toNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
