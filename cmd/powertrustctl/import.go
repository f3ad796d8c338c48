package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"powertrust/internal/dataset"
	"powertrust/internal/dataset/csvfile"
	"powertrust/internal/dataset/memory"
	"powertrust/internal/log"
	"powertrust/internal/storage"
)

var (
	importFile   string
	importDB     string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the cleaned CSV into the SQLite store",
	Long: `Reads the CSV file and replaces the generation records held in SQLite.
The previous snapshot is removed in the same transaction.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "CSV file to read (default DATA_FILE)")
	importCmd.Flags().StringVar(&importDB, "db", "", "SQLite database (default SQLITE_DB_PATH)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse the CSV without touching the database")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	file := importFile
	if file == "" {
		file = cfg.DataFile
	}
	dbPath := importDB
	if dbPath == "" {
		dbPath = cfg.SQLiteDBPath
	}

	records, err := csvfile.New(file).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	var target dataset.Writer
	if importDryRun {
		dbPath = "memory (dry run)"
		target = memory.New("dry-run")
	} else {
		repo, err := storage.NewSQLiteRepository(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer repo.Close()

		if at, ok, err := repo.LastImport(cmd.Context()); err != nil {
			logger.Warn("Failed to read previous import", log.FieldError, err)
		} else if ok {
			prev, _ := repo.Count(cmd.Context())
			logger.Info("Replacing previous snapshot", "imported_at", at.Format(time.RFC3339), log.FieldRecords, prev)
		}
		target = repo
	}

	n, err := target.Replace(cmd.Context(), records)
	if err != nil {
		return fmt.Errorf("importing records: %w", err)
	}
	logger.Info("Import finished", "file", file, "db", dbPath, log.FieldRecords, n)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records from %s into %s\n", n, file, dbPath)
	return nil
}
