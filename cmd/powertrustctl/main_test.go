package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"powertrust/internal/core"
)

const sampleCSV = "SiteId,Country,DevName,SMRStartDt,SMREndDt,Value (KWh),Capacity (KW),IsCertified\n" +
	"s1,India,Dev A,2022-01-01,2022-01-31,10,1,True\n" +
	"s2,Kenya,Dev B,2023-05-01,2023-05-31,20,2,False\n" +
	"s1,India,Dev A,2022-02-01,2022-02-28,5,1,True\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportThenSummaryFromSQLite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	dbPath := filepath.Join(dir, "db", "powertrust.db")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DATA_FILE", csvPath)
	t.Setenv("SQLITE_DB_PATH", dbPath)
	t.Setenv("LOG_LEVEL", "error")

	t.Setenv("DATA_BACKEND", "csv")
	out, err := execute(t, "import")
	if err != nil {
		t.Fatalf("import error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 3 records") {
		t.Errorf("import output = %q", out)
	}

	t.Setenv("DATA_BACKEND", "sqlite")
	out, err = execute(t, "summary", "--view", "country", "--country", "India")
	if err != nil {
		t.Fatalf("summary error = %v\n%s", err, out)
	}
	for _, want := range []string{"Total Value (KWh)", "15", "Number of Projects", "India"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Kenya") {
		t.Errorf("summary output should not list Kenya:\n%s", out)
	}
}

func TestImportDryRunLeavesDatabaseAlone(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	dbPath := filepath.Join(dir, "untouched.db")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DATA_BACKEND", "csv")
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "import", "--dry-run", "--file", csvPath, "--db", dbPath)
	importDryRun, importFile, importDB = false, "", ""
	if err != nil {
		t.Fatalf("import error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 3 records") || !strings.Contains(out, "dry run") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Errorf("dry run created %s", dbPath)
	}
}

func TestSummaryRejectsUnknownView(t *testing.T) {
	_, err := execute(t, "summary", "--view", "pie")
	if !errors.Is(err, core.ErrUnknownView) {
		t.Errorf("error = %v, want ErrUnknownView", err)
	}
	summaryView = core.ViewCountry.Slug()
}

func TestPrintViewModelEmptySelection(t *testing.T) {
	table := core.NewTable(nil)
	var buf bytes.Buffer
	printViewModel(&buf, core.Render(table, core.ViewMonthly, core.Filters{}))
	if !strings.Contains(buf.String(), "No rows match the selected filters.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestParseViews(t *testing.T) {
	all, err := parseViews(nil)
	if err != nil || len(all) != len(core.AllViews()) {
		t.Fatalf("parseViews(nil) = %v, %v", all, err)
	}
	got, err := parseViews([]string{"monthly", "developer"})
	if err != nil || len(got) != 2 || got[0] != core.ViewMonthly || got[1] != core.ViewDeveloper {
		t.Errorf("parseViews() = %v, %v", got, err)
	}
	if _, err := parseViews([]string{"monthly", "pie"}); !errors.Is(err, core.ErrUnknownView) {
		t.Errorf("error = %v, want ErrUnknownView", err)
	}
}

type fakeSummaryPublisher struct {
	sent   []core.ViewModel
	failAt int
}

func (f *fakeSummaryPublisher) PublishSummary(_ context.Context, vm core.ViewModel) error {
	if f.failAt > 0 && len(f.sent)+1 == f.failAt {
		return errors.New("broker gone")
	}
	f.sent = append(f.sent, vm)
	return nil
}

type tableRenderer struct{ t *core.Table }

func (r tableRenderer) Render(v core.View, f core.Filters) core.ViewModel {
	return core.Render(r.t, v, f)
}

func TestPublishSummaries(t *testing.T) {
	table := core.NewTable([]core.GenerationRecord{
		core.NewRecord(core.GenerationRecord{SiteID: "s1", Country: "India", DevName: "Dev A",
			SMRStartDt: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), ValueKWh: 10, IsCertified: "True"}),
	})
	views := core.AllViews()

	pub := &fakeSummaryPublisher{}
	n, err := publishSummaries(context.Background(), pub, tableRenderer{table}, views, core.Filters{})
	if err != nil || n != len(views) {
		t.Fatalf("publishSummaries() = %d, %v", n, err)
	}
	if pub.sent[0].Summary.TotalKWh != 10 {
		t.Errorf("total = %v, want 10", pub.sent[0].Summary.TotalKWh)
	}

	failing := &fakeSummaryPublisher{failAt: 2}
	n, err = publishSummaries(context.Background(), failing, tableRenderer{table}, views, core.Filters{})
	if err == nil || n != 1 {
		t.Errorf("publishSummaries() = %d, %v; want 1 and an error", n, err)
	}
}
