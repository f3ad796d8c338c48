package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"powertrust/internal/config"
	"powertrust/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}})
}

func TestOpenDatasetFromCSV(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.csv")
	body := "SiteId,Country,DevName,SMRStartDt,SMREndDt,Value (KWh),Capacity (KW),IsCertified\n" +
		"s1,India,Dev A,2022-01-01,2022-01-31,10,1,True\n" +
		"s2,Kenya,Dev B,2023-05-01,2023-05-31,20,2,False\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, cleanup, err := OpenDataset(context.Background(), quietLogger(), &config.Config{DataBackend: "csv", DataFile: p})
	if err != nil {
		t.Fatalf("OpenDataset() error = %v", err)
	}
	defer cleanup()

	if h.Table().Len() != 2 {
		t.Errorf("records = %d, want 2", h.Table().Len())
	}
	if !strings.HasPrefix(h.Source(), "csv:") {
		t.Errorf("source = %q", h.Source())
	}
}

func TestOpenDatasetErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"unknown backend", &config.Config{DataBackend: "postgres"}},
		{"missing file", &config.Config{DataBackend: "csv", DataFile: filepath.Join(t.TempDir(), "none.csv")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := OpenDataset(context.Background(), quietLogger(), tt.cfg); err == nil {
				t.Error("OpenDataset() should fail")
			}
		})
	}
}

func TestOptionalClientsDisabled(t *testing.T) {
	cfg := &config.Config{}
	if c, err := ConnectAMQP(quietLogger(), cfg); c != nil || err != nil {
		t.Errorf("ConnectAMQP() = %v, %v; want nil, nil", c, err)
	}
	if p, err := ConnectMQTT(quietLogger(), cfg); p != nil || err != nil {
		t.Errorf("ConnectMQTT() = %v, %v; want nil, nil", p, err)
	}
}

func TestSetupLogger(t *testing.T) {
	l := SetupLogger("debug", log.ComponentWorker)
	if l.Component() != log.ComponentWorker {
		t.Errorf("component = %q", l.Component())
	}
}
