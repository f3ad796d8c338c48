// Package sheets reads generation records from a Google Sheets range.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"powertrust/internal/core"
	"powertrust/internal/dataset"
)

// DefaultRange covers the eight data columns of the first sheet.
const DefaultRange = "Sheet1!A:H"

// Options configures a Source.
type Options struct {
	SpreadsheetID string
	Range         string
	// CredentialsJSON wins over CredentialsFile when both are set.
	CredentialsJSON string
	CredentialsFile string
}

type valuesGetter interface {
	get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
}

type apiGetter struct {
	svc *gsheet.Service
}

func (g apiGetter) get(ctx context.Context, id, rng string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type Source struct {
	values        valuesGetter
	spreadsheetID string
	rng           string
}

var _ dataset.Source = (*Source)(nil)

// New creates a read-only Sheets client using service-account credentials.
func New(ctx context.Context, opts Options) (*Source, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(opts)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Creating Google Sheets service",
		"spreadsheet_id", id,
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsReadonlyScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newSource(apiGetter{svc: svc}, id, opts.Range), nil
}

func newSource(g valuesGetter, id, rng string) *Source {
	if strings.TrimSpace(rng) == "" {
		rng = DefaultRange
	}
	return &Source{values: g, spreadsheetID: id, rng: rng}
}

func credentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (s *Source) Name() string {
	return fmt.Sprintf("sheets:%s/%s", s.spreadsheetID, s.rng)
}

// Load reads the configured range. The first row must hold the column headers.
func (s *Source) Load(ctx context.Context) ([]core.GenerationRecord, error) {
	values, err := s.values.get(ctx, s.spreadsheetID, s.rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.rng, err)
	}
	cols, err := parseValues(values)
	if err != nil {
		return nil, err
	}
	return cols.Records()
}
