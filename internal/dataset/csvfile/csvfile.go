// Package csvfile reads the cleaned Powertrust export from a CSV file.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"powertrust/internal/core"
	"powertrust/internal/dataset"
)

// DefaultPath is where the dashboard looks for its data file.
const DefaultPath = "data/clean_powertrust_data.csv"

type Source struct {
	path string
}

var _ dataset.Source = (*Source)(nil)

func New(path string) *Source {
	if path == "" {
		path = DefaultPath
	}
	return &Source{path: path}
}

func (s *Source) Name() string { return "csv:" + s.path }

// Load reads every row. Text columns are kept verbatim apart from surrounding
// whitespace; the two numeric columns follow dataset.ParseMeasure. A file
// holding only the header loads as an empty table.
func (s *Source) Load(ctx context.Context) ([]core.GenerationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file has no header row", dataset.ErrMissingColumn)
	}
	dataset.TrimHeaders(rows[0])
	if err := dataset.CheckColumns(rows[0]); err != nil {
		return nil, err
	}
	if len(rows) == 1 {
		return []core.GenerationRecord{}, nil
	}

	// Every column stays text so gota does not apply its own NA markers.
	df := dataframe.LoadRecords(rows,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse csv: %w", df.Err)
	}

	value, err := measures(df.Col(dataset.ColValue).Records(), dataset.ColValue)
	if err != nil {
		return nil, err
	}
	capacity, err := measures(df.Col(dataset.ColCapacity).Records(), dataset.ColCapacity)
	if err != nil {
		return nil, err
	}
	cols := dataset.Columns{
		SiteID:      df.Col(dataset.ColSiteID).Records(),
		Country:     df.Col(dataset.ColCountry).Records(),
		DevName:     df.Col(dataset.ColDevName).Records(),
		Start:       df.Col(dataset.ColStart).Records(),
		End:         df.Col(dataset.ColEnd).Records(),
		ValueKWh:    value,
		CapacityKW:  capacity,
		IsCertified: df.Col(dataset.ColIsCertified).Records(),
	}
	return cols.Records()
}

func measures(cells []string, col string) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := dataset.ParseMeasure(c)
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", i+1, col, err)
		}
		out[i] = v
	}
	return out, nil
}
