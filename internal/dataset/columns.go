package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"powertrust/internal/core"
)

// Column headers of the input file.
const (
	ColCountry     = "Country"
	ColDevName     = "DevName"
	ColSiteID      = "SiteId"
	ColStart       = "SMRStartDt"
	ColEnd         = "SMREndDt"
	ColValue       = "Value (KWh)"
	ColCapacity    = "Capacity (KW)"
	ColIsCertified = "IsCertified"
)

// RequiredColumns lists every header a source must provide.
var RequiredColumns = []string{
	ColCountry, ColDevName, ColSiteID, ColStart, ColEnd, ColValue, ColCapacity, ColIsCertified,
}

var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidDate   = errors.New("invalid date")
	ErrRaggedColumns = errors.New("columns have different lengths")
)

// CheckColumns fails with ErrMissingColumn naming every required header that
// is absent from names.
func CheckColumns(names []string) error {
	have := make(map[string]struct{}, len(names))
	for _, n := range names {
		have[strings.TrimSpace(n)] = struct{}{}
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s; got headers=%v", ErrMissingColumn, strings.Join(missing, ","), names)
	}
	return nil
}

// ParseDate parses a calendar date in any common layout, interpreting
// zone-less values as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// ParseMeasure applies the missing-value policy shared by every source: a
// blank cell or one of the NA markers (nan, na, n/a, null, none) is NaN,
// comma thousands separators are accepted and any other text is an error.
func ParseMeasure(s string) (float64, error) {
	v, err := core.ParseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, strings.TrimSpace(s))
	}
	return v, nil
}

// TrimHeaders strips surrounding whitespace and a leading UTF-8 byte-order
// mark from header names in place.
func TrimHeaders(names []string) []string {
	for i, n := range names {
		if i == 0 {
			n = strings.TrimPrefix(n, "\ufeff")
		}
		names[i] = strings.TrimSpace(n)
	}
	return names
}

// Columns is the column-oriented form every source decodes into before the
// rows are assembled.
type Columns struct {
	SiteID      []string
	Country     []string
	DevName     []string
	Start       []string
	End         []string
	ValueKWh    []float64
	CapacityKW  []float64
	IsCertified []string
}

// Len returns the row count, or -1 when the columns disagree.
func (c Columns) Len() int {
	n := len(c.SiteID)
	for _, l := range []int{
		len(c.Country), len(c.DevName), len(c.Start), len(c.End),
		len(c.ValueKWh), len(c.CapacityKW), len(c.IsCertified),
	} {
		if l != n {
			return -1
		}
	}
	return n
}

// Records parses the date columns and derives Month and Year. Text fields are
// trimmed so the values offered as filter options match the values a filter
// selects. The first malformed date aborts the whole decode.
func (c Columns) Records() ([]core.GenerationRecord, error) {
	n := c.Len()
	if n < 0 {
		return nil, ErrRaggedColumns
	}
	out := make([]core.GenerationRecord, n)
	for i := 0; i < n; i++ {
		start, err := ParseDate(c.Start[i])
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", i+1, ColStart, err)
		}
		end, err := ParseDate(c.End[i])
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", i+1, ColEnd, err)
		}
		out[i] = core.NewRecord(core.GenerationRecord{
			SiteID:      strings.TrimSpace(c.SiteID[i]),
			Country:     strings.TrimSpace(c.Country[i]),
			DevName:     strings.TrimSpace(c.DevName[i]),
			SMRStartDt:  start,
			SMREndDt:    end,
			ValueKWh:    c.ValueKWh[i],
			CapacityKW:  c.CapacityKW[i],
			IsCertified: strings.TrimSpace(c.IsCertified[i]),
		})
	}
	return out, nil
}
