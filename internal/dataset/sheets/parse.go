package sheets

import (
	"fmt"
	"strings"

	"powertrust/internal/dataset"
)

// parseValues converts a values matrix (as returned by the Sheets API) into
// columns. Rows shorter than the header are padded with empty cells, so a
// trailing blank number reads as NaN. Fully empty rows are skipped.
func parseValues(values [][]interface{}) (dataset.Columns, error) {
	if len(values) == 0 {
		return dataset.Columns{}, fmt.Errorf("%w: sheet is empty", dataset.ErrMissingColumn)
	}
	headers := dataset.TrimHeaders(toStrings(values[0]))
	if err := dataset.CheckColumns(headers); err != nil {
		return dataset.Columns{}, err
	}
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}

	var cols dataset.Columns
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		get := func(name string) string { return safeGet(row, idx[name]) }
		value, err := dataset.ParseMeasure(get(dataset.ColValue))
		if err != nil {
			return dataset.Columns{}, fmt.Errorf("row %d %s: %w", i+1, dataset.ColValue, err)
		}
		capacity, err := dataset.ParseMeasure(get(dataset.ColCapacity))
		if err != nil {
			return dataset.Columns{}, fmt.Errorf("row %d %s: %w", i+1, dataset.ColCapacity, err)
		}
		cols.SiteID = append(cols.SiteID, get(dataset.ColSiteID))
		cols.Country = append(cols.Country, get(dataset.ColCountry))
		cols.DevName = append(cols.DevName, get(dataset.ColDevName))
		cols.Start = append(cols.Start, get(dataset.ColStart))
		cols.End = append(cols.End, get(dataset.ColEnd))
		cols.ValueKWh = append(cols.ValueKWh, value)
		cols.CapacityKW = append(cols.CapacityKW, capacity)
		cols.IsCertified = append(cols.IsCertified, get(dataset.ColIsCertified))
	}
	return cols, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
